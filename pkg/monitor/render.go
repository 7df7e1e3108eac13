package monitor

import (
	"fmt"
	"strings"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/types"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// Render draws the per-phase status table for one cycle.
func Render(s *types.CycleSnapshot) string {
	r := s.Reading
	sum := func(v [3]float64) float64 { return v[0] + v[1] + v[2] }
	amps := func(v float64) string { return fmt.Sprintf("%.2f", v) }
	kw := func(v float64) string { return fmt.Sprintf("%.3f", v) }

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		BorderRow(true).
		Headers("", "Phase 1", "Phase 2", "Phase 3", "Total").
		Row("Current (A)", amps(r.CurrentA[0]), amps(r.CurrentA[1]), amps(r.CurrentA[2]), amps(sum(r.CurrentA))).
		Row("Consumption (kW)", kw(r.PhaseImportKW[0]), kw(r.PhaseImportKW[1]), kw(r.PhaseImportKW[2]), kw(sum(r.PhaseImportKW))).
		Row("Generation (kW)", kw(r.PhaseExportKW[0]), kw(r.PhaseExportKW[1]), kw(r.PhaseExportKW[2]), kw(sum(r.PhaseExportKW))).
		Row("Advertised (A)", amps(s.Allowance[0]), amps(s.Allowance[1]), amps(s.Allowance[2]), "")

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Cycle %d", s.Cycle)))
	b.WriteString(labelStyle.Render(fmt.Sprintf("  %s  limit %s A  %s  regulation %s",
		s.Time.Local().Format("15:04:05"), amps(s.CurrentLimit), s.Topology, s.Regulation)))
	b.WriteString("\n")
	b.WriteString(t.String())
	b.WriteString("\n")

	if !s.Queued {
		b.WriteString(warningStyle.Render("Output port busy, this cycle's telegram was dropped"))
		b.WriteString("\n")
	}
	if s.Decoder.ChecksumErrors > 0 || s.Decoder.ParseErrors > 0 {
		b.WriteString(warningStyle.Render(fmt.Sprintf("Checksum errors: %d  Parse errors: %d",
			s.Decoder.ChecksumErrors, s.Decoder.ParseErrors)))
		b.WriteString("\n")
	}
	return b.String()
}
