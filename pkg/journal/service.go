// Package journal keeps a history of control cycles in SQLite for later
// inspection. The controller never reads it back.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/esmutils"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Journal struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// One writer; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)

	return &Journal{
		db:     db,
		logger: log.With().Str("component", "journal").Logger(),
	}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) Insert(s types.CycleSnapshot) error {
	queued := 0
	if s.Queued {
		queued = 1
	}

	_, err := j.db.Exec(
		"INSERT INTO cycles "+
			"(timestamp, cycle, current_limit_ma, consumption_w, generation_w, measured_ma, "+
			"l1_deduction_ma, l2_deduction_ma, l3_deduction_ma, "+
			"l1_allowance_ma, l2_allowance_ma, l3_allowance_ma, queued) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.Time.Unix(),
		s.Cycle,
		esmutils.AmpsToMilliamps(s.CurrentLimit),
		esmutils.KwToW(s.ConsumptionKW),
		esmutils.KwToW(s.GenerationKW),
		esmutils.AmpsToMilliamps(s.MeasuredA),
		esmutils.AmpsToMilliamps(s.Deduction[0]),
		esmutils.AmpsToMilliamps(s.Deduction[1]),
		esmutils.AmpsToMilliamps(s.Deduction[2]),
		esmutils.AmpsToMilliamps(s.Allowance[0]),
		esmutils.AmpsToMilliamps(s.Allowance[1]),
		esmutils.AmpsToMilliamps(s.Allowance[2]),
		queued,
	)
	if err != nil {
		return fmt.Errorf("insert cycle %d: %w", s.Cycle, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT
			id, timestamp, cycle, current_limit_ma, consumption_w, generation_w, measured_ma,
			l1_deduction_ma, l2_deduction_ma, l3_deduction_ma,
			l1_allowance_ma, l2_allowance_ma, l3_allowance_ma, queued
		FROM cycles
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var queued int
		if err := rows.Scan(
			&e.ID, &ts, &e.Cycle, &e.CurrentLimitMA, &e.ConsumptionW, &e.GenerationW, &e.MeasuredMA,
			&e.DeductionMA[0], &e.DeductionMA[1], &e.DeductionMA[2],
			&e.AllowanceMA[0], &e.AllowanceMA[1], &e.AllowanceMA[2], &queued,
		); err != nil {
			return nil, err
		}
		e.Time = time.Unix(ts, 0).UTC()
		e.Queued = queued != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup deletes entries older than olderThan and returns how many were
// removed.
func (j *Journal) Cleanup(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	res, err := j.db.Exec("DELETE FROM cycles WHERE timestamp < ?", cutoff.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	j.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Cleaned up old cycles")
	return n, nil
}

// Observe stores s. Failures are logged and otherwise ignored.
func (j *Journal) Observe(s types.CycleSnapshot) {
	if err := j.Insert(s); err != nil {
		j.logger.Error().Err(err).Msg("Writing cycle to journal failed")
	}
}

// RunCleanup removes entries older than retention once now and then every
// interval until ctx is cancelled. A zero retention keeps everything.
func (j *Journal) RunCleanup(ctx context.Context, retention, interval time.Duration) error {
	if retention <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := j.Cleanup(retention); err != nil {
			j.logger.Error().Err(err).Msg("Journal cleanup failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
