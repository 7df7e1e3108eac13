// p1limiter sits between a smart meter's P1 port and an EV charger and
// rewrites the phase currents so the charger follows solar surplus or a
// grid import budget.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
