package pathing

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "p1_charge_limiter"

// EnsureDataDir creates the data directory if it does not exist yet.
func EnsureDataDir() error {
	if err := os.MkdirAll(GetDataDir(), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

func GetJournalDbPath() string {
	return filepath.Join(GetDataDir(), "p1-cycles.db")
}

func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), appName+".toml")
}

func GetDataDir() string {
	return "/var/lib/" + appName
}

func GetConfigDir() string {
	return "/etc/" + appName
}
