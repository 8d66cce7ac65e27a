package kv

import "fmt"

// Storage drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Open builds the provider named by driver. path is the database file for
// sqlite and the data directory for file; memory ignores it.
func Open(driver, path string) (Provider, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverFile:
		return NewFS(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", driver)
	}
}
