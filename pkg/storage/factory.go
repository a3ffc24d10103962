package storage

import (
	"fmt"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/config"
)

// NewStore returns a concrete Store based on database configuration.
// Falls back to sqlite when no type is given.
func NewStore(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		return NewSQLiteStore(cfg.Path)
	case "mysql":
		return NewMySQLStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
