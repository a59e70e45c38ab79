package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-survival/internal/common/config"

	_ "github.com/lib/pq"
)

// pingTimeout bounds the startup connectivity check
const pingTimeout = 5 * time.Second

// NewPostgresDB opens the lib/pq pool, applies the pool limits from cfg and pings
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ConfigurePool(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database %s@%s:%d/%s: %w",
			cfg.User, cfg.Host, cfg.Port, cfg.Database, err)
	}

	return db, nil
}

// ConfigurePool applies connection limits and lifetimes; zero values keep the driver defaults
func ConfigurePool(db *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}
	if cfg.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}
}

// Close closes db if it is non-nil
func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
