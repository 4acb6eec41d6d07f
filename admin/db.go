package admin

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Open connects to the configured database and pings it.
func Open(ctx context.Context, cfg *Config) (*sql.DB, error) {
	return open(ctx, cfg.DSN(true))
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(5)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dsnTarget(dsn), err)
	}
	return db, nil
}

func dsnTarget(dsn string) string {
	// FormatDSN output is user:pass@tcp(addr)/db; keep only what follows '@'.
	for i := len(dsn) - 1; i >= 0; i-- {
		if dsn[i] == '@' {
			return dsn[i+1:]
		}
	}
	return dsn
}

// EnsureDatabase creates the configured database if it does not exist.
func EnsureDatabase(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	db, err := open(ctx, cfg.DSN(false))
	if err != nil {
		return err
	}
	defer db.Close()

	stmt := "CREATE DATABASE IF NOT EXISTS `" + cfg.Name + "` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create database %s: %w", cfg.Name, err)
	}
	return nil
}
