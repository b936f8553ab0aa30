package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"messagely/internal/database/migrations"
)

// Connect opens a MySQL pool for dsn and verifies it with a ping. Timestamps
// are parsed into time.Time in UTC, and UPDATE reports matched rows rather
// than changed rows.
func Connect(ctx context.Context, dsn string, log logrus.FieldLogger) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("addr", cfg.Addr).WithField("db", cfg.DBName).Info("MySQL connected")
	return db, nil
}

// gooseUp is swapped out in tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// RunMigrations applies the embedded schema migrations in version order.
func RunMigrations(ctx context.Context, db *sql.DB, log logrus.FieldLogger) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	log.Info("migrations applied")
	return nil
}
