package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// MigrationStatus describes one known schema migration
type MigrationStatus struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// MigrationManager applies the embedded catalog schema migrations
type MigrationManager struct {
	provider *goose.Provider
}

func NewMigrationManager(db *sql.DB) (*MigrationManager, error) {
	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return &MigrationManager{provider: provider}, nil
}

// Up applies every pending migration
func (m *MigrationManager) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		log.Info().
			Int64("version", r.Source.Version).
			Str("file", filepath.Base(r.Source.Path)).
			Dur("duration", r.Duration).
			Msg("Applied catalog migration")
	}
	return nil
}

// Down rolls back the most recent migration
func (m *MigrationManager) Down(ctx context.Context) error {
	result, err := m.provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	log.Info().Int64("version", result.Source.Version).Msg("Catalog migration rolled back")
	return nil
}

func (m *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}

	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version:   s.Source.Version,
			Name:      filepath.Base(s.Source.Path),
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

func (m *MigrationManager) Version(ctx context.Context) (int64, error) {
	version, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get database version: %w", err)
	}
	return version, nil
}

// Reset rolls back every applied migration
func (m *MigrationManager) Reset(ctx context.Context) error {
	results, err := m.provider.DownTo(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	log.Info().Int("rolled_back", len(results)).Msg("Catalog reset completed")
	return nil
}
