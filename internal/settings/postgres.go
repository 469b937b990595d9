package settings

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"timesherpa/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

// PostgresStore keeps one workweek row per user.
type PostgresStore struct {
	db       Querier
	fallback models.WorkweekSettings
	logger   *slog.Logger
}

// NewPostgresStore returns a store that answers fallback for users
// without a saved row.
func NewPostgresStore(logger *slog.Logger, db Querier, fallback models.WorkweekSettings) *PostgresStore {
	return &PostgresStore{db: db, fallback: fallback, logger: logger}
}

// GetUserWorkweek returns the saved workweek of userID, or the fallback
// when the user is anonymous or has none.
func (s *PostgresStore) GetUserWorkweek(ctx context.Context, userID string) (models.WorkweekSettings, error) {
	if userID == "" {
		return s.fallback, nil
	}
	var ww models.WorkweekSettings
	err := s.db.QueryRow(ctx, `
		SELECT monday, tuesday, wednesday, thursday, friday, saturday, sunday
		FROM user_workweek
		WHERE user_id = $1
	`, userID).Scan(&ww.Monday, &ww.Tuesday, &ww.Wednesday, &ww.Thursday, &ww.Friday, &ww.Saturday, &ww.Sunday)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug("No saved workweek, using default", "userID", userID)
		return s.fallback, nil
	}
	if err != nil {
		return models.WorkweekSettings{}, fmt.Errorf("failed to load workweek for %s: %w", userID, err)
	}
	return ww, nil
}

// SaveUserWorkweek inserts or replaces the workweek of userID.
func (s *PostgresStore) SaveUserWorkweek(ctx context.Context, userID string, ww models.WorkweekSettings) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_workweek (user_id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			monday = EXCLUDED.monday,
			tuesday = EXCLUDED.tuesday,
			wednesday = EXCLUDED.wednesday,
			thursday = EXCLUDED.thursday,
			friday = EXCLUDED.friday,
			saturday = EXCLUDED.saturday,
			sunday = EXCLUDED.sunday,
			updated_at = CURRENT_TIMESTAMP
	`, userID, ww.Monday, ww.Tuesday, ww.Wednesday, ww.Thursday, ww.Friday, ww.Saturday, ww.Sunday)
	if err != nil {
		return fmt.Errorf("failed to save workweek for %s: %w", userID, err)
	}
	return nil
}

// Migrate applies the embedded migrations that have not run yet.
func Migrate(ctx context.Context, logger *slog.Logger, db Querier) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var migrationFiles []string
	for _, entry := range entries {
		if !entry.IsDir() {
			migrationFiles = append(migrationFiles, entry.Name())
		}
	}
	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		var exists bool
		err := db.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			filename,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if exists {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}
		if _, err := db.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
		if _, err := db.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", filename); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}
		logger.Info("Applied migration", "file", filename)
	}
	return nil
}
