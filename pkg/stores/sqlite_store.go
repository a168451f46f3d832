package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/xequation/xequation/pkg/config"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
	now func() time.Time
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: opens a separate database.
	if inMemory(cfg.Path) {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func inMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Init opens the database connection.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !inMemory(s.cfg.Path) {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// SaveWorkbook inserts wb or replaces the stored workbook of the same name.
// Group statements are stored in document order.
func (s *SQLiteStore) SaveWorkbook(ctx context.Context, wb *config.Workbook) (*WorkbookRecord, error) {
	if wb == nil || wb.Name == "" {
		return nil, fmt.Errorf("workbook name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	rec := &WorkbookRecord{
		Name:        wb.Name,
		Description: wb.Description,
		Statements:  wb.Statements(),
		UpdatedAt:   now,
	}

	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM workbooks WHERE name = ?`, wb.Name,
	).Scan(&rec.ID, &rec.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec.ID = uuid.NewString()
		rec.CreatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workbooks (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.Name, rec.Description, rec.CreatedAt, rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to insert workbook: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up workbook: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE workbooks SET description = ?, updated_at = ? WHERE id = ?`,
			rec.Description, rec.UpdatedAt, rec.ID,
		); err != nil {
			return nil, fmt.Errorf("failed to update workbook: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM equation_groups WHERE workbook_id = ?`, rec.ID,
		); err != nil {
			return nil, fmt.Errorf("failed to clear equation groups: %w", err)
		}
	}

	for i, stmt := range rec.Statements {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO equation_groups (id, workbook_id, position, statement) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), rec.ID, i, stmt,
		); err != nil {
			return nil, fmt.Errorf("failed to insert equation group %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit workbook: %w", err)
	}
	return rec, nil
}

// GetWorkbook retrieves a workbook and its statements by name.
func (s *SQLiteStore) GetWorkbook(ctx context.Context, name string) (*WorkbookRecord, error) {
	rec := &WorkbookRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM workbooks WHERE name = ?`, name,
	).Scan(&rec.ID, &rec.Name, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workbook %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workbook: %w", err)
	}

	statements, err := s.statements(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Statements = statements
	return rec, nil
}

func (s *SQLiteStore) statements(ctx context.Context, workbookID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT statement FROM equation_groups WHERE workbook_id = ? ORDER BY position`, workbookID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list equation groups: %w", err)
	}
	defer rows.Close()

	statements := []string{}
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, fmt.Errorf("failed to scan equation group: %w", err)
		}
		statements = append(statements, stmt)
	}
	return statements, rows.Err()
}

// ListWorkbooks lists stored workbooks ordered by name. Statements are not
// loaded.
func (s *SQLiteStore) ListWorkbooks(ctx context.Context, limit, offset int) ([]*WorkbookRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM workbooks ORDER BY name LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workbooks: %w", err)
	}
	defer rows.Close()

	var records []*WorkbookRecord
	for rows.Next() {
		rec := &WorkbookRecord{}
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workbook: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteWorkbook removes a workbook together with its groups and history.
func (s *SQLiteStore) DeleteWorkbook(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workbooks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete workbook: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("workbook %s: %w", name, ErrNotFound)
	}
	return nil
}

// RecordEvaluations appends evaluation records in one transaction. Records
// without an ID get a fresh one.
func (s *SQLiteStore) RecordEvaluations(ctx context.Context, records []EvaluationRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO evaluations (id, workbook_id, equation, status, message, value, evaluated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		at := rec.EvaluatedAt
		if at.IsZero() {
			at = s.now()
		}
		if _, err := stmt.ExecContext(ctx,
			id, rec.WorkbookID, rec.Equation, rec.Status, rec.Message, rec.Value, at,
		); err != nil {
			return fmt.Errorf("failed to record evaluation of %s: %w", rec.Equation, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit evaluations: %w", err)
	}
	return nil
}

// ListEvaluations returns the history of a workbook, newest first. Records
// from the same run keep their insertion order. A limit of zero or less
// returns everything.
func (s *SQLiteStore) ListEvaluations(ctx context.Context, workbookID string, limit int) ([]*EvaluationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workbook_id, equation, status, message, value, evaluated_at
		 FROM evaluations WHERE workbook_id = ?
		 ORDER BY evaluated_at DESC, rowid ASC LIMIT ?`,
		workbookID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var records []*EvaluationRecord
	for rows.Next() {
		rec := &EvaluationRecord{}
		if err := rows.Scan(&rec.ID, &rec.WorkbookID, &rec.Equation, &rec.Status,
			&rec.Message, &rec.Value, &rec.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
