package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/ledgerchat/internal/store"
)

// Schema creates the grants table. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS grants (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	origin     TEXT NOT NULL,
	account    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (origin, account)
);
CREATE INDEX IF NOT EXISTS idx_grants_origin ON grants(origin, id);
`

// SQLiteStore implements store.GrantStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListGrants returns grants for origin in insertion order.
func (s *SQLiteStore) ListGrants(ctx context.Context, origin string) ([]store.Grant, error) {
	query := `
		SELECT id, origin, account, created_at
		FROM grants
		WHERE origin = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, normalize(origin))
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	grants := make([]store.Grant, 0)
	for rows.Next() {
		var g store.Grant
		if err := rows.Scan(&g.ID, &g.Origin, &g.Account, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}

// SaveGrant inserts a grant unless one already exists.
func (s *SQLiteStore) SaveGrant(ctx context.Context, origin, account string) (*store.Grant, error) {
	if origin == "" {
		return nil, errors.New("origin is required")
	}
	if account == "" {
		return nil, errors.New("account is required")
	}

	query := `
		INSERT INTO grants (origin, account)
		VALUES (?, ?)
		ON CONFLICT (origin, account) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, normalize(origin), normalize(account)); err != nil {
		return nil, fmt.Errorf("insert grant: %w", err)
	}
	return s.getGrant(ctx, origin, account)
}

// RevokeGrant deletes the grant for origin and account.
func (s *SQLiteStore) RevokeGrant(ctx context.Context, origin, account string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM grants WHERE origin = ? AND account = ?`, normalize(origin), normalize(account))
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) getGrant(ctx context.Context, origin, account string) (*store.Grant, error) {
	query := `
		SELECT id, origin, account, created_at
		FROM grants
		WHERE origin = ? AND account = ?
	`
	var g store.Grant
	err := s.db.QueryRowContext(ctx, query, normalize(origin), normalize(account)).
		Scan(&g.ID, &g.Origin, &g.Account, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query grant: %w", err)
	}
	return &g, nil
}

// Addresses are stored lowercase so checksummed and plain forms match.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var _ store.GrantStore = (*SQLiteStore)(nil)
