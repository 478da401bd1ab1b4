package portfolio

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// SQLOptions tunes the connection pool of an SQLStore.
type SQLOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore reads and writes portfolios in the portfolios table of a
// PostgreSQL ("postgres") or SQLite ("sqlite3") database.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

type portfolioRow struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	PortfolioJSON string    `db:"portfolio_json"`
	CreatedAt     time.Time `db:"created_at"`
}

// Open connects to the database and verifies the connection.
func Open(driver, dsn string, optFns ...func(o *SQLOptions)) (*SQLStore, error) {
	opts := SQLOptions{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	return NewSQLStore(db), nil
}

// NewSQLStore wraps an existing connection.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate creates the portfolios table when it does not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS portfolios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id BIGINT NOT NULL,
		user_json TEXT NOT NULL DEFAULT '{}',
		portfolio_json TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`
	if s.db.DriverName() == "postgres" {
		ddl = `CREATE TABLE IF NOT EXISTS portfolios (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		user_json TEXT NOT NULL DEFAULT '{}',
		portfolio_json TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`
	}

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create portfolios table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_portfolios_user_created ON portfolios (user_id, created_at)`); err != nil {
		return fmt.Errorf("failed to create portfolios index: %w", err)
	}

	return nil
}

// Create stores a new portfolio document for userID. userProfile is the
// optional profile snapshot the plan was generated from.
func (s *SQLStore) Create(ctx context.Context, userID int64, doc Document, userProfile map[string]any) (*Portfolio, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode portfolio document: %w", err)
	}

	if userProfile == nil {
		userProfile = map[string]any{}
	}
	userJSON, err := json.Marshal(userProfile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user profile: %w", err)
	}

	createdAt := s.now()

	var id int64
	query := s.db.Rebind(`INSERT INTO portfolios (user_id, user_json, portfolio_json, created_at) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, query, userID, string(userJSON), string(docJSON), createdAt).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to insert portfolio: %w", err)
	}

	return FromDocument(id, userID, doc, createdAt), nil
}

// GetUserPortfolio returns the most recently created portfolio of userID.
func (s *SQLStore) GetUserPortfolio(ctx context.Context, userID int64) (*Portfolio, error) {
	var row portfolioRow

	query := s.db.Rebind(`SELECT id, user_id, portfolio_json, created_at FROM portfolios WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`)
	if err := s.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query portfolio: %w", err)
	}

	doc, err := ParseDocument([]byte(row.PortfolioJSON))
	if err != nil {
		return nil, fmt.Errorf("portfolio %d: %w", row.ID, err)
	}

	return FromDocument(row.ID, row.UserID, doc, row.CreatedAt.UTC()), nil
}

// Health checks database connectivity.
func (s *SQLStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
