package sqldb

import (
	"context"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
	"github.com/tjfontaine/pipegraph/internal/storage"
	"github.com/tjfontaine/pipegraph/internal/storage/dialect"
)

// Store is a SQL table backend that supports multiple database dialects.
// Each record is stored as a JSON document next to its key.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
	table   string

	scanQuery   string
	insertQuery string
	upsertQuery string
}

var _ storage.Backend = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, mysql
	DSN    string // Data source name / connection string
	Table  string // Table name
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

type row struct {
	PK   string `db:"pk"`
	Item string `db:"item"`
}

// New creates a new SQL store with the specified configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if !identPattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}

	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d, table: cfg.Table}
	store.prepareQueries()

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store (convenience function for tests and local use)
func NewSQLite(ctx context.Context, dsn, table string) (*Store, error) {
	return New(ctx, Config{Driver: "sqlite", DSN: dsn, Table: table})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) prepareQueries() {
	table := s.dialect.QuoteIdent(s.table)
	s.scanQuery = fmt.Sprintf(`SELECT pk, item FROM %s ORDER BY pk`, table)
	s.insertQuery = fmt.Sprintf(`INSERT INTO %s (pk, item, created_at) VALUES (?, ?, ?)`, table)
	s.upsertQuery = s.insertQuery + " " + s.dialect.UpsertClause("pk", []string{"item"})
}

func (s *Store) initSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
pk %s NOT NULL PRIMARY KEY,
item %s NOT NULL,
created_at %s NOT NULL
)`, s.dialect.QuoteIdent(s.table), s.dialect.KeyType(), s.dialect.TextType(), s.dialect.TimestampType())

	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Store) Scan(ctx context.Context) ([]domain.Record, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(s.scanQuery)); err != nil {
		return nil, storage.Unavailable(fmt.Errorf("scan %s: %w", s.table, err))
	}

	items := make([]domain.Record, 0, len(rows))
	for _, r := range rows {
		item, err := storage.DecodeItem([]byte(r.Item))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) Put(ctx context.Context, key string, item domain.Record, ifNotExists bool) error {
	data, err := storage.EncodeItem(item)
	if err != nil {
		return err
	}

	query := s.upsertQuery
	if ifNotExists {
		query = s.insertQuery
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), key, string(data), time.Now().UTC())
	if err != nil {
		if ifNotExists && s.dialect.IsUniqueViolation(err) {
			return storage.ErrKeyExists(key)
		}
		return storage.Unavailable(fmt.Errorf("put %s: %w", s.table, err))
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
