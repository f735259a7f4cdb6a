// Package badgerdb stores table records in an embedded Badger key-value store.
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
	"github.com/tjfontaine/pipegraph/internal/storage"
)

// Store keeps the records of one table under the key prefix "<table>/".
type Store struct {
	db     *badger.DB
	prefix []byte
	closed atomic.Bool
}

var _ storage.Backend = (*Store)(nil)

// Config holds the database location.
type Config struct {
	Path     string // Directory; ignored when InMemory is set
	InMemory bool
	Table    string
	Logger   *slog.Logger
}

// New opens the database.
func New(cfg Config) (*Store, error) {
	if cfg.Table == "" {
		return nil, errors.New("badger: table is required")
	}

	opts := badger.DefaultOptions(cfg.Path).WithInMemory(cfg.InMemory)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}
	opts = opts.WithLogger(newLogger(cfg.Logger))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &Store{db: db, prefix: []byte(cfg.Table + "/")}, nil
}

func (s *Store) key(k string) []byte {
	return append(append([]byte{}, s.prefix...), k...)
}

func (s *Store) Scan(ctx context.Context) ([]domain.Record, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed()
	}

	items := []domain.Record{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(s.prefix); it.ValidForPrefix(s.prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := storage.DecodeItem(data)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	return items, nil
}

func (s *Store) Put(ctx context.Context, key string, item domain.Record, ifNotExists bool) error {
	if s.closed.Load() {
		return storage.ErrClosed()
	}
	if err := ctx.Err(); err != nil {
		return storage.Unavailable(err)
	}

	data, err := storage.EncodeItem(item)
	if err != nil {
		return err
	}

	k := s.key(key)
	err = s.db.Update(func(txn *badger.Txn) error {
		if ifNotExists {
			_, err := txn.Get(k)
			switch {
			case err == nil:
				return storage.ErrKeyExists(key)
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
		}
		return txn.Set(k, data)
	})
	if err != nil {
		return s.wrap(err)
	}
	return nil
}

// wrap maps Badger errors onto pipeline errors. A transaction conflict is
// transient and so retryable.
func (s *Store) wrap(err error) error {
	switch {
	case errors.Is(err, badger.ErrConflict):
		return domain.ErrBackendUnavailable("transaction conflict").
			WithCode(domain.ErrorCodeStorage).
			WithCause(err)
	case errors.Is(err, badger.ErrDBClosed):
		return storage.ErrClosed()
	}
	return storage.Unavailable(err)
}

// Close closes the database. Later calls fail with a closed error.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// logger adapts slog to Badger's logging interface.
type logger struct {
	l *slog.Logger
}

func newLogger(l *slog.Logger) badger.Logger {
	if l == nil {
		l = slog.Default()
	}
	return &logger{l: l.With(slog.String("component", "badger"))}
}

func (l *logger) Errorf(format string, args ...any) {
	l.l.Error(message(format, args))
}

func (l *logger) Warningf(format string, args ...any) {
	l.l.Warn(message(format, args))
}

// Infof logs at debug; Badger reports compactions and flushes at info.
func (l *logger) Infof(format string, args ...any) {
	l.l.Debug(message(format, args))
}

func (l *logger) Debugf(format string, args ...any) {
	l.l.Debug(message(format, args))
}

func message(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
