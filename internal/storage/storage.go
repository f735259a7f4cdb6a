// Package storage executes pipeline operations against tables held by
// interchangeable backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
	"github.com/tjfontaine/pipegraph/internal/core/ports"
)

// Backend stores the records of one table keyed by a string.
type Backend interface {
	// Scan returns every record ordered by key.
	Scan(ctx context.Context) ([]domain.Record, error)

	// Put stores item under key. With ifNotExists set an existing key is
	// rejected with a condition_failed error.
	Put(ctx context.Context, key string, item domain.Record, ifNotExists bool) error

	Close() error
}

// Table exposes a Backend as a data source.
type Table struct {
	name         string
	keyAttribute string
	backend      Backend
}

var _ ports.DataSource = (*Table)(nil)

// NewTable creates a table named name whose partition key is keyAttribute.
func NewTable(name, keyAttribute string, backend Backend) *Table {
	return &Table{name: name, keyAttribute: keyAttribute, backend: backend}
}

// Name returns the data source name.
func (t *Table) Name() string {
	return t.name
}

// KeyAttribute returns the partition key attribute.
func (t *Table) KeyAttribute() string {
	return t.keyAttribute
}

// Close releases the backend.
func (t *Table) Close() error {
	return t.backend.Close()
}

// Execute runs op against the backend.
func (t *Table) Execute(ctx context.Context, op domain.Operation) (*domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrBackendUnavailable("request cancelled").
			WithCode(domain.ErrorCodeContextDone).
			WithCause(err)
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}

	switch op.Kind {
	case domain.OperationScan:
		items, err := t.backend.Scan(ctx)
		if err != nil {
			return nil, Unavailable(err)
		}
		if items == nil {
			items = []domain.Record{}
		}
		return &domain.Result{Items: items}, nil

	case domain.OperationPutItem:
		key, err := t.partitionKey(op.Key)
		if err != nil {
			return nil, err
		}
		item := op.Item()
		if err := t.backend.Put(ctx, key, item, op.Condition == domain.ConditionKeyNotExists); err != nil {
			return nil, Unavailable(err)
		}
		return &domain.Result{Item: item.Clone()}, nil
	}

	return nil, domain.ErrBackendRejected(fmt.Sprintf("unsupported operation %q", op.Kind)).
		WithCode(domain.ErrorCodeInvalidOperation)
}

func (t *Table) partitionKey(key domain.Record) (string, error) {
	v, ok := key[t.keyAttribute]
	if !ok || v == nil {
		return "", domain.ErrBackendRejected(fmt.Sprintf("key attribute %q is missing", t.keyAttribute)).
			WithCode(domain.ErrorCodeMissingKey)
	}
	if len(key) != 1 {
		return "", domain.ErrBackendRejected(fmt.Sprintf("key must contain only %q", t.keyAttribute)).
			WithCode(domain.ErrorCodeInvalidOperation)
	}

	switch k := v.(type) {
	case string:
		if k == "" {
			return "", domain.ErrBackendRejected("key must not be empty").
				WithCode(domain.ErrorCodeMissingKey)
		}
		return k, nil
	case json.Number:
		return k.String(), nil
	case int:
		return strconv.Itoa(k), nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64), nil
	default:
		return "", domain.ErrBackendRejected(fmt.Sprintf("key attribute %q must be a string or number, got %T", t.keyAttribute, v)).
			WithCode(domain.ErrorCodeInvalidOperation)
	}
}

// Unavailable passes typed errors through and wraps anything else as a
// backend_unavailable storage error.
func Unavailable(err error) error {
	if _, ok := domain.AsError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrBackendUnavailable("request cancelled").
			WithCode(domain.ErrorCodeContextDone).
			WithCause(err)
	}
	return domain.ErrBackendUnavailable(err.Error()).
		WithCode(domain.ErrorCodeStorage).
		WithCause(err)
}

// ErrClosed is returned by backends after Close.
func ErrClosed() error {
	return domain.ErrBackendUnavailable("data source is closed").WithCode(domain.ErrorCodeClosed)
}

// ErrKeyExists is returned by Put when ifNotExists is set and the key is taken.
func ErrKeyExists(key string) error {
	return domain.ErrBackendRejected(fmt.Sprintf("item with key %q already exists", key)).
		WithCode(domain.ErrorCodeConditionFailed)
}

// EncodeItem serialises a record for backends that store bytes.
func EncodeItem(item domain.Record) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, domain.ErrBackendRejected(fmt.Sprintf("item is not serialisable: %v", err)).
			WithCode(domain.ErrorCodeEncoding).
			WithCause(err)
	}
	return data, nil
}

// DecodeItem parses a record written by EncodeItem.
func DecodeItem(data []byte) (domain.Record, error) {
	var item domain.Record
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, domain.ErrBackendUnavailable(fmt.Sprintf("stored item is corrupt: %v", err)).
			WithCode(domain.ErrorCodeEncoding).
			WithCause(err)
	}
	return item, nil
}
