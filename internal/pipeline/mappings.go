package pipeline

import (
	"fmt"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
	"github.com/tjfontaine/pipegraph/internal/core/ports"
)

// PassThrough is the default outer request mapping.
func PassThrough(c domain.Context) (domain.Context, error) {
	return c, nil
}

// PrevResult is the default outer response mapping; it returns the last
// function's outcome.
func PrevResult(c domain.Context) (any, error) {
	return c.Prev, nil
}

// ScanRequest requests every record of the table.
func ScanRequest(domain.Context) (domain.Operation, error) {
	return domain.ScanOperation(), nil
}

// ItemsResponse passes the scanned records through unmodified. An empty table
// yields an empty, non-nil list.
func ItemsResponse(_ domain.Context, raw *domain.Result) (any, error) {
	if raw == nil || raw.Items == nil {
		return []domain.Record{}, nil
	}
	return raw.Items, nil
}

// ItemResponse passes the stored record through unmodified.
func ItemResponse(_ domain.Context, raw *domain.Result) (any, error) {
	if raw == nil || raw.Item == nil {
		return nil, nil
	}
	return raw.Item, nil
}

// NullOnError recovers any backend error as a nil outcome.
func NullOnError(domain.Context, error) (any, error) {
	return nil, nil
}

// PutItemRequest builds a PutItem whose key is a freshly generated id stored
// under keyAttribute. The attributes come from the argument named
// inputArgument, or from the whole argument map when inputArgument is empty.
//
// A key attribute supplied by the caller is dropped: the generated key always
// wins and never appears in the attributes. The operation is conditioned on
// the key not existing yet.
func PutItemRequest(ids ports.IDGenerator, keyAttribute, inputArgument string) RequestMapping {
	return func(c domain.Context) (domain.Operation, error) {
		input, err := attributeInput(c, inputArgument)
		if err != nil {
			return domain.Operation{}, err
		}

		id, err := ids.NewID()
		if err != nil {
			return domain.Operation{}, domain.ErrMapping("could not generate key").
				WithCode(domain.ErrorCodeIDGeneration).
				WithCause(err)
		}

		attributes := input.Clone()
		delete(attributes, keyAttribute)

		key := domain.Record{keyAttribute: id}
		return domain.PutItemOperation(key, attributes).
			WithCondition(domain.ConditionKeyNotExists), nil
	}
}

func attributeInput(c domain.Context, name string) (domain.Record, error) {
	if name == "" {
		return domain.Record(c.Arguments), nil
	}

	v, ok := c.Argument(name)
	if !ok || v == nil {
		return nil, domain.ErrMapping(fmt.Sprintf("missing required argument %q", name)).
			WithCode(domain.ErrorCodeMissingArgument)
	}

	switch m := v.(type) {
	case domain.Record:
		return m, nil
	case map[string]any:
		return domain.Record(m), nil
	default:
		return nil, domain.ErrMapping(fmt.Sprintf("argument %q must be an object, got %T", name, v)).
			WithCode(domain.ErrorCodeInvalidArgument)
	}
}
