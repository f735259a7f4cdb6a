package domain

import "fmt"

// OperationKind selects the storage action an Operation describes.
type OperationKind string

const (
	// OperationScan reads every record of a table.
	OperationScan OperationKind = "Scan"
	// OperationPutItem writes one record.
	OperationPutItem OperationKind = "PutItem"
)

// Condition guards a PutItem.
type Condition string

const (
	// ConditionNone lets PutItem overwrite an existing record with the same key.
	ConditionNone Condition = ""
	// ConditionKeyNotExists rejects PutItem when a record with the same key exists.
	ConditionKeyNotExists Condition = "attribute_not_exists(key)"
)

// Operation is a backend-agnostic description of one storage action.
// It is produced by a function's request mapping and interpreted only by a
// data source.
type Operation struct {
	Kind       OperationKind `json:"operation"`
	Key        Record        `json:"key,omitempty"`
	Attributes Record        `json:"attributeValues,omitempty"`
	Condition  Condition     `json:"condition,omitempty"`
}

// ScanOperation requests all records of a table.
func ScanOperation() Operation {
	return Operation{Kind: OperationScan}
}

// PutItemOperation requests the insertion of one record.
func PutItemOperation(key, attributes Record) Operation {
	return Operation{
		Kind:       OperationPutItem,
		Key:        key,
		Attributes: attributes,
	}
}

// WithCondition returns a copy of the operation guarded by cond.
func (o Operation) WithCondition(cond Condition) Operation {
	o.Condition = cond
	return o
}

// Item returns the record a PutItem would store: the attributes overlaid with
// the key, so key attributes always win.
func (o Operation) Item() Record {
	return o.Attributes.Merge(o.Key)
}

// Validate checks the operation's shape without knowledge of any table.
func (o Operation) Validate() error {
	switch o.Kind {
	case OperationScan:
		if len(o.Key) > 0 || len(o.Attributes) > 0 {
			return ErrBackendRejected("Scan takes no key or attributes").
				WithCode(ErrorCodeInvalidOperation)
		}
		return nil
	case OperationPutItem:
		if len(o.Key) == 0 {
			return ErrBackendRejected("PutItem requires a key").
				WithCode(ErrorCodeMissingKey)
		}
		switch o.Condition {
		case ConditionNone, ConditionKeyNotExists:
		default:
			return ErrBackendRejected(fmt.Sprintf("unsupported condition %q", o.Condition)).
				WithCode(ErrorCodeInvalidOperation)
		}
		return nil
	default:
		return ErrBackendRejected(fmt.Sprintf("unsupported operation %q", o.Kind)).
			WithCode(ErrorCodeInvalidOperation)
	}
}

// Result is the raw outcome of executing an Operation.
// Scan fills Items; PutItem fills Item.
type Result struct {
	Items []Record `json:"items,omitempty"`
	Item  Record   `json:"item,omitempty"`
}
