package domain

import "maps"

// Info identifies the field a pipeline is resolving.
type Info struct {
	ParentTypeName string `json:"parentTypeName"`
	FieldName      string `json:"fieldName"`
}

// Context is the per-invocation value threaded through a pipeline.
//
// A Context is passed by value and rebuilt at each stage boundary with
// WithResult and Next; mappings receive their own copy and return new values
// instead of mutating shared state. Arguments are copied on construction and
// must be treated as read-only by mappings.
type Context struct {
	// Arguments are the caller-supplied field arguments.
	Arguments map[string]any `json:"arguments"`
	// Prev is the outcome of the previous function, nil before the first one.
	Prev any `json:"prev,omitempty"`
	// Result is the outcome of the current function's response mapping.
	Result any `json:"result,omitempty"`
	// Info names the field being resolved.
	Info Info `json:"info"`
}

// NewContext starts a fresh invocation context.
func NewContext(info Info, args map[string]any) Context {
	a := maps.Clone(args)
	if a == nil {
		a = map[string]any{}
	}
	return Context{Arguments: a, Info: info}
}

// Argument returns the named argument.
func (c Context) Argument(name string) (any, bool) {
	v, ok := c.Arguments[name]
	return v, ok
}

// WithResult returns a copy of c carrying the current function's outcome.
func (c Context) WithResult(v any) Context {
	c.Result = v
	return c
}

// Next returns the context observed by the following function: the current
// outcome becomes Prev and Result is cleared.
func (c Context) Next() Context {
	c.Prev = c.Result
	c.Result = nil
	return c
}
