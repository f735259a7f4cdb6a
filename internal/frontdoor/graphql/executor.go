// Package graphql serves configured pipelines over GraphQL.
//
// Documents are parsed but not validated against a schema: every root field
// is routed to the resolver configured for it, and sub-selections project the
// resolved records. Query root fields resolve concurrently; mutation root
// fields resolve in document order and stop at the first failure.
package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
	"github.com/tjfontaine/pipegraph/internal/pipeline"
	"github.com/tjfontaine/pipegraph/internal/server"
)

// Root type names.
const (
	QueryType    = "Query"
	MutationType = "Mutation"
)

const typenameField = "__typename"

// Error extension codes for failures outside the pipeline.
const (
	CodeParseFailed       = "GRAPHQL_PARSE_FAILED"
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnresolvedField   = "UNRESOLVED_FIELD"
	CodeNotExecuted       = "NOT_EXECUTED"
	CodeInvalidProjection = "INVALID_PROJECTION"
)

// FieldResolver resolves one root field invocation.
type FieldResolver interface {
	Dispatch(ctx context.Context, typeName, fieldName string, args map[string]any) (any, error)
}

// Executor runs GraphQL documents against a FieldResolver.
type Executor struct {
	resolver    FieldResolver
	logger      *slog.Logger
	maxParallel int
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxParallel bounds how many query root fields resolve at once.
// Zero or less means no bound.
func WithMaxParallel(n int) Option {
	return func(e *Executor) {
		e.maxParallel = n
	}
}

// NewExecutor creates an executor.
func NewExecutor(resolver FieldResolver, opts ...Option) *Executor {
	e := &Executor{
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a query or mutation.
func (e *Executor) Execute(ctx context.Context, params *gql.RawParams) *gql.Response {
	return e.execute(ctx, params, true)
}

// ExecuteReadOnly runs a query and rejects mutations.
func (e *Executor) ExecuteReadOnly(ctx context.Context, params *gql.RawParams) *gql.Response {
	return e.execute(ctx, params, false)
}

func (e *Executor) execute(ctx context.Context, params *gql.RawParams, allowMutation bool) *gql.Response {
	doc, perr := parser.ParseQuery(&ast.Source{Input: params.Query})
	if perr != nil {
		return errorResponse(toGQLError(perr, CodeParseFailed))
	}

	op, gerr := selectOperation(doc, params.OperationName)
	if gerr != nil {
		return errorResponse(gerr)
	}

	var typeName string
	switch op.Operation {
	case ast.Query:
		typeName = QueryType
	case ast.Mutation:
		if !allowMutation {
			return errorResponse(codedError(CodeBadRequest, "mutations are not allowed with GET requests"))
		}
		typeName = MutationType
	default:
		return errorResponse(codedError(CodeBadRequest, fmt.Sprintf("%s operations are not supported", op.Operation)))
	}

	server.AddLogField(ctx, "graphql_operation", string(op.Operation))
	server.AddLogField(ctx, "graphql_operation_name", op.Name)

	c := &collector{
		fragments: doc.Fragments,
		variables: variables(op, params.Variables),
	}
	fields, err := c.collect(op.SelectionSet, typeName)
	if err != nil {
		return errorResponse(codedError(CodeBadRequest, err.Error()))
	}

	results := make([]fieldResult, len(fields))
	if typeName == MutationType {
		e.resolveSerially(ctx, c, typeName, fields, results)
	} else {
		e.resolveConcurrently(ctx, c, typeName, fields, results)
	}

	data := &object{}
	var errs gqlerror.List
	for i, f := range fields {
		data.set(f.Alias, results[i].value)
		errs = append(errs, results[i].errs...)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return errorResponse(codedError(CodeInvalidProjection, fmt.Sprintf("could not encode response: %v", err)))
	}
	return &gql.Response{Data: raw, Errors: errs}
}

type fieldResult struct {
	value any
	errs  gqlerror.List
}

func (e *Executor) resolveConcurrently(ctx context.Context, c *collector, typeName string, fields []*collectedField, results []fieldResult) {
	var g errgroup.Group
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}
	for i, f := range fields {
		g.Go(func() error {
			results[i] = e.resolveField(ctx, c, typeName, f)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Executor) resolveSerially(ctx context.Context, c *collector, typeName string, fields []*collectedField, results []fieldResult) {
	failed := false
	for i, f := range fields {
		if failed {
			results[i] = fieldResult{errs: gqlerror.List{fieldError(f, CodeNotExecuted,
				fmt.Sprintf("mutation %s was not executed because of a previous error", f.Name))}}
			continue
		}
		results[i] = e.resolveField(ctx, c, typeName, f)
		failed = len(results[i].errs) > 0
	}
}

func (e *Executor) resolveField(ctx context.Context, c *collector, typeName string, f *collectedField) fieldResult {
	if f.Name == typenameField {
		return fieldResult{value: typeName}
	}

	args, err := c.arguments(f.Field)
	if err != nil {
		return fieldResult{errs: gqlerror.List{fieldError(f, CodeBadRequest, err.Error())}}
	}

	value, err := e.resolver.Dispatch(ctx, typeName, f.Name, args)
	if err != nil {
		server.AddError(ctx, err)
		return fieldResult{errs: gqlerror.List{resolveError(f, err)}}
	}

	projected, err := project(c, value, f.selections, ast.Path{ast.PathName(f.Alias)})
	if err != nil {
		e.logger.WarnContext(ctx, "projection failed",
			slog.String("field", f.Name),
			slog.String("error", err.Error()))
		return fieldResult{errs: gqlerror.List{fieldError(f, CodeInvalidProjection, err.Error())}}
	}
	return fieldResult{value: projected}
}

// project shapes value by the selection set. Leaf selections return the
// value unchanged.
func project(c *collector, value any, set ast.SelectionSet, path ast.Path) (any, error) {
	if len(set) == 0 || value == nil {
		return value, nil
	}

	switch v := value.(type) {
	case domain.Record:
		return projectObject(c, v, set, path)
	case map[string]any:
		return projectObject(c, v, set, path)
	case []domain.Record:
		out := make([]any, len(v))
		for i, item := range v {
			p, err := project(c, item, set, append(path, ast.PathIndex(i)))
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			p, err := project(c, item, set, append(path, ast.PathIndex(i)))
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			p, err := project(c, item, set, append(path, ast.PathIndex(i)))
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: cannot select fields on %T", path, value)
	}
}

func projectObject(c *collector, record map[string]any, set ast.SelectionSet, path ast.Path) (*object, error) {
	fields, err := c.collect(set, "")
	if err != nil {
		return nil, err
	}

	out := &object{}
	for _, f := range fields {
		v, err := project(c, record[f.Name], f.selections, append(path, ast.PathName(f.Alias)))
		if err != nil {
			return nil, err
		}
		out.set(f.Alias, v)
	}
	return out, nil
}

func variables(op *ast.OperationDefinition, vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars)+len(op.VariableDefinitions))
	for k, v := range vars {
		out[k] = v
	}
	for _, def := range op.VariableDefinitions {
		if _, ok := out[def.Variable]; ok || def.DefaultValue == nil {
			continue
		}
		if v, err := def.DefaultValue.Value(nil); err == nil {
			out[def.Variable] = v
		}
	}
	return out
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, *gqlerror.Error) {
	switch {
	case len(doc.Operations) == 0:
		return nil, codedError(CodeBadRequest, "document contains no operations")
	case name != "":
		op := doc.Operations.ForName(name)
		if op == nil {
			return nil, codedError(CodeBadRequest, fmt.Sprintf("unknown operation %q", name))
		}
		return op, nil
	case len(doc.Operations) > 1:
		return nil, codedError(CodeBadRequest, "operationName is required when the document contains multiple operations")
	}
	return doc.Operations[0], nil
}

// resolveError reports a failed root field. Pipeline errors carry their
// category, code, stage and data source as extensions.
func resolveError(f *collectedField, err error) *gqlerror.Error {
	if pipeline.IsUnresolved(err) {
		return fieldError(f, CodeUnresolvedField, err.Error())
	}

	gerr := fieldError(f, "", err.Error())
	if e, ok := domain.AsError(err); ok {
		gerr.Message = e.Error()
		gerr.Extensions = map[string]any{"code": string(e.Type)}
		if e.Code != "" {
			gerr.Extensions["errorCode"] = string(e.Code)
		}
		if e.Stage != "" {
			gerr.Extensions["stage"] = e.Stage
		}
		if e.DataSource != "" {
			gerr.Extensions["dataSource"] = e.DataSource
		}
	}
	return gerr
}

func fieldError(f *collectedField, code, message string) *gqlerror.Error {
	gerr := gqlerror.ErrorPosf(f.Position, "%s", message)
	gerr.Path = ast.Path{ast.PathName(f.Alias)}
	if code != "" {
		gerr.Extensions = map[string]any{"code": code}
	}
	return gerr
}

func codedError(code, message string) *gqlerror.Error {
	gerr := gqlerror.Errorf("%s", message)
	gerr.Extensions = map[string]any{"code": code}
	return gerr
}

func toGQLError(err error, code string) *gqlerror.Error {
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		if gerr.Extensions == nil {
			gerr.Extensions = map[string]any{}
		}
		gerr.Extensions["code"] = code
		return gerr
	}
	var list gqlerror.List
	if errors.As(err, &list) && len(list) > 0 {
		return toGQLError(list[0], code)
	}
	return codedError(code, err.Error())
}

func errorResponse(err *gqlerror.Error) *gql.Response {
	return &gql.Response{Errors: gqlerror.List{err}}
}
