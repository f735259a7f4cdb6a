// Package pipeline provides the resolver pipeline execution engine.
//
// Every GraphQL field served by pipegraph is bound to a Resolver: an ordered,
// immutable list of Functions wrapped by an outer request mapping and an outer
// response mapping. Each Function maps the current context into a storage
// operation, executes it against its data source and maps the raw result back
// into the context.
//
// # Execution
//
// For one invocation the Executor:
//   - builds a fresh domain.Context from the field arguments
//   - runs the outer request mapping
//   - for every function, in order: request mapping, data source call,
//     response mapping, then promotes the outcome to ctx.Prev
//   - runs the outer response mapping, which by default returns ctx.Prev
//
// Any error aborts the remaining functions. A function may carry an error
// mapping that turns a data source error into a recovered outcome; without one
// the error is returned to the caller wrapped in a StageError.
//
// # Configuration
//
// Resolvers are normally built once at startup by NewDispatcherFromConfig:
//
//	functions:
//	  - name: GetPosts
//	    data_source: posts
//	    template: scan
//	resolvers:
//	  - type: Query
//	    field: getPost
//	    functions: [GetPosts]
//
// The Dispatcher routes (typeName, fieldName) pairs to resolvers; it and the
// resolvers it holds are read-only after construction and safe for concurrent use.
package pipeline
