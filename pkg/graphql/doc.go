// Package graphql implements the HTTP and WebSocket transport for the
// library's GraphQL API.
//
// The package parses the SDL schema with gqlparser, validates incoming
// queries against it, and executes them by dispatching to resolver functions
// registered on an Executor. Root fields (queries and mutations) are resolved
// by RootFuncs, computed object fields by FieldFuncs, and subscription fields
// by SubscriptionFuncs that yield an event channel.
//
// Basic usage:
//
//	schema, err := graphql.ParseSchema(graphql.SDL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	exec := graphql.NewExecutor(schema)
//	exec.RegisterQuery("bookCount", countBooks)
//	exec.RegisterField("Author", "bookCount", countAuthorBooks)
//
//	http.Handle("/graphql", graphql.NewHandler(exec, logger))
//
// Subscriptions are served over WebSocket with both the graphql-transport-ws
// and the legacy graphql-ws subprotocols; see SubscriptionHandler.
package graphql
