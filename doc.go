// Package sqlitemcp exposes a SQLite database to AI agents through the
// Model Context Protocol (MCP).
//
// It provides one tool — sql_query, a read-only query executor guarded by a
// select-only gate — plus schema resources (schema://sqlite/{table} and
// schema://sqlite/all) and prompt templates for common data analysis tasks.
// The query pipeline adds length limits, per-pattern timeouts, before/after
// query hooks, regex result sanitization, result truncation, and dynamic
// agent steering via error prompts.
//
// The engine owns exactly one connection to the database (modernc.org/sqlite
// over database/sql, capped at a single open connection), shared by all
// concurrent requests for the lifetime of the process.
//
// # Library Usage
//
//	dsn, err := sqlitemcp.BuildDSN(sqlitemcp.ConnectionConfig{Path: "startups.db"}, false)
//	if err != nil {
//		log.Fatal(err)
//	}
//	s, err := sqlitemcp.New(ctx, dsn, sqlitemcp.Config{
//		Query: sqlitemcp.QueryConfig{
//			DefaultTimeoutSeconds: 30,
//			SchemaTimeoutSeconds:  10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close(ctx)
//
//	// Use directly
//	output := s.Query(ctx, sqlitemcp.QueryInput{Query: "SELECT * FROM startups LIMIT 10"})
//
//	// Or register on an MCP server
//	sqlitemcp.RegisterMCPHandlers(mcpServer, s)
//
// # Read-only policy
//
// The gate accepts a query iff its trimmed, lower-cased text starts with
// "select". This is a textual prefix check, deliberately preserved as-is for
// compatibility with existing clients; it is not a statement parser and is
// unsuitable as the only line of defense against untrusted input. Set
// Config.ReadOnly (which adds the query_only pragma to the connection) to
// have the store itself refuse writes as a backstop.
//
// # Hooks
//
// BeforeQuery and AfterQuery hooks run as a middleware chain around query
// execution. Implement [BeforeQueryHook] and [AfterQueryHook] for native Go
// hooks, or configure command-based hooks in server mode via
// [WithServerHooks].
package sqlitemcp
