package sqlitemcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const schemaURIPrefix = "schema://sqlite/"

// RegisterMCPHandlers registers the sql_query tool, the schema resources,
// and the prompt templates on the given MCP server.
//
// Every outcome — results, gate rejections, not-found lookups, execution
// errors — is emitted as plain UTF-8 text on the normal result channel. The
// transport has no distinct error envelope at this layer: failure text
// beginning with "Error" or a descriptive sentence is forwarded verbatim, so
// handlers never set the protocol-level error flag for per-call failures.
func RegisterMCPHandlers(mcpServer *server.MCPServer, s *SqliteMcp) {
	registerQueryTool(mcpServer, s)
	registerSchemaResources(mcpServer, s)
	registerPrompts(mcpServer, s)
}

func registerQueryTool(mcpServer *server.MCPServer, s *SqliteMcp) {
	queryTool := mcp.NewTool("sql_query",
		mcp.WithDescription("Execute a read-only SQL query against the SQLite database. Only SELECT statements are allowed. Returns results as JSON."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The SQL query to execute"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(queryTool, s.loggedToolHandler("sql_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query parameter is required"), nil
		}
		output := s.Query(ctx, QueryInput{Query: query})
		if output.Error != "" {
			return mcp.NewToolResultText(output.Error), nil
		}
		return mcp.NewToolResultText(renderRows(output.Rows)), nil
	}))
}

func registerSchemaResources(mcpServer *server.MCPServer, s *SqliteMcp) {
	// Static resource for the whole catalog. Registered resources take
	// priority over templates, so schema://sqlite/all never reaches the
	// per-table handler.
	allSchemas := mcp.NewResource(schemaURIPrefix+"all", "All Table Schemas",
		mcp.WithResourceDescription("JSON object mapping every table name to its CREATE TABLE statement."),
		mcp.WithMIMEType("application/json"),
	)
	mcpServer.AddResource(allSchemas, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     s.renderAllTableSchemas(ctx),
		}}, nil
	})

	tableSchema := mcp.NewResourceTemplate(schemaURIPrefix+"{table}", "Table Schema",
		mcp.WithTemplateDescription("CREATE TABLE statement for a single table."),
		mcp.WithTemplateMIMEType("text/plain"),
	)
	mcpServer.AddResourceTemplate(tableSchema, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		table := strings.TrimPrefix(req.Params.URI, schemaURIPrefix)
		return []mcp.ResourceContents{mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     s.renderTableSchema(ctx, table),
		}}, nil
	})
}

func registerPrompts(mcpServer *server.MCPServer, s *SqliteMcp) {
	analyzeTable := mcp.NewPrompt("analyze_table",
		mcp.WithPromptDescription("Ask the model to analyze a table's schema and data."),
		mcp.WithArgument("table",
			mcp.ArgumentDescription("Name of the database table to analyze"),
			mcp.RequiredArgument(),
		),
	)
	mcpServer.AddPrompt(analyzeTable, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		table := req.Params.Arguments["table"]
		s.logger.Debug().Str("table", table).Msg("analyze_table prompt generated")
		return mcp.NewGetPromptResult("Analyze a database table", []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(AnalyzeTablePrompt(table))),
		}), nil
	})

	describeQuery := mcp.NewPrompt("describe_query",
		mcp.WithPromptDescription("Ask the model to explain what a SQL query does."),
		mcp.WithArgument("query",
			mcp.ArgumentDescription("The SQL query to describe"),
			mcp.RequiredArgument(),
		),
	)
	mcpServer.AddPrompt(describeQuery, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		query := req.Params.Arguments["query"]
		s.logger.Debug().Str("query", truncateForLog(query, 200)).Msg("describe_query prompt generated")
		return mcp.NewGetPromptResult("Describe a SQL query", []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(DescribeQueryPrompt(query))),
		}), nil
	})
}

// renderRows serializes result rows as a JSON array of row objects with
// two-space indentation, preserving column order within each object.
func renderRows(rows []Row) string {
	if rows == nil {
		rows = []Row{}
	}
	jsonBytes, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error executing query: %v", err)
	}
	return string(jsonBytes)
}

// renderTableSchema renders the per-table schema resource body: the
// definition text, a not-found message, or an error message.
func (s *SqliteMcp) renderTableSchema(ctx context.Context, table string) string {
	output, err := s.TableSchema(ctx, TableSchemaInput{Table: table})
	if err != nil {
		return fmt.Sprintf("Error retrieving schema for table '%s': %v", table, err)
	}
	if !output.Found {
		return fmt.Sprintf("Table '%s' not found in database.", table)
	}
	if !output.HasDefinition {
		return fmt.Sprintf("Table '%s' has no stored schema definition.", table)
	}
	return output.Definition
}

// renderAllTableSchemas renders the whole-catalog resource body as a JSON
// object with two-space indentation, or an error message.
func (s *SqliteMcp) renderAllTableSchemas(ctx context.Context) string {
	output, err := s.AllTableSchemas(ctx)
	if err != nil {
		return fmt.Sprintf("Error retrieving table schemas: %v", err)
	}
	jsonBytes, err := json.MarshalIndent(output.Schemas, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error retrieving table schemas: %v", err)
	}
	return string(jsonBytes)
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (s *SqliteMcp) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		s.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
