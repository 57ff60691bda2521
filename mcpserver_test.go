package sqlitemcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	sqlitemcp "github.com/prayanks/mcp-sqlite-server"

	"github.com/mark3labs/mcp-go/server"
)

// mcpTestServer bundles everything needed for an MCP HTTP server test.
type mcpTestServer struct {
	sqlMcp     *sqlitemcp.SqliteMcp
	dbPath     string
	port       int
	baseURL    string
	httpServer *server.StreamableHTTPServer
}

// startMCPTestServer creates a SqliteMcp instance over a fresh startups
// database, registers the MCP handlers, starts an HTTP server on a free port,
// and returns the test server. The optional healthCheckPath enables the
// health check endpoint.
func startMCPTestServer(t *testing.T, config sqlitemcp.Config, healthCheckPath string) *mcpTestServer {
	t.Helper()

	dbPath := createStartupsDB(t)
	s := newTestInstance(t, dbPath, config)

	// Find a free port.
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	mcpServer := server.NewMCPServer("gosqlmcp-test", "1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
	)
	sqlitemcp.RegisterMCPHandlers(mcpServer, s)

	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()

	if healthCheckPath != "" {
		mux.HandleFunc(healthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register MCP handler.
	mux.Handle("/mcp", streamableServer)

	go func() {
		if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	time.Sleep(200 * time.Millisecond)
	t.Cleanup(func() { streamableServer.Shutdown(context.Background()) })

	return &mcpTestServer{
		sqlMcp:     s,
		dbPath:     dbPath,
		port:       port,
		baseURL:    fmt.Sprintf("http://localhost:%d", port),
		httpServer: streamableServer,
	}
}

// jsonRPC sends a JSON-RPC request to the MCP endpoint and returns the parsed response.
func (s *mcpTestServer) jsonRPC(t *testing.T, method string, params interface{}) map[string]interface{} {
	t.Helper()

	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		reqBody["params"] = params
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	resp, err := http.Post(
		s.baseURL+"/mcp",
		"application/json",
		strings.NewReader(string(bodyBytes)),
	)
	if err != nil {
		t.Fatalf("JSON-RPC request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("failed to parse response JSON: %v; body: %s", err, string(respBody))
	}

	return result
}

// toolCallText extracts the first text content from a tools/call response.
func toolCallText(t *testing.T, result map[string]interface{}) (string, map[string]interface{}) {
	t.Helper()

	resultObj, ok := result["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %T: %v", result["result"], result["result"])
	}
	content, ok := resultObj["content"].([]interface{})
	if !ok || len(content) == 0 {
		t.Fatalf("expected content array, got %v", resultObj["content"])
	}
	firstContent := content[0].(map[string]interface{})
	if firstContent["type"] != "text" {
		t.Fatalf("expected content type 'text', got %q", firstContent["type"])
	}
	return firstContent["text"].(string), resultObj
}

func TestMCPServer_SQLQueryTool(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	result := s.jsonRPC(t, "tools/call", map[string]interface{}{
		"name": "sql_query",
		"arguments": map[string]interface{}{
			"query": "SELECT id, startup_name FROM startups ORDER BY id",
		},
	})

	text, resultObj := toolCallText(t, result)
	if resultObj["isError"] == true {
		t.Fatalf("query returned error flag: %v", resultObj)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(text), &rows); err != nil {
		t.Fatalf("failed to parse query result text: %v; text: %s", err, text)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	if rows[0]["startup_name"] != "AlphaTech" {
		t.Fatalf("expected 'AlphaTech', got %v", rows[0]["startup_name"])
	}
}

// A write sent over the wire comes back as normal text content carrying the
// rejection message. The protocol-level error flag stays unset and the
// database is untouched.
func TestMCPServer_SQLQueryToolRejectsWrite(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	result := s.jsonRPC(t, "tools/call", map[string]interface{}{
		"name": "sql_query",
		"arguments": map[string]interface{}{
			"query": "DELETE FROM startups",
		},
	})

	text, resultObj := toolCallText(t, result)
	if resultObj["isError"] == true {
		t.Fatalf("rejection must not set the error flag: %v", resultObj)
	}
	if text != "Error: Only SELECT queries are allowed." {
		t.Fatalf("expected rejection message, got %q", text)
	}
	if got := countTableRows(t, s.dbPath, "startups"); got != 5 {
		t.Fatalf("expected startups untouched (5 rows), got %d", got)
	}
}

func TestMCPServer_AllSchemasResource(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	result := s.jsonRPC(t, "resources/read", map[string]interface{}{
		"uri": "schema://sqlite/all",
	})

	resultObj := result["result"].(map[string]interface{})
	contents, ok := resultObj["contents"].([]interface{})
	if !ok || len(contents) == 0 {
		t.Fatalf("expected contents array, got %v", resultObj["contents"])
	}
	first := contents[0].(map[string]interface{})
	if first["mimeType"] != "application/json" {
		t.Fatalf("expected application/json, got %q", first["mimeType"])
	}

	var schemas map[string]string
	if err := json.Unmarshal([]byte(first["text"].(string)), &schemas); err != nil {
		t.Fatalf("failed to parse schemas JSON: %v", err)
	}
	if !strings.HasPrefix(schemas["startups"], "CREATE TABLE startups") {
		t.Fatalf("expected CREATE TABLE statement for startups, got %q", schemas["startups"])
	}
}

func TestMCPServer_TableSchemaResource(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	result := s.jsonRPC(t, "resources/read", map[string]interface{}{
		"uri": "schema://sqlite/startups",
	})

	resultObj := result["result"].(map[string]interface{})
	contents := resultObj["contents"].([]interface{})
	first := contents[0].(map[string]interface{})
	if first["mimeType"] != "text/plain" {
		t.Fatalf("expected text/plain, got %q", first["mimeType"])
	}
	if text := first["text"].(string); !strings.HasPrefix(text, "CREATE TABLE startups") {
		t.Fatalf("expected CREATE TABLE statement, got %q", text)
	}
}

func TestMCPServer_TableSchemaResourceNotFound(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	result := s.jsonRPC(t, "resources/read", map[string]interface{}{
		"uri": "schema://sqlite/missing",
	})

	resultObj := result["result"].(map[string]interface{})
	contents := resultObj["contents"].([]interface{})
	first := contents[0].(map[string]interface{})
	if text := first["text"].(string); text != "Table 'missing' not found in database." {
		t.Fatalf("expected not-found message, got %q", text)
	}
}

func TestMCPServer_AnalyzeTablePrompt(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	result := s.jsonRPC(t, "prompts/get", map[string]interface{}{
		"name": "analyze_table",
		"arguments": map[string]interface{}{
			"table": "startups",
		},
	})

	resultObj := result["result"].(map[string]interface{})
	messages, ok := resultObj["messages"].([]interface{})
	if !ok || len(messages) == 0 {
		t.Fatalf("expected messages array, got %v", resultObj["messages"])
	}
	first := messages[0].(map[string]interface{})
	if first["role"] != "user" {
		t.Fatalf("expected user role, got %q", first["role"])
	}
	content := first["content"].(map[string]interface{})
	if content["text"] != sqlitemcp.AnalyzeTablePrompt("startups") {
		t.Fatalf("expected analyze_table prompt text, got %q", content["text"])
	}
}

func TestMCPServer_HealthCheckAndMCPCoexist(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "/healthz")

	resp, err := http.Get(s.baseURL + "/healthz")
	if err != nil {
		t.Fatalf("health check request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health check: expected 200, got %d", resp.StatusCode)
	}

	result := s.jsonRPC(t, "tools/call", map[string]interface{}{
		"name": "sql_query",
		"arguments": map[string]interface{}{
			"query": "SELECT 1 AS val",
		},
	})
	if resultObj := result["result"].(map[string]interface{}); resultObj["isError"] == true {
		t.Fatalf("MCP query returned error: %v", resultObj)
	}
}

func TestMCPServer_ToolsList(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, defaultConfig(), "")

	result := s.jsonRPC(t, "tools/list", map[string]interface{}{})

	resultObj := result["result"].(map[string]interface{})
	tools, ok := resultObj["tools"].([]interface{})
	if !ok {
		t.Fatalf("expected tools array, got %T: %v", resultObj["tools"], resultObj["tools"])
	}
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if name := tools[0].(map[string]interface{})["name"]; name != "sql_query" {
		t.Fatalf("expected sql_query tool, got %v", name)
	}
}
