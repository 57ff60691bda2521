package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	sqlitemcp "github.com/prayanks/mcp-sqlite-server"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/prayanks/mcp-sqlite-server/internal/meta"
)

const defaultConfigPath = ".gosqlmcp/config.json"

func runServe() error {
	ctx := context.Background()

	// 1. Load ServerConfig
	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	transport := serverConfig.Server.Transport
	if transport == "" {
		transport = "stdio"
	}
	if transport != "stdio" && transport != "http" {
		panic(fmt.Sprintf("gosqlmcp: unknown server.transport %q (use stdio or http)", transport))
	}
	if transport == "http" && serverConfig.Server.Port <= 0 {
		panic("gosqlmcp: server.port must be > 0 for the http transport")
	}

	// 2. Build DSN
	dsn, err := sqlitemcp.BuildDSN(serverConfig.Connection, serverConfig.ReadOnly)
	if err != nil {
		return fmt.Errorf("failed to build connection string: %w", err)
	}

	// 3. Setup logger
	logger := setupLogger(serverConfig.Logging, transport)

	// 4. Create SqliteMcp instance
	var opts []sqlitemcp.Option
	if len(serverConfig.ServerHooks.BeforeQuery) > 0 || len(serverConfig.ServerHooks.AfterQuery) > 0 {
		opts = append(opts, sqlitemcp.WithServerHooks(serverConfig.ServerHooks))
	}
	engine, err := sqlitemcp.New(ctx, dsn, serverConfig.Config, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SqliteMcp: %w", err)
	}
	defer engine.Close(ctx)

	// 5. Test database connection — a failure here is fatal, the server must
	// not begin accepting requests.
	logger.Info().Str("path", serverConfig.Connection.Path).Msg("testing database connection")
	if err := engine.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Msg("database connection test successful")

	// 6. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("gosqlmcp", meta.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithHooks(hooks),
	)

	sqlitemcp.RegisterMCPHandlers(mcpServer, engine)

	if transport == "stdio" {
		logger.Info().Msg("starting gosqlmcp server on stdio")
		return server.ServeStdio(mcpServer)
	}
	return serveHTTP(mcpServer, serverConfig, logger)
}

func serveHTTP(mcpServer *server.MCPServer, serverConfig *sqlitemcp.ServerConfig, logger zerolog.Logger) error {
	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("gosqlmcp: health_check_path must be set when health_check_enabled is true")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Create StreamableHTTPServer with custom http.Server
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register the MCP handler — Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting gosqlmcp server")
	return streamableServer.Start(addr)
}

func loadServerConfig() (*sqlitemcp.ServerConfig, error) {
	configPath := os.Getenv("GOSQLMCP_CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config sqlitemcp.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func setupLogger(config sqlitemcp.LoggingConfig, transport string) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		// Stdout carries the MCP protocol in stdio mode; logs would corrupt it.
		if transport != "stdio" {
			output = os.Stdout
		}
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
