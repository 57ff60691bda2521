package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"

	sqlitemcp "github.com/prayanks/mcp-sqlite-server"
	_ "modernc.org/sqlite"

	"github.com/prayanks/mcp-sqlite-server/internal/meta"
)

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	fs.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, *configPath)
}

func doctor(w io.Writer, useColor bool, configPath string) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "gosqlmcp %s\n\n", meta.Version)

	config, ok := doctorValidateConfig(w, useColor, configPath)
	if ok {
		ok = doctorCheckDatabase(w, useColor, config)
	}
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'gosqlmcp doctor' again.")
		return nil
	}

	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config, configPath)
	return nil
}

// doctorValidateConfig loads and validates the config file, printing check results.
// Returns the parsed config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*sqlitemcp.ServerConfig, bool) {
	allPassed := true

	// Check 1: Config file exists and is valid JSON
	data, err := os.ReadFile(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file readable (%s)", configPath))
		return nil, false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Config file readable (%s)", configPath))

	var config sqlitemcp.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file is valid JSON: %v", err))
		return nil, false
	}
	printCheck(w, useColor, true, "Config file is valid JSON")

	// Check 2: connection.path is set and the file exists
	if config.Connection.Path == "" {
		printCheck(w, useColor, false, "connection.path is set")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.path is set (%s)", config.Connection.Path))
		if _, err := os.Stat(config.Connection.Path); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("Database file exists: %v", err))
			allPassed = false
		} else {
			printCheck(w, useColor, true, "Database file exists")
		}
	}

	// Check 3: transport settings
	transport := config.Server.Transport
	if transport == "" {
		transport = "stdio"
	}
	if transport != "stdio" && transport != "http" {
		printCheck(w, useColor, false, fmt.Sprintf("server.transport is valid (%q, use stdio or http)", transport))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("server.transport is valid (%s)", transport))
	}
	if transport == "http" {
		if config.Server.Port <= 0 {
			printCheck(w, useColor, false, "server.port is > 0")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("server.port is > 0 (%d)", config.Server.Port))
		}
		if config.Server.HealthCheckEnabled && config.Server.HealthCheckPath == "" {
			printCheck(w, useColor, false, "health_check_path is set (required when health_check_enabled)")
			allPassed = false
		}
	}

	// Check 4: Regex patterns compile
	regexOK := true

	for i, rule := range config.ErrorPrompts {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("error_prompts[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}
	for i, rule := range config.Sanitization {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("sanitization[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}
	for i, rule := range config.Query.TimeoutRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("timeout_rules[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}
	for i, hook := range config.ServerHooks.BeforeQuery {
		if _, err := regexp.Compile(hook.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("server_hooks.before_query[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}
	for i, hook := range config.ServerHooks.AfterQuery {
		if _, err := regexp.Compile(hook.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("server_hooks.after_query[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	return &config, allPassed
}

// doctorCheckDatabase opens the database and runs a quick integrity check.
func doctorCheckDatabase(w io.Writer, useColor bool, config *sqlitemcp.ServerConfig) bool {
	dsn, err := sqlitemcp.BuildDSN(config.Connection, true)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Connection string builds: %v", err))
		return false
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database opens: %v", err))
		return false
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database responds to queries: %v", err))
		return false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Database responds to queries (SQLite %s)", version))

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil || result != "ok" {
		printCheck(w, useColor, false, fmt.Sprintf("Database integrity quick_check: %q %v", result, err))
		return false
	}
	printCheck(w, useColor, true, "Database integrity quick_check")

	return true
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}

// printAgentSnippets prints MCP connection config snippets for various AI agents.
func printAgentSnippets(w io.Writer, useColor bool, config *sqlitemcp.ServerConfig, configPath string) {
	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}

	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	transport := config.Server.Transport
	if transport == "http" {
		url := fmt.Sprintf("http://localhost:%d/mcp", config.Server.Port)

		subheading("Claude Code")
		fmt.Fprintf(w, "  Run this command to add the server:\n\n")
		fmt.Fprintf(w, "    claude mcp add --transport http sqlite %s\n\n", url)

		subheading("Cursor (.cursor/mcp.json)")
		fmt.Fprintf(w, `  {
    "mcpServers": {
      "sqlite": {
        "url": "%s"
      }
    }
  }
`, url)
		fmt.Fprintln(w)

		subheading("Gemini CLI (~/.gemini/settings.json)")
		fmt.Fprintf(w, `  {
    "mcpServers": {
      "sqlite": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
		return
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "gosqlmcp"
	}

	subheading("Claude Desktop (claude_desktop_config.json)")
	fmt.Fprintf(w, "  Run 'gosqlmcp install' to add this entry automatically:\n\n")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "sqlite_mcp_server": {
        "command": "%s",
        "args": ["serve"],
        "env": {"GOSQLMCP_CONFIG_PATH": "%s"}
      }
    }
  }
`, exe, configPath)
	fmt.Fprintln(w)

	subheading("Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add sqlite -e GOSQLMCP_CONFIG_PATH=%s -- %s serve\n", configPath, exe)
}
