package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prayanks/mcp-sqlite-server/internal/hostconfig"
)

func runInstall() error {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	serverName := fs.String("name", "sqlite_mcp_server", "Server name to register in the host configuration")
	configPath := fs.String("config", defaultConfigPath, "Path to the gosqlmcp configuration file")
	hostPath := fs.String("host-config", "", "Path to the host configuration file (defaults to the Claude Desktop location)")
	fs.Parse(os.Args[2:])

	target := *hostPath
	if target == "" {
		var err error
		target, err = hostconfig.DefaultPath()
		if err != nil {
			return err
		}
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	absConfig, err := filepath.Abs(*configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve configuration path: %w", err)
	}

	entry := hostconfig.ServerEntry{
		Command: exe,
		Args:    []string{"serve"},
		Env:     map[string]string{"GOSQLMCP_CONFIG_PATH": absConfig},
	}
	if err := hostconfig.Install(target, *serverName, entry); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Installed %q into %s\n", *serverName, target)
	fmt.Fprintln(os.Stderr, "Restart the host application for the change to take effect.")
	return nil
}
