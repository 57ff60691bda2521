// Package hostconfig installs the server into an MCP host's configuration
// file (Claude Desktop's claude_desktop_config.json), so that the host
// launches the stdio server automatically.
package hostconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ServerEntry is one entry under the host's "mcpServers" key.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// DefaultPath returns the per-OS location of Claude Desktop's configuration
// file.
func DefaultPath() (string, error) {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set, cannot locate host configuration")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
	}
}

// Install adds or updates the named server entry in the host configuration
// file at configPath, creating the file and its parent directory when needed.
// All other configuration keys and server entries are preserved byte-for-byte
// as raw JSON.
func Install(configPath, serverName string, entry ServerEntry) error {
	if serverName == "" {
		return fmt.Errorf("server name must be non-empty")
	}

	config := map[string]json.RawMessage{}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("existing host configuration %s is not valid JSON: %w", configPath, err)
		}
	case os.IsNotExist(err):
		// start fresh
	default:
		return fmt.Errorf("failed to read host configuration %s: %w", configPath, err)
	}

	servers := map[string]json.RawMessage{}
	if raw, ok := config["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &servers); err != nil {
			return fmt.Errorf("mcpServers key in %s is not a JSON object: %w", configPath, err)
		}
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal server entry: %w", err)
	}
	servers[serverName] = entryJSON

	serversJSON, err := json.Marshal(servers)
	if err != nil {
		return fmt.Errorf("failed to marshal mcpServers: %w", err)
	}
	config["mcpServers"] = serversJSON

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}

	// Claude Desktop writes its own file with 4-space indentation; match it.
	out, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal host configuration: %w", err)
	}
	out = append(out, '\n')

	if err := os.WriteFile(configPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write host configuration %s: %w", configPath, err)
	}
	return nil
}
