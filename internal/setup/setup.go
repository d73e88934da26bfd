// Package setup registers the CardioCare MCP server with Claude Desktop and
// reports on the local installation.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ServerName is the key of the server entry in mcpServers.
const ServerName = "cardiocare-risk"

// Environment variables written into the server entry
const (
	EnvDataDir   = "CARDIOCARE_DATA_DIR"
	EnvModelPath = "CARDIOCARE_MODEL_PATH"
)

// ClaudeDesktopConfig represents the Claude Desktop configuration file structure.
// Unknown top-level keys are preserved on save.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for the setup process.
type Options struct {
	BinaryPath  string // Path to the server binary
	DataDir     string // Data directory for records
	ModelPath   string // Classifier artifact
	AutoConfirm bool   // Skip confirmation prompts
}

// GetClaudeDesktopConfigPath returns the path to Claude Desktop's config file.
func GetClaudeDesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig loads the existing Claude Desktop configuration.
// A missing file yields an empty configuration.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	config := &ClaudeDesktopConfig{
		MCPServers: make(map[string]MCPServerConfig),
		extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(config.extra, "mcpServers")
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}

	return config, nil
}

// SaveClaudeDesktopConfig saves the configuration to the Claude Desktop config file.
func SaveClaudeDesktopConfig(configPath string, config *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := make(map[string]interface{}, len(config.extra)+1)
	for k, v := range config.extra {
		doc[k] = v
	}
	doc["mcpServers"] = config.MCPServers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ServerEntry builds the mcpServers entry for opts.
func ServerEntry(opts Options) MCPServerConfig {
	entry := MCPServerConfig{
		Command: opts.BinaryPath,
		Env:     make(map[string]string),
	}
	if opts.DataDir != "" {
		entry.Env[EnvDataDir] = opts.DataDir
	}
	if opts.ModelPath != "" {
		entry.Env[EnvModelPath] = opts.ModelPath
	}
	return entry
}

// ConfigureClaudeDesktop adds or updates the CardioCare entry in the Claude
// Desktop configuration at configPath.
func ConfigureClaudeDesktop(configPath string, opts Options) error {
	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return err
	}

	if opts.BinaryPath == "" {
		opts.BinaryPath, err = findBinary()
		if err != nil {
			return fmt.Errorf("could not find server binary: %w", err)
		}
	}

	config.MCPServers[ServerName] = ServerEntry(opts)
	return SaveClaudeDesktopConfig(configPath, config)
}

const binaryName = "mcp-server-lite"

// findBinary attempts to find the server binary in common locations.
func findBinary() (string, error) {
	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + binaryName,
		"./build/" + binaryName,
		filepath.Join(home, ".local", "bin", binaryName),
		"/usr/local/bin/" + binaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", binaryName)
}

// Status represents the current setup status.
type Status struct {
	ClaudeDesktopPath string
	Configured        bool
	ServerPath        string
	DataDir           string
	ModelPath         string
	Issues            []string
}

// GetStatus inspects the Claude Desktop configuration at configPath.
func GetStatus(configPath string) *Status {
	status := &Status{ClaudeDesktopPath: configPath}

	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not load Claude Desktop config: %v", err))
	} else if entry, ok := config.MCPServers[ServerName]; ok {
		status.Configured = true
		status.ServerPath = entry.Command
		status.DataDir = entry.Env[EnvDataDir]
		status.ModelPath = entry.Env[EnvModelPath]

		if _, err := os.Stat(entry.Command); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", entry.Command))
		}
	} else {
		status.Issues = append(status.Issues, "CardioCare server not configured in Claude Desktop")
	}

	if status.DataDir == "" {
		status.DataDir = GetDefaultDataDir()
	}
	if status.ModelPath == "" {
		status.ModelPath = filepath.Join(status.DataDir, "model.json")
	}

	if _, err := os.Stat(status.ModelPath); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Classifier artifact not found, predictions will be unavailable: %s", status.ModelPath))
	}
	if _, err := os.Stat(status.DataDir); os.IsNotExist(err) {
		status.Issues = append(status.Issues, fmt.Sprintf("Data directory will be created on first run: %s", status.DataDir))
	}

	return status
}

// Valid reports whether the status has only warnings.
func (s *Status) Valid() bool {
	if !s.Configured {
		return false
	}
	for _, issue := range s.Issues {
		if !strings.Contains(issue, "will be created") {
			return false
		}
	}
	return true
}

// GetDefaultDataDir returns the default data directory path.
func GetDefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cardiocare")
}
