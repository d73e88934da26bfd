package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI provides command-line interface for setup operations.
type CLI struct {
	ConfigPath string // Claude Desktop config file; empty means the platform default
	in         *bufio.Reader
	out        io.Writer
}

// NewCLI creates a CLI reading answers from in and printing to out.
func NewCLI(in io.Reader, out io.Writer) *CLI {
	return &CLI{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	if c.ConfigPath == "" {
		path, err := GetClaudeDesktopConfigPath()
		if err != nil {
			return err
		}
		c.ConfigPath = path
	}

	switch args[0] {
	case "claude-desktop":
		return c.setupClaudeDesktop(args[1:])
	case "status":
		return c.showStatus()
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

func (c *CLI) showHelp() error {
	fmt.Fprint(c.out, `
CardioCare MCP Server Setup

Usage:
  mcp-server-lite setup <command> [options]

Commands:
  claude-desktop  Register the server with Claude Desktop
  status          Show current setup status

Options for claude-desktop:
  --binary, -b    Server binary (default: this executable)
  --data-dir, -d  Directory for patient records
  --model, -m     Classifier artifact (JSON)
  --auto, -y      Do not ask for confirmation
`)
	return nil
}

func (c *CLI) setupClaudeDesktop(args []string) error {
	var opts Options
	for i := 0; i < len(args); i++ {
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch args[i] {
		case "--binary", "-b":
			opts.BinaryPath = next()
		case "--data-dir", "-d":
			opts.DataDir = next()
		case "--model", "-m":
			opts.ModelPath = next()
		case "--auto", "-y":
			opts.AutoConfirm = true
		}
	}

	if opts.BinaryPath == "" {
		if execPath, err := os.Executable(); err == nil {
			opts.BinaryPath = execPath
		}
	}

	fmt.Fprintln(c.out, "Claude Desktop Configuration")
	fmt.Fprintf(c.out, "Config file:    %s\n", c.ConfigPath)
	fmt.Fprintf(c.out, "Server binary:  %s\n", opts.BinaryPath)
	if opts.DataDir != "" {
		fmt.Fprintf(c.out, "Data directory: %s\n", opts.DataDir)
	}
	if opts.ModelPath != "" {
		fmt.Fprintf(c.out, "Model artifact: %s\n", opts.ModelPath)
	}

	if !opts.AutoConfirm {
		fmt.Fprint(c.out, "Proceed with configuration? [Y/n]: ")
		response, _ := c.in.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			fmt.Fprintln(c.out, "Configuration cancelled.")
			return nil
		}
	}

	if err := ConfigureClaudeDesktop(c.ConfigPath, opts); err != nil {
		return fmt.Errorf("failed to configure Claude Desktop: %w", err)
	}

	fmt.Fprintln(c.out, "Claude Desktop configured. Restart Claude Desktop to load the server.")
	return nil
}

func (c *CLI) showStatus() error {
	status := GetStatus(c.ConfigPath)

	fmt.Fprintln(c.out, "CardioCare MCP Server Status")
	fmt.Fprintf(c.out, "Claude Desktop config: %s\n", status.ClaudeDesktopPath)
	if status.Configured {
		fmt.Fprintf(c.out, "Server binary:         %s\n", status.ServerPath)
	} else {
		fmt.Fprintln(c.out, "Server:                not configured")
	}
	fmt.Fprintf(c.out, "Data directory:        %s\n", status.DataDir)
	fmt.Fprintf(c.out, "Model artifact:        %s\n", status.ModelPath)

	if len(status.Issues) > 0 {
		fmt.Fprintln(c.out, "Issues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  - %s\n", issue)
		}
	}
	if status.Valid() {
		fmt.Fprintln(c.out, "Configuration is valid.")
	}
	return nil
}
