package llm

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Claude implements the Backend interface for the Claude Code CLI.
type Claude struct {
	BinaryPath string
}

// NewClaude creates a new Claude backend.
func NewClaude(binaryPath string) *Claude {
	if binaryPath == "" {
		binaryPath = "claude"
	}
	// Try to resolve the binary path
	resolved := resolveBinaryPath(binaryPath)
	return &Claude{BinaryPath: resolved}
}

// resolveBinaryPath finds the claude binary, checking common locations
func resolveBinaryPath(binaryPath string) string {
	// If it's an absolute path, use it directly
	if filepath.IsAbs(binaryPath) {
		return binaryPath
	}

	// Check if it's in PATH
	if path, err := exec.LookPath(binaryPath); err == nil {
		return path
	}

	// Check common locations
	home, _ := os.UserHomeDir()
	commonPaths := []string{
		filepath.Join(home, ".claude", "local", "claude"),
		"/usr/local/bin/claude",
		"/opt/homebrew/bin/claude",
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	// Return original, will fail with helpful error later
	return binaryPath
}

// claudeNotFoundError returns a helpful error message
func claudeNotFoundError() error {
	return fmt.Errorf(`claude not found in PATH

To fix, add to your ~/.zshrc or ~/.bashrc:
  export PATH="$HOME/.claude/local:$PATH"

Then restart your terminal, or run:
  source ~/.zshrc

Alternatively, set the full path in the orchestrator config:
  agent:
    binary: /path/to/claude`)
}

func (c *Claude) Name() string {
	return "claude"
}

// Execute spawns the agent subprocess non-interactively with stdin attached
// to /dev/null (spec 4.1.6: "omitting the mode causes the CLI to prompt and
// deadlock because the subprocess's stdin is /dev/null"). The wall-clock
// timeout is enforced by the caller via ctx; CommandContext kills the
// process when ctx is cancelled.
func (c *Claude) Execute(ctx context.Context, opts ExecuteOptions) (io.ReadCloser, error) {
	args := c.buildArgs(opts)

	cmd := exec.CommandContext(ctx, c.BinaryPath, args...)
	cmd.Dir = opts.WorkDir
	cmd.Stderr = os.Stderr

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	cmd.Stdin = devNull

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		devNull.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		devNull.Close()
		if strings.Contains(err.Error(), "executable file not found") {
			return nil, claudeNotFoundError()
		}
		return nil, fmt.Errorf("start claude: %w", err)
	}

	// Return a wrapper that waits for the command and closes /dev/null on
	// close.
	return &cmdReader{
		ReadCloser: stdout,
		cmd:        cmd,
		devNull:    devNull,
	}, nil
}

func (c *Claude) buildArgs(opts ExecuteOptions) []string {
	args := []string{"--print"}

	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}

	format := opts.OutputFormat
	if format == "" {
		format = OutputFormatJSON
	}
	args = append(args, "--output-format", string(format))
	if format == OutputFormatStreamJSON && opts.Verbose {
		args = append(args, "--verbose")
	}

	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, " "))
	}

	if opts.AddDir != "" {
		args = append(args, "--add-dir", opts.AddDir)
	}

	if opts.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	} else if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}

	if opts.Prompt != "" {
		args = append(args, opts.Prompt)
	}

	return args
}

// cmdReader wraps an io.ReadCloser and waits for the command on close.
type cmdReader struct {
	io.ReadCloser
	cmd     *exec.Cmd
	devNull *os.File
}

func (r *cmdReader) Close() error {
	r.ReadCloser.Close()
	err := r.cmd.Wait()
	r.devNull.Close()
	return err
}
