package llm

import (
	"context"
	"io"
)

// Backend represents an agent CLI execution backend.
type Backend interface {
	// Name returns the backend name (e.g., "claude")
	Name() string

	// Execute spawns the agent subprocess non-interactively and returns a
	// reader for its stdout (spec 4.1.6). Stdin is always attached to
	// /dev/null; the caller must drain the reader and Close it to collect
	// the process's exit status.
	Execute(ctx context.Context, opts ExecuteOptions) (io.ReadCloser, error)
}

// OutputFormat selects how the agent CLI should emit its results
// (spec 4.1.6).
type OutputFormat string

const (
	OutputFormatJSON       OutputFormat = "json"
	OutputFormatStreamJSON OutputFormat = "stream-json"
)

// ExecuteOptions contains options for one agent subprocess invocation.
type ExecuteOptions struct {
	Prompt         string
	Model          string
	AllowedTools   []string
	WorkDir        string
	AddDir         string
	PermissionMode string
	SkipPermissions bool
	OutputFormat   OutputFormat
	Verbose        bool
	Timeout        int // seconds; not read by Claude.Execute, whose wall-clock limit comes from ctx
}
