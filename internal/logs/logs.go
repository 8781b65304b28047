// Package logs provides the plain file-backed loggers behind spec.md §6's
// two-tier log layout (logs/<slug>.log, logs/pipeline.log,
// .claude/plans/logs/task-*.log), grounded on jaakkos-stringwork's
// *log.Logger field convention: one logger instance per long-lived
// component, never shared across goroutines without its own file handle.
package logs

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// FileLogger appends timestamped lines to one file.
type FileLogger struct {
	*log.Logger
	file *os.File
}

// Open appends to path, creating its parent directory and the file itself
// if they don't already exist.
func Open(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return &FileLogger{Logger: log.New(f, "", log.LstdFlags), file: f}, nil
}

// Close releases the underlying file handle.
func (l *FileLogger) Close() error {
	return l.file.Close()
}
