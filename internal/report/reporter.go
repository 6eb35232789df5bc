package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level classifies a log entry.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarn    Level = "WARN"
	LevelError   Level = "ERROR"
	LevelSuccess Level = "SUCCESS"
)

// Reporter appends timestamped, leveled entries to a durable log file and
// mirrors them to the operator's terminal. The log file is append-only; the
// orchestrator never rewrites or truncates it.
type Reporter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	verbose bool
}

// New opens (or creates) the log file at path in append mode.
func New(path string, verbose bool) (*Reporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	return &Reporter{file: file, path: path, verbose: verbose}, nil
}

// Path returns the location of the log file, for pointing operators at it
// in failure messages.
func (r *Reporter) Path() string {
	return r.path
}

// Close flushes and closes the underlying log file.
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Reporter) log(level Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	r.mu.Lock()
	if r.file != nil {
		fmt.Fprintf(r.file, "%s [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), level, msg)
	}
	r.mu.Unlock()

	switch level {
	case LevelInfo:
		fmt.Println(msg)
	case LevelWarn:
		fmt.Println(color.YellowString("⚠️  %s", msg))
	case LevelError:
		fmt.Fprintln(os.Stderr, color.RedString("❌ %s", msg))
	case LevelSuccess:
		fmt.Println(color.GreenString("✅ %s", msg))
	}
}

// Infof logs an informational message.
func (r *Reporter) Infof(format string, args ...interface{}) {
	r.log(LevelInfo, format, args...)
}

// Warnf logs a warning.
func (r *Reporter) Warnf(format string, args ...interface{}) {
	r.log(LevelWarn, format, args...)
}

// Errorf logs an error.
func (r *Reporter) Errorf(format string, args ...interface{}) {
	r.log(LevelError, format, args...)
}

// Successf logs a completed operation.
func (r *Reporter) Successf(format string, args ...interface{}) {
	r.log(LevelSuccess, format, args...)
}

// Debugf logs to the file always, to the terminal only in verbose mode.
func (r *Reporter) Debugf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	r.mu.Lock()
	if r.file != nil {
		fmt.Fprintf(r.file, "%s [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), LevelInfo, msg)
	}
	r.mu.Unlock()

	if r.verbose {
		fmt.Println(msg)
	}
}
