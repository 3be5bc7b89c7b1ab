// Package logging is a gated debug writer for the engine. It deliberately
// does not wrap a structured logging library: debug output is off by
// default, cheap to check, and routed to whatever writer the host installs.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug is a build flag, set at link time with
// -ldflags "-X github.com/standardbeagle/codesage/internal/logging.EnableDebug=true".
var EnableDebug = "false"

var (
	mu     sync.Mutex
	output io.Writer
	file   *os.File
)

// SetOutput installs w as the debug writer. Passing nil disables output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// InitLogFile opens a timestamped log file under os.TempDir() and installs
// it as the debug writer, returning its path.
func InitLogFile() (string, error) {
	mu.Lock()
	defer mu.Unlock()

	dir := filepath.Join(os.TempDir(), "codesage-debug-logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create debug log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("debug-%s.log", time.Now().Format("2006-01-02T150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("create debug log file: %w", err)
	}
	file = f
	output = f
	return path, nil
}

// Close closes the log file opened by InitLogFile, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	output = nil
	return err
}

// Enabled reports whether debug output should be produced: the build flag,
// or the DEBUG environment variable as a runtime override.
func Enabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Printf writes a debug line if logging is enabled and a writer is
// installed; it is a silent no-op otherwise.
func Printf(format string, args ...any) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG] "+format+"\n", args...)
}

// Log writes a component-tagged debug line.
func Log(component, format string, args ...any) {
	Printf("["+component+"] "+format, args...)
}
