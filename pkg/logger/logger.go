// Package logger is the process-wide structured logger. Until Init is called
// every call is a no-op.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Options configure the logger.
type Options struct {
	Level  string    // debug, info, warn, error; empty means info
	Debug  bool      // shorthand for Level "debug"
	Writer io.Writer // defaults to stderr
}

var (
	mu        sync.RWMutex
	singleton *log.Logger
)

// Init installs the global logger. Unknown levels fall back to info.
func Init(opts Options) {
	level := log.InfoLevel
	if opts.Level != "" {
		if l, err := log.ParseLevel(strings.ToLower(opts.Level)); err == nil {
			level = l
		}
	}
	if opts.Debug {
		level = log.DebugLevel
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	mu.Lock()
	singleton = l
	mu.Unlock()
}

func get() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return singleton
}

// Debug writes a message at DEBUG level.
func Debug(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Debug(message, keyvals...)
	}
}

// Info writes a message at INFO level.
func Info(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Info(message, keyvals...)
	}
}

// Warn writes a message at WARN level.
func Warn(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Warn(message, keyvals...)
	}
}

// Error writes a message at ERROR level.
func Error(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Error(message, keyvals...)
	}
}

