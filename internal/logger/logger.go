// Package logger writes levelled diagnostics to stderr. Warnings and
// errors show by default so failed ingestions are never silent; debug
// and info lines need --verbose or log.level = "debug".
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Level orders messages by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var tags = [...]string{
	LevelDebug: "[DEBUG] ",
	LevelInfo:  "[INFO] ",
	LevelWarn:  "[WARN] ",
	LevelError: "[ERROR] ",
}

var (
	mu        sync.Mutex
	threshold           = LevelWarn
	output    io.Writer = os.Stderr
)

// ParseLevel reads a level name, case-insensitively. "info" shares the
// debug threshold since both are verbose output.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "info":
		return LevelDebug, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return 0, false
}

// SetLevel applies a level name. Unknown names change nothing.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		setThreshold(l)
	}
}

// SetVerbose switches between debug output and the default.
func SetVerbose(v bool) {
	if v {
		setThreshold(LevelDebug)
		return
	}
	setThreshold(LevelWarn)
}

// IsVerbose reports whether debug lines are written.
func IsVerbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return threshold <= LevelDebug
}

// SetOutput redirects all log lines, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

func Debug(format string, args ...any) { logf(LevelDebug, format, args...) }
func Info(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warn(format string, args ...any)  { logf(LevelWarn, format, args...) }

// Error is written at every level.
func Error(format string, args ...any) { logf(LevelError, format, args...) }

func setThreshold(l Level) {
	mu.Lock()
	threshold = l
	mu.Unlock()
}

func logf(l Level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l < threshold {
		return
	}
	fmt.Fprintf(output, tags[l]+format+"\n", args...)
}
