package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a log severity
type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the level label used in log lines
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config value such as "info" into a Level
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", name)
	}
}

// FileOptions configures rotated file output
type FileOptions struct {
	Path       string // Log file path
	MaxSizeMB  int    // Rotate after this many megabytes
	MaxBackups int    // Rotated files to keep
	MaxAgeDays int    // Days to keep rotated files
	Compress   bool   // Gzip rotated files
}

// Logger provides structured logging
type Logger struct {
	prefix string
	level  atomic.Int32
	out    *log.Logger
}

// NewLogger creates a new logger with prefix writing to stderr
func NewLogger(prefix string) *Logger {
	return NewWriterLogger(prefix, os.Stderr)
}

// NewWriterLogger creates a logger writing to w
func NewWriterLogger(prefix string, w io.Writer) *Logger {
	l := &Logger{
		prefix: prefix,
		out:    log.New(w, "", 0),
	}
	l.level.Store(int32(INFO))
	return l
}

// NewFileLogger creates a logger writing to a size-rotated file
func NewFileLogger(prefix string, opts FileOptions) *Logger {
	return NewWriterLogger(prefix, &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	})
}

// SetLevel drops messages below level
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Level returns the current minimum level
func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// Debug logs verbose diagnostic message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(DEBUG, msg, keysAndValues...)
}

// Info logs informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(INFO, msg, keysAndValues...)
}

// Warn logs warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(WARN, msg, keysAndValues...)
}

// Error logs error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(ERROR, msg, keysAndValues...)
}

// log formats and outputs log message
func (l *Logger) log(level Level, msg string, keysAndValues ...interface{}) {
	if level < l.Level() {
		return
	}

	timestamp := time.Now().Format("2006-01-02T15:04:05.000Z07:00")

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] %s: %s", timestamp, level, l.prefix, msg)

	// Append key-value pairs, an odd trailing key is dropped
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}

	l.out.Println(sb.String())
}
