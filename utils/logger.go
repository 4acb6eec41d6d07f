package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes leveled, printf-style lines to a log file and mirrors them
// to a console stream.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	logger  *log.Logger
	console io.Writer
	debug   bool
}

// NewLogger creates a logger appending to logPath and echoing to stdout.
func NewLogger(logPath string) (*Logger, error) {
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		file:    file,
		logger:  log.New(file, "", log.LstdFlags),
		console: os.Stdout,
	}, nil
}

// NewConsoleLogger creates a logger without a backing file. Used by the
// admin tool and by tests (pass io.Discard to silence it).
func NewConsoleLogger(w io.Writer, debug bool) *Logger {
	return &Logger{
		logger: log.New(w, "", log.LstdFlags),
		debug:  debug,
	}
}

// SetDebug enables or suppresses Debug output.
func (l *Logger) SetDebug(debug bool) {
	l.mu.Lock()
	l.debug = debug
	l.mu.Unlock()
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) write(level, format string, v ...interface{}) {
	msg := fmt.Sprintf("["+level+"] "+format, v...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Println(msg)
	if l.console != nil {
		fmt.Fprintln(l.console, msg)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.write("ERROR", format, v...)
}

// Debug logs a debug message. Suppressed unless debug output is enabled.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.mu.Lock()
	debug := l.debug
	l.mu.Unlock()
	if !debug {
		return
	}
	l.write("DEBUG", format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.write("WARN", format, v...)
}

// GetLogPath returns today's log file inside the application directory.
func GetLogPath() string {
	return filepath.Join(AppDir(), "logs", fmt.Sprintf("askforge-%s.log", time.Now().Format("2006-01-02")))
}
