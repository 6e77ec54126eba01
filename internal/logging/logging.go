// Package logging builds the component loggers. Output goes to stderr by
// default; long-running daemon mode can redirect to a rotated file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger with the given component prefix ("[sync] ",
// "[watch] ", ...) writing to stderr.
func New(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix, log.LstdFlags)
}

// NewRotating returns a logger writing to path with size-based rotation,
// for daemon mode where stderr goes nowhere. Old logs are capped so an
// unattended watcher cannot fill the disk.
func NewRotating(prefix, path string) *log.Logger {
	return log.New(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}, prefix, log.LstdFlags)
}

// Discard returns a logger that writes nothing, for quiet mode and tests.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
