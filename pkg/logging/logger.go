// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for VaultAI components.
//
// # Description
//
// The package is a thin layer over the standard library slog: it
// builds a handler fan-out (stderr by default, optionally a dated
// JSON log file) and hands back the slog.Logger every component
// consumes. Components never see this package's types beyond the
// constructor; they take *slog.Logger.
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:   "info",
//	    LogDir:  "~/.vaultai/logs",
//	    Service: "summaryd",
//	})
//	if err != nil { ... }
//	defer logger.Close()
//	logger.Slog().Info("starting", "data_dir", dir)
//
// # Thread Safety
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// Configuration
// =============================================================================

// Config configures a Logger. The zero value logs Info+ to stderr as
// text.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn", or
	// "error". Empty means "info".
	Level string

	// LogDir, when set, additionally writes JSON logs to
	// "{Service}_{YYYY-MM-DD}.log" under this directory. A leading ~
	// expands to the home directory. The directory is created when
	// missing.
	LogDir string

	// Service is attached to every entry as the "service" attribute
	// and names the log file.
	Service string

	// JSON switches the stderr stream to JSON. File logs are always
	// JSON.
	JSON bool

	// Quiet disables the stderr stream. Useful under a supervisor
	// that only reads the log file.
	Quiet bool
}

// ParseLevel maps a config string to a slog level. Unknown values are
// an error so a typo in a config file surfaces at startup.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
}

// =============================================================================
// Logger
// =============================================================================

// Logger owns the logging destinations. Close releases the log file.
//
// Thread Safety: Logger is safe for concurrent use.
type Logger struct {
	slog *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger from config.
//
// Outputs:
//
//	*Logger - The configured logger.
//	error - Non-nil on an invalid level or an unusable log directory.
func New(config Config) (*Logger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	logger := &Logger{}

	if config.LogDir != "" {
		dir := expandPath(config.LogDir)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("logging: create log dir: %w", err)
		}
		service := config.Service
		if service == "" {
			service = "vaultai"
		}
		name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
		file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		logger.file = file
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Quiet with no file still needs a valid handler.
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4})
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger, nil
}

// Default returns a stderr-only Logger at Info level.
func Default() *Logger {
	logger, _ := New(Config{Service: "vaultai"})
	return logger
}

// Slog returns the underlying slog.Logger for components to consume.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		l.file = nil
		return fmt.Errorf("logging: sync log file: %w", err)
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("logging: close log file: %w", err)
	}
	return nil
}

// =============================================================================
// Multi-Handler
// =============================================================================

// multiHandler fans one record out to several slog handlers, letting
// stderr stay human-readable while the file stays JSON.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
