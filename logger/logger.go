// Package logger wraps zerolog behind a small leveled interface with
// file rotation.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Debug(msg string)
	Fatal(msg string)

	WithStr(key, value string) Logger
	WithInt(key string, value int) Logger
	WithInt64(key string, value int64) Logger
	WithBool(key string, value bool) Logger
}

type logger struct {
	base zerolog.Logger
}

// New returns a logger writing to a rotating file at path.
func New(path, level string) Logger {
	return newLogger(rotatingWriter(path), level)
}

// NewMultiWriter returns a logger writing to stderr and a rotating
// file at path.
func NewMultiWriter(path, level string) Logger {
	return newLogger(io.MultiWriter(os.Stderr, rotatingWriter(path)), level)
}

// Discard returns a logger that drops everything; used by tests.
func Discard() Logger {
	return &logger{base: zerolog.New(io.Discard)}
}

func newLogger(w io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	base := zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return &logger{base: base}
}

func rotatingWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
}

func (l *logger) Info(msg string)  { l.base.Info().Msg(msg) }
func (l *logger) Warn(msg string)  { l.base.Warn().Msg(msg) }
func (l *logger) Error(msg string) { l.base.Error().Msg(msg) }
func (l *logger) Debug(msg string) { l.base.Debug().Msg(msg) }
func (l *logger) Fatal(msg string) { l.base.Fatal().Msg(msg) }

func (l *logger) WithStr(key, value string) Logger {
	return &logger{base: l.base.With().Str(key, value).Logger()}
}

func (l *logger) WithInt(key string, value int) Logger {
	return &logger{base: l.base.With().Int(key, value).Logger()}
}

func (l *logger) WithInt64(key string, value int64) Logger {
	return &logger{base: l.base.With().Int64(key, value).Logger()}
}

func (l *logger) WithBool(key string, value bool) Logger {
	return &logger{base: l.base.With().Bool(key, value).Logger()}
}

// LogPath resolves the default log file location under the user's home
// directory, creating the directory if needed.
func LogPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	logDir := filepath.Join(homeDir, "lantransfer", "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	return filepath.Join(logDir, "lantransfer.log"), nil
}
