// Package logger provides the structured logging interface used across the
// module, backed by zerolog. Loggers can write JSON to any writer, human
// readable console output, or JSON to stdout plus a daily rotated file.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// Logger writes leveled, structured log entries.
type Logger interface {
	// Debug logs msg at debug level with optional fields.
	Debug(msg string, fields ...Field)

	// Info logs msg at info level with optional fields.
	Info(msg string, fields ...Field)

	// Warn logs msg at warn level with optional fields.
	Warn(msg string, fields ...Field)

	// Error logs msg at error level with optional fields.
	Error(msg string, fields ...Field)

	// With returns a Logger that adds fields to every entry. The receiver is
	// unchanged.
	With(fields ...Field) Logger

	// GetLoggerInstance returns the underlying zerolog.Logger.
	GetLoggerInstance() interface{}

	// Close releases owned resources such as log files. Safe to call more
	// than once.
	Close() error
}

type zerologLogger struct {
	logger     zerolog.Logger
	fileWriter *DailyFileWriter
	ownsFile   bool
}

// NewZerologLogger wraps l, tagging every entry with serviceName and a
// timestamp and dropping entries below level.
//
// Parameters:
//   - l: The zerolog.Logger to write through
//   - serviceName: Value of the "service" field
//   - level: Minimum level that is written
//
// Returns:
//   - A Logger backed by l
func NewZerologLogger(l zerolog.Logger, serviceName string, level zerolog.Level) Logger {
	return &zerologLogger{
		logger: l.With().Str("service", serviceName).Timestamp().Logger().Level(level),
	}
}

// NewConsoleLogger writes colorized, human readable entries to stderr.
func NewConsoleLogger(serviceName string, level zerolog.Level) Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return NewZerologLogger(zerolog.New(cw), serviceName, level)
}

// NewWriterConsoleLogger writes uncolored console entries to w.
func NewWriterConsoleLogger(w io.Writer, serviceName string, level zerolog.Level) Logger {
	cw := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.TimeOnly}
	return NewZerologLogger(zerolog.New(cw), serviceName, level)
}

// NewZerologFileLogger writes JSON entries to stdout and to a daily rotated
// file {serviceName}_{date}.log in logDir, creating logDir if needed.
//
// Parameters:
//   - serviceName: Value of the "service" field and log file name prefix
//   - logDir: Directory for log files
//   - level: Minimum level that is written
//
// Returns:
//   - A Logger that owns the file writer; call Close when done
//   - An error if the directory or first file cannot be created
func NewZerologFileLogger(serviceName string, logDir string, level zerolog.Level) (Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	fw, err := NewDailyFileWriter(serviceName, logDir)
	if err != nil {
		return nil, err
	}

	l := zerolog.New(io.MultiWriter(os.Stdout, fw))
	return &zerologLogger{
		logger:     l.With().Str("service", serviceName).Timestamp().Logger().Level(level),
		fileWriter: fw,
		ownsFile:   true,
	}, nil
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return &zerologLogger{logger: zerolog.Nop()}
}

func (z *zerologLogger) Debug(msg string, fields ...Field) {
	z.logger.Debug().Fields(toMap(fields)).Msg(msg)
}

func (z *zerologLogger) Info(msg string, fields ...Field) {
	z.logger.Info().Fields(toMap(fields)).Msg(msg)
}

func (z *zerologLogger) Warn(msg string, fields ...Field) {
	z.logger.Warn().Fields(toMap(fields)).Msg(msg)
}

func (z *zerologLogger) Error(msg string, fields ...Field) {
	z.logger.Error().Fields(toMap(fields)).Msg(msg)
}

func (z *zerologLogger) With(fields ...Field) Logger {
	return &zerologLogger{
		logger:     z.logger.With().Fields(toMap(fields)).Logger(),
		fileWriter: z.fileWriter,
	}
}

func (z *zerologLogger) GetLoggerInstance() interface{} {
	return z.logger
}

func (z *zerologLogger) Close() error {
	if z.ownsFile && z.fileWriter != nil {
		return z.fileWriter.Close()
	}

	return nil
}

func toMap(fields []Field) map[string]any {
	if len(fields) == 0 {
		return nil
	}

	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}

	return m
}
