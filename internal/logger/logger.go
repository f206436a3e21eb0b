package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Fields carries structured context attached to a log event.
type Fields map[string]interface{}

// Logger wraps zerolog.Logger with the structured-logging surface the rest of
// the service uses.
type Logger struct {
	zlog zerolog.Logger
}

// New creates a Logger for the given environment. Development gets
// pretty-printed console output at debug level; everything else gets JSON at
// info level.
func New(env string) *Logger {
	var output io.Writer = os.Stdout
	level := zerolog.InfoLevel

	if env == "development" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		level = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{zlog: zlog}
}

// NewWithWriter creates a JSON Logger writing to w. Used by tests to capture
// output.
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zlog: zlog}
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(msg string, fields Fields) {
	emit(l.zlog.Debug(), msg, fields)
}

// Info logs an info message with optional fields.
func (l *Logger) Info(msg string, fields Fields) {
	emit(l.zlog.Info(), msg, fields)
}

// Warn logs a warning message with optional fields.
func (l *Logger) Warn(msg string, fields Fields) {
	emit(l.zlog.Warn(), msg, fields)
}

// Error logs an error message with the causing error and optional fields.
func (l *Logger) Error(msg string, err error, fields Fields) {
	emit(l.zlog.Error().Err(err), msg, fields)
}

// Fatal logs a fatal message and exits the process.
func (l *Logger) Fatal(msg string, err error, fields Fields) {
	emit(l.zlog.Fatal().Err(err), msg, fields)
}

func emit(event *zerolog.Event, msg string, fields Fields) {
	for key, value := range fields {
		event = event.Interface(key, value)
	}
	event.Msg(msg)
}

// With creates a child logger carrying additional context on every event.
func (l *Logger) With(fields Fields) *Logger {
	ctx := l.zlog.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithComponent creates a child logger tagged with the engine component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// WithRequestID creates a child logger tagged with a request id.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("request_id", requestID).Logger()}
}
