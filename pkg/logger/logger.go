package logger

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the logger configuration
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string

	// Format is either "json" or "console"
	Format string

	// Development switches to colored console output with stacktraces on warnings
	Development bool

	// AddCaller adds caller information to log entries
	AddCaller bool
}

// DefaultConfig returns a default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:     "info",
		Format:    "json",
		AddCaller: true,
	}
}

// Logger wraps zap.Logger and keeps track of the resources that must be
// released when the process shuts down (for example an OTLP exporter).
type Logger struct {
	*zap.Logger
	cfg     *Config
	closers []io.Closer
	mu      *sync.Mutex
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// New creates a Logger writing to stdout. Additional cores, such as the OTLP
// bridge, are tee'd next to the console core.
func New(cfg *Config, extra ...zapcore.Core) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	cores := append([]zapcore.Core{consoleCore(cfg, level)}, extra...)
	return wrap(zap.New(zapcore.NewTee(cores...), zapOptions(cfg)...), cfg, nil)
}

// AttachClosers registers resources that Close must release.
func (l *Logger) AttachClosers(closers ...io.Closer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closers = append(l.closers, closers...)
	return l
}

// Init builds a logger from cfg and installs it as the global logger
func Init(cfg *Config, extra ...zapcore.Core) *Logger {
	l := New(cfg, extra...)
	SetGlobal(l)
	return l
}

// SetGlobal sets the global logger instance
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Get returns the global logger, creating a default one on first use
func Get() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = New(DefaultConfig())
	}
	return globalLogger
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return wrap(zap.NewNop(), DefaultConfig(), nil)
}

// WithContext adds trace_id and span_id when ctx carries a valid span
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l
	}
	return l.WithFields(
		TraceID(sc.TraceID().String()),
		SpanID(sc.SpanID().String()),
	)
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	return wrap(l.Logger.With(fields...), l.cfg, l)
}

// WithError returns a logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return l.WithFields(zap.Error(err))
}

// Close flushes buffered entries and releases attached closers
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.Logger.Sync()

	var lastErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	l.closers = nil
	return lastErr
}

func wrap(z *zap.Logger, cfg *Config, parent *Logger) *Logger {
	l := &Logger{Logger: z, cfg: cfg, mu: &sync.Mutex{}}
	if parent != nil {
		// derived loggers share the parent's closers
		l.mu = parent.mu
		l.closers = parent.closers
	}
	return l
}

func consoleCore(cfg *Config, level zapcore.Level) zapcore.Core {
	var encCfg zapcore.EncoderConfig
	if cfg.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.MessageKey = "message"
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	enc := zapcore.NewJSONEncoder(encCfg)
	if cfg.Format == "console" || cfg.Development {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
}

func zapOptions(cfg *Config) []zap.Option {
	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.AddCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.Development {
		opts = []zap.Option{zap.Development(), zap.AddStacktrace(zapcore.WarnLevel), zap.AddCaller()}
	}
	return opts
}

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

// Info logs an info message using the global logger
func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

// Fatal logs a fatal message and exits using the global logger
func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}

// With returns the global logger with additional fields
func With(fields ...zap.Field) *Logger {
	return Get().WithFields(fields...)
}

// Close closes the global logger
func Close() error {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Close()
}
