package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// ZapCore forwards zap entries to the OTLP log pipeline. It is tee'd next to
// the console core by logger.New.
type ZapCore struct {
	zapcore.LevelEnabler
	provider *Provider
	fields   []zapcore.Field
}

var _ zapcore.Core = (*ZapCore)(nil)

// NewZapCore returns a core that emits entries at or above level through provider
func NewZapCore(provider *Provider, level zapcore.LevelEnabler) *ZapCore {
	return &ZapCore{LevelEnabler: level, provider: provider}
}

// With returns a copy of the core carrying fields on every entry
func (c *ZapCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &ZapCore{LevelEnabler: c.LevelEnabler, provider: c.provider, fields: merged}
}

// Check adds the core to checked when the entry level is enabled
func (c *ZapCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

// Write converts the entry and its fields into an OTLP log record
func (c *ZapCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	// Let zap resolve every field type, then translate the plain values.
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	var record log.Record
	record.SetTimestamp(entry.Time)
	record.SetSeverity(severity(entry.Level))
	record.SetSeverityText(entry.Level.String())
	record.SetBody(log.StringValue(entry.Message))

	attrs := make([]log.KeyValue, 0, len(enc.Fields)+2)
	if entry.Caller.Defined {
		attrs = append(attrs, log.String("caller", entry.Caller.TrimmedPath()))
	}
	if entry.Stack != "" {
		attrs = append(attrs, log.String("stacktrace", entry.Stack))
	}
	for k, v := range enc.Fields {
		attrs = append(attrs, log.KeyValue{Key: k, Value: toValue(v)})
	}
	record.AddAttributes(attrs...)

	c.provider.logger.Emit(context.Background(), record)
	return nil
}

// Sync flushes pending records to the exporter, waiting at most five seconds
func (c *ZapCore) Sync() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.provider.ForceFlush(ctx)
}

func severity(level zapcore.Level) log.Severity {
	switch level {
	case zapcore.DebugLevel:
		return log.SeverityDebug
	case zapcore.InfoLevel:
		return log.SeverityInfo
	case zapcore.WarnLevel:
		return log.SeverityWarn
	case zapcore.ErrorLevel, zapcore.DPanicLevel:
		return log.SeverityError
	default:
		return log.SeverityFatal
	}
}

func toValue(v interface{}) log.Value {
	switch t := v.(type) {
	case string:
		return log.StringValue(t)
	case bool:
		return log.BoolValue(t)
	case int:
		return log.IntValue(t)
	case int64:
		return log.Int64Value(t)
	case int32:
		return log.Int64Value(int64(t))
	case uint64:
		return log.Int64Value(int64(t))
	case float64:
		return log.Float64Value(t)
	case float32:
		return log.Float64Value(float64(t))
	case time.Time:
		return log.StringValue(t.Format(time.RFC3339Nano))
	case time.Duration:
		return log.StringValue(t.String())
	case []interface{}:
		vals := make([]log.Value, 0, len(t))
		for _, item := range t {
			vals = append(vals, toValue(item))
		}
		return log.SliceValue(vals...)
	case map[string]interface{}:
		kvs := make([]log.KeyValue, 0, len(t))
		for k, item := range t {
			kvs = append(kvs, log.KeyValue{Key: k, Value: toValue(item)})
		}
		return log.MapValue(kvs...)
	default:
		return log.StringValue(fmt.Sprint(t))
	}
}
