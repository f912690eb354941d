package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field type alias for convenience
type Field = zap.Field

// String constructs a field with the given key and value
func String(key string, val string) Field {
	return zap.String(key, val)
}

// Strings constructs a field with the given key and slice of strings
func Strings(key string, val []string) Field {
	return zap.Strings(key, val)
}

// Int constructs a field with the given key and value
func Int(key string, val int) Field {
	return zap.Int(key, val)
}

// Int64 constructs a field with the given key and value
func Int64(key string, val int64) Field {
	return zap.Int64(key, val)
}

// Bool constructs a field with the given key and value
func Bool(key string, val bool) Field {
	return zap.Bool(key, val)
}

// Time constructs a field with the given key and value
func Time(key string, val time.Time) Field {
	return zap.Time(key, val)
}

// Duration constructs a field with the given key and value
func Duration(key string, val time.Duration) Field {
	return zap.Duration(key, val)
}

// Error constructs a field that lazily stores err.Error() under the key "error"
func Error(err error) Field {
	return zap.Error(err)
}

// Any takes a key and an arbitrary value and chooses the best way to represent them
func Any(key string, val interface{}) Field {
	return zap.Any(key, val)
}

// Request fields

func RequestID(id string) Field     { return String("request_id", id) }
func TraceID(id string) Field       { return String("trace_id", id) }
func SpanID(id string) Field        { return String("span_id", id) }
func Method(method string) Field    { return String("method", method) }
func Path(path string) Field        { return String("path", path) }
func StatusCode(code int) Field     { return Int("status_code", code) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
func ClientIP(ip string) Field      { return String("client_ip", ip) }
func UserAgent(ua string) Field     { return String("user_agent", ua) }

// Application fields

// Component constructs a field for component name
func Component(name string) Field {
	return String("component", name)
}

// Operation constructs a field for operation name
func Operation(name string) Field {
	return String("operation", name)
}

// UserID constructs a field for the caller identity that owns a Basecamp token
func UserID(id string) Field {
	return String("user_id", id)
}

// Basecamp fields

func ProjectID(id int64) Field { return Int64("project_id", id) }
func CardID(id int64) Field    { return Int64("card_id", id) }
func ColumnID(id int64) Field  { return Int64("column_id", id) }
func NoteID(id string) Field   { return String("note_id", id) }
func TestID(id string) Field   { return String("test_id", id) }

// ExpiresAt records a token expiry; a nil expiry is logged as "never"
func ExpiresAt(t *time.Time) Field {
	if t == nil {
		return String("expires_at", "never")
	}
	return Time("expires_at", *t)
}
