package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRequestID  = "request_id"
	KeyBackend    = "backend"
	KeyMode       = "mode"
	KeyConstruct  = "construct"
	KeyCategory   = "category"
	KeyStatus     = "status"
	KeyDeviceType = "device_type"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RequestID(id string) slog.Attr   { return slog.String(KeyRequestID, id) }
func Backend(name string) slog.Attr   { return slog.String(KeyBackend, name) }
func Mode(m string) slog.Attr         { return slog.String(KeyMode, m) }
func Construct(c string) slog.Attr    { return slog.String(KeyConstruct, c) }
func Category(c string) slog.Attr     { return slog.String(KeyCategory, c) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func DeviceType(d string) slog.Attr   { return slog.String(KeyDeviceType, d) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
