// Package observability holds the slog attribute helpers and prometheus
// collectors shared across modules.
package observability

import "log/slog"

// String is a shorthand slog attribute constructor.
func String(key, value string) slog.Attr { return slog.String(key, value) }

// Int is a shorthand slog attribute constructor.
func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

// Bool is a shorthand slog attribute constructor.
func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

// Any is a shorthand slog attribute constructor.
func Any(key string, value any) slog.Attr { return slog.Any(key, value) }

// Error records an error under the conventional key.
func Error(err error) slog.Attr { return slog.Any("error", err) }
