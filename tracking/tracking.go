// Package tracking defines the error tracker failures are reported to when
// they are absorbed at the advice boundary and never reach a caller.
package tracking

import "context"

// Level is the severity of a tracked message.
type Level string

// Levels understood by trackers.
const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// Tracker reports errors and notable messages to an external service.
type Tracker interface {
	// CaptureError sends an error to the tracking service.
	CaptureError(ctx context.Context, err error, tags map[string]string) error
	// CaptureMessage sends a message with a severity level.
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error
	// Flush waits for pending events to be delivered.
	Flush(ctx context.Context) error
}

// Noop is a Tracker that discards everything. Used when error tracking is
// disabled and in tests.
type Noop struct{}

// CaptureError does nothing.
func (Noop) CaptureError(context.Context, error, map[string]string) error { return nil }

// CaptureMessage does nothing.
func (Noop) CaptureMessage(context.Context, string, Level, map[string]string) error { return nil }

// Flush does nothing.
func (Noop) Flush(context.Context) error { return nil }

type userIDKey struct{}

// WithUserID attaches the id of the requesting user to ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the user id attached by WithUserID.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}
