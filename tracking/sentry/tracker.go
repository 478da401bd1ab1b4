// Package sentry implements tracking.Tracker on top of Sentry.
package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/hupe1980/finmesh/tracking"
)

const flushTimeout = 2 * time.Second

// Tracker implements error tracking via Sentry.
type Tracker struct {
	hub *sentry.Hub
}

// New creates a new Sentry tracker.
func New(dsn, environment, release string) (*Tracker, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, err
	}

	return NewFromClient(client), nil
}

// NewFromClient creates a tracker reporting through client.
func NewFromClient(client *sentry.Client) *Tracker {
	return &Tracker{hub: sentry.NewHub(client, sentry.NewScope())}
}

// CaptureError sends an error to Sentry.
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.scoped(ctx, tags, "")
	hub.CaptureException(err)
	return nil
}

// CaptureMessage sends a message to Sentry.
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level tracking.Level, tags map[string]string) error {
	hub := t.scoped(ctx, tags, convertLevel(level))
	hub.CaptureMessage(message)
	return nil
}

// Flush waits for all pending events to be sent.
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	t.hub.Flush(timeout)

	return nil
}

// scoped clones the hub so tags of concurrent requests never mix.
func (t *Tracker) scoped(ctx context.Context, tags map[string]string, level sentry.Level) *sentry.Hub {
	hub := t.hub.Clone()

	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}

		if userID, ok := tracking.UserID(ctx); ok {
			scope.SetUser(sentry.User{ID: userID})
		}

		if level != "" {
			scope.SetLevel(level)
		}
	})

	return hub
}

func convertLevel(level tracking.Level) sentry.Level {
	switch level {
	case tracking.LevelDebug:
		return sentry.LevelDebug
	case tracking.LevelInfo:
		return sentry.LevelInfo
	case tracking.LevelWarning:
		return sentry.LevelWarning
	case tracking.LevelError:
		return sentry.LevelError
	case tracking.LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}
