package sentry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/finmesh/tracking"
)

type capture struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *capture) beforeSend(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func newTestTracker(t *testing.T) (*Tracker, *capture) {
	t.Helper()

	c := &capture{}
	client, err := sentry.NewClient(sentry.ClientOptions{BeforeSend: c.beforeSend})
	require.NoError(t, err)

	return NewFromClient(client), c
}

func TestTracker_CaptureError(t *testing.T) {
	tr, c := newTestTracker(t)

	ctx := tracking.WithUserID(context.Background(), "42")
	require.NoError(t, tr.CaptureError(ctx, errors.New("pipeline failed"), map[string]string{"outcome": "pipeline_failed"}))

	c.mu.Lock()
	defer c.mu.Unlock()

	require.Len(t, c.events, 1)
	ev := c.events[0]
	assert.Equal(t, "pipeline_failed", ev.Tags["outcome"])
	assert.Equal(t, "42", ev.User.ID)
	require.NotEmpty(t, ev.Exception)
	assert.Equal(t, "pipeline failed", ev.Exception[len(ev.Exception)-1].Value)
}

func TestTracker_CaptureMessage(t *testing.T) {
	tr, c := newTestTracker(t)

	require.NoError(t, tr.CaptureMessage(context.Background(), "portfolio skipped", tracking.LevelWarning, nil))
	require.NoError(t, tr.CaptureMessage(context.Background(), "unknown level", tracking.Level("?"), nil))

	c.mu.Lock()
	defer c.mu.Unlock()

	require.Len(t, c.events, 2)
	assert.Equal(t, "portfolio skipped", c.events[0].Message)
	assert.Equal(t, sentry.LevelWarning, c.events[0].Level)
	assert.Equal(t, sentry.LevelInfo, c.events[1].Level)
}

func TestTracker_TagsDoNotLeak(t *testing.T) {
	tr, c := newTestTracker(t)

	require.NoError(t, tr.CaptureError(context.Background(), errors.New("a"), map[string]string{"only": "first"}))
	require.NoError(t, tr.CaptureError(context.Background(), errors.New("b"), nil))

	c.mu.Lock()
	defer c.mu.Unlock()

	require.Len(t, c.events, 2)
	assert.NotContains(t, c.events[1].Tags, "only")
}

func TestTracker_Flush(t *testing.T) {
	tr, _ := newTestTracker(t)
	assert.NoError(t, tr.Flush(context.Background()))
}

func TestConvertLevel(t *testing.T) {
	assert.Equal(t, sentry.LevelDebug, convertLevel(tracking.LevelDebug))
	assert.Equal(t, sentry.LevelError, convertLevel(tracking.LevelError))
	assert.Equal(t, sentry.LevelFatal, convertLevel(tracking.LevelFatal))
}

func TestNew(t *testing.T) {
	_, err := New("not a dsn", "test", "v0")
	assert.Error(t, err)

	tr, err := New("", "test", "v0")
	require.NoError(t, err)
	assert.NotNil(t, tr)
}
