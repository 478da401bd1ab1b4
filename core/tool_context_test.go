package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolContext_Accessors(t *testing.T) {
	capture := &captureLogger{}
	rc := NewRunContext(context.Background(), "run-9", map[string]any{"user_id": int64(7)}, capture).
		ForTask("advice", AgentInfo{Name: "Indian Financial Advisor", Type: "model"}, 0)

	tc := NewToolContext(rc, "fc-1")

	assert.Equal(t, "run-9", tc.RunID())
	assert.Equal(t, "advice", tc.TaskName())
	assert.Equal(t, "Indian Financial Advisor", tc.AgentName())
	assert.Equal(t, "fc-1", tc.FunctionCallID())
	assert.Equal(t, context.Background(), tc.Context())

	v, ok := tc.Binding("user_id")
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)

	tc.Logger().Info("tool.call.start", "tool", "view_user_portfolio")
	assert.Len(t, capture.entries, 1)
	assert.Equal(t, []any{
		"run_id", "run-9",
		"task", "advice",
		"agent", "Indian Financial Advisor",
		"fc_id", "fc-1",
		"tool", "view_user_portfolio",
	}, capture.entries[0].args)
}
