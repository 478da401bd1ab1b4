package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContext_BindingsAreCopied(t *testing.T) {
	in := map[string]any{"query": "What is a SIP?"}
	rc := NewRunContext(context.Background(), "run-1", in, nil)

	in["query"] = "mutated"

	v, ok := rc.Binding("query")
	require.True(t, ok)
	assert.Equal(t, "What is a SIP?", v)

	out := rc.Bindings()
	out["query"] = "changed"
	v, _ = rc.Binding("query")
	assert.Equal(t, "What is a SIP?", v)

	_, ok = rc.Binding("missing")
	assert.False(t, ok)
}

func TestRunContext_ForTaskSharesTrace(t *testing.T) {
	rc := NewRunContext(context.Background(), "run-1", nil, nil)
	research := rc.ForTask("research", AgentInfo{Name: "researcher"}, 3)
	advice := rc.ForTask("advice", AgentInfo{Name: "advisor"}, 0)

	assert.Equal(t, "research", research.TaskName)
	assert.Equal(t, 3, research.Budget.Remaining())
	assert.Equal(t, -1, advice.Budget.Remaining())

	research.Record(NewEvent("researcher"))
	advice.Record(NewEvent("advisor"))

	events := rc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.Equal(t, "research", events[0].Task)
	assert.Equal(t, "advice", events[1].Task)
}

func TestRunContext_RecordIsConcurrencySafe(t *testing.T) {
	rc := NewRunContext(context.Background(), "run-1", nil, nil).ForTask("t", AgentInfo{Name: "a"}, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc.Record(NewEvent("a"))
		}()
	}
	wg.Wait()

	assert.Len(t, rc.Events(), 50)
}

func TestRunContext_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := NewRunContext(ctx, "run-1", nil, nil)
	assert.NoError(t, rc.Err())
	cancel()
	<-rc.Done()
	assert.ErrorIs(t, rc.Err(), context.Canceled)
}
