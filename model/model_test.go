package model

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/finmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userRequest(text string) Request {
	return Request{Contents: []core.Content{
		core.NewTextContent(core.RoleSystem, "sys"),
		core.NewTextContent(core.RoleUser, text),
	}}
}

func TestMockModel_QueueThenLookupThenEcho(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.EnqueueFunctionCalls(core.FunctionCall{ID: "c1", Name: "financial_research", Arguments: `{"query":"nifty"}`})
	m.AddResponse("hello", "canned")

	ctx := context.Background()

	r, err := Collect(ctx, m, userRequest("hello"))
	require.NoError(t, err)
	calls := r.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "financial_research", calls[0].Name)
	assert.Equal(t, "tool_calls", r.FinishReason)

	r, err = Collect(ctx, m, userRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "canned", r.Content.Text())

	r, err = Collect(ctx, m, userRequest("other"))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", r.Content.Text())

	assert.Len(t, m.Requests(), 3)
}

func TestMockModel_Failure(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.FailWith(errors.New("backend down"))

	_, err := Collect(context.Background(), m, userRequest("x"))
	assert.EqualError(t, err, "backend down")
}

func TestCollect_ContextCancelled(t *testing.T) {
	m := NewMockModel("mock", "mock")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, m, userRequest("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

type silentModel struct{}

func (silentModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response)
	errCh := make(chan error)
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (silentModel) Info() Info { return Info{Name: "silent"} }

func TestCollect_NoResponse(t *testing.T) {
	_, err := Collect(context.Background(), silentModel{}, userRequest("x"))
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestCollect_SkipsPartials(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.Enqueue(Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, "par")})

	r, err := Collect(context.Background(), m, userRequest("x"))
	require.ErrorIs(t, err, ErrNoResponse)
	assert.Empty(t, r.Content.Parts)
}
