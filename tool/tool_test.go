package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/internal/testutil"
	"github.com/hupe1980/finmesh/portfolio"
	"github.com/hupe1980/finmesh/search"
)

func toolCtx() *core.ToolContext {
	return testutil.NewRunBuilder().Task("research", "Researcher").ToolContext("fc-1")
}

func userToolCtx(userID int64) *core.ToolContext {
	return testutil.NewRunBuilder().
		Binding(BindingUserID, userID).
		Task("advice", "Advisor").
		ToolContext("fc-1")
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out), s)

	return out
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}

	ft := NewFunctionTool("double", "Doubles x", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["x"].(float64) * 2, nil
	})

	res, err := ft.Call(toolCtx(), map[string]any{"x": float64(21)})
	require.NoError(t, err)
	assert.Equal(t, float64(42), res)
	assert.Equal(t, DefaultPayloadKey, ft.PayloadKey())
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "integer"}},
		"required":   []any{"x"},
	}

	called := false
	ft := NewFunctionTool("double", "Doubles x", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		called = true
		return nil, nil
	})

	_, err := ft.Call(toolCtx(), map[string]any{})
	require.Error(t, err)
	assert.False(t, called)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Equal(t, "double", toolErr.Tool)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	ft := NewFunctionTool("boom", "Fails", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("disk on fire")
	})

	_, err := ft.Call(toolCtx(), nil)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "disk on fire", toolErr.Message)
}

func TestTypedTool_DecodesArguments(t *testing.T) {
	type args struct {
		Query string `json:"query"`
		Limit int    `json:"limit,omitempty"`
	}

	var got args
	ft := NewTypedTool("typed", "Typed tool", func(_ *core.ToolContext, a args) (any, error) {
		got = a
		return "ok", nil
	})

	props, ok := ft.Parameters()["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")

	_, err := ft.Call(toolCtx(), map[string]any{"query": "sensex", "limit": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, args{Query: "sensex", Limit: 3}, got)

	_, err = ft.Call(toolCtx(), map[string]any{"limit": float64(3)})
	assert.Error(t, err)
}

func TestToolErrorFormatting(t *testing.T) {
	assert.Equal(t, "tool error [NOT_FOUND] in x: missing", NewToolError("x", "missing", CodeNotFound).Error())
	assert.Equal(t, "tool error in x: missing", (&ToolError{Tool: "x", Message: "missing"}).Error())
}

// -------------------- Invoker Tests --------------------

type recordingObserver struct {
	mu    sync.Mutex
	calls map[string]error
}

func (o *recordingObserver) ObserveToolCall(name string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = map[string]error{}
	}
	o.calls[name] = err
}

func echoTool(name string) Tool {
	return NewFunctionTool(name, "Echoes", nil, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args, nil
	})
}

func TestNewInvoker_RejectsDuplicates(t *testing.T) {
	_, err := NewInvoker([]Tool{echoTool("a"), echoTool("a")})
	assert.Error(t, err)

	_, err = NewInvoker([]Tool{nil})
	assert.Error(t, err)

	inv, err := NewInvoker([]Tool{echoTool("b"), echoTool("a")})
	require.NoError(t, err)
	require.Len(t, inv.Tools(), 2)
	assert.Equal(t, "b", inv.Tools()[0].Name())

	_, ok := inv.Lookup("a")
	assert.True(t, ok)
}

func TestInvoker_Invoke(t *testing.T) {
	panicky := NewFunctionTool("panicky", "Panics", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		panic("kaboom")
	})
	raw := NewFunctionTool("raw", "Returns raw JSON", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return `{"already":"json"}`, nil
	})
	failing := NewFunctionTool("failing", "Fails", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("backend down")
	}).WithPayloadKey("data")

	obs := &recordingObserver{}
	inv, err := NewInvoker([]Tool{echoTool("echo"), panicky, raw, failing}, func(o *InvokerOptions) {
		o.Observer = obs
	})
	require.NoError(t, err)

	tc := toolCtx()

	t.Run("success", func(t *testing.T) {
		out := decode(t, inv.Invoke(tc, "echo", `{"a":1}`))
		assert.Equal(t, map[string]any{"a": float64(1)}, out)
	})

	t.Run("empty args", func(t *testing.T) {
		out := decode(t, inv.Invoke(tc, "echo", ""))
		assert.Empty(t, out)
	})

	t.Run("raw json string passes through", func(t *testing.T) {
		assert.JSONEq(t, `{"already":"json"}`, inv.Invoke(tc, "raw", "{}"))
	})

	t.Run("unknown tool", func(t *testing.T) {
		out := decode(t, inv.Invoke(tc, "nope", "{}"))
		assert.Equal(t, "tool nope not found", out["error"])
		assert.Contains(t, out, DefaultPayloadKey)
		assert.Nil(t, out[DefaultPayloadKey])
	})

	t.Run("malformed arguments", func(t *testing.T) {
		out := decode(t, inv.Invoke(tc, "echo", "{not json"))
		assert.Contains(t, out["error"], "failed to decode arguments")
	})

	t.Run("panic is recovered", func(t *testing.T) {
		out := decode(t, inv.Invoke(tc, "panicky", "{}"))
		assert.Equal(t, "panic: kaboom", out["error"])
	})

	t.Run("custom payload key", func(t *testing.T) {
		out := decode(t, inv.Invoke(tc, "failing", "{}"))
		assert.Equal(t, "backend down", out["error"])
		assert.Contains(t, out, "data")
		assert.Nil(t, out["data"])
	})

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.NoError(t, obs.calls["echo"])
	assert.Error(t, obs.calls["panicky"])
	assert.Error(t, obs.calls["nope"])
}

func TestFailurePayload(t *testing.T) {
	assert.JSONEq(t, `{"error":"plain","x":null}`, FailurePayload("x", errors.New("plain")))
	assert.JSONEq(t, `{"error":"msg","x":null}`, FailurePayload("x", NewToolError("t", "msg", CodeExecution)))
}

// -------------------- Domain Tool Tests --------------------

func TestPortfolioTool(t *testing.T) {
	store := portfolio.NewInMemoryStore()
	_, err := store.Create(context.Background(), 7, portfolio.Document{
		AssetAllocation: map[string]any{"equity": 60.0, "debt": 40.0},
		RiskAnalysis:    map[string]any{"level": "moderate"},
	}, nil)
	require.NoError(t, err)

	inv, err := NewInvoker([]Tool{NewPortfolioTool(store)})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		out := decode(t, inv.Invoke(userToolCtx(7), PortfolioToolName, `{"user_id":7}`))

		p, ok := out["portfolio"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(7), p["user_id"])
		assert.Equal(t, map[string]any{"level": "moderate"}, p["risk_assessment"])
		assert.Equal(t, map[string]any{}, p["performance_projection"])
		assert.Contains(t, p, "created_at")
		assert.Contains(t, p, "id")
	})

	t.Run("not found", func(t *testing.T) {
		assert.JSONEq(t,
			`{"error":"No portfolio found for this user","portfolio":null}`,
			inv.Invoke(userToolCtx(99), PortfolioToolName, `{"user_id":99}`),
		)
	})

	t.Run("other user", func(t *testing.T) {
		_, err := store.Create(context.Background(), 2, portfolio.Document{
			AssetAllocation: map[string]any{"equity": 100.0},
		}, nil)
		require.NoError(t, err)

		out := inv.Invoke(userToolCtx(7), PortfolioToolName, `{"user_id":2}`)
		assert.JSONEq(t, `{"error":"Portfolio access is limited to the requesting user","portfolio":null}`, out)
		assert.NotContains(t, out, "equity")
	})

	t.Run("no bound user", func(t *testing.T) {
		assert.JSONEq(t,
			`{"error":"No user is associated with this request","portfolio":null}`,
			inv.Invoke(toolCtx(), PortfolioToolName, `{"user_id":7}`),
		)

		unbound := testutil.NewRunBuilder().Binding(BindingUserID, "").ToolContext("fc-2")
		assert.JSONEq(t,
			`{"error":"No user is associated with this request","portfolio":null}`,
			inv.Invoke(unbound, PortfolioToolName, `{"user_id":7}`),
		)
	})

	t.Run("missing user id", func(t *testing.T) {
		out := decode(t, inv.Invoke(toolCtx(), PortfolioToolName, `{}`))
		assert.NotEmpty(t, out["error"])
		assert.Nil(t, out["portfolio"])
	})
}

type failingProvider struct{ err error }

func (f failingProvider) GetUserPortfolio(context.Context, int64) (*portfolio.Portfolio, error) {
	return nil, f.err
}

func TestPortfolioTool_StoreError(t *testing.T) {
	inv, err := NewInvoker([]Tool{NewPortfolioTool(failingProvider{err: portfolio.ErrMalformed})})
	require.NoError(t, err)

	out := decode(t, inv.Invoke(userToolCtx(1), PortfolioToolName, `{"user_id":1}`))
	assert.Contains(t, out["error"], "failed to load portfolio")
	assert.Nil(t, out["portfolio"])
}

func TestResearchTool(t *testing.T) {
	var got search.Query

	provider := search.ProviderFunc(func(ctx context.Context, q search.Query) ([]search.Result, error) {
		got = q

		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(ResearchTimeout), deadline, 5*time.Second)

		results := make([]search.Result, 0, 7)
		for i := 0; i < 7; i++ {
			results = append(results, search.Result{URL: "https://example.in/" + string(rune('a'+i)), Content: "body"})
		}
		return results, nil
	})

	inv, err := NewInvoker([]Tool{NewResearchTool(provider)})
	require.NoError(t, err)

	var out ResearchResult
	require.NoError(t, json.Unmarshal([]byte(inv.Invoke(toolCtx(), ResearchToolName, `{"query":"nifty 50 outlook"}`)), &out))

	assert.Equal(t, "nifty 50 outlook", got.Text)
	assert.Equal(t, ResearchLimit, got.Limit)
	assert.Equal(t, "en", got.Lang)
	assert.Len(t, out.Research.Sources, ResearchLimit)
	assert.Equal(t, "https://example.in/a", out.Research.Sources[0])
	assert.Equal(t, "body", out.Research.KeyFindings[0])
	assert.Equal(t, DataPoint{URL: "https://example.in/a", Content: "body"}, out.Research.DataPoints[0])
}

func TestResearchTool_ProviderErrorYieldsEmptyResearch(t *testing.T) {
	provider := search.ProviderFunc(func(context.Context, search.Query) ([]search.Result, error) {
		return nil, errors.New("quota exceeded")
	})

	inv, err := NewInvoker([]Tool{NewResearchTool(provider)})
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"research":{"sources":[],"key_findings":[],"data_points":[]}}`,
		inv.Invoke(toolCtx(), ResearchToolName, `{"query":"sensex"}`),
	)
}

func TestResearchTool_Options(t *testing.T) {
	var got search.Query

	provider := search.ProviderFunc(func(_ context.Context, q search.Query) ([]search.Result, error) {
		got = q
		return []search.Result{{URL: "https://a.in"}, {URL: "https://b.in"}, {URL: "https://c.in"}}, nil
	})

	inv, err := NewInvoker([]Tool{NewResearchTool(provider, func(o *ResearchOptions) {
		o.Limit = 2
		o.Lang = "hi"
		o.Timeout = 10 * time.Second
	})})
	require.NoError(t, err)

	var out ResearchResult
	require.NoError(t, json.Unmarshal([]byte(inv.Invoke(toolCtx(), ResearchToolName, `{"query":"gold"}`)), &out))

	assert.Equal(t, search.Query{Text: "gold", Limit: 2, Lang: "hi", Timeout: 10 * time.Second}, got)
	assert.Equal(t, []string{"https://a.in", "https://b.in"}, out.Research.Sources)
}
