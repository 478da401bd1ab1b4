package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessages_ToolResultsGoToUserTurn(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewTextContent(core.RoleSystem, "sys"),
		core.NewTextContent(core.RoleUser, "question"),
		{Role: core.RoleAssistant, Parts: []core.Part{
			core.TextPart{Text: "let me check"},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "tu1", Name: "financial_research", Arguments: `{"query":"x"}`}},
		}},
		{Role: core.RoleTool, Parts: []core.Part{
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "tu1", Name: "financial_research", Response: `{"research":{}}`}},
		}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 1)
	assert.NotNil(t, msgs[2].Content[0].OfToolResult)
}

func TestSystemBlocksAndRequired(t *testing.T) {
	blocks := systemBlocks([]core.Content{core.NewTextContent(core.RoleSystem, "persona"), core.NewTextContent(core.RoleUser, "q")})
	require.Len(t, blocks, 1)
	assert.Equal(t, "persona", blocks[0].Text)

	assert.Equal(t, []string{"a"}, requiredFields([]any{"a", 1}))
	assert.Equal(t, []string{"b"}, requiredFields([]string{"b"}))
	assert.Nil(t, requiredFields(nil))
}

func TestGenerate_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [
				{"type": "text", "text": "checking"},
				{"type": "tool_use", "id": "tu1", "name": "financial_research", "input": {"query": "gold"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 3, "output_tokens": 4}
		}`)
	}))
	defer srv.Close()

	client := anthropic.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))
	m := NewModelFromClient(&client)

	resp, err := model.Collect(context.Background(), m, model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleSystem, "sys"), core.NewTextContent(core.RoleUser, "gold?")},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name: "financial_research", Description: "search",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{"query": map[string]any{"type": "string"}}, "required": []any{"query"}},
		}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "checking", resp.Content.Text())
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tu1", calls[0].ID)
	assert.JSONEq(t, `{"query":"gold"}`, calls[0].Arguments)
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.Equal(t, "anthropic", m.Info().Provider)
}

func TestGenerate_ToolChoiceNoneKeepsDeclarations(t *testing.T) {
	var body map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")

		if _, ok := body["tools"]; !ok && strings.Contains(string(raw), `"tool_use"`) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"Requests which include tool_use or tool_result blocks must define tools."}}`)
			return
		}

		_, _ = io.WriteString(w, `{
			"id": "msg_2",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "{\"advice\":{\"analysis\":\"hold\"}}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	client := anthropic.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))
	m := NewModelFromClient(&client)

	resp, err := model.Collect(context.Background(), m, model.Request{
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "gold?"),
			{Role: core.RoleAssistant, Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "tu1", Name: "financial_research", Arguments: `{"query":"gold"}`}},
			}},
			{Role: core.RoleTool, Parts: []core.Part{
				core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "tu1", Name: "financial_research", Response: `{"research":{}}`}},
			}},
			core.NewTextContent(core.RoleUser, "Give your best final answer now."),
		},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name: "financial_research", Description: "search",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{"query": map[string]any{"type": "string"}}},
		}}},
		ToolChoice: model.ToolChoiceNone,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"advice":{"analysis":"hold"}}`, resp.Content.Text())

	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 1)
	assert.Equal(t, map[string]any{"type": "none"}, body["tool_choice"])
}

func TestGenerate_DefaultToolChoiceIsOmitted(t *testing.T) {
	var body map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_3","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022",
			"content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer srv.Close()

	client := anthropic.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))

	_, err := model.Collect(context.Background(), NewModelFromClient(&client), model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name: "financial_research", Parameters: map[string]any{"type": "object"},
		}}},
	})
	require.NoError(t, err)
	assert.Contains(t, body, "tools")
	assert.NotContains(t, body, "tool_choice")
}
