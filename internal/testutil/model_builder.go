package testutil

import (
	"encoding/json"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/model"
)

// Script queues model turns on a MockModel. Example:
//
//	m := NewScript().Call("financial_research", map[string]any{"query": "nifty"}).Text(`{"research":{}}`).Model()
type Script struct {
	m *model.MockModel
}

// NewScript creates an empty script over a fresh MockModel.
func NewScript() *Script { return &Script{m: model.NewMockModel("scripted", "mock")} }

// Text queues a final text turn (chainable).
func (s *Script) Text(text string) *Script {
	s.m.EnqueueText(text)
	return s
}

// Call queues a turn requesting a single tool call (chainable).
func (s *Script) Call(name string, args map[string]any) *Script {
	raw, _ := json.Marshal(args)
	s.m.EnqueueFunctionCalls(core.FunctionCall{ID: "call-" + name, Name: name, Arguments: string(raw)})
	return s
}

// Fail makes every subsequent turn fail with err (chainable).
func (s *Script) Fail(err error) *Script {
	s.m.FailWith(err)
	return s
}

// Model returns the scripted model.
func (s *Script) Model() *model.MockModel { return s.m }
