package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/finmesh/core"
)

// Observer receives the outcome of every tool invocation.
type Observer interface {
	ObserveToolCall(tool string, duration time.Duration, err error)
}

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	Observer Observer
}

// Invoker resolves tools by name and runs them on behalf of a model. Invoke
// never fails: unknown tools, malformed arguments, tool errors and panics
// are all reported inside the returned JSON string as
// {"error": "...", "<payload key>": null}.
type Invoker struct {
	tools    map[string]Tool
	order    []string
	observer Observer
}

// NewInvoker builds an Invoker over tools. Tool names must be unique.
func NewInvoker(tools []Tool, optFns ...func(o *InvokerOptions)) (*Invoker, error) {
	var opts InvokerOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	inv := &Invoker{
		tools:    make(map[string]Tool, len(tools)),
		order:    make([]string, 0, len(tools)),
		observer: opts.Observer,
	}

	for _, t := range tools {
		if t == nil {
			return nil, errors.New("nil tool")
		}
		if _, exists := inv.tools[t.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		inv.tools[t.Name()] = t
		inv.order = append(inv.order, t.Name())
	}

	return inv, nil
}

// Tools returns the registered tools in registration order.
func (inv *Invoker) Tools() []Tool {
	out := make([]Tool, 0, len(inv.order))
	for _, name := range inv.order {
		out = append(out, inv.tools[name])
	}
	return out
}

// Lookup returns the tool registered under name.
func (inv *Invoker) Lookup(name string) (Tool, bool) {
	t, ok := inv.tools[name]
	return t, ok
}

// Invoke runs the named tool with JSON encoded args and returns the JSON
// encoded result or failure payload.
func (inv *Invoker) Invoke(toolCtx *core.ToolContext, name, args string) string {
	start := time.Now()

	payloadKey := DefaultPayloadKey

	out, err := func() (out string, err error) {
		t, ok := inv.tools[name]
		if !ok {
			return "", NewToolError(name, fmt.Sprintf("tool %s not found", name), CodeNotFound)
		}

		if pk, ok := t.(PayloadKeyer); ok && pk.PayloadKey() != "" {
			payloadKey = pk.PayloadKey()
		}

		argMap := map[string]any{}
		if args != "" {
			if err := json.Unmarshal([]byte(args), &argMap); err != nil {
				return "", NewToolError(name, fmt.Sprintf("failed to decode arguments: %v", err), CodeValidation)
			}
		}

		defer func() {
			if r := recover(); r != nil {
				toolCtx.LogError("tool.call.panic", "tool", name, "recover", r, "stack", string(debug.Stack()))
				err = NewToolError(name, fmt.Sprintf("panic: %v", r), CodePanic)
			}
		}()

		result, err := t.Call(toolCtx, argMap)
		if err != nil {
			return "", err
		}

		return encodeResult(result)
	}()

	if inv.observer != nil {
		inv.observer.ObserveToolCall(name, time.Since(start), err)
	}

	if err != nil {
		toolCtx.LogInfo("tool.invoke.failed", "tool", name, "error", err.Error())
		return FailurePayload(payloadKey, err)
	}

	return out
}

// FailurePayload encodes err as {"error": msg, payloadKey: null}.
func FailurePayload(payloadKey string, err error) string {
	msg := err.Error()

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		msg = toolErr.Message
	}

	raw, mErr := json.Marshal(map[string]any{"error": msg, payloadKey: nil})
	if mErr != nil {
		return `{"error":"failed to encode tool error"}`
	}

	return string(raw)
}

func encodeResult(result any) (string, error) {
	if s, ok := result.(string); ok && json.Valid([]byte(s)) {
		return s, nil
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}

	return string(raw), nil
}
