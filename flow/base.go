package flow

import (
	"errors"
	"fmt"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/model"
)

// FinalTurnInstruction is appended to the conversation when the turn budget
// is spent while the model still requests tools.
const FinalTurnInstruction = "You have used all available tool calls for this task. " +
	"Do not call any more tools. Give your best final answer now, in the requested format."

// ErrEmptyResponse is returned when the model produces neither text nor tool
// calls.
var ErrEmptyResponse = errors.New("model returned an empty response")

// BaseFlow is a single-agent flow implementation that supports a
// request -> LLM -> (optional tool loop) cycle with pluggable pre/post processors.
type BaseFlow struct {
	agent              FlowAgent
	executor           FunctionExecutor
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
}

// NewBaseFlow creates a new basic single-agent flow. Tool calls of one model
// turn run in parallel and are reported back in call order.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		executor:           NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model turn.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the executor used for tool calls.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.executor = executor
}

// Run records instruction as the user turn of the task and loops model turns
// until a final answer is produced. Each turn consumes one unit of
// runCtx.Budget; once the budget is spent, one last turn with tool calls
// disabled is granted so the task always ends with text. Model failures are returned
// unchanged in meaning and end the task.
func (f *BaseFlow) Run(runCtx *core.RunContext, instruction string) (string, error) {
	name := f.agent.GetName()

	runCtx.Record(core.NewContentEvent("user", core.NewTextContent(core.RoleUser, instruction)))

	for {
		if err := runCtx.Err(); err != nil {
			return "", err
		}

		if !runCtx.Budget.Take() {
			runCtx.LogWarn("agent.turn_budget.exhausted", "spent", runCtx.Budget.Spent())
			runCtx.Record(core.NewContentEvent("system", core.NewTextContent(core.RoleUser, FinalTurnInstruction)))

			resp, err := f.turn(runCtx, false)
			if err != nil {
				return "", err
			}

			return resp.Content.Text(), nil
		}

		resp, err := f.turn(runCtx, true)
		if err != nil {
			return "", err
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			text := resp.Content.Text()
			if text == "" {
				runCtx.Record(core.NewErrorEvent(name, ErrEmptyResponse))
				return "", ErrEmptyResponse
			}
			return text, nil
		}

		responses := f.executor.Execute(runCtx, f.agent, calls)

		parts := make([]core.Part, 0, len(responses))
		for _, r := range responses {
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: r})
		}

		runCtx.Record(core.NewContentEvent(name, core.Content{Role: core.RoleTool, Parts: parts}))
	}
}

// turn performs one model call and records the resulting assistant content.
// Without tools the declarations are still sent and ToolChoiceNone is set.
func (f *BaseFlow) turn(runCtx *core.RunContext, withTools bool) (model.Response, error) {
	name := f.agent.GetName()

	req := new(model.Request)

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			err = fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
			runCtx.Record(core.NewErrorEvent(name, err))
			return model.Response{}, err
		}
	}

	if !withTools {
		req.ToolChoice = model.ToolChoiceNone
	}

	llm := f.agent.GetLLM()

	resp, err := model.Collect(runCtx.Context, llm, *req)
	if err != nil {
		err = fmt.Errorf("model %s failed: %w", llm.Info().Name, err)
		runCtx.Record(core.NewErrorEvent(name, err))
		return model.Response{}, err
	}

	for _, processor := range f.responseProcessors {
		if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
			err = fmt.Errorf("response processor %s failed: %w", processor.Name(), err)
			runCtx.Record(core.NewErrorEvent(name, err))
			return model.Response{}, err
		}
	}

	if !withTools && len(resp.Content.FunctionCalls()) > 0 {
		// Tool calls requested after the budget ran out are dropped.
		resp.Content = core.NewTextContent(core.RoleAssistant, resp.Content.Text())
	}

	resp.Content.Role = core.RoleAssistant
	runCtx.Record(core.NewContentEvent(name, resp.Content))

	fields := []any{"finish_reason", resp.FinishReason, "function_calls", len(resp.Content.FunctionCalls())}
	if resp.Usage != nil {
		fields = append(fields, "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	}

	runCtx.LogDebug("agent.turn.complete", fields...)

	return resp, nil
}
