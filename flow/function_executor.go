package flow

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/tool"
)

// FunctionExecutor executes a batch of function calls requested in one model
// turn. Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never panic (recover internally and report the failure as a result)
//   - Return exactly one FunctionResponse per incoming FunctionCall
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, fnCalls []core.FunctionCall) []core.FunctionResponse
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(fnCalls))
	PreserveOrder  bool // if true, results are returned in call order, else in completion order
	LogStartEvents bool // log a start line per function
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	fnCalls []core.FunctionCall,
) []core.FunctionResponse {
	n := len(fnCalls)
	if n == 0 {
		return nil
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		return []core.FunctionResponse{e.executeOne(runCtx, agent, fnCalls[0])}
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		ordered   = make([]core.FunctionResponse, n)
		completed = make([]core.FunctionResponse, 0, n)
	)

	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()

	for i := range fnCalls {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			resp := e.executeOne(runCtx, agent, fc)

			mu.Lock()
			ordered[idx] = resp
			completed = append(completed, resp)
			mu.Unlock()
		}(i, fnCalls[i])
	}

	wg.Wait()

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	if e.cfg.PreserveOrder {
		return ordered
	}

	return completed
}

func (e *parallelFunctionExecutor) executeOne(runCtx *core.RunContext, agent FlowAgent, fc core.FunctionCall) core.FunctionResponse {
	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name}

	if err := runCtx.Err(); err != nil {
		resp.Response = tool.FailurePayload(tool.DefaultPayloadKey, err)
		return resp
	}

	toolCtx := core.NewToolContext(runCtx, fc.ID)

	if e.cfg.LogStartEvents {
		toolCtx.LogInfo("agent.function.start", "function", fc.Name)
	}

	start := time.Now()

	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				toolCtx.LogError("agent.function.panic", "function", fc.Name, "recover", r, "stack", string(debug.Stack()))
				resp.Response = tool.FailurePayload(tool.DefaultPayloadKey, fmt.Errorf("panic: %v", r))
			}
		}()
		resp.Response = agent.ExecuteTool(toolCtx, fc.Name, fc.Arguments)
	}()

	toolCtx.LogInfo(
		"agent.function.executed",
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return resp
}
