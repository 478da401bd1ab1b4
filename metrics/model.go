package metrics

import (
	"context"
	"time"

	"github.com/hupe1980/finmesh/model"
)

// instrumentedModel records call counts, latency and token usage of a model.
type instrumentedModel struct {
	next    model.Model
	metrics *Metrics
}

// InstrumentModel wraps m so every Generate call is recorded.
func InstrumentModel(m model.Model, metrics *Metrics) model.Model {
	return &instrumentedModel{next: m, metrics: metrics}
}

func (im *instrumentedModel) Info() model.Info { return im.next.Info() }

func (im *instrumentedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	info := im.next.Info()
	start := time.Now()

	inResp, inErr := im.next.Generate(ctx, req)

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		var failed error

		for inResp != nil || inErr != nil {
			select {
			case r, ok := <-inResp:
				if !ok {
					inResp = nil
					continue
				}
				if !r.Partial && r.Usage != nil {
					im.metrics.ModelTokens.WithLabelValues(info.Provider, info.Name, "prompt").Add(float64(r.Usage.PromptTokens))
					im.metrics.ModelTokens.WithLabelValues(info.Provider, info.Name, "completion").Add(float64(r.Usage.CompletionTokens))
				}
				select {
				case respCh <- r:
				case <-ctx.Done():
					failed = ctx.Err()
					inResp = nil
				}
			case err, ok := <-inErr:
				if !ok {
					inErr = nil
					continue
				}
				if err != nil {
					failed = err
					errCh <- err
				}
			}
		}

		status := "success"
		if failed != nil {
			status = "error"
		}

		im.metrics.ModelCalls.WithLabelValues(info.Provider, info.Name, status).Inc()
		im.metrics.ModelLatency.WithLabelValues(info.Provider, info.Name).Observe(time.Since(start).Seconds())
	}()

	return respCh, errCh
}
