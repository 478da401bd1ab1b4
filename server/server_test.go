package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/finmesh/advisor"
	"github.com/hupe1980/finmesh/answer"
	"github.com/hupe1980/finmesh/metrics"
	"github.com/hupe1980/finmesh/portfolio"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type mockAdvisor struct {
	mock.Mock
}

func (m *mockAdvisor) Advise(ctx context.Context, query string, userID *int64) advisor.Result {
	args := m.Called(ctx, query, userID)
	return args.Get(0).(advisor.Result)
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) Health(ctx context.Context) error { return f(ctx) }

func resolved(text string) advisor.Result {
	return advisor.Result{
		Answer:  answer.Answer{Answer: text, Sources: []string{"https://www.nseindia.com"}, Timestamp: now},
		Outcome: answer.OutcomeResolved,
		RunID:   "run-42",
	}
}

func userID(id int64) any {
	return mock.MatchedBy(func(got *int64) bool { return got != nil && *got == id })
}

var noUser = mock.MatchedBy(func(got *int64) bool { return got == nil })

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChat(t *testing.T) {
	t.Run("answers query", func(t *testing.T) {
		adv := new(mockAdvisor)
		adv.On("Advise", mock.Anything, "Should I buy Nifty index funds?", noUser).Return(resolved("Yes, for the long term."))

		rec := do(t, NewHandler(adv), http.MethodPost, "/api/chat", `{"query":"Should I buy Nifty index funds?"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "run-42", rec.Header().Get("X-Run-ID"))
		assert.Equal(t, "resolved", rec.Header().Get("X-Advice-Outcome"))
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "Yes, for the long term.", got["answer"])
		assert.Equal(t, []any{"https://www.nseindia.com"}, got["sources"])
		assert.Equal(t, "2025-06-01T12:00:00Z", got["timestamp"])

		adv.AssertExpectations(t)
	})

	t.Run("user id from body", func(t *testing.T) {
		adv := new(mockAdvisor)
		adv.On("Advise", mock.Anything, "q", userID(7)).Return(resolved("a"))

		rec := do(t, NewHandler(adv), http.MethodPost, "/api/chat", `{"query":"q","user_id":7}`, map[string]string{UserIDHeader: "9"})
		assert.Equal(t, http.StatusOK, rec.Code)
		adv.AssertExpectations(t)
	})

	t.Run("user id from header", func(t *testing.T) {
		adv := new(mockAdvisor)
		adv.On("Advise", mock.Anything, "q", userID(9)).Return(resolved("a"))

		rec := do(t, NewHandler(adv), http.MethodPost, "/api/chat", `{"query":"  q  "}`, map[string]string{UserIDHeader: "9"})
		assert.Equal(t, http.StatusOK, rec.Code)
		adv.AssertExpectations(t)
	})

	t.Run("apology is still 200", func(t *testing.T) {
		adv := new(mockAdvisor)
		adv.On("Advise", mock.Anything, "q", noUser).Return(advisor.Result{
			Answer:  answer.Apology(now),
			Outcome: answer.OutcomePipelineFailed,
		})

		rec := do(t, NewHandler(adv), http.MethodPost, "/api/chat", `{"query":"q"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), answer.ApologyText)
		assert.Equal(t, "pipeline_failed", rec.Header().Get("X-Advice-Outcome"))
	})

	bad := []struct {
		name   string
		body   string
		header map[string]string
	}{
		{"invalid json", `{"query":`, nil},
		{"empty body", ``, nil},
		{"empty query", `{"query":"   "}`, nil},
		{"invalid header", `{"query":"q"}`, map[string]string{UserIDHeader: "abc"}},
	}

	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			adv := new(mockAdvisor)

			rec := do(t, NewHandler(adv), http.MethodPost, "/api/chat", tt.body, tt.header)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var got errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.NotEmpty(t, got.Error)
			adv.AssertNotCalled(t, "Advise", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("wrong method", func(t *testing.T) {
		rec := do(t, NewHandler(new(mockAdvisor)), http.MethodGet, "/api/chat", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestPortfolioRoutes(t *testing.T) {
	store := portfolio.NewInMemoryStore()
	h := NewHandler(new(mockAdvisor), func(o *Options) { o.Portfolios = store })

	rec := do(t, h, http.MethodGet, "/api/portfolios/5", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/portfolios",
		`{"user_id":5,"portfolio":{"asset_allocation":{"equity":60},"risk_analysis":{"score":"moderate"}}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/portfolios/5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var p portfolio.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, int64(5), p.UserID)
	assert.Equal(t, map[string]any{"equity": 60.0}, p.AssetAllocation)
	assert.Equal(t, map[string]any{"score": "moderate"}, p.RiskAssessment)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/portfolios/abc", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/portfolios", `{"user_id":0}`, nil).Code)
}

func TestPortfolioRoutes_DisabledWithoutStore(t *testing.T) {
	rec := do(t, NewHandler(new(mockAdvisor)), http.MethodGet, "/api/portfolios/5", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHandler(new(mockAdvisor), func(o *Options) {
			o.Version = "v1.2.3"
			o.Checks = map[string]HealthChecker{"database": checkFunc(func(context.Context) error { return nil })}
		})

		rec := do(t, h, http.MethodGet, "/healthz", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "healthy", got.Status)
		assert.Equal(t, "v1.2.3", got.Version)
		assert.Equal(t, "healthy", got.Checks["database"].Status)
	})

	t.Run("unhealthy", func(t *testing.T) {
		h := NewHandler(new(mockAdvisor), func(o *Options) {
			o.Checks = map[string]HealthChecker{
				"database": checkFunc(func(context.Context) error { return nil }),
				"redis":    checkFunc(func(context.Context) error { return errors.New("connection refused") }),
			}
		})

		rec := do(t, h, http.MethodGet, "/healthz", "", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var got healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "unhealthy", got.Status)
		assert.Equal(t, "connection refused", got.Checks["redis"].Error)
		assert.Equal(t, "healthy", got.Checks["database"].Status)
	})
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.ObserveAdvice(answer.OutcomeResolved, time.Second)

	rec := do(t, NewHandler(new(mockAdvisor), func(o *Options) { o.Metrics = m }), http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `finmesh_advice_requests_total{outcome="resolved"} 1`)

	rec = do(t, NewHandler(new(mockAdvisor)), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoverer(t *testing.T) {
	adv := new(mockAdvisor)
	adv.On("Advise", mock.Anything, "q", noUser).Run(func(mock.Arguments) { panic("boom") })

	rec := do(t, NewHandler(adv), http.MethodPost, "/api/chat", `{"query":"q"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	rec := do(t, NewHandler(new(mockAdvisor)), http.MethodGet, "/healthz", "", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}
