package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/finmesh/advisor"
	"github.com/hupe1980/finmesh/portfolio"
)

// UserIDHeader carries the caller's user id when the body omits it.
const UserIDHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

// Advisor answers advice requests.
type Advisor interface {
	Advise(ctx context.Context, query string, userID *int64) advisor.Result
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type chatRequest struct {
	Query  string `json:"query"`
	UserID *int64 `json:"user_id,omitempty"`
}

type portfolioRequest struct {
	UserID      int64              `json:"user_id"`
	Portfolio   portfolio.Document `json:"portfolio"`
	UserProfile map[string]any     `json:"user_profile,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type componentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status  string                     `json:"status"`
	Version string                     `json:"version,omitempty"`
	Uptime  string                     `json:"uptime"`
	Checks  map[string]componentHealth `json:"checks,omitempty"`
}

// handleChat answers POST /api/chat. Once the request is valid the response
// is always 200: pipeline failures are reported through the apology answer.
func (h *handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	if req.UserID == nil {
		if raw := strings.TrimSpace(r.Header.Get(UserIDHeader)); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				h.writeError(w, http.StatusBadRequest, "invalid "+UserIDHeader+" header")
				return
			}
			req.UserID = &id
		}
	}

	res := h.advisor.Advise(r.Context(), req.Query, req.UserID)

	w.Header().Set("X-Run-ID", res.RunID)
	w.Header().Set("X-Advice-Outcome", string(res.Outcome))
	h.writeJSON(w, http.StatusOK, res.Answer)
}

func (h *handler) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.UserID <= 0 {
		h.writeError(w, http.StatusBadRequest, "user_id must be positive")
		return
	}

	p, err := h.portfolios.Create(r.Context(), req.UserID, req.Portfolio, req.UserProfile)
	if err != nil {
		h.logger.Error("server.portfolio.create_failed", "user_id", req.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to store portfolio")
		return
	}

	h.writeJSON(w, http.StatusCreated, p)
}

func (h *handler) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("userID"), 10, 64)
	if err != nil || userID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	p, err := h.portfolios.GetUserPortfolio(r.Context(), userID)
	if errors.Is(err, portfolio.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no portfolio found for this user")
		return
	}
	if err != nil {
		h.logger.Error("server.portfolio.load_failed", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

// handleHealth runs every registered check. Any failing check turns the
// response into 503.
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:  "healthy",
		Version: h.version,
		Uptime:  h.now().Sub(h.started).Round(time.Second).String(),
	}

	status := http.StatusOK

	if len(h.checks) > 0 {
		resp.Checks = make(map[string]componentHealth, len(h.checks))
		for name, check := range h.checks {
			if err := check.Health(ctx); err != nil {
				resp.Checks[name] = componentHealth{Status: "unhealthy", Error: err.Error()}
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = componentHealth{Status: "healthy"}
		}
	}

	if status != http.StatusOK {
		h.logger.Warn("server.health.failed", "checks", resp.Checks)
	}

	h.writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("server.response.write_failed", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}
