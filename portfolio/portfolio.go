// Package portfolio stores user portfolios and exposes the read access the
// advice pipeline needs: the latest portfolio of a user and the reduced
// Context that grounds the advisor.
package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a user has no stored portfolio.
	ErrNotFound = errors.New("portfolio not found")
	// ErrMalformed is returned when a stored portfolio document cannot be decoded.
	ErrMalformed = errors.New("malformed portfolio document")
)

// Provider resolves the latest portfolio of a user.
type Provider interface {
	GetUserPortfolio(ctx context.Context, userID int64) (*Portfolio, error)
}

// Store is a Provider that can also persist new portfolios.
type Store interface {
	Provider
	Create(ctx context.Context, userID int64, doc Document, userProfile map[string]any) (*Portfolio, error)
}

// Document is the stored portfolio_json payload as produced by the wealth
// management planner. Unknown keys are preserved by the store but ignored here.
type Document struct {
	AssetAllocation       map[string]any `json:"asset_allocation,omitempty"`
	PerformanceProjection map[string]any `json:"performance_projection,omitempty"`
	RiskAnalysis          map[string]any `json:"risk_analysis,omitempty"`
}

// ParseDocument decodes a portfolio_json payload.
func ParseDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}

// Portfolio is the view of a stored portfolio exposed to tools. Missing
// sections are reported as empty objects.
type Portfolio struct {
	ID                    int64          `json:"id"`
	UserID                int64          `json:"user_id"`
	AssetAllocation       map[string]any `json:"asset_allocation"`
	PerformanceProjection map[string]any `json:"performance_projection"`
	RiskAssessment        map[string]any `json:"risk_assessment"`
	CreatedAt             time.Time      `json:"created_at"`
}

// FromDocument builds a Portfolio from a stored document. The document's
// risk_analysis section is exposed as RiskAssessment.
func FromDocument(id, userID int64, doc Document, createdAt time.Time) *Portfolio {
	return &Portfolio{
		ID:                    id,
		UserID:                userID,
		AssetAllocation:       orEmpty(doc.AssetAllocation),
		PerformanceProjection: orEmpty(doc.PerformanceProjection),
		RiskAssessment:        orEmpty(doc.RiskAnalysis),
		CreatedAt:             createdAt,
	}
}

// Context is the subset of a portfolio injected into the advice run.
type Context struct {
	AssetAllocation       map[string]any `json:"asset_allocation"`
	RiskAssessment        map[string]any `json:"risk_assessment"`
	PerformanceProjection map[string]any `json:"performance_projection"`
}

// Context reduces the portfolio to its advice grounding context.
func (p *Portfolio) Context() Context {
	return Context{
		AssetAllocation:       orEmpty(p.AssetAllocation),
		RiskAssessment:        orEmpty(p.RiskAssessment),
		PerformanceProjection: orEmpty(p.PerformanceProjection),
	}
}

// JSON serializes the context for use as a prompt binding.
func (c Context) JSON() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode portfolio context: %w", err)
	}
	return string(raw), nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// clone returns a deep copy of p.
func clone(p *Portfolio) *Portfolio {
	raw, err := json.Marshal(p)
	if err != nil {
		cp := *p
		return &cp
	}
	var cp Portfolio
	if err := json.Unmarshal(raw, &cp); err != nil {
		cp = *p
	}
	return &cp
}
