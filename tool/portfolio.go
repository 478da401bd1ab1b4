package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/portfolio"
)

// PortfolioToolName is the name the portfolio lookup is exposed under.
const PortfolioToolName = "view_user_portfolio"

// BindingUserID is the run binding holding the requesting user's id. The
// portfolio tool only serves that user.
const BindingUserID = "user_id"

type portfolioArgs struct {
	UserID int64 `json:"user_id" jsonschema:"description=ID of the user whose portfolio should be returned"`
}

// NewPortfolioTool returns the view_user_portfolio tool backed by provider.
//
// Successful calls yield {"portfolio": {...}}. When the user has no stored
// portfolio the tool fails with "No portfolio found for this user", which the
// Invoker reports as {"error": "...", "portfolio": null}. Lookups are scoped
// to the int64 id bound under BindingUserID; runs without a bound user and
// requests for any other id are rejected.
func NewPortfolioTool(provider portfolio.Provider) *FunctionTool {
	return NewTypedTool(
		PortfolioToolName,
		"View the latest stored investment portfolio of a user, including asset allocation, performance projection and risk assessment.",
		func(tc *core.ToolContext, args portfolioArgs) (any, error) {
			if err := authorize(tc, args.UserID); err != nil {
				return nil, err
			}

			p, err := provider.GetUserPortfolio(tc.Context(), args.UserID)
			if err != nil {
				if errors.Is(err, portfolio.ErrNotFound) {
					return nil, NewToolError(PortfolioToolName, "No portfolio found for this user", CodeNotFound)
				}
				return nil, fmt.Errorf("failed to load portfolio: %w", err)
			}

			return map[string]any{"portfolio": p}, nil
		},
	).WithPayloadKey("portfolio")
}

func authorize(tc *core.ToolContext, userID int64) error {
	v, _ := tc.Binding(BindingUserID)

	bound, ok := v.(int64)
	if !ok || bound == 0 {
		return NewToolError(PortfolioToolName, "No user is associated with this request", CodeNotFound)
	}

	if userID != bound {
		tc.LogWarn("tool.portfolio.denied", "bound_user_id", bound, "requested_user_id", userID)
		return NewToolError(PortfolioToolName, "Portfolio access is limited to the requesting user", CodeValidation)
	}

	return nil
}
