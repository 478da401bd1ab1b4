package advisor

import "github.com/hupe1980/finmesh/tool"

// Binding keys available to task templates.
const (
	BindingQuery         = "query"
	BindingUserID        = tool.BindingUserID
	BindingPortfolioData = "portfolio_data"
)

// Bindings builds the crew inputs of one advice request. user_id and
// portfolio_data are always present so templates can test them with
// {{if}}; they are empty strings when unknown.
func Bindings(query string, userID *int64, portfolioData string) map[string]any {
	b := map[string]any{
		BindingQuery:         query,
		BindingUserID:        "",
		BindingPortfolioData: portfolioData,
	}

	if id, ok := validUserID(userID); ok {
		b[BindingUserID] = id
	}

	return b
}

// validUserID treats nil and zero ids as absent.
func validUserID(userID *int64) (int64, bool) {
	if userID == nil || *userID == 0 {
		return 0, false
	}
	return *userID, true
}
