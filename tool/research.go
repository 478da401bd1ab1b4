package tool

import (
	"context"
	"time"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/search"
)

// ResearchToolName is the name the market research tool is exposed under.
const ResearchToolName = "financial_research"

// Research limits applied to every search.
const (
	ResearchLimit   = 5
	ResearchLang    = "en"
	ResearchTimeout = 60 * time.Second
)

type researchArgs struct {
	Query string `json:"query" jsonschema:"description=Search query about Indian financial markets"`
}

// DataPoint pairs a source URL with the content found there.
type DataPoint struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Research is the payload of the research tool. Sources, KeyFindings and
// DataPoints are parallel: entry i of each describes search result i.
type Research struct {
	Sources     []string    `json:"sources"`
	KeyFindings []string    `json:"key_findings"`
	DataPoints  []DataPoint `json:"data_points"`
}

// ResearchResult wraps Research under the "research" key.
type ResearchResult struct {
	Research Research `json:"research"`
}

// EmptyResearch returns the research structure with no content.
func EmptyResearch() ResearchResult {
	return ResearchResult{Research: Research{
		Sources:     []string{},
		KeyFindings: []string{},
		DataPoints:  []DataPoint{},
	}}
}

// ResearchOptions bounds the searches issued by the research tool.
type ResearchOptions struct {
	Limit   int
	Lang    string
	Timeout time.Duration
}

// NewResearchTool returns the financial_research tool backed by provider.
// Searches default to ResearchLimit results, ResearchLang and
// ResearchTimeout; provider errors yield EmptyResearch instead of failing the
// call.
func NewResearchTool(provider search.Provider, optFns ...func(o *ResearchOptions)) *FunctionTool {
	opts := ResearchOptions{
		Limit:   ResearchLimit,
		Lang:    ResearchLang,
		Timeout: ResearchTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return NewTypedTool(
		ResearchToolName,
		"Research current information about Indian financial markets, companies, mutual funds and regulations using web search.",
		func(tc *core.ToolContext, args researchArgs) (any, error) {
			ctx, cancel := context.WithTimeout(tc.Context(), opts.Timeout)
			defer cancel()

			results, err := provider.Search(ctx, search.Query{
				Text:    args.Query,
				Limit:   opts.Limit,
				Lang:    opts.Lang,
				Timeout: opts.Timeout,
			})
			if err != nil {
				tc.LogWarn("research.search_failed", "error", err.Error())
				return EmptyResearch(), nil
			}

			out := EmptyResearch()
			for i, r := range results {
				if i >= opts.Limit {
					break
				}
				out.Research.Sources = append(out.Research.Sources, r.URL)
				out.Research.KeyFindings = append(out.Research.KeyFindings, r.Content)
				out.Research.DataPoints = append(out.Research.DataPoints, DataPoint{URL: r.URL, Content: r.Content})
			}

			return out, nil
		},
	).WithPayloadKey("research")
}
