package advisor

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Task names of the advice crew.
const (
	ResearchTaskName = "research"
	AdviceTaskName   = "advice"
)

// AgentDefinition describes a persona.
type AgentDefinition struct {
	Role          string `toml:"role"`
	Goal          string `toml:"goal"`
	Backstory     string `toml:"backstory"`
	MaxIterations int    `toml:"max_iterations"`
}

// TaskDefinition describes a task template. Description is a text/template
// over the bindings query, user_id and portfolio_data.
type TaskDefinition struct {
	Description    string `toml:"description"`
	ExpectedOutput string `toml:"expected_output"`
}

// Definitions holds the personas and task templates of the advice crew.
type Definitions struct {
	Researcher AgentDefinition `toml:"researcher"`
	Advisor    AgentDefinition `toml:"advisor"`
	Research   TaskDefinition  `toml:"research"`
	Advice     TaskDefinition  `toml:"advice"`
}

// DefaultDefinitions returns the built-in personas and task templates.
func DefaultDefinitions() Definitions {
	return Definitions{
		Researcher: AgentDefinition{
			Role: "Indian Financial Market Researcher",
			Goal: "Gather and analyze financial information specific to Indian markets",
			Backstory: "You are an expert financial researcher specializing in Indian markets " +
				"with deep knowledge of SEBI regulations, Indian market dynamics, and local financial terminology. " +
				"You use various tools to collect and verify financial information relevant to Indian investors. " +
				"If the user has asked a query that doesn't need to be searched then do not call a tool.",
		},
		Advisor: AgentDefinition{
			Role: "Indian Financial Advisor",
			Goal: "Provide accurate and helpful financial advice based on Indian market research",
			Backstory: "You are a certified financial advisor with expertise in Indian personal finance and investments. " +
				"You understand SEBI regulations, Indian tax laws, and local market conditions. " +
				"You analyze research data to provide clear, actionable advice suitable for Indian investors.",
		},
		Research: TaskDefinition{
			Description:    researchDescription,
			ExpectedOutput: "Research findings with sources and data points specific to Indian markets",
		},
		Advice: TaskDefinition{
			Description:    adviceDescription,
			ExpectedOutput: "Comprehensive financial advice with supporting data specific to Indian markets",
		},
	}
}

// LoadDefinitions reads a TOML file and overlays it on DefaultDefinitions.
// Keys missing from the file keep their defaults.
//
//	[advisor]
//	max_iterations = 4
//
//	[advice]
//	expected_output = "Short advice in JSON"
func LoadDefinitions(path string) (Definitions, error) {
	defs := DefaultDefinitions()

	raw, err := os.ReadFile(path)
	if err != nil {
		return defs, fmt.Errorf("read definitions: %w", err)
	}

	if err := toml.Unmarshal(raw, &defs); err != nil {
		return defs, fmt.Errorf("parse definitions %s: %w", path, err)
	}

	return defs, nil
}

const userContext = `
{{- if .user_id}}

User ID: {{.user_id}}
{{- end}}
{{- if .portfolio_data}}

The user's current portfolio (asset allocation, risk assessment, performance projection):
{{.portfolio_data}}
{{- end}}`

const researchDescription = `Research the financial query using available tools, focusing on Indian markets.

Query: {{.query}}` + userContext + `

Requirements:
1. Use the financial research tool to find relevant Indian market information
2. Gather data from Indian financial sources
3. Verify the accuracy of information against Indian market data
4. Organize findings by topic, considering Indian market context
5. Use the portfolio tool only when the query is about the user's own investments

Return a JSON object with the following structure:
{
    "research": {
        "sources": ["Source 1", "Source 2"],
        "key_findings": ["Finding 1", "Finding 2"],
        "data_points": ["Data 1", "Data 2"]
    }
}`

const adviceDescription = `Provide financial advice based on the research findings, focusing on Indian markets. Return dynamic answers that can be easily understood by a layperson.

Query: {{.query}}` + userContext + `

Requirements:
1. Analyze the research findings in Indian market context
2. Provide clear, actionable advice suitable for Indian investors
3. Support recommendations with Indian market data
4. Consider Indian tax implications and regulations
5. Format the response professionally
6. If the query can be answered without looking anything up, do not call a tool
7. If the user sent a greeting or a question unrelated to financial advice, answer that you are not able to assist with that since you are a financial analyst, using the same JSON format

Return a JSON object with the following structure:
{
    "advice": {
        "analysis": "Detailed analysis of the situation in Indian context",
        "recommendations": ["Recommendation 1", "Recommendation 2"],
        "supporting_data": ["Data point 1", "Data point 2"],
        "sources": ["Source 1", "Source 2"]
    }
}`
