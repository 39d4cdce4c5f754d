// Package prompts builds the LLM prompts used to turn natural language into SQL.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-querycache/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// SQLGenerationSystemMessage instructs the model to answer with a single JSON object.
const SQLGenerationSystemMessage = `You translate questions about a relational database into a single read-only SQL query.
Respond with JSON only, in this exact shape:
{"sql": "<one SELECT statement, no trailing semicolon>", "intent": "<short description of what the query answers>", "tables": ["<table>", ...]}
Never write INSERT, UPDATE, DELETE, DDL, or more than one statement.`

// SQLGenerationResponse is the JSON object the model is asked to return.
type SQLGenerationResponse struct {
	SQL    string                       `json:"sql"`
	Intent jsonutil.FlexibleString      `json:"intent"`
	Tables jsonutil.FlexibleStringSlice `json:"tables"`
}

// BuildSQLGenerationPrompt creates the user prompt for one natural-language query.
// Context values are rendered as JSON in sorted key order so identical inputs
// produce identical prompts.
func BuildSQLGenerationPrompt(naturalQuery, dialect string, qctx models.QueryContext, maxRows int) string {
	var prompt strings.Builder

	prompt.WriteString("# SQL Generation\n\n")
	prompt.WriteString(fmt.Sprintf("Target dialect: %s\n", dialect))
	if maxRows > 0 {
		prompt.WriteString(fmt.Sprintf("At most %d rows will be returned; prefer aggregated answers over raw listings.\n", maxRows))
	}

	if qctx.Len() > 0 {
		prompt.WriteString("\n## Execution context\n\n")
		prompt.WriteString("Restrict the query to this context where the schema allows it:\n\n")
		for _, key := range qctx.Keys() {
			v, _ := qctx.Get(key)
			rendered, err := json.Marshal(v)
			if err != nil {
				rendered = []byte(fmt.Sprintf("%q", fmt.Sprint(v)))
			}
			prompt.WriteString(fmt.Sprintf("- %s: %s\n", key, rendered))
		}
	}

	prompt.WriteString("\n## Question\n\n")
	prompt.WriteString(strings.TrimSpace(naturalQuery))
	prompt.WriteString("\n")

	return prompt.String()
}
