package llm

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/holmes-py/JS-DeepLens/internal/models"
)

const (
	maxFindingContextLength   = 500
	maxHeuristicContextLength = 1500
)

var promptTemplate = template.Must(template.New("prompt").Parse(
	`Analyze the following **complete** JavaScript file. {{.FindingContext}}{{if .HeuristicContext}}

Additional Context from AST Analysis:
{{.HeuristicContext}}{{end}}

Focus on these points based on the **entire script**:
1. API Endpoint Identification: Describe any web API endpoints defined, called, or referenced. Include:
    - Probable full URL paths (reconstruct if possible, use placeholders like {id}). Attempt to resolve relative paths based on the source URL if applicable.
    - Probable HTTP methods (GET, POST, PUT, DELETE, etc.).
    - Any identifiable path or query parameters.
2. Secrets/Credentials: Identify potential hardcoded secrets, API keys (e.g., AWS, Google Maps, Stripe), tokens (e.g., JWT), credentials, or other sensitive identifiers **anywhere in the script**. State the potential type if identifiable.
3. Brief Explanation: Explain the script's primary purpose, especially concerning any identified endpoints or secrets.

Be concise. Format the output clearly using markdown. If no obvious endpoints or secrets are found in the **entire script**, state "No specific endpoints or secrets identified in this script."

Full JavaScript Code:
` + "```javascript\n{{.Script}}\n```\n"))

type promptData struct {
	FindingContext   string
	HeuristicContext string
	Script           string
}

// DefaultPrompt renders the standard analysis prompt for req.
func DefaultPrompt(req Request) (string, error) {
	findingContext := fmt.Sprintf("Original Finding Context:\n- Source URL: %s\n- Finding Trigger: %s\n- Original Rule/Pattern: %s",
		orNA(req.SourceURL), orNA(req.FindingType), orNA(req.Pattern))
	data := promptData{
		FindingContext: clip(findingContext, maxFindingContextLength, "... (context truncated)"),
		Script:         req.ScriptText,
	}
	if req.HeuristicSummary != "" {
		data.HeuristicContext = clip(req.HeuristicSummary, maxHeuristicContextLength, "... (AST context truncated)")
	}

	var sb strings.Builder
	if err := promptTemplate.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// BuildHeuristicSummary condenses syntax findings and extracted endpoints into
// the prior context handed to the model.
func BuildHeuristicSummary(findings []models.ASTFinding, endpoints []models.ExtractedEndpoint) string {
	var sb strings.Builder
	if len(findings) == 0 {
		sb.WriteString("AST found no items.")
	} else {
		sb.WriteString("AST found:")
		for _, f := range findings {
			fmt.Fprintf(&sb, "\n- Type: %s, Src: %s, Det: %s, Match: %s",
				f.Kind, orNA(f.SourceURL), orNA(prefix(f.Detail, 50)), orNA(prefix(f.MatchedText, 100)))
		}
	}
	if len(endpoints) > 0 {
		sb.WriteString("\nEndpoints extracted:")
		for _, e := range endpoints {
			method := e.Method
			if method == "" {
				method = "?"
			}
			fmt.Fprintf(&sb, "\n- %s %s (%s)", method, e.URL, e.Type)
		}
	}
	return sb.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clip(s string, n int, suffix string) string {
	p := prefix(s, n)
	if p == s {
		return s
	}
	return p + suffix
}
