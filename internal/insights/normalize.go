package insights

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"financeai/internal/core"
)

const (
	rawPreviewLength = 200

	titleNoJSON    = "Analysis Complete"
	titleBadJSON   = "Spending Analysis"
	fallbackAdvice = "Based on your recent transactions, continue monitoring your spending patterns."
)

type rawInsight struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type rawResponse struct {
	Insights *[]rawInsight `json:"insights"`
}

// extractObject returns the span from the first '{' to the last '}' after it.
func extractObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start == -1 {
		return "", false
	}
	end := strings.LastIndex(raw, "}")
	if end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// Normalize turns free-form generator output into a list of insights. It
// never fails: output without a JSON object becomes a single informational
// insight carrying the text, and output whose JSON cannot be used becomes a
// generic one.
func Normalize(raw string) []core.Insight {
	span, ok := extractObject(raw)
	if !ok {
		return []core.Insight{{
			Type:        core.InsightInfo,
			Title:       titleNoJSON,
			Description: truncateRunes(raw, rawPreviewLength),
		}}
	}

	var parsed rawResponse
	if err := json.Unmarshal([]byte(span), &parsed); err != nil || parsed.Insights == nil {
		return []core.Insight{spendingFallback()}
	}

	entries := *parsed.Insights
	out := make([]core.Insight, 0, len(entries))
	for _, e := range entries {
		in, ok := coerce(e)
		if !ok {
			continue
		}
		out = append(out, in)
	}
	if len(entries) > 0 && len(out) == 0 {
		return []core.Insight{spendingFallback()}
	}
	return out
}

// coerce drops entries without a title or description and maps unknown
// types to info.
func coerce(e rawInsight) (core.Insight, bool) {
	title := strings.TrimSpace(e.Title)
	desc := strings.TrimSpace(e.Description)
	if title == "" || desc == "" {
		return core.Insight{}, false
	}
	t := core.InsightType(strings.ToLower(strings.TrimSpace(e.Type)))
	if !t.Valid() {
		t = core.InsightInfo
	}
	return core.Insight{Type: t, Title: title, Description: desc}, true
}

func spendingFallback() core.Insight {
	return core.Insight{Type: core.InsightInfo, Title: titleBadJSON, Description: fallbackAdvice}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
