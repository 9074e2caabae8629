package insights

import (
	"strings"

	"financeai/internal/core"
)

// MaxTransactions bounds how many transactions are sent to the generator.
const MaxTransactions = 20

const systemPrompt = "You are a financial advisor AI for an Indian finance tracking app. " +
	"Analyze the user's transactions and provide personalized insights, warnings, and recommendations. " +
	"All amounts are in Indian Rupees (₹). Focus on Indian financial context and savings culture. " +
	"Be concise, actionable, and encouraging."

const responseShape = `Provide insights in JSON format:
{
  "insights": [
    {
      "type": "success" | "warning" | "info",
      "title": "Brief title",
      "description": "Actionable insight"
    }
  ]
}`

// Payload is what a Generator sends upstream.
type Payload struct {
	System string
	User   string
	// Count is the number of transactions summarized in User.
	Count int
}

// Bound keeps at most MaxTransactions leading entries. Callers pass the
// ledger most recent first.
func Bound(txs []core.Transaction) []core.Transaction {
	if len(txs) > MaxTransactions {
		return txs[:MaxTransactions]
	}
	return txs
}

// SummaryLine renders one transaction as "<category>: ₹<amount> - <description>".
func SummaryLine(t core.Transaction) string {
	return string(t.Category) + ": " + core.FormatRupees(t.Amount) + " - " + t.Description
}

// Summarize renders one line per transaction.
func Summarize(txs []core.Transaction) string {
	lines := make([]string, len(txs))
	for i, t := range txs {
		lines[i] = SummaryLine(t)
	}
	return strings.Join(lines, "\n")
}

// BuildPayload bounds txs and wraps their summary in the advisor prompts.
func BuildPayload(txs []core.Transaction) Payload {
	bounded := Bound(txs)
	var b strings.Builder
	b.WriteString("Analyze these recent transactions and provide 3 key insights:\n")
	b.WriteString(Summarize(bounded))
	b.WriteString("\n\n")
	b.WriteString(responseShape)
	return Payload{
		System: systemPrompt,
		User:   b.String(),
		Count:  len(bounded),
	}
}
