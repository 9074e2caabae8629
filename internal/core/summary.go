package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AggregateSnapshot holds the dashboard totals derived from a ledger.
type AggregateSnapshot struct {
	TotalBalance        decimal.Decimal `json:"total_balance"`
	MonthlyIncome       decimal.Decimal `json:"monthly_income"`
	MonthlyExpenses     decimal.Decimal `json:"monthly_expenses"`
	MonthlyTotalSavings decimal.Decimal `json:"monthly_total_savings"`
}

// CategoryAmount represents an expense total aggregated by category.
type CategoryAmount struct {
	Category Category        `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Percent  decimal.Decimal `json:"percent"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year     int             `json:"year"`
	Month    int             `json:"month"` // 1-12
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Savings  decimal.Decimal `json:"savings"`
}

// IsExpense reports whether c counts towards expenses. Anything that is not
// income or savings does, including categories outside the known set.
func (c Category) IsExpense() bool {
	return c != Income && c != Savings
}

// ComputeAggregates derives the snapshot from scratch. The result does not
// depend on the order of txs.
func ComputeAggregates(txs []Transaction) AggregateSnapshot {
	income, expenses, savings := decimal.Zero, decimal.Zero, decimal.Zero
	for _, t := range txs {
		switch {
		case t.Category == Income:
			income = income.Add(t.Amount)
		case t.Category == Savings:
			savings = savings.Add(t.Amount)
		default:
			expenses = expenses.Add(t.Amount)
		}
	}
	return AggregateSnapshot{
		TotalBalance:        income.Sub(expenses).Add(savings),
		MonthlyIncome:       income,
		MonthlyExpenses:     expenses,
		MonthlyTotalSavings: savings,
	}
}

// CategoryBreakdown sums expenses per category, largest first. Percent is the
// share of total expenses rounded to one decimal place.
func CategoryBreakdown(txs []Transaction) []CategoryAmount {
	totals := make(map[Category]decimal.Decimal)
	total := decimal.Zero
	for _, t := range txs {
		if !t.Category.IsExpense() {
			continue
		}
		totals[t.Category] = totals[t.Category].Add(t.Amount)
		total = total.Add(t.Amount)
	}

	out := make([]CategoryAmount, 0, len(totals))
	hundred := decimal.NewFromInt(100)
	for c, amt := range totals {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = amt.Mul(hundred).Div(total).Round(1)
		}
		out = append(out, CategoryAmount{Category: c, Amount: amt, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// MonthlyTrend buckets txs into the last months calendar months ending with
// the month of now, oldest first. Transactions outside the window are ignored.
func MonthlyTrend(txs []Transaction, months int, now time.Time) []MonthOverview {
	if months <= 0 {
		return nil
	}
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	out := make([]MonthOverview, months)
	for i := range out {
		m := start.AddDate(0, i, 0)
		out[i] = MonthOverview{
			Year:     m.Year(),
			Month:    int(m.Month()),
			Income:   decimal.Zero,
			Expenses: decimal.Zero,
			Savings:  decimal.Zero,
		}
	}

	for _, t := range txs {
		d := t.Date.UTC()
		idx := (d.Year()-start.Year())*12 + int(d.Month()) - int(start.Month())
		if idx < 0 || idx >= months {
			continue
		}
		switch {
		case t.Category == Income:
			out[idx].Income = out[idx].Income.Add(t.Amount)
		case t.Category == Savings:
			out[idx].Savings = out[idx].Savings.Add(t.Amount)
		default:
			out[idx].Expenses = out[idx].Expenses.Add(t.Amount)
		}
	}
	return out
}

// Recent returns at most n leading transactions of a most-recent-first list.
func Recent(txs []Transaction, n int) []Transaction {
	if n < 0 || len(txs) <= n {
		return txs
	}
	return txs[:n]
}
