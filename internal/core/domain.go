package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Food          Category = "food"
	Transport     Category = "transport"
	Shopping      Category = "shopping"
	Entertainment Category = "entertainment"
	Housing       Category = "housing"
	Utilities     Category = "utilities"
	Healthcare    Category = "healthcare"
	Education     Category = "education"
	Income        Category = "income"
	Savings       Category = "savings"
	Investment    Category = "investment"
	Other         Category = "other"
)

const (
	InsightSuccess InsightType = "success"
	InsightWarning InsightType = "warning"
	InsightInfo    InsightType = "info"
)

// Entry limits enforced before anything reaches the ledger.
const (
	MaxDescriptionLength = 500
)

// MaxAmount is the largest single entry accepted.
var MaxAmount = decimal.NewFromInt(10_000_000)

type (
	Category string

	InsightType string

	// Transaction is a persisted ledger entry owned by one user.
	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"user_id"`
		Amount      decimal.Decimal `json:"amount"`
		Category    Category        `json:"category"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
	}

	// NewTransaction is the user-supplied part of an entry.
	NewTransaction struct {
		Amount      decimal.Decimal `json:"amount"`
		Category    Category        `json:"category"`
		Description string          `json:"description"`
	}

	Insight struct {
		Type        InsightType `json:"type"`
		Title       string      `json:"title"`
		Description string      `json:"description"`
	}
)

// Categories lists every category in display order.
var Categories = []Category{
	Food, Transport, Shopping, Entertainment, Housing, Utilities,
	Healthcare, Education, Income, Savings, Investment, Other,
}

var (
	ErrValidation = errors.New("validation error")

	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrAmountTooLarge     = errors.New("amount too large")
	ErrEmptyCategory      = errors.New("category is required")
	ErrInvalidCategory    = errors.New("unknown category")
	ErrEmptyDescription   = errors.New("description is required")
	ErrDescriptionTooLong = errors.New("description too long")
)

// ValidationError reports the first invalid field of an entry.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	switch c {
	case Food, Transport, Shopping, Entertainment, Housing, Utilities,
		Healthcare, Education, Income, Savings, Investment, Other:
		return true
	}
	return false
}

// Label returns the category name with its first letter upper-cased.
func (c Category) Label() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

func (t InsightType) Valid() bool {
	switch t {
	case InsightSuccess, InsightWarning, InsightInfo:
		return true
	}
	return false
}

func (n NewTransaction) Validate() error {
	if !n.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if n.Amount.GreaterThan(MaxAmount) {
		return &ValidationError{Field: "amount", Err: ErrAmountTooLarge}
	}
	if strings.TrimSpace(string(n.Category)) == "" {
		return &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	if !n.Category.Valid() {
		return &ValidationError{Field: "category", Err: ErrInvalidCategory}
	}
	if strings.TrimSpace(n.Description) == "" {
		return &ValidationError{Field: "description", Err: ErrEmptyDescription}
	}
	if utf8.RuneCountInString(n.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Err: ErrDescriptionTooLong}
	}
	return nil
}
