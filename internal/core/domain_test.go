package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		if !c.Valid() {
			t.Fatalf("expected %q to be valid", c)
		}
	}
	for _, c := range []Category{"", "Food", "groceries"} {
		if c.Valid() {
			t.Fatalf("expected %q to be invalid", c)
		}
	}
	if got := Healthcare.Label(); got != "Healthcare" {
		t.Fatalf("Label() = %q", got)
	}
}

func TestNewTransactionValidate(t *testing.T) {
	good := NewTransaction{
		Amount:      decimal.NewFromInt(250),
		Category:    Food,
		Description: "groceries",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	atLimit := good
	atLimit.Amount = decimal.NewFromInt(10_000_000)
	if err := atLimit.Validate(); err != nil {
		t.Fatalf("expected amount at limit to be accepted, got %v", err)
	}

	cases := []struct {
		name  string
		tx    NewTransaction
		field string
		err   error
	}{
		{"zero amount", NewTransaction{Amount: decimal.Zero, Category: Food, Description: "a"}, "amount", ErrInvalidAmount},
		{"negative amount", NewTransaction{Amount: decimal.NewFromInt(-5), Category: Food, Description: "a"}, "amount", ErrInvalidAmount},
		{"amount too large", NewTransaction{Amount: decimal.RequireFromString("10000000.01"), Category: Food, Description: "a"}, "amount", ErrAmountTooLarge},
		{"empty category", NewTransaction{Amount: decimal.NewFromInt(1), Category: "", Description: "a"}, "category", ErrEmptyCategory},
		{"unknown category", NewTransaction{Amount: decimal.NewFromInt(1), Category: "crypto", Description: "a"}, "category", ErrInvalidCategory},
		{"blank description", NewTransaction{Amount: decimal.NewFromInt(1), Category: Food, Description: "   "}, "description", ErrEmptyDescription},
		{"long description", NewTransaction{Amount: decimal.NewFromInt(1), Category: Food, Description: strings.Repeat("x", 501)}, "description", ErrDescriptionTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tx.Validate()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestInsightTypeValid(t *testing.T) {
	for _, it := range []InsightType{InsightSuccess, InsightWarning, InsightInfo} {
		if !it.Valid() {
			t.Fatalf("expected %q valid", it)
		}
	}
	if InsightType("danger").Valid() {
		t.Fatalf("expected danger invalid")
	}
}
