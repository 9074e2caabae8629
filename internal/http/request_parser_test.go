package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"financeai/internal/core"
)

func TestParseNewTransaction(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        core.NewTransaction
		wantField   string
		wantMalform bool
	}{
		{
			name:        "json with string amount",
			contentType: "application/json",
			body:        `{"amount":"1500.50","category":"Food","description":"  Groceries "}`,
			want:        core.NewTransaction{Amount: decimal.RequireFromString("1500.5"), Category: core.Food, Description: "Groceries"},
		},
		{
			name:        "json with numeric amount",
			contentType: "application/json",
			body:        `{"amount":99.999,"category":"transport","description":"Cab"}`,
			want:        core.NewTransaction{Amount: decimal.RequireFromString("100"), Category: core.Transport, Description: "Cab"},
		},
		{
			name:        "form encoded with comma decimal",
			contentType: "application/x-www-form-urlencoded",
			body:        url.Values{"amount": {"12,34"}, "category": {"income"}, "description": {"Refund"}}.Encode(),
			want:        core.NewTransaction{Amount: decimal.RequireFromString("12.34"), Category: core.Income, Description: "Refund"},
		},
		{
			name:        "control characters stripped",
			contentType: "application/json",
			body:        `{"amount":"1","category":"other","description":"a\u0000b"}`,
			want:        core.NewTransaction{Amount: decimal.NewFromInt(1), Category: core.Other, Description: "ab"},
		},
		{
			name:        "missing amount",
			contentType: "application/json",
			body:        `{"category":"food","description":"x"}`,
			wantField:   "amount",
		},
		{
			name:        "negative amount",
			contentType: "application/json",
			body:        `{"amount":"-5","category":"food","description":"x"}`,
			wantField:   "amount",
		},
		{
			name:        "malformed json",
			contentType: "application/json",
			body:        `{"amount":`,
			wantMalform: true,
		},
		{
			name:        "array body",
			contentType: "application/json",
			body:        `[1,2]`,
			wantMalform: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)

			got, err := ParseNewTransaction(r)
			switch {
			case tt.wantMalform:
				if !errors.Is(err, errMalformedBody) {
					t.Fatalf("error = %v, want malformed body", err)
				}
			case tt.wantField != "":
				var verr *core.ValidationError
				if !errors.As(err, &verr) || verr.Field != tt.wantField {
					t.Fatalf("error = %v, want validation error on %s", err, tt.wantField)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !got.Amount.Equal(tt.want.Amount) || got.Category != tt.want.Category || got.Description != tt.want.Description {
					t.Errorf("got %+v, want %+v", got, tt.want)
				}
			}
		})
	}
}

func TestParseInsightsRequest(t *testing.T) {
	body := `{"transactions":[{"category":"food","amount":1500,"description":"Groceries"},{"category":"rent","amount":"20000","description":"Flat"}]}`
	r := httptest.NewRequest(http.MethodPost, "/api/insights", strings.NewReader(body))

	txs, err := ParseInsightsRequest(r, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Fatalf("len = %d, want 2", len(txs))
	}
	if txs[0].UserID != "user-1" || !txs[0].Amount.Equal(decimal.NewFromInt(1500)) || txs[1].Category != "rent" {
		t.Errorf("unexpected transactions %+v", txs)
	}

	r = httptest.NewRequest(http.MethodPost, "/api/insights", strings.NewReader(`not json`))
	if _, err := ParseInsightsRequest(r, "u"); !errors.Is(err, errMalformedBody) {
		t.Errorf("error = %v, want malformed body", err)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 10, false},
		{"limit=5", 5, false},
		{"limit=9999", 500, false},
		{"limit=0", 0, true},
		{"limit=abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseLimit(q, 10, 500)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
