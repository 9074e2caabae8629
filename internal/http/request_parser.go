// Package http exposes the ledger, dashboard and insights over a JSON API.
//
// This file turns request bodies and query strings into domain values.
// Bodies may be JSON or form-encoded.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"financeai/internal/core"
)

// MaxBodyBytes caps every request body.
const MaxBodyBytes = 64 << 10

// RequestBodyParser reads a request body once and exposes its fields
// whether it was sent as JSON or as a form.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]json.RawMessage
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	return p
}

// Parse decodes the body. JSON is assumed when the body starts with '{'.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]json.RawMessage)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = err
		}
		return p.err
	}
	if trimmed[0] == '[' {
		p.err = errors.New("request body must be an object")
		return p.err
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a sanitized string field. JSON numbers and booleans are
// returned in their literal form.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		raw, ok := p.jsonData[key]
		if !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return sanitizeInput(s)
		}
		lit := strings.TrimSpace(string(raw))
		if lit == "null" {
			return ""
		}
		return sanitizeInput(lit)
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Raw returns the undecoded JSON value of key.
func (p *RequestBodyParser) Raw(key string) (json.RawMessage, bool) {
	raw, ok := p.jsonData[key]
	return raw, ok
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// ParseNewTransaction reads an entry from the body. A malformed amount is
// reported as a validation error on the amount field; range and category
// checks are left to NewTransaction.Validate.
func ParseNewTransaction(r *http.Request) (core.NewTransaction, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.NewTransaction{}, fmt.Errorf("%w: %v", errMalformedBody, err)
	}

	n := core.NewTransaction{
		Category:    core.Category(strings.ToLower(p.Get("category"))),
		Description: p.Get("description"),
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return n, &core.ValidationError{Field: "amount", Err: err}
	}
	n.Amount = amount
	return n, nil
}

// insightsRequest is the body of POST /api/insights.
type insightsRequest struct {
	Transactions []struct {
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	} `json:"transactions"`
}

// ParseInsightsRequest reads the transactions to analyse. Entries are not
// validated beyond their JSON shape.
func ParseInsightsRequest(r *http.Request, userID string) ([]core.Transaction, error) {
	var req insightsRequest
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	txs := make([]core.Transaction, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		txs = append(txs, core.Transaction{
			UserID:      userID,
			Amount:      t.Amount,
			Category:    core.Category(t.Category),
			Description: t.Description,
		})
	}
	return txs, nil
}

// ParseLimit reads ?limit=N, falling back to def when absent. Values above
// max are clamped.
func ParseLimit(q url.Values, def, max int) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}
