package insights

import (
	"errors"
	"fmt"
)

// Kind classifies a failed insight request.
type Kind int

const (
	RateLimited Kind = iota + 1
	QuotaExhausted
	GenerationFailed
)

func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case QuotaExhausted:
		return "quota_exhausted"
	case GenerationFailed:
		return "generation_failed"
	default:
		return "unknown"
	}
}

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrQuotaExhausted   = errors.New("quota exhausted")
	ErrGenerationFailed = errors.New("generation failed")
)

// User-facing messages for each failure kind.
const (
	MsgRateLimited      = "Rate limit exceeded. Please try again later."
	MsgQuotaExhausted   = "Payment required. Please add credits to your workspace."
	MsgGenerationFailed = "Failed to generate insights"
)

// StatusError is returned by generators when the upstream answers with a
// non-success HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generator returned status %d: %s", e.StatusCode, e.Body)
}

// Failure is the only error type Pipeline.Request returns.
type Failure struct {
	Kind       Kind
	StatusCode int    // upstream status, 0 for transport errors
	Body       string // upstream body, if any
	Err        error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case RateLimited:
		return MsgRateLimited
	case QuotaExhausted:
		return MsgQuotaExhausted
	}
	if f.StatusCode != 0 {
		return fmt.Sprintf("insight generation failed: status %d: %s", f.StatusCode, f.Body)
	}
	if f.Err != nil {
		return "insight generation failed: " + f.Err.Error()
	}
	return "insight generation failed"
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func (f *Failure) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return f.Kind == RateLimited
	case ErrQuotaExhausted:
		return f.Kind == QuotaExhausted
	case ErrGenerationFailed:
		return f.Kind == GenerationFailed
	}
	return false
}

// Message returns the text shown to the user for this failure.
func (f *Failure) Message() string {
	switch f.Kind {
	case RateLimited:
		return MsgRateLimited
	case QuotaExhausted:
		return MsgQuotaExhausted
	default:
		return MsgGenerationFailed
	}
}

// classify maps a generator error onto the failure taxonomy.
func classify(err error) *Failure {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case 429:
			return &Failure{Kind: RateLimited, StatusCode: se.StatusCode, Body: se.Body, Err: err}
		case 402:
			return &Failure{Kind: QuotaExhausted, StatusCode: se.StatusCode, Body: se.Body, Err: err}
		default:
			return &Failure{Kind: GenerationFailed, StatusCode: se.StatusCode, Body: se.Body, Err: err}
		}
	}
	return &Failure{Kind: GenerationFailed, Err: err}
}
