package insights

import "errors"

// State is the lifecycle of one insight request as seen by a dashboard.
type State string

const (
	StateIdle             State = "idle"
	StateRequesting       State = "requesting"
	StateSucceeded        State = "succeeded"
	StateRateLimited      State = "rate_limited"
	StateQuotaExhausted   State = "quota_exhausted"
	StateGenerationFailed State = "generation_failed"
)

// StateOf maps the outcome of Pipeline.Request to its terminal state.
func StateOf(err error) State {
	switch {
	case err == nil:
		return StateSucceeded
	case errors.Is(err, ErrRateLimited):
		return StateRateLimited
	case errors.Is(err, ErrQuotaExhausted):
		return StateQuotaExhausted
	default:
		return StateGenerationFailed
	}
}

// Terminal reports whether no request is outstanding in s.
func (s State) Terminal() bool {
	return s != StateRequesting
}
