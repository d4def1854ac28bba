package search

// FallbackReason says why a strategy handed its query to the identifier
// path instead of answering it.
type FallbackReason string

const (
	ReasonInvalidPattern    FallbackReason = "invalid_pattern"
	ReasonEngineFailure     FallbackReason = "engine_failure"
	ReasonMalformedKeys     FallbackReason = "malformed_keys"
	ReasonNoIdentifierMatch FallbackReason = "no_identifier_match"
)

// outcome is what a strategy returns: either rows, or a request to fall back
// together with the reason and, for engine failures, the cause.
type outcome[T any] struct {
	rows   []T
	reason FallbackReason
	cause  error
}

func answered[T any](rows []T) outcome[T] {
	if rows == nil {
		rows = []T{}
	}
	return outcome[T]{rows: rows}
}

func fallback[T any](reason FallbackReason, cause error) outcome[T] {
	return outcome[T]{reason: reason, cause: cause}
}

func (o outcome[T]) needsFallback() bool { return o.reason != "" }
