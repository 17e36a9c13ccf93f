// Package errs enumerates the typed error taxonomy the decision core uses
// so callers can errors.As instead of matching on strings.
package errs

import "fmt"

// Kind classifies an error into one of the taxonomy buckets the cycle
// orchestrator and its callers branch on.
type Kind string

const (
	KindConfiguration       Kind = "configuration"
	KindDataFetch           Kind = "data_fetch"
	KindFeatureComputation  Kind = "feature_computation"
	KindModelLoad           Kind = "model_load"
	KindModelInference      Kind = "model_inference"
	KindExchangeAPI         Kind = "exchange_api"
	KindExchangeRateLimit   Kind = "exchange_rate_limit"
	KindExchangeAuth        Kind = "exchange_auth"
	KindRiskRejection       Kind = "risk_rejection"
	KindAtomicEntryFailure  Kind = "atomic_entry_failure"
)

// Error wraps an underlying cause with a Kind and the component that
// raised it, so logs and metrics can bucket failures consistently.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Component, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed Error.
func New(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

// Is allows errors.Is(err, &errs.Error{Kind: errs.KindRiskRejection})
// matching via a sentinel wrapper: a target with a non-empty Kind
// matches by Kind alone, and a target with an empty Kind matches any
// *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}
