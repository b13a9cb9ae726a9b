package enrich

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not_found")
	ErrCredentialMissing = errors.New("credential_missing")
	ErrAlreadyProcessing = errors.New("already_processing")

	ErrTimeout            = errors.New("provider timeout")
	ErrServiceUnavailable = errors.New("provider service unavailable")
	ErrNetwork            = errors.New("provider network error")
	ErrCircuitOpen        = errors.New("circuit open")

	ErrResponseParse = errors.New("response contains no json object")
	ErrJSONParse     = errors.New("response json is malformed")
	ErrEmptyResult   = errors.New("response carries no enrichment fields")
)

// FailureKind classifies a failed provider call.
type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureTimeout
	FailureServiceUnavailable
	FailureNetwork
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureServiceUnavailable:
		return "service_unavailable"
	case FailureNetwork:
		return "network_error"
	default:
		return "other"
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case FailureTimeout:
		return ErrTimeout
	case FailureServiceUnavailable:
		return ErrServiceUnavailable
	case FailureNetwork:
		return ErrNetwork
	default:
		return nil
	}
}

// ProviderError is a classified provider failure.
//
// It matches its kind's sentinel (ErrTimeout, ErrServiceUnavailable, ErrNetwork)
// and the underlying cause with errors.Is.
type ProviderError struct {
	Kind FailureKind
	// Quota marks rate-limit/quota exhaustion, the only failure that moves on to
	// the next credential.
	Quota bool
	Err   error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Err == nil {
		return "provider " + e.Kind.String()
	}
	return fmt.Sprintf("provider %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// IsQuota reports whether err is a quota-class provider failure.
func IsQuota(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Quota
}

// KindOf returns the failure kind of err, or FailureOther when err is not classified.
func KindOf(err error) FailureKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return FailureOther
}
