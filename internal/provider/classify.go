package provider

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/shpitdev/crm-enricher/internal/enrich"
	"google.golang.org/genai"
)

// Classify turns a failed call into an *enrich.ProviderError.
//
// Typed errors (genai.APIError, net.Error, context deadlines) are trusted first.
// Anything else falls back to looking for status codes and well-known markers in the
// message, since third-party SDKs and proxies do not agree on error types.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *enrich.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, enrich.ErrCircuitOpen) {
		return &enrich.ProviderError{Kind: enrich.FailureServiceUnavailable, Err: err}
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Status, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &enrich.ProviderError{Kind: enrich.FailureTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &enrich.ProviderError{Kind: enrich.FailureOther, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return &enrich.ProviderError{Kind: enrich.FailureTimeout, Err: err}
		}
		return &enrich.ProviderError{Kind: enrich.FailureNetwork, Err: err}
	}
	return classifyMessage(err)
}

func classifyStatus(code int, status string, err error) error {
	switch {
	case code == 429 || strings.EqualFold(status, "RESOURCE_EXHAUSTED"):
		return &enrich.ProviderError{Kind: enrich.FailureServiceUnavailable, Quota: true, Err: err}
	case code == 408:
		return &enrich.ProviderError{Kind: enrich.FailureTimeout, Err: err}
	case code/100 == 5:
		return &enrich.ProviderError{Kind: enrich.FailureServiceUnavailable, Err: err}
	default:
		return &enrich.ProviderError{Kind: enrich.FailureOther, Err: err}
	}
}

var (
	quotaMarkers       = []string{"429", "quota", "resource_exhausted", "resource exhausted", "rate limit", "too many requests"}
	unavailableMarkers = []string{"500", "502", "503", "504", "unavailable", "overloaded", "internal server error", "bad gateway"}
	timeoutMarkers     = []string{"timeout", "timed out", "deadline exceeded"}
	networkMarkers     = []string{"connection refused", "connection reset", "no such host", "network", "dial tcp", "eof", "tls handshake"}
)

func classifyMessage(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, quotaMarkers):
		return &enrich.ProviderError{Kind: enrich.FailureServiceUnavailable, Quota: true, Err: err}
	case containsAny(msg, unavailableMarkers):
		return &enrich.ProviderError{Kind: enrich.FailureServiceUnavailable, Err: err}
	case containsAny(msg, timeoutMarkers):
		return &enrich.ProviderError{Kind: enrich.FailureTimeout, Err: err}
	case containsAny(msg, networkMarkers):
		return &enrich.ProviderError{Kind: enrich.FailureNetwork, Err: err}
	default:
		return &enrich.ProviderError{Kind: enrich.FailureOther, Err: err}
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
