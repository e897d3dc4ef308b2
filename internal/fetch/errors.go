package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies why a fetch failed.
type Kind int

const (
	// KindProvider covers transport failures and provider-side errors.
	KindProvider Kind = iota + 1
	// KindTimeout means the request exceeded the fetch timeout.
	KindTimeout
	// KindUnconfigured means no provider credential is set; no I/O happened.
	KindUnconfigured
)

func (k Kind) String() string {
	switch k {
	case KindProvider:
		return "provider_error"
	case KindTimeout:
		return "timeout"
	case KindUnconfigured:
		return "unconfigured"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FetchError is the only error type returned by Fetcher.Fetch.
type FetchError struct {
	Kind Kind
	// Status is the provider's HTTP status, zero for transport failures.
	Status int
	// Details is a human-readable reason suitable for API clients.
	Details string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("fetch %s: %s", e.Kind, e.Details)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
	}
	return "fetch " + e.Kind.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or zero when err is not a
// *FetchError.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// classify turns a raw provider error into a *FetchError. expired reports
// whether the fetch deadline has passed.
func classify(err error, expired bool) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if expired || errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Details: "request timed out", Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &FetchError{Kind: KindTimeout, Details: "request timed out", Err: err}
	}
	return &FetchError{Kind: KindProvider, Details: err.Error(), Err: err}
}
