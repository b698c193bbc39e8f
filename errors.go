package hostpool

import (
	"errors"
	"fmt"
)

// ErrPoolClosed is returned by Dispatch after Close.
var ErrPoolClosed = errors.New("hostpool: pool is closed")

// DuplicateHostError reports registration of a URL the pool already knows.
type DuplicateHostError struct {
	URL string
}

func (e *DuplicateHostError) Error() string {
	return fmt.Sprintf("hostpool: host %s already registered", e.URL)
}

// HostNotFoundError reports removal of a URL the pool does not know.
type HostNotFoundError struct {
	URL string
}

func (e *HostNotFoundError) Error() string {
	return fmt.Sprintf("hostpool: host %s not registered", e.URL)
}

// NoHostsAvailableError is returned when every registered host is currently
// quarantined. Dispatch fails fast rather than waiting for a cool-down to
// elapse; callers may retry at their own pace.
type NoHostsAvailableError struct{}

func (e *NoHostsAvailableError) Error() string {
	return "hostpool: no hosts available"
}

// TransportError reports a network-level failure against a single host. It is
// absorbed by the pool (the host is quarantined and the request retried
// elsewhere) and only surfaces as the cause inside AllHostsFailedError.
type TransportError struct {
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hostpool: request to %s failed: %v", e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports an HTTP status inside the configured failure range.
// Like TransportError it is absorbed into pool state.
type StatusError struct {
	Host       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hostpool: host %s returned status %d", e.Host, e.StatusCode)
}

// AllHostsFailedError is returned once a request has been attempted against
// every registered host without success. LastErr holds the most recent
// per-host failure for diagnostics.
type AllHostsFailedError struct {
	Attempts int
	LastErr  error
}

func (e *AllHostsFailedError) Error() string {
	return fmt.Sprintf("hostpool: all hosts failed after %d attempts, last error: %v", e.Attempts, e.LastErr)
}

func (e *AllHostsFailedError) Unwrap() error { return e.LastErr }
