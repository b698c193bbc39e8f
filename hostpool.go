// Package hostpool dispatches requests across a set of interchangeable server
// endpoints. Healthy hosts are selected in round robin order; a host whose
// request fails is quarantined for an escalating cool-down while the request
// is transparently retried against a different host, so callers see a single
// reliable dispatch operation even when individual endpoints are flaky.
package hostpool

import (
	"context"
	"net/url"
)

// Pool is the main interface. A Pool partitions its registered hosts into an
// available set (eligible for selection) and a disabled set (quarantined,
// each with a scheduled re-admission time), and keeps the union constant.
type Pool interface {
	// Dispatch sends one logical request. It selects the next available host
	// in round robin order, invokes the transport against it, and on failure
	// quarantines the host and retries against a different one, at most once
	// per registered host. Bodies are opaque; params are appended to the
	// request URL.
	Dispatch(ctx context.Context, method, path string, params url.Values, body []byte) (*Response, error)

	// AddHost registers a new host as available. The base URL is the host's
	// identity; registering a URL the pool already knows fails with
	// DuplicateHostError.
	AddHost(rawURL string) error

	// RemoveHost unregisters a host from whichever set currently holds it.
	// Removing an unknown URL fails with HostNotFoundError.
	RemoveHost(rawURL string) error

	// HostsAvailable returns the base URLs of hosts currently eligible for
	// selection, in selection order. The snapshot is a copy.
	HostsAvailable() []string

	// HostsDisabled returns the base URLs of hosts currently quarantined,
	// sorted. The snapshot is a copy.
	HostsDisabled() []string

	// Statistics returns a sample of properties of the pool that are useful
	// to monitor, such as the number of registered and available hosts.
	Statistics() Statistics

	// Close stops the background reclaimer, if any. Dispatch after Close
	// returns ErrPoolClosed. Close is idempotent.
	Close()
}
