package hostpool

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ------ defaults -------------------

const (
	defaultBaseDelay        = 500 * time.Millisecond
	defaultMaxDelay         = 30 * time.Second
	defaultMultiplier       = 2.0
	defaultTimeout          = 10 * time.Second
	defaultFailureStatusMin = 500
	defaultFailureStatusMax = 600
	defaultFailureWindow    = 60 * time.Second
	// Disables the percentage budget unless explicitly configured.
	defaultMaxFailurePercent = 101.0
)

// Options configures a Pool. Zero values fall back to package defaults.
type Options struct {
	Logger *zap.Logger

	// Backoff strategy selection. BackoffExponential is the default.
	Backoff    BackoffKind
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// DisableJitter turns off the randomized scaling of exponential
	// cool-downs. Mostly useful for deterministic tests.
	DisableJitter bool

	// Timeout bounds each transport invocation. A timeout counts as an
	// ordinary host failure.
	Timeout time.Duration

	// Failure status range [FailureStatusMin, FailureStatusMax). Responses
	// inside it quarantine the host.
	FailureStatusMin int
	FailureStatusMax int

	// Error budget. When MaxFailures > 0 a host is only quarantined after
	// exceeding MaxFailures failures within FailureWindow, or after crossing
	// MaxFailurePercent of requests in the window (with at least one
	// success recorded, so a lone error cannot trip the percentage).
	MaxFailures       int
	FailureWindow     time.Duration
	MaxFailurePercent float64

	// ReclaimInterval enables a background goroutine that re-admits
	// recovered hosts even while the pool is idle. Reclaim also always runs
	// lazily before every selection, so this is optional.
	ReclaimInterval time.Duration

	// Registerer receives the pool's prometheus metrics. Nil leaves them
	// unregistered.
	Registerer prometheus.Registerer
}

// standardPool implements Pool.
type standardPool struct {
	mu            sync.Mutex
	hosts         map[string]*hostEntry // all registered, keyed by base URL
	available     []*hostEntry          // selection order
	disabled      map[string]*hostEntry
	nextHostIndex int
	closed        bool
	done          chan struct{}

	transport  Transport
	logger     *zap.Logger
	metrics    *poolMetrics
	newBackoff func() Backoff
	now        func() time.Time

	timeout           time.Duration
	failureStatusMin  int
	failureStatusMax  int
	maxFailures       int
	failureWindow     time.Duration
	maxFailurePercent float64
}

// New constructs a Pool over the given base URLs with default options.
func New(hosts []string, transport Transport) (Pool, error) {
	return NewWithOptions(hosts, transport, Options{})
}

// NewWithOptions constructs a Pool, overriding defaults from options.
func NewWithOptions(hosts []string, transport Transport, options Options) (Pool, error) {
	if transport == nil {
		return nil, errors.New("hostpool: transport must not be nil")
	}

	p := &standardPool{
		hosts:             make(map[string]*hostEntry, len(hosts)),
		disabled:          make(map[string]*hostEntry),
		transport:         transport,
		logger:            zap.NewNop(),
		now:               time.Now,
		timeout:           defaultTimeout,
		failureStatusMin:  defaultFailureStatusMin,
		failureStatusMax:  defaultFailureStatusMax,
		failureWindow:     defaultFailureWindow,
		maxFailurePercent: defaultMaxFailurePercent,
	}

	if options.Logger != nil {
		p.logger = options.Logger
	}
	if options.Timeout > 0 {
		p.timeout = options.Timeout
	}
	if options.FailureStatusMin > 0 {
		p.failureStatusMin = options.FailureStatusMin
	}
	if options.FailureStatusMax > 0 {
		p.failureStatusMax = options.FailureStatusMax
	}
	if p.failureStatusMax <= p.failureStatusMin {
		return nil, errors.Errorf("hostpool: invalid failure status range [%d,%d)",
			p.failureStatusMin, p.failureStatusMax)
	}
	if options.MaxFailures > 0 {
		p.maxFailures = options.MaxFailures
	}
	if options.FailureWindow > 0 {
		p.failureWindow = options.FailureWindow
	}
	if options.MaxFailurePercent > 0 {
		p.maxFailurePercent = options.MaxFailurePercent
	}

	base := defaultBaseDelay
	if options.BaseDelay > 0 {
		base = options.BaseDelay
	}
	max := defaultMaxDelay
	if options.MaxDelay > 0 {
		max = options.MaxDelay
	}
	multiplier := defaultMultiplier
	if options.Multiplier > 1 {
		multiplier = options.Multiplier
	}
	switch options.Backoff {
	case BackoffConstant:
		p.newBackoff = func() Backoff { return NewConstantBackoff(base) }
	case BackoffExponential, "":
		jitter := !options.DisableJitter
		p.newBackoff = func() Backoff {
			return NewExponentialBackoff(base, max, multiplier, jitter)
		}
	default:
		return nil, errors.Errorf("hostpool: unknown backoff strategy %q", options.Backoff)
	}

	for _, h := range hosts {
		u, err := normalizeURL(h)
		if err != nil {
			return nil, err
		}
		if err := p.addHostLocked(u); err != nil {
			return nil, err
		}
	}

	p.metrics = newPoolMetrics(options.Registerer, p)

	if options.ReclaimInterval > 0 {
		p.done = make(chan struct{})
		go p.reclaimLoop(options.ReclaimInterval)
	}

	return p, nil
}

func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(err, "hostpool: invalid host URL %q", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("hostpool: host URL %q must include scheme and host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func (p *standardPool) AddHost(rawURL string) error {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addHostLocked(u)
}

func (p *standardPool) addHostLocked(u string) error {
	if _, ok := p.hosts[u]; ok {
		return &DuplicateHostError{URL: u}
	}
	e := &hostEntry{
		url:     u,
		backoff: p.newBackoff(),
	}
	if p.maxFailures > 0 {
		// The budget is tested as failures > maxFailures, so the buffers need
		// one extra slot.
		e.failures = newRingBuffer(p.maxFailures + 1)
		e.successes = newRingBuffer(p.maxFailures + 1)
	}
	p.hosts[u] = e
	p.available = append(p.available, e)
	return nil
}

func (p *standardPool) RemoveHost(rawURL string) error {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.hosts[u]
	if !ok {
		return &HostNotFoundError{URL: u}
	}
	delete(p.hosts, u)
	if e.disabled {
		delete(p.disabled, u)
	} else {
		p.removeFromAvailableLocked(e)
	}
	return nil
}

// Dispatch sends one logical request, retrying across hosts. See Pool.
func (p *standardPool) Dispatch(ctx context.Context, method, path string, params url.Values, body []byte) (*Response, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	// A request is attempted at most once per registered host.
	budget := len(p.hosts)
	p.mu.Unlock()

	var lastErr error
	attempts := 0
	for i := 0; i < budget; i++ {
		h := p.next()
		if h == nil {
			break
		}
		attempts++

		resp, err := p.roundTrip(ctx, h, method, path, params, body)
		if err == nil {
			p.markSuccess(h)
			p.metrics.dispatches.Inc()
			return resp, nil
		}
		lastErr = err
		p.markFailed(h, err)
		p.logger.Debug("host attempt failed, retrying on next host",
			zap.String("host", h.url), zap.Error(err))
	}

	p.metrics.dispatchErrors.Inc()
	if lastErr == nil {
		// Nothing was even attempted: every host is quarantined (or none are
		// registered). Fail fast; a cool-down elapsing will self-heal.
		return nil, &NoHostsAvailableError{}
	}
	p.logger.Info("dispatch exhausted all hosts",
		zap.Int("attempts", attempts), zap.Error(lastErr))
	return nil, &AllHostsFailedError{Attempts: attempts, LastErr: lastErr}
}

// roundTrip performs one attempt against one host, outside the pool lock.
func (p *standardPool) roundTrip(ctx context.Context, h *hostEntry, method, path string, params url.Values, body []byte) (*Response, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	resp, err := p.transport.RoundTrip(ctx, method, joinURL(h.url, path, params), rd)
	if err != nil {
		return nil, &TransportError{Host: h.url, Err: err}
	}
	if resp.StatusCode >= p.failureStatusMin && resp.StatusCode < p.failureStatusMax {
		return nil, &StatusError{Host: h.url, StatusCode: resp.StatusCode}
	}
	resp.Host = h.url
	return resp, nil
}

// next selects the next available host in round robin order, reclaiming
// recovered hosts first. Returns nil if every host is quarantined.
func (p *standardPool) next() *hostEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reclaimLocked(p.now())
	if len(p.available) == 0 {
		return nil
	}
	idx := p.nextHostIndex % len(p.available)
	p.nextHostIndex = idx + 1
	return p.available[idx]
}

// reclaimLocked moves every quarantined host whose cool-down has elapsed back
// into the available set. Callers must hold the lock.
func (p *standardPool) reclaimLocked(now time.Time) {
	for u, e := range p.disabled {
		if !e.reclaimable(now) {
			continue
		}
		delete(p.disabled, u)
		e.disabled = false
		p.available = append(p.available, e)
		p.metrics.reclaims.Inc()
		p.logger.Debug("host re-admitted", zap.String("host", u))
	}
}

func (p *standardPool) markSuccess(h *hostEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.hosts[h.url]
	if !ok || e != h {
		// Removed (and possibly re-added) while the request was in flight.
		return
	}
	e.success()
	if e.successes != nil {
		e.successes.insert(p.now())
	}
	if e.disabled {
		// A concurrent caller quarantined it, but this response proves the
		// host healthy; re-admit right away.
		delete(p.disabled, e.url)
		e.disabled = false
		p.available = append(p.available, e)
	}
}

func (p *standardPool) markFailed(h *hostEntry, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.hosts[h.url]
	if !ok || e != h {
		return
	}
	if e.disabled {
		// Already quarantined by a concurrent caller whose request failed
		// first; advancing the backoff again would double-penalize the host.
		return
	}

	now := p.now()
	if e.failures != nil {
		e.failures.insert(now)
		lookback := now.Add(-p.failureWindow)
		failuresInWindow := e.failures.since(lookback)
		if failuresInWindow <= p.maxFailures {
			successesInWindow := e.successes.since(lookback)
			failurePercent := float64(failuresInWindow) /
				float64(failuresInWindow+successesInWindow) * 100
			// Require at least one success, otherwise a single error would
			// trip the percentage on its own.
			if failurePercent < p.maxFailurePercent || successesInWindow == 0 {
				p.logger.Debug("failure within error budget",
					zap.String("host", e.url), zap.Int("failures", failuresInWindow))
				return
			}
		}
	}

	delay := e.fail()
	e.disabled = true
	e.due = now.Add(delay)
	p.removeFromAvailableLocked(e)
	p.disabled[e.url] = e
	p.metrics.quarantines.Inc()
	p.logger.Info("host quarantined",
		zap.String("host", e.url),
		zap.Duration("cooldown", delay),
		zap.Time("due", e.due),
		zap.NamedError("cause", cause))
}

func (p *standardPool) removeFromAvailableLocked(e *hostEntry) {
	for i, cur := range p.available {
		if cur != e {
			continue
		}
		p.available = append(p.available[:i], p.available[i+1:]...)
		// Keep the rotation anchored so the hosts after the removed one are
		// not skipped.
		if i < p.nextHostIndex {
			p.nextHostIndex--
		}
		return
	}
}

func (p *standardPool) HostsAvailable() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	hosts := make([]string, len(p.available))
	for i, e := range p.available {
		hosts[i] = e.url
	}
	return hosts
}

func (p *standardPool) HostsDisabled() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	hosts := make([]string, 0, len(p.disabled))
	for u := range p.disabled {
		hosts = append(hosts, u)
	}
	sort.Strings(hosts)
	return hosts
}

func (p *standardPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	done := p.done
	p.mu.Unlock()

	if done != nil {
		close(done)
	}
}

// reclaimLoop re-admits recovered hosts while the pool is idle.
func (p *standardPool) reclaimLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			p.reclaimLocked(p.now())
			p.mu.Unlock()
		}
	}
}
