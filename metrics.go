package hostpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// A gauge is a metric which represents a single value, whose value may
// increase or decrease, for example the number of hosts in the pool.
type Gauge struct {
	Name  string
	Value int64
}

// Statistics is a point-in-time sample of pool properties worth monitoring.
type Statistics struct {
	Gauges []Gauge
}

const (
	GaugeNumberOfHosts          = "hostpool_number_of_hosts"
	GaugeNumberOfAvailableHosts = "hostpool_number_of_available_hosts"
	GaugeNumberOfDisabledHosts  = "hostpool_number_of_disabled_hosts"
)

func (p *standardPool) Statistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Statistics{
		Gauges: []Gauge{
			{Name: GaugeNumberOfHosts, Value: int64(len(p.hosts))},
			{Name: GaugeNumberOfAvailableHosts, Value: int64(len(p.available))},
			{Name: GaugeNumberOfDisabledHosts, Value: int64(len(p.disabled))},
		},
	}
}

// poolMetrics holds the pool's prometheus instruments. With a nil registerer
// the instruments exist but are not collected.
type poolMetrics struct {
	dispatches     prometheus.Counter
	dispatchErrors prometheus.Counter
	quarantines    prometheus.Counter
	reclaims       prometheus.Counter
}

func newPoolMetrics(r prometheus.Registerer, p *standardPool) *poolMetrics {
	f := promauto.With(r)
	m := &poolMetrics{
		dispatches: f.NewCounter(prometheus.CounterOpts{
			Name: "hostpool_dispatch_total",
			Help: "Dispatched requests that returned a result to the caller.",
		}),
		dispatchErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "hostpool_dispatch_errors_total",
			Help: "Dispatched requests that failed on every eligible host.",
		}),
		quarantines: f.NewCounter(prometheus.CounterOpts{
			Name: "hostpool_host_quarantines_total",
			Help: "Hosts moved from the available to the disabled set.",
		}),
		reclaims: f.NewCounter(prometheus.CounterOpts{
			Name: "hostpool_host_reclaims_total",
			Help: "Hosts re-admitted after their cool-down elapsed.",
		}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: GaugeNumberOfHosts,
		Help: "Hosts currently registered with the pool.",
	}, func() float64 { return float64(p.hostCount()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: GaugeNumberOfAvailableHosts,
		Help: "Hosts currently eligible for selection.",
	}, func() float64 { return float64(p.availableCount()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: GaugeNumberOfDisabledHosts,
		Help: "Hosts currently quarantined.",
	}, func() float64 { return float64(p.disabledCount()) })

	return m
}

func (p *standardPool) hostCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hosts)
}

func (p *standardPool) availableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available)
}

func (p *standardPool) disabledCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.disabled)
}
