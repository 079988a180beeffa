package status

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters tracks compilation progress. Updates are visible to readers
// while a compilation is still running.
type Counters struct {
	masters atomic.Int64
	slaves  atomic.Int64
}

func (c *Counters) IncMaster() { c.masters.Add(1) }
func (c *Counters) IncSlave()  { c.slaves.Add(1) }

func (c *Counters) Masters() int64 { return c.masters.Load() }
func (c *Counters) Slaves() int64  { return c.slaves.Load() }

// Reset zeroes both counters before a new run.
func (c *Counters) Reset() {
	c.masters.Store(0)
	c.slaves.Store(0)
}

// confCollector implements prometheus.Collector, reading the counters on
// each scrape.
type confCollector struct {
	counters *Counters

	masterCount *prometheus.Desc
	slaveCount  *prometheus.Desc
}

func newCollector(c *Counters) *confCollector {
	return &confCollector{
		counters: c,
		masterCount: prometheus.NewDesc(
			"ecconf_conf_master_count",
			"Masters compiled in the current configuration.",
			nil, nil,
		),
		slaveCount: prometheus.NewDesc(
			"ecconf_conf_slave_count",
			"Slaves compiled in the current configuration.",
			nil, nil,
		),
	}
}

func (c *confCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.masterCount
	ch <- c.slaveCount
}

func (c *confCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.masterCount, prometheus.GaugeValue, float64(c.counters.Masters()))
	ch <- prometheus.MustNewConstMetric(c.slaveCount, prometheus.GaugeValue, float64(c.counters.Slaves()))
}

// NewRegistry returns a registry exporting the counters.
func NewRegistry(c *Counters) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newCollector(c))
	return reg
}
