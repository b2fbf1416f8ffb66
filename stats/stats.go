// Package stats keeps the crawl's named counters. Values are mirrored into
// prometheus gauges and dumped to the log and an optional storage when the
// crawl closes.
package stats

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/awaketai/crawlrt/collector"
	"github.com/awaketai/crawlrt/sqldb"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Fields are the columns of a stored stats row.
var Fields = []sqldb.Field{
	{Title: "Bot", Type: "VARCHAR(64)"},
	{Title: "StatKey", Type: "VARCHAR(255)"},
	{Title: "Value", Type: "BIGINT"},
	{Title: "Reason", Type: "VARCHAR(64)"},
	{Title: "Time", Type: "VARCHAR(32)"},
}

type Collector struct {
	options

	mu     sync.Mutex
	values map[string]int64
	closed bool

	gauge *prometheus.GaugeVec
}

func New(opts ...Option) (*Collector, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	c := &Collector{
		options: options,
		values:  map[string]int64{},
	}
	if options.registerer != nil {
		gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "crawlrt",
			Name:      "stat_value",
			Help:      "Current value of a crawl stat.",
		}, []string{"bot", "key"})
		var err error
		if c.gauge, err = registerGauge(options.registerer, gauge); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func registerGauge(reg prometheus.Registerer, gauge *prometheus.GaugeVec) (*prometheus.GaugeVec, error) {
	err := reg.Register(gauge)
	if err == nil {
		return gauge, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(*prometheus.GaugeVec)
		if !ok {
			return nil, fmt.Errorf("stats gauge registered with type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return nil, err
}

// setLocked stores v and updates the mirror. c.mu must be held.
func (c *Collector) setLocked(key string, v int64) {
	c.values[key] = v
	if c.gauge != nil {
		c.gauge.WithLabelValues(c.botName, key).Set(float64(v))
	}
}

func (c *Collector) SetValue(key string, v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, v)
}

func (c *Collector) IncValue(key string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, c.values[key]+delta)
}

// MaxValue keeps the larger of the stored value and v. A missing key takes v.
func (c *Collector) MaxValue(key string, v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.values[key]; ok && old >= v {
		return
	}
	c.setLocked(key, v)
}

// MinValue keeps the smaller of the stored value and v. A missing key takes v.
func (c *Collector) MinValue(key string, v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.values[key]; ok && old <= v {
		return
	}
	c.setLocked(key, v)
}

func (c *Collector) GetValue(key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// GetStats returns a copy of every stat.
func (c *Collector) GetStats() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Close dumps the stats once, tagged with the reason the crawl finished.
// Later calls do nothing.
func (c *Collector) Close(reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	snapshot := c.GetStats()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+1)
	fields = append(fields, zap.String("reason", reason))
	for _, k := range keys {
		fields = append(fields, zap.Int64(k, snapshot[k]))
	}
	c.logger.Info("dumping crawl stats", fields...)

	if c.storage == nil || len(keys) == 0 {
		return nil
	}
	at := c.clock.Now().UTC().Format("2006-01-02 15:04:05")
	cells := make([]*collector.DataCell, 0, len(keys))
	for _, k := range keys {
		cells = append(cells, &collector.DataCell{
			Table: c.table,
			Data: map[string]any{
				"Bot":     c.botName,
				"StatKey": k,
				"Value":   snapshot[k],
				"Reason":  reason,
				"Time":    at,
			},
		})
	}
	err := multierr.Append(c.storage.Save(cells...), c.storage.Flush())
	if err != nil {
		c.logger.Error("store crawl stats failed", zap.Error(err))
	}
	return err
}
