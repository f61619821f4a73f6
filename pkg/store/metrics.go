package store

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opLoad    = "load"
	opWrite   = "write"
	opDelete  = "delete"
	opRestore = "restore"
)

type metrics struct {
	ops *prometheus.CounterVec
}

// newMetrics registers the table counters with reg. Tables sharing a
// registry share the collector.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	ops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beanstore_table_operations_total",
			Help: "Backend operations issued by tables",
		},
		[]string{"table", "op"},
	)
	if err := reg.Register(ops); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
		ops = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &metrics{ops: ops}
}

func (m *metrics) inc(table, op string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(table, op).Inc()
}
