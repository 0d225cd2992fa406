package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Metrics holds the storage collectors for one registry.
type Metrics struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics registers the storage collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_storage_operations_total",
			Help: "Storage operations, labeled by backend, operation and outcome",
		}, []string{"backend", "operation", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_storage_operation_duration_seconds",
			Help:    "Storage operation latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"backend", "operation"}),
	}
}

// Instrument wraps s so every blocking call is counted and timed.
func (m *Metrics) Instrument(s Storage, backend string) Storage {
	inst := &instrumented{Storage: s, m: m, backend: backend}
	if agg, ok := s.(Aggregator); ok {
		return &instrumentedAggregator{instrumented: inst, agg: agg}
	}

	return inst
}

type instrumented struct {
	Storage
	m       *Metrics
	backend string
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	i.m.latency.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
	i.m.ops.WithLabelValues(i.backend, op, outcome(err)).Inc()
}

func (i *instrumented) SaveTransaction(ctx context.Context, t domain.Transaction) (saved domain.Transaction, err error) {
	defer func(start time.Time) { i.observe("save", start, err) }(time.Now())
	return i.Storage.SaveTransaction(ctx, t)
}

func (i *instrumented) GetTransaction(ctx context.Context, id int64) (txn domain.Transaction, err error) {
	defer func(start time.Time) { i.observe("get", start, err) }(time.Now())
	return i.Storage.GetTransaction(ctx, id)
}

func (i *instrumented) GetTransactionsFrom(ctx context.Context, agent domain.Ref) (txns []domain.Transaction, err error) {
	defer func(start time.Time) { i.observe("list_from", start, err) }(time.Now())
	return i.Storage.GetTransactionsFrom(ctx, agent)
}

func (i *instrumented) GetTransactionsTo(ctx context.Context, agent domain.Ref) (txns []domain.Transaction, err error) {
	defer func(start time.Time) { i.observe("list_to", start, err) }(time.Now())
	return i.Storage.GetTransactionsTo(ctx, agent)
}

type instrumentedAggregator struct {
	*instrumented
	agg Aggregator
}

func (i *instrumentedAggregator) SumFrom(ctx context.Context, agent domain.Ref, t domain.Type) (total decimal.Decimal, err error) {
	defer func(start time.Time) { i.observe("sum_from", start, err) }(time.Now())
	return i.agg.SumFrom(ctx, agent, t)
}

func (i *instrumentedAggregator) SumTo(ctx context.Context, agent domain.Ref, t domain.Type) (total decimal.Decimal, err error) {
	defer func(start time.Time) { i.observe("sum_to", start, err) }(time.Now())
	return i.agg.SumTo(ctx, agent, t)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, ErrConstraintViolation):
		return "constraint"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorageUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
