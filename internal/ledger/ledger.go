// Package ledger is the entry point applications use to record and query
// transactions between agents.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/store"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/punchamoorthee/txledger/internal/ledger"

// ErrNoResolver is returned by Resolve when no resolver was configured.
var ErrNoResolver = errors.New("no resolver configured")

// Ledger validates transactions and hands them to its storage.
type Ledger struct {
	mu       sync.RWMutex
	storage  store.Storage
	types    *domain.TypeRegistry
	resolver domain.Resolver
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTypes replaces the registry used to accept transaction types.
func WithTypes(reg *domain.TypeRegistry) Option {
	return func(l *Ledger) { l.types = reg }
}

// WithResolver sets the resolver used by Resolve.
func WithResolver(r domain.Resolver) Option {
	return func(l *Ledger) { l.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithTracerProvider sets where spans are sent. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Ledger) { l.tracer = tp.Tracer(tracerName) }
}

// New returns a ledger writing to storage.
func New(storage store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage: storage,
		types:   domain.DefaultTypes,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Storage returns the current storage.
func (l *Ledger) Storage() store.Storage {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.storage
}

// SetStorage swaps the storage. Records already saved are not copied.
func (l *Ledger) SetStorage(s store.Storage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.storage = s
}

// Types returns the registry the ledger validates against.
func (l *Ledger) Types() *domain.TypeRegistry {
	return l.types
}

// AddTransaction validates t and saves it. Invalid transactions never reach
// storage; storage errors are returned as they are.
func (l *Ledger) AddTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.add_transaction", trace.WithAttributes(
		attribute.String("ledger.type", string(t.Type)),
		attribute.String("ledger.from", t.From.String()),
		attribute.String("ledger.to", t.To.String()),
	))
	defer span.End()

	if err := t.Validate(l.types); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		span.AddEvent("validation_failed", trace.WithAttributes(attribute.String("error", err.Error())))

		l.logger.Info("transaction rejected",
			zap.String("type", string(t.Type)),
			zap.Stringer("from", t.From),
			zap.Stringer("to", t.To),
			zap.Error(err),
		)

		return domain.Transaction{}, err
	}

	saved, err := l.Storage().SaveTransaction(ctx, t)
	if err != nil {
		span.SetStatus(codes.Error, "save failed: "+err.Error())
		span.RecordError(err)

		l.logger.Error("failed to save transaction",
			zap.String("type", string(t.Type)),
			zap.Stringer("from", t.From),
			zap.Stringer("to", t.To),
			zap.String("dedup_key", t.DedupKey),
			zap.Error(err),
		)

		return domain.Transaction{}, err
	}

	span.SetAttributes(attribute.Int64("ledger.id", saved.ID), attribute.String("ledger.batch_id", saved.BatchID))

	l.logger.Debug("transaction saved",
		zap.Int64("id", saved.ID),
		zap.String("type", string(saved.Type)),
		zap.String("amount", saved.Amount.String()),
		zap.String("batch_id", saved.BatchID),
	)

	return saved, nil
}

// Transaction loads a saved transaction by id.
func (l *Ledger) Transaction(ctx context.Context, id int64) (domain.Transaction, error) {
	return l.Storage().GetTransaction(ctx, id)
}

// TransactionsFrom lists what agent sent. An empty t means every type.
func (l *Ledger) TransactionsFrom(ctx context.Context, agent domain.Ref, t domain.Type) ([]domain.Transaction, error) {
	s := l.Storage()

	txns, err := s.GetTransactionsFrom(ctx, agent)
	if err != nil || t == "" {
		return txns, err
	}

	return s.Filter(txns, t), nil
}

// TransactionsTo lists what agent received. An empty t means every type.
func (l *Ledger) TransactionsTo(ctx context.Context, agent domain.Ref, t domain.Type) ([]domain.Transaction, error) {
	s := l.Storage()

	txns, err := s.GetTransactionsTo(ctx, agent)
	if err != nil || t == "" {
		return txns, err
	}

	return s.Filter(txns, t), nil
}

// SumFrom totals what agent sent as type t.
func (l *Ledger) SumFrom(ctx context.Context, agent domain.Ref, t domain.Type) (decimal.Decimal, error) {
	return store.SumFrom(ctx, l.Storage(), agent, t)
}

// SumTo totals what agent received as type t.
func (l *Ledger) SumTo(ctx context.Context, agent domain.Ref, t domain.Type) (decimal.Decimal, error) {
	return store.SumTo(ctx, l.Storage(), agent, t)
}

// Balance is what agent received minus what it sent, for type t. It is
// informational: nothing stops it going negative.
func (l *Ledger) Balance(ctx context.Context, agent domain.Ref, t domain.Type) (decimal.Decimal, error) {
	received, err := l.SumTo(ctx, agent, t)
	if err != nil {
		return decimal.Zero, err
	}

	sent, err := l.SumFrom(ctx, agent, t)
	if err != nil {
		return decimal.Zero, err
	}

	return received.Sub(sent), nil
}

// Resolve loads the entity behind ref through the configured resolver.
func (l *Ledger) Resolve(ctx context.Context, ref domain.Ref) (any, error) {
	if l.resolver == nil {
		return nil, ErrNoResolver
	}

	entity, err := l.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}

	return entity, nil
}
