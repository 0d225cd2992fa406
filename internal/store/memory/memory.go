// Package memory is a process-local transaction store. Data is lost on exit.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ store.Storage = (*Store)(nil)

// Store keeps every transaction in save order and indexes them by agent.
type Store struct {
	mu     sync.RWMutex
	txns   []domain.Transaction
	from   map[domain.Ref][]int
	to     map[domain.Ref][]int
	dedup  map[string]int
	nextID int64

	now      func() time.Time
	resolver domain.Resolver
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithResolver makes saves reject reasons the resolver cannot find.
func WithResolver(r domain.Resolver) Option {
	return func(s *Store) { s.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		from:   make(map[domain.Ref][]int),
		to:     make(map[domain.Ref][]int),
		dedup:  make(map[string]int),
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SaveTransaction appends t and indexes it under both agents.
func (s *Store) SaveTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	t, err := store.PrepareForSave(ctx, t, s.resolver)
	if err != nil {
		return domain.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.DedupKey != "" {
		if idx, ok := s.dedup[t.DedupKey]; ok {
			s.logger.Debug("dedup key replayed", zap.String("dedup_key", t.DedupKey), zap.Int64("id", s.txns[idx].ID))
			return store.CheckReplay(t, s.txns[idx].Clone())
		}
	}

	t = t.WithDefaults()
	s.nextID++
	t.ID = s.nextID
	t.CreatedAt = s.now()

	idx := len(s.txns)
	s.txns = append(s.txns, t)
	s.from[t.From] = append(s.from[t.From], idx)
	s.to[t.To] = append(s.to[t.To], idx)

	if t.DedupKey != "" {
		s.dedup[t.DedupKey] = idx
	}

	return t.Clone(), nil
}

// GetTransaction returns the transaction with the given id.
func (s *Store) GetTransaction(_ context.Context, id int64) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// ids are dense and start at 1
	if id < 1 || id > int64(len(s.txns)) {
		return domain.Transaction{}, fmt.Errorf("%w: id %d", store.ErrNotFound, id)
	}

	return s.txns[id-1].Clone(), nil
}

// GetTransactionsFrom lists what agent sent, oldest first.
func (s *Store) GetTransactionsFrom(_ context.Context, agent domain.Ref) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.from[agent]), nil
}

// GetTransactionsTo lists what agent received, oldest first.
func (s *Store) GetTransactionsTo(_ context.Context, agent domain.Ref) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.to[agent]), nil
}

// All returns every transaction in save order.
func (s *Store) All() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, len(s.txns))
	for i, t := range s.txns {
		out[i] = t.Clone()
	}

	return out
}

func (s *Store) Filter(txns []domain.Transaction, t domain.Type) []domain.Transaction {
	return store.Filter(txns, t)
}

func (s *Store) Sum(txns []domain.Transaction) decimal.Decimal {
	return store.Sum(txns)
}

func (s *Store) collect(idxs []int) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.txns[i].Clone())
	}

	return out
}
