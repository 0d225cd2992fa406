// Package postgres is the durable transaction store backed by PostgreSQL.
//
// Agents and reasons are stored as (kind, id) column pairs, so one table can
// reference any entity type without a foreign key per type.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	_ store.Storage    = (*Store)(nil)
	_ store.Aggregator = (*Store)(nil)
)

const selectColumns = `id, type, amount::text, batch_id, created_at, reason_kind, reason_id,
	agent_from_kind, agent_from_id, agent_to_kind, agent_to_id, dedup_key`

// Store persists transactions through a pgx pool.
type Store struct {
	pool     *pgxpool.Pool
	timeout  time.Duration
	resolver domain.Resolver
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout bounds calls whose context carries no deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithResolver makes saves reject reasons the resolver cannot find.
func WithResolver(r domain.Resolver) Option {
	return func(s *Store) { s.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:    pool,
		timeout: 5 * time.Second,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Connect opens a pool for connString, migrates it and returns a store.
func Connect(ctx context.Context, connString string, opts ...Option) (*Store, error) {
	pool, err := NewPool(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := Migrate(pool); err != nil {
		pool.Close()
		return nil, err
	}

	return New(pool, opts...), nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, s.timeout)
}

// SaveTransaction inserts t as a single row. The id and created_at come from
// the database. A repeated dedup key returns the row saved first.
func (s *Store) SaveTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	t, err := store.PrepareForSave(ctx, t, s.resolver)
	if err != nil {
		return domain.Transaction{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.Transaction{}, classify("tx begin failed", err)
	}
	defer tx.Rollback(ctx)

	incoming := t
	t = t.WithDefaults()

	var reasonKind, reasonID *string
	if t.Reason != nil {
		reasonKind, reasonID = &t.Reason.Kind, &t.Reason.ID
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (type, amount, batch_id, reason_kind, reason_id,
			agent_from_kind, agent_from_id, agent_to_kind, agent_to_id, dedup_key)
		VALUES ($1, $2::text::numeric, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING id, created_at`,
		string(t.Type),
		t.Amount.String(),
		t.BatchID,
		reasonKind, reasonID,
		t.From.Kind, t.From.ID,
		t.To.Kind, t.To.ID,
		nullIfEmpty(t.DedupKey),
	).Scan(&t.ID, &t.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// dedup_key conflict: the row already exists
		existing, err := scanTransaction(tx.QueryRow(ctx,
			`SELECT `+selectColumns+` FROM transactions WHERE dedup_key = $1`, t.DedupKey))
		if err != nil {
			return domain.Transaction{}, classify("dedup lookup failed", err)
		}

		s.logger.Debug("dedup key replayed", zap.String("dedup_key", t.DedupKey), zap.Int64("id", existing.ID))

		return store.CheckReplay(incoming, existing)
	}
	if err != nil {
		return domain.Transaction{}, classify("transaction insert failed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Transaction{}, classify("tx commit failed", err)
	}

	t.CreatedAt = t.CreatedAt.UTC()

	return t, nil
}

// GetTransaction retrieves a transaction by id.
func (s *Store) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := scanTransaction(s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, fmt.Errorf("%w: id %d", store.ErrNotFound, id)
	}
	if err != nil {
		return domain.Transaction{}, classify("get transaction failed", err)
	}

	return t, nil
}

// GetTransactionsFrom lists what agent sent, oldest first.
func (s *Store) GetTransactionsFrom(ctx context.Context, agent domain.Ref) ([]domain.Transaction, error) {
	return s.list(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE agent_from_kind = $1 AND agent_from_id = $2
		ORDER BY created_at, id`, agent)
}

// GetTransactionsTo lists what agent received, oldest first.
func (s *Store) GetTransactionsTo(ctx context.Context, agent domain.Ref) ([]domain.Transaction, error) {
	return s.list(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE agent_to_kind = $1 AND agent_to_id = $2
		ORDER BY created_at, id`, agent)
}

func (s *Store) Filter(txns []domain.Transaction, t domain.Type) []domain.Transaction {
	return store.Filter(txns, t)
}

func (s *Store) Sum(txns []domain.Transaction) decimal.Decimal {
	return store.Sum(txns)
}

// SumFrom totals agent's outgoing transactions of type t in the database.
func (s *Store) SumFrom(ctx context.Context, agent domain.Ref, t domain.Type) (decimal.Decimal, error) {
	return s.sum(ctx, `SELECT COALESCE(SUM(amount), 0)::text FROM transactions
		WHERE agent_from_kind = $1 AND agent_from_id = $2 AND type = $3`, agent, t)
}

// SumTo totals agent's incoming transactions of type t in the database.
func (s *Store) SumTo(ctx context.Context, agent domain.Ref, t domain.Type) (decimal.Decimal, error) {
	return s.sum(ctx, `SELECT COALESCE(SUM(amount), 0)::text FROM transactions
		WHERE agent_to_kind = $1 AND agent_to_id = $2 AND type = $3`, agent, t)
}

func (s *Store) sum(ctx context.Context, query string, agent domain.Ref, t domain.Type) (decimal.Decimal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var total string
	if err := s.pool.QueryRow(ctx, query, agent.Kind, agent.ID, string(t)).Scan(&total); err != nil {
		return decimal.Zero, classify("sum failed", err)
	}

	return decimal.NewFromString(total)
}

func (s *Store) list(ctx context.Context, query string, agent domain.Ref) ([]domain.Transaction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, agent.Kind, agent.ID)
	if err != nil {
		return nil, classify("list transactions failed", err)
	}
	defer rows.Close()

	res := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, classify("scan transaction failed", err)
		}
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("list transactions failed", err)
	}

	return res, nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		t                    domain.Transaction
		typ, amount          string
		reasonKind, reasonID *string
		dedupKey             *string
	)

	if err := row.Scan(
		&t.ID,
		&typ,
		&amount,
		&t.BatchID,
		&t.CreatedAt,
		&reasonKind,
		&reasonID,
		&t.From.Kind, &t.From.ID,
		&t.To.Kind, &t.To.ID,
		&dedupKey,
	); err != nil {
		return domain.Transaction{}, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("corrupt amount %q on transaction %d: %w", amount, t.ID, err)
	}

	t.Type = domain.Type(typ)
	t.Amount = parsed
	t.CreatedAt = t.CreatedAt.UTC()

	if reasonKind != nil && reasonID != nil {
		t.Reason = &domain.Ref{Kind: *reasonKind, ID: *reasonID}
	}

	if dedupKey != nil {
		t.DedupKey = *dedupKey
	}

	return t, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
