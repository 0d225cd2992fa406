package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ store.Storage = (*Store)(nil)

const selectColumns = `id, type, amount, batch_id, created_at, reason_kind, reason_id,
	agent_from_kind, agent_from_id, agent_to_kind, agent_to_id, dedup_key`

// Store persists transactions in a SQLite database.
type Store struct {
	db       *sql.DB
	timeout  time.Duration
	now      func() time.Time
	resolver domain.Resolver
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout bounds calls whose context carries no deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

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

// New wraps an open database. Use OpenDB to get one with the schema applied.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:      db,
		timeout: 5 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Open opens path and returns a store over it.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	return New(db, opts...), nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, s.timeout)
}

// SaveTransaction writes t as one row inside a write transaction.
func (s *Store) SaveTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	t, err := store.PrepareForSave(ctx, t, s.resolver)
	if err != nil {
		return domain.Transaction{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, classify("begin", err)
	}
	defer tx.Rollback()

	if t.DedupKey != "" {
		existing, err := scanTransaction(tx.QueryRowContext(ctx,
			`SELECT `+selectColumns+` FROM transactions WHERE dedup_key = ?`, t.DedupKey))
		if err == nil {
			s.logger.Debug("dedup key replayed", zap.String("dedup_key", t.DedupKey), zap.Int64("id", existing.ID))
			return store.CheckReplay(t, existing)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, classify("dedup lookup", err)
		}
	}

	t = t.WithDefaults()
	t.CreatedAt = s.now()

	var reasonKind, reasonID sql.NullString
	if t.Reason != nil {
		reasonKind = sql.NullString{String: t.Reason.Kind, Valid: true}
		reasonID = sql.NullString{String: t.Reason.ID, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (type, amount, batch_id, created_at, reason_kind, reason_id,
			agent_from_kind, agent_from_id, agent_to_kind, agent_to_id, dedup_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Type),
		t.Amount.String(),
		t.BatchID,
		t.CreatedAt.UnixNano(),
		reasonKind,
		reasonID,
		t.From.Kind, t.From.ID,
		t.To.Kind, t.To.ID,
		nullIfEmpty(t.DedupKey),
	)
	if err != nil {
		return domain.Transaction{}, classify("insert", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Transaction{}, classify("insert", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Transaction{}, classify("commit", err)
	}

	t.ID = id
	// match the precision of what a later read returns
	t.CreatedAt = time.Unix(0, t.CreatedAt.UnixNano()).UTC()

	return t, nil
}

// GetTransaction loads one transaction by id.
func (s *Store) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := scanTransaction(s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, fmt.Errorf("%w: id %d", store.ErrNotFound, id)
	}
	if err != nil {
		return domain.Transaction{}, classify("get transaction", err)
	}

	return t, nil
}

// GetTransactionsFrom lists what agent sent, oldest first.
func (s *Store) GetTransactionsFrom(ctx context.Context, agent domain.Ref) ([]domain.Transaction, error) {
	return s.list(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE agent_from_kind = ? AND agent_from_id = ?
		ORDER BY created_at, id`, agent)
}

// GetTransactionsTo lists what agent received, oldest first.
func (s *Store) GetTransactionsTo(ctx context.Context, agent domain.Ref) ([]domain.Transaction, error) {
	return s.list(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE agent_to_kind = ? AND agent_to_id = ?
		ORDER BY created_at, id`, agent)
}

func (s *Store) Filter(txns []domain.Transaction, t domain.Type) []domain.Transaction {
	return store.Filter(txns, t)
}

func (s *Store) Sum(txns []domain.Transaction) decimal.Decimal {
	return store.Sum(txns)
}

func (s *Store) list(ctx context.Context, query string, agent domain.Ref) ([]domain.Transaction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, agent.Kind, agent.ID)
	if err != nil {
		return nil, classify("list transactions", err)
	}
	defer rows.Close()

	res := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, classify("scan transaction", err)
		}
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("list transactions", err)
	}

	return res, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var (
		t                    domain.Transaction
		typ, amount          string
		createdAt            int64
		reasonKind, reasonID sql.NullString
		dedupKey             sql.NullString
	)

	if err := row.Scan(
		&t.ID,
		&typ,
		&amount,
		&t.BatchID,
		&createdAt,
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
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	t.DedupKey = dedupKey.String

	if reasonKind.Valid {
		t.Reason = &domain.Ref{Kind: reasonKind.String, ID: reasonID.String}
	}

	return t, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
