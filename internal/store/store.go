// Package store defines the transaction storage contract shared by every
// backend, together with the query helpers whose results must not depend on
// the backend that produced the input.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrStorageUnavailable marks transient transport failures. The whole call may be retried.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConstraintViolation marks writes the store rejected permanently.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrNotFound is returned by lookups that expect the record to exist.
	ErrNotFound = errors.New("transaction not found")
)

// Storage persists transactions and answers per-agent queries.
type Storage interface {
	// SaveTransaction assigns ID and CreatedAt and returns the stored record.
	SaveTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error)
	// GetTransaction loads one record, or ErrNotFound.
	GetTransaction(ctx context.Context, id int64) (domain.Transaction, error)
	// GetTransactionsFrom lists transactions sent by agent in save order.
	GetTransactionsFrom(ctx context.Context, agent domain.Ref) ([]domain.Transaction, error)
	// GetTransactionsTo lists transactions received by agent in save order.
	GetTransactionsTo(ctx context.Context, agent domain.Ref) ([]domain.Transaction, error)
	Filter(txns []domain.Transaction, t domain.Type) []domain.Transaction
	Sum(txns []domain.Transaction) decimal.Decimal
}

// Aggregator is implemented by stores able to compute sums without
// materialising the transactions.
type Aggregator interface {
	SumFrom(ctx context.Context, agent domain.Ref, t domain.Type) (decimal.Decimal, error)
	SumTo(ctx context.Context, agent domain.Ref, t domain.Type) (decimal.Decimal, error)
}

// Filter returns the transactions of type t, preserving order.
func Filter(txns []domain.Transaction, t domain.Type) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txns))
	for _, txn := range txns {
		if txn.Type == t {
			out = append(out, txn)
		}
	}

	return out
}

// Sum adds up the amounts of txns. The sum of nothing is zero.
func Sum(txns []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, txn := range txns {
		total = total.Add(txn.Amount)
	}

	return total
}

// SumFrom totals agent's outgoing transactions of type t, pushing the
// aggregate down to s when it supports that.
func SumFrom(ctx context.Context, s Storage, agent domain.Ref, t domain.Type) (decimal.Decimal, error) {
	if agg, ok := s.(Aggregator); ok {
		return agg.SumFrom(ctx, agent, t)
	}

	txns, err := s.GetTransactionsFrom(ctx, agent)
	if err != nil {
		return decimal.Zero, err
	}

	return s.Sum(s.Filter(txns, t)), nil
}

// SumTo is SumFrom for incoming transactions.
func SumTo(ctx context.Context, s Storage, agent domain.Ref, t domain.Type) (decimal.Decimal, error) {
	if agg, ok := s.(Aggregator); ok {
		return agg.SumTo(ctx, agent, t)
	}

	txns, err := s.GetTransactionsTo(ctx, agent)
	if err != nil {
		return decimal.Zero, err
	}

	return s.Sum(s.Filter(txns, t)), nil
}

// PrepareForSave validates t and, when resolver is set, checks that the
// reason it points at exists. Defaults are not filled in, so the result can
// still be compared against a dedup replay with CheckReplay.
func PrepareForSave(ctx context.Context, t domain.Transaction, resolver domain.Resolver) (domain.Transaction, error) {
	if err := t.Validate(nil); err != nil {
		return domain.Transaction{}, err
	}

	if resolver != nil && t.Reason != nil {
		if _, err := resolver.Resolve(ctx, *t.Reason); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Transaction{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, ctxErr)
			}

			return domain.Transaction{}, fmt.Errorf("%w: reason %s: %w", ErrConstraintViolation, t.Reason, err)
		}
	}

	return t.Clone(), nil
}

// CheckReplay decides what a save that hit an existing dedup key returns.
func CheckReplay(incoming, existing domain.Transaction) (domain.Transaction, error) {
	if !incoming.SamePayload(existing) {
		return domain.Transaction{}, fmt.Errorf("%w: dedup key %q reused with a different payload", ErrConstraintViolation, incoming.DedupKey)
	}

	return existing, nil
}
