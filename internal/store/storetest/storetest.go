// Package storetest holds the behavioural suite every store.Storage backend
// must pass, so the backends stay interchangeable.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. resolver may be nil.
type Factory func(t *testing.T, resolver domain.Resolver) store.Storage

var (
	Client  = domain.NewRef("client", "azamat")
	Service = domain.NewRef("service", "dentist")
	Other   = domain.NewRef("client", "nobody")
	Reason  = domain.NewRef("reason", "42")
)

// Amount parses a decimal literal and panics on bad input.
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Run executes the full suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, newStore Factory)
	}{
		{"SaveAndGet", testSaveAndGet},
		{"SaveAssignsIdentity", testSaveAssignsIdentity},
		{"MembershipExactlyOnce", testMembershipExactlyOnce},
		{"IdempotentRead", testIdempotentRead},
		{"SaveOrder", testSaveOrder},
		{"SumOfFilteredDeposits", testSumOfFilteredDeposits},
		{"FilterKeepsAmount", testFilterKeepsAmount},
		{"TypeIsolation", testTypeIsolation},
		{"ReasonRoundTrip", testReasonRoundTrip},
		{"UnknownAgentIsEmpty", testUnknownAgentIsEmpty},
		{"NegativeAmountRejected", testNegativeAmountRejected},
		{"PreassignedIDRejected", testPreassignedIDRejected},
		{"SelfTransactionAllowed", testSelfTransactionAllowed},
		{"GetTransaction", testGetTransaction},
		{"DefaultBatchID", testDefaultBatchID},
		{"DedupKeyReplay", testDedupKeyReplay},
		{"DedupKeyMismatch", testDedupKeyMismatch},
		{"UnknownReasonRejected", testUnknownReasonRejected},
		{"SumHelpersMatchInProcess", testSumHelpersMatchInProcess},
		{"DecimalPrecision", testDecimalPrecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore)
		})
	}
}

func save(t *testing.T, s store.Storage, txn domain.Transaction) domain.Transaction {
	t.Helper()

	saved, err := s.SaveTransaction(context.Background(), txn)
	require.NoError(t, err)

	return saved
}

func from(t *testing.T, s store.Storage, agent domain.Ref) []domain.Transaction {
	t.Helper()

	txns, err := s.GetTransactionsFrom(context.Background(), agent)
	require.NoError(t, err)

	return txns
}

func to(t *testing.T, s store.Storage, agent domain.Ref) []domain.Transaction {
	t.Helper()

	txns, err := s.GetTransactionsTo(context.Background(), agent)
	require.NoError(t, err)

	return txns
}

func testSaveAndGet(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	save(t, s, domain.NewCredit(Client, Service, Amount("100")))

	assert.Len(t, from(t, s, Client), 1)
	assert.Len(t, to(t, s, Service), 1)
}

func testSaveAssignsIdentity(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	in := domain.NewDeposit(Client, Service, Amount("200"), domain.WithBatchID("custom_batch_id"))
	saved := save(t, s, in)

	assert.True(t, saved.IsPersisted())
	assert.False(t, saved.CreatedAt.IsZero())
	assert.Equal(t, domain.TypeDeposit, saved.Type)
	assert.Equal(t, Client, saved.From)
	assert.Equal(t, Service, saved.To)
	assert.Equal(t, "custom_batch_id", saved.BatchID)
	assert.False(t, in.IsPersisted(), "input must not be mutated")

	second := save(t, s, domain.NewDeposit(Client, Service, Amount("1")))
	assert.Greater(t, second.ID, saved.ID)
}

func testMembershipExactlyOnce(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	a := save(t, s, domain.NewCredit(Client, Service, Amount("10")))
	b := save(t, s, domain.NewCredit(Service, Other, Amount("20")))

	count := func(txns []domain.Transaction, id int64) int {
		n := 0
		for _, txn := range txns {
			if txn.ID == id {
				n++
			}
		}
		return n
	}

	assert.Equal(t, 1, count(from(t, s, Client), a.ID))
	assert.Equal(t, 1, count(to(t, s, Service), a.ID))
	assert.Equal(t, 0, count(from(t, s, Service), a.ID))
	assert.Equal(t, 0, count(from(t, s, Other), a.ID))
	assert.Equal(t, 0, count(to(t, s, Client), a.ID))

	assert.Equal(t, 1, count(from(t, s, Service), b.ID))
	assert.Equal(t, 1, count(to(t, s, Other), b.ID))
	assert.Equal(t, 0, count(from(t, s, Client), b.ID))

	for _, txn := range from(t, s, Client) {
		assert.Equal(t, Client, txn.From)
	}
}

func testIdempotentRead(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	for i := 1; i <= 3; i++ {
		save(t, s, domain.NewDeposit(Client, Service, decimal.NewFromInt(int64(i))))
	}

	assert.Equal(t, from(t, s, Client), from(t, s, Client))
	assert.Equal(t, to(t, s, Service), to(t, s, Service))
}

func testSaveOrder(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, save(t, s, domain.NewDeposit(Client, Service, decimal.NewFromInt(int64(i)))).ID)
	}

	var got []int64
	for _, txn := range from(t, s, Client) {
		got = append(got, txn.ID)
	}

	assert.Equal(t, ids, got)
}

func testSumOfFilteredDeposits(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	save(t, s, domain.NewDeposit(Client, Service, Amount("1000"), domain.WithBatchID("custom_batch_id")))
	save(t, s, domain.NewDeposit(Client, Service, Amount("200"), domain.WithBatchID("custom_batch_id")))
	save(t, s, domain.NewCredit(Client, Service, Amount("7")))

	total := s.Sum(s.Filter(from(t, s, Client), domain.TypeDeposit))
	assert.True(t, Amount("1200").Equal(total), "got %s", total)

	assert.True(t, decimal.Zero.Equal(s.Sum(nil)))
	assert.True(t, decimal.Zero.Equal(s.Sum(s.Filter(from(t, s, Other), domain.TypeDeposit))))
}

func testFilterKeepsAmount(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	save(t, s, domain.NewDeposit(Client, Service, Amount("1000"), domain.WithBatchID("custom_batch_id")))

	deposits := s.Filter(from(t, s, Client), domain.TypeDeposit)
	require.Len(t, deposits, 1)
	assert.True(t, Amount("1000").Equal(deposits[0].Amount))
}

func testTypeIsolation(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	save(t, s, domain.NewDeposit(Client, Service, Amount("1")))
	save(t, s, domain.NewCredit(Client, Service, Amount("2")))
	save(t, s, domain.NewDeposit(Client, Service, Amount("3")))

	all := from(t, s, Client)

	deposits := s.Filter(all, domain.TypeDeposit)
	require.Len(t, deposits, 2)
	for _, txn := range deposits {
		assert.Equal(t, domain.TypeDeposit, txn.Type)
	}
	assert.True(t, Amount("1").Equal(deposits[0].Amount))
	assert.True(t, Amount("3").Equal(deposits[1].Amount))

	credits := s.Filter(all, domain.TypeCredit)
	require.Len(t, credits, 1)
	assert.Equal(t, domain.TypeCredit, credits[0].Type)

	assert.Empty(t, s.Filter(all, domain.Type("REFUND")))
}

func testReasonRoundTrip(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	save(t, s, domain.NewCredit(Client, Service, Amount("200"), domain.WithReason(Reason), domain.WithBatchID("custom_batch_id")))
	save(t, s, domain.NewDeposit(Client, Service, Amount("5")))

	credits := s.Filter(from(t, s, Client), domain.TypeCredit)
	require.Len(t, credits, 1)
	require.NotNil(t, credits[0].Reason)
	assert.Equal(t, Reason, *credits[0].Reason)

	deposits := s.Filter(from(t, s, Client), domain.TypeDeposit)
	require.Len(t, deposits, 1)
	assert.Nil(t, deposits[0].Reason)
}

func testUnknownAgentIsEmpty(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	save(t, s, domain.NewCredit(Client, Service, Amount("1")))

	sent, err := s.GetTransactionsFrom(context.Background(), Other)
	require.NoError(t, err)
	assert.NotNil(t, sent)
	assert.Empty(t, sent)

	received, err := s.GetTransactionsTo(context.Background(), Other)
	require.NoError(t, err)
	assert.Empty(t, received)
}

func testNegativeAmountRejected(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	save(t, s, domain.NewDeposit(Client, Service, Amount("10")))
	before := from(t, s, Client)

	_, err := s.SaveTransaction(context.Background(), domain.NewDeposit(Client, Service, Amount("-5")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	assert.Equal(t, before, from(t, s, Client))
	assert.Len(t, to(t, s, Service), 1)
}

func testPreassignedIDRejected(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	txn := domain.NewDeposit(Client, Service, Amount("10"))
	txn.ID = 99

	_, err := s.SaveTransaction(context.Background(), txn)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, from(t, s, Client))
}

func testSelfTransactionAllowed(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	saved := save(t, s, domain.NewCredit(Client, Client, Amount("3")))

	require.Len(t, from(t, s, Client), 1)
	require.Len(t, to(t, s, Client), 1)
	assert.Equal(t, saved.ID, from(t, s, Client)[0].ID)
}

func testGetTransaction(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	saved := save(t, s, domain.NewCredit(Client, Service, Amount("12.5"), domain.WithReason(Reason)))

	got, err := s.GetTransaction(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.True(t, saved.Amount.Equal(got.Amount))
	assert.Equal(t, saved.BatchID, got.BatchID)
	require.NotNil(t, got.Reason)
	assert.Equal(t, Reason, *got.Reason)

	_, err = s.GetTransaction(context.Background(), saved.ID+1000)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDefaultBatchID(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	a := save(t, s, domain.NewCredit(Client, Service, Amount("1")))
	b := save(t, s, domain.NewCredit(Client, Service, Amount("1")))

	assert.NotEmpty(t, a.BatchID)
	assert.NotEmpty(t, b.BatchID)
	assert.NotEqual(t, a.BatchID, b.BatchID)
}

func testDedupKeyReplay(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	txn := domain.NewDeposit(Client, Service, Amount("50"), domain.WithDedupKey("req-1"))

	first := save(t, s, txn)
	second := save(t, s, txn)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.BatchID, second.BatchID)
	assert.Len(t, from(t, s, Client), 1)
}

func testDedupKeyMismatch(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	save(t, s, domain.NewDeposit(Client, Service, Amount("50"), domain.WithDedupKey("req-2")))

	_, err := s.SaveTransaction(context.Background(), domain.NewDeposit(Client, Service, Amount("51"), domain.WithDedupKey("req-2")))
	require.ErrorIs(t, err, store.ErrConstraintViolation)
	assert.Len(t, from(t, s, Client), 1)
}

func testUnknownReasonRejected(t *testing.T, newStore Factory) {
	reg := domain.NewRegistry()
	reg.Register("reason", func(_ context.Context, id string) (any, error) {
		if id == Reason.ID {
			return "a long and funny description of the payment", nil
		}
		return nil, fmt.Errorf("reason %s does not exist", id)
	})

	s := newStore(t, reg)

	save(t, s, domain.NewCredit(Client, Service, Amount("1"), domain.WithReason(Reason)))

	_, err := s.SaveTransaction(context.Background(), domain.NewCredit(Client, Service, Amount("1"), domain.WithReason(domain.NewRef("reason", "missing"))))
	require.ErrorIs(t, err, store.ErrConstraintViolation)

	_, err = s.SaveTransaction(context.Background(), domain.NewCredit(Client, Service, Amount("1"), domain.WithReason(domain.NewRef("invoice", "1"))))
	require.ErrorIs(t, err, store.ErrConstraintViolation)

	assert.Len(t, from(t, s, Client), 1)
}

func testSumHelpersMatchInProcess(t *testing.T, newStore Factory) {
	s := newStore(t, nil)
	ctx := context.Background()

	save(t, s, domain.NewDeposit(Client, Service, Amount("1000")))
	save(t, s, domain.NewDeposit(Client, Service, Amount("200.25")))
	save(t, s, domain.NewCredit(Client, Service, Amount("9")))
	save(t, s, domain.NewDeposit(Service, Client, Amount("4")))

	sent, err := store.SumFrom(ctx, s, Client, domain.TypeDeposit)
	require.NoError(t, err)
	assert.True(t, s.Sum(s.Filter(from(t, s, Client), domain.TypeDeposit)).Equal(sent), "got %s", sent)

	received, err := store.SumTo(ctx, s, Client, domain.TypeDeposit)
	require.NoError(t, err)
	assert.True(t, Amount("4").Equal(received), "got %s", received)

	none, err := store.SumFrom(ctx, s, Other, domain.TypeCredit)
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

func testDecimalPrecision(t *testing.T, newStore Factory) {
	s := newStore(t, nil)

	save(t, s, domain.NewDeposit(Client, Service, Amount("0.1")))
	save(t, s, domain.NewDeposit(Client, Service, Amount("0.2")))
	save(t, s, domain.NewDeposit(Client, Service, Amount("0")))

	total := s.Sum(from(t, s, Client))
	assert.True(t, Amount("0.3").Equal(total), "got %s", total)
}

// Row is a backend-independent view of a transaction.
type Row struct {
	Type     domain.Type
	From     domain.Ref
	To       domain.Ref
	Amount   string
	Reason   string
	BatchID  string
	DedupKey string
}

// Normalize strips the store-assigned fields so results of different
// backends can be compared.
func Normalize(txns []domain.Transaction) []Row {
	out := make([]Row, len(txns))
	for i, txn := range txns {
		out[i] = Row{
			Type:     txn.Type,
			From:     txn.From,
			To:       txn.To,
			Amount:   txn.Amount.String(),
			BatchID:  txn.BatchID,
			DedupKey: txn.DedupKey,
		}
		if txn.Reason != nil {
			out[i].Reason = txn.Reason.String()
		}
	}

	return out
}
