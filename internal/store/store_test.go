package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/store"
	"github.com/punchamoorthee/txledger/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.NewRef("client", "alice")
	shop  = domain.NewRef("service", "shop")
)

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFilter(t *testing.T) {
	txns := []domain.Transaction{
		{ID: 1, Type: domain.TypeDeposit, Amount: amount("1")},
		{ID: 2, Type: domain.TypeCredit, Amount: amount("2")},
		{ID: 3, Type: domain.TypeDeposit, Amount: amount("3")},
	}

	deposits := store.Filter(txns, domain.TypeDeposit)
	require.Len(t, deposits, 2)
	assert.Equal(t, int64(1), deposits[0].ID)
	assert.Equal(t, int64(3), deposits[1].ID)

	none := store.Filter(nil, domain.TypeCredit)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSum(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{name: "empty", in: nil, want: "0"},
		{name: "integers", in: []string{"1000", "200"}, want: "1200"},
		{name: "fractions", in: []string{"0.1", "0.2"}, want: "0.3"},
		{name: "zero amounts", in: []string{"0", "0"}, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txns []domain.Transaction
			for _, a := range tt.in {
				txns = append(txns, domain.Transaction{Amount: amount(a)})
			}

			got := store.Sum(txns)
			assert.True(t, amount(tt.want).Equal(got), "got %s", got)
		})
	}
}

type missingResolver struct{}

func (missingResolver) Resolve(context.Context, domain.Ref) (any, error) {
	return nil, errors.New("no such reason")
}

func TestPrepareForSave(t *testing.T) {
	ctx := context.Background()

	prepared, err := store.PrepareForSave(ctx, domain.NewCredit(alice, shop, amount("5")), nil)
	require.NoError(t, err)
	assert.Empty(t, prepared.BatchID)

	_, err = store.PrepareForSave(ctx, domain.NewCredit(alice, shop, amount("-5")), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = store.PrepareForSave(ctx, domain.NewCredit(alice, shop, amount("5"), domain.WithReason(domain.NewRef("reason", "1"))), missingResolver{})
	assert.ErrorIs(t, err, store.ErrConstraintViolation)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.PrepareForSave(canceled, domain.NewCredit(alice, shop, amount("5"), domain.WithReason(domain.NewRef("reason", "1"))), missingResolver{})
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
}

func TestCheckReplay(t *testing.T) {
	existing := domain.NewDeposit(alice, shop, amount("10"), domain.WithBatchID("b"), domain.WithDedupKey("k"))
	existing.ID = 4

	got, err := store.CheckReplay(domain.NewDeposit(alice, shop, amount("10.00"), domain.WithDedupKey("k")), existing)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.ID)

	_, err = store.CheckReplay(domain.NewDeposit(alice, shop, amount("11"), domain.WithDedupKey("k")), existing)
	assert.ErrorIs(t, err, store.ErrConstraintViolation)

	_, err = store.CheckReplay(domain.NewDeposit(alice, shop, amount("10"), domain.WithBatchID("other"), domain.WithDedupKey("k")), existing)
	assert.ErrorIs(t, err, store.ErrConstraintViolation)
}

func TestSumFromFallsBackToFilterAndSum(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	for _, a := range []string{"1000", "200"} {
		_, err := s.SaveTransaction(ctx, domain.NewDeposit(alice, shop, amount(a)))
		require.NoError(t, err)
	}
	_, err := s.SaveTransaction(ctx, domain.NewCredit(alice, shop, amount("5")))
	require.NoError(t, err)

	sent, err := store.SumFrom(ctx, s, alice, domain.TypeDeposit)
	require.NoError(t, err)
	assert.True(t, amount("1200").Equal(sent))

	received, err := store.SumTo(ctx, s, shop, domain.TypeCredit)
	require.NoError(t, err)
	assert.True(t, amount("5").Equal(received))
}
