package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/store"
	"github.com/punchamoorthee/txledger/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSuite(t *testing.T) {
	storetest.Run(t, func(t *testing.T, resolver domain.Resolver) store.Storage {
		return NewStore(WithResolver(resolver))
	})
}

func TestStore_IDsStartAtOne(t *testing.T) {
	s := NewStore()

	first, err := s.SaveTransaction(context.Background(), domain.NewCredit(storetest.Client, storetest.Service, storetest.Amount("1")))
	require.NoError(t, err)
	second, err := s.SaveTransaction(context.Background(), domain.NewCredit(storetest.Client, storetest.Service, storetest.Amount("1")))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestStore_UsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return fixed }))

	saved, err := s.SaveTransaction(context.Background(), domain.NewDeposit(storetest.Client, storetest.Service, storetest.Amount("5")))
	require.NoError(t, err)
	assert.Equal(t, fixed, saved.CreatedAt)
}

func TestStore_ResultsAreCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	saved, err := s.SaveTransaction(ctx, domain.NewCredit(storetest.Client, storetest.Service, storetest.Amount("5"), domain.WithReason(storetest.Reason)))
	require.NoError(t, err)

	saved.Reason.ID = "tampered"
	saved.BatchID = "tampered"

	got, err := s.GetTransactionsFrom(ctx, storetest.Client)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, storetest.Reason, *got[0].Reason)
	assert.NotEqual(t, "tampered", got[0].BatchID)

	got[0].Reason.ID = "tampered again"
	again, err := s.GetTransaction(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, storetest.Reason, *again.Reason)
}

func TestStore_All(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.SaveTransaction(ctx, domain.NewCredit(storetest.Client, storetest.Service, storetest.Amount("1")))
	require.NoError(t, err)
	_, err = s.SaveTransaction(ctx, domain.NewDeposit(storetest.Service, storetest.Other, storetest.Amount("2")))
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, domain.TypeCredit, all[0].Type)
	assert.Equal(t, domain.TypeDeposit, all[1].Type)
}

func TestStore_ConcurrentSaves(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := s.SaveTransaction(ctx, domain.NewDeposit(storetest.Client, storetest.Service, storetest.Amount("1")))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sent, err := s.GetTransactionsFrom(ctx, storetest.Client)
	require.NoError(t, err)
	assert.Len(t, sent, n)
	assert.True(t, storetest.Amount("200").Equal(s.Sum(sent)))

	seen := make(map[int64]bool, n)
	for _, txn := range sent {
		assert.False(t, seen[txn.ID], "duplicate id %d", txn.ID)
		seen[txn.ID] = true
	}
}
