package cmd

import (
	"context"
	"math/rand"
	"testing"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/ledger"
	"github.com/punchamoorthee/txledger/internal/store/memory"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedLedger_IsRepeatable(t *testing.T) {
	clients, services, perClient = 3, 2, 5

	s := memory.NewStore()
	l := ledger.New(s)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	saved, err := seedLedger(cmd, l, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 3*5+3, saved)
	assert.Len(t, s.All(), 18)

	// same seed, same dedup keys: nothing new is written
	_, err = seedLedger(cmd, l, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, s.All(), 18)

	sent, err := s.GetTransactionsFrom(context.Background(), domain.NewRef("client", "client-1"))
	require.NoError(t, err)
	assert.Len(t, sent, 5)
}

func TestParseAgent(t *testing.T) {
	ref, err := parseAgent("client:client-1")
	require.NoError(t, err)
	assert.Equal(t, domain.NewRef("client", "client-1"), ref)

	for _, bad := range []string{"client", "client:", ":1", ""} {
		_, err := parseAgent(bad)
		assert.Error(t, err, bad)
	}
}
