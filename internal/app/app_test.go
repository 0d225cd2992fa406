package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/punchamoorthee/txledger/internal/config"
	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(storage string, dir string) *config.Config {
	return &config.Config{
		Storage:      storage,
		SQLitePath:   filepath.Join(dir, "ledger.db"),
		Env:          "development",
		QueryTimeout: time.Second,
	}
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{config.StorageMemory, config.StorageSQLite} {
		t.Run(backend, func(t *testing.T) {
			reg := prometheus.NewRegistry()

			a, err := New(ctx, testConfig(backend, t.TempDir()), zap.NewNop(), reg)
			require.NoError(t, err)
			t.Cleanup(a.Close)

			client := domain.NewRef("client", "azamat")
			_, err = a.Ledger.AddTransaction(ctx, domain.NewDeposit(client, domain.NewRef("service", "dentist"), decimal.NewFromInt(3)))
			require.NoError(t, err)

			total, err := a.Ledger.SumFrom(ctx, client, domain.TypeDeposit)
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(3).Equal(total))

			count, err := testutil.GatherAndCount(reg, "ledger_storage_operations_total")
			require.NoError(t, err)
			assert.Positive(t, count)
		})
	}
}

func TestNew_TypesFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	path := filepath.Join(dir, "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte("types:\n  - REFUND\n"), 0o600))

	cfg := testConfig(config.StorageMemory, dir)
	cfg.TypesFile = path

	a, err := New(ctx, cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	assert.True(t, a.Ledger.Types().IsRegistered("REFUND"))
	assert.True(t, a.Ledger.Types().IsRegistered(domain.TypeDeposit))
	assert.False(t, domain.DefaultTypes.IsRegistered("REFUND"))

	cfg.TypesFile = filepath.Join(dir, "missing.yaml")
	_, err = New(ctx, cfg, zap.NewNop(), nil)
	assert.Error(t, err)
}
