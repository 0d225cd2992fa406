package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"LEDGER_STORAGE", "DB_SOURCE", "SQLITE_PATH", "SERVER_PORT",
		"ENVIRONMENT", "LOG_LEVEL", "QUERY_TIMEOUT", "LEDGER_TYPES_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "./data/ledger.db", cfg.SQLitePath)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Empty(t, cfg.TypesFile)
}

func TestFromEnv_Postgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_STORAGE", "postgres")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "DB_SOURCE")

	t.Setenv("DB_SOURCE", "postgres://ledger@localhost/ledger")
	t.Setenv("QUERY_TIMEOUT", "750ms")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, 750*time.Millisecond, cfg.QueryTimeout)
	assert.Equal(t, "9090", cfg.Port)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{name: "unknown backend", key: "LEDGER_STORAGE", val: "mongo", want: "LEDGER_STORAGE"},
		{name: "bad timeout", key: "QUERY_TIMEOUT", val: "soon", want: "QUERY_TIMEOUT"},
		{name: "negative timeout", key: "QUERY_TIMEOUT", val: "-1s", want: "QUERY_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := FromEnv()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
