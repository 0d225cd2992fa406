package domain

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeRegistry_Register(t *testing.T) {
	reg := NewTypeRegistry()

	require.NoError(t, reg.Register("REFUND"))
	require.NoError(t, reg.Register("REFUND"))
	require.NoError(t, reg.Register("FEE_2"))

	for _, bad := range []Type{"", "refund", "1FEE", "FEE-2", Type(strings.Repeat("A", 65))} {
		assert.ErrorIs(t, reg.Register(bad), ErrInvalidTransactionType, "tag %q", bad)
	}

	assert.Equal(t, []Type{"FEE_2", "REFUND"}, reg.Types())
	assert.True(t, reg.IsRegistered("REFUND"))
	assert.False(t, reg.IsRegistered(TypeDeposit))
}

func TestDefaultTypes(t *testing.T) {
	assert.True(t, DefaultTypes.IsRegistered(TypeDeposit))
	assert.True(t, DefaultTypes.IsRegistered(TypeCredit))
}

func TestTypeRegistry_New(t *testing.T) {
	reg := NewTypeRegistry(TypeDeposit)

	txn, err := reg.New(TypeDeposit, client, service, decimal.NewFromInt(5), WithDedupKey("k"))
	require.NoError(t, err)
	assert.Equal(t, TypeDeposit, txn.Type)
	assert.Equal(t, "k", txn.DedupKey)
	assert.False(t, txn.IsPersisted())

	_, err = reg.New("WITHDRAWAL", client, service, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, ErrInvalidTransactionType)
}

func TestLoadTypes(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    []Type
		wantErr bool
	}{
		{name: "list", doc: "types:\n  - REFUND\n  - FEE\n", want: []Type{"REFUND", "FEE"}},
		{name: "empty document", doc: "", want: nil},
		{name: "no types key", doc: "other: 1\n", want: []Type{}},
		{name: "malformed tag", doc: "types:\n  - REFUND\n  - bad tag\n", want: []Type{"REFUND"}, wantErr: true},
		{name: "not yaml", doc: "types: [REFUND\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewTypeRegistry()

			got, err := LoadTypes(strings.NewReader(tt.doc), reg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tt.want, got)
			for _, typ := range tt.want {
				assert.True(t, reg.IsRegistered(typ))
			}
		})
	}
}
