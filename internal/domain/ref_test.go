package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type patient struct{ id string }

func (p patient) EntityKind() string { return "client" }
func (p patient) EntityID() string   { return p.id }

func TestRef(t *testing.T) {
	r := RefOf(patient{id: "azamat"})

	assert.Equal(t, NewRef("client", "azamat"), r)
	assert.Equal(t, "client:azamat", r.String())
	assert.False(t, r.IsZero())

	assert.True(t, Ref{}.IsZero())
	assert.True(t, NewRef("client", "").IsZero())
	assert.True(t, NewRef(" ", "1").IsZero())

	// same id, different kind
	assert.NotEqual(t, NewRef("client", "1"), NewRef("service", "1"))
}

func TestRegistry_Resolve(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	reg.Register("client", func(_ context.Context, id string) (any, error) {
		if id != "azamat" {
			return nil, errors.New("no such client")
		}
		return patient{id: id}, nil
	})

	got, err := reg.Resolve(ctx, NewRef("client", "azamat"))
	require.NoError(t, err)
	assert.Equal(t, patient{id: "azamat"}, got)

	_, err = reg.Resolve(ctx, NewRef("client", "nobody"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownKind)

	_, err = reg.Resolve(ctx, NewRef("service", "dentist"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}
