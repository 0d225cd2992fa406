package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/store"
	"github.com/punchamoorthee/txledger/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	client  = domain.NewRef("client", "azamat")
	service = domain.NewRef("service", "dentist")
)

// spyStorage counts saves and can be told to fail them.
type spyStorage struct {
	store.Storage
	saves   int
	saveErr error
}

func (s *spyStorage) SaveTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	s.saves++
	if s.saveErr != nil {
		return domain.Transaction{}, s.saveErr
	}

	return s.Storage.SaveTransaction(ctx, t)
}

func newTestTracerProvider() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	return exp, tp
}

func TestAddTransaction(t *testing.T) {
	ctx := context.Background()
	spy := &spyStorage{Storage: memory.NewStore()}
	l := New(spy)

	saved, err := l.AddTransaction(ctx, domain.NewDeposit(client, service, decimal.NewFromInt(1000)))
	require.NoError(t, err)
	assert.Equal(t, 1, spy.saves)
	assert.True(t, saved.IsPersisted())
	assert.NotEmpty(t, saved.BatchID)

	sent, err := spy.GetTransactionsFrom(ctx, client)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, saved.ID, sent[0].ID)
}

func TestAddTransaction_InvalidNeverReachesStorage(t *testing.T) {
	ctx := context.Background()
	ten := decimal.NewFromInt(10)

	tests := []struct {
		name     string
		txn      domain.Transaction
		wantType bool
	}{
		{name: "negative amount", txn: domain.NewDeposit(client, service, decimal.NewFromInt(-1))},
		{name: "missing receiver", txn: domain.NewDeposit(client, domain.Ref{}, ten)},
		{name: "preassigned id", txn: domain.Transaction{ID: 9, Type: domain.TypeDeposit, From: client, To: service, Amount: ten}},
		{name: "unregistered type", txn: domain.Transaction{Type: "WITHDRAWAL", From: client, To: service, Amount: ten}, wantType: true},
		{name: "empty type", txn: domain.Transaction{From: client, To: service, Amount: ten}, wantType: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyStorage{Storage: memory.NewStore()}
			l := New(spy)

			_, err := l.AddTransaction(ctx, tt.txn)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, tt.wantType, errors.Is(err, domain.ErrInvalidTransactionType))
			assert.Zero(t, spy.saves)

			received, err := spy.GetTransactionsTo(ctx, service)
			require.NoError(t, err)
			assert.Empty(t, received)
		})
	}
}

func TestAddTransaction_CustomTypes(t *testing.T) {
	ctx := context.Background()
	reg := domain.NewTypeRegistry(domain.TypeDeposit)
	require.NoError(t, reg.Register("REFUND"))

	l := New(memory.NewStore(), WithTypes(reg))

	_, err := l.AddTransaction(ctx, domain.Transaction{Type: "REFUND", From: service, To: client, Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	_, err = l.AddTransaction(ctx, domain.NewCredit(client, service, decimal.NewFromInt(5)))
	assert.ErrorIs(t, err, domain.ErrInvalidTransactionType)
}

func TestAddTransaction_StorageErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	storageErr := fmt.Errorf("insert: %w", store.ErrStorageUnavailable)
	spy := &spyStorage{Storage: memory.NewStore(), saveErr: storageErr}

	core, logs := observer.New(zap.ErrorLevel)
	l := New(spy, WithLogger(zap.New(core)))

	_, err := l.AddTransaction(ctx, domain.NewDeposit(client, service, decimal.NewFromInt(1)))
	assert.Same(t, storageErr, err)
	assert.Equal(t, 1, spy.saves)
	assert.Equal(t, 1, logs.FilterMessage("failed to save transaction").Len())
}

func TestAddTransaction_Spans(t *testing.T) {
	ctx := context.Background()
	exp, tp := newTestTracerProvider()
	l := New(memory.NewStore(), WithTracerProvider(tp))

	_, err := l.AddTransaction(ctx, domain.NewDeposit(client, service, decimal.NewFromInt(1)))
	require.NoError(t, err)
	_, err = l.AddTransaction(ctx, domain.NewDeposit(client, service, decimal.NewFromInt(-1)))
	require.Error(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 2)

	for _, s := range spans {
		assert.Equal(t, "ledger.add_transaction", s.Name)
	}
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	l := New(memory.NewStore())

	for _, txn := range []domain.Transaction{
		domain.NewDeposit(client, service, decimal.NewFromInt(1000)),
		domain.NewDeposit(client, service, decimal.NewFromInt(200)),
		domain.NewCredit(service, client, decimal.NewFromInt(50)),
		domain.NewDeposit(service, client, decimal.NewFromInt(300)),
	} {
		_, err := l.AddTransaction(ctx, txn)
		require.NoError(t, err)
	}

	all, err := l.TransactionsFrom(ctx, client, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	credits, err := l.TransactionsTo(ctx, client, domain.TypeCredit)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.True(t, decimal.NewFromInt(50).Equal(credits[0].Amount))

	got, err := l.Transaction(ctx, credits[0].ID)
	require.NoError(t, err)
	assert.Equal(t, credits[0], got)

	sent, err := l.SumFrom(ctx, client, domain.TypeDeposit)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1200).Equal(sent))

	balance, err := l.Balance(ctx, client, domain.TypeDeposit)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(-900).Equal(balance), "got %s", balance)

	unknown, err := l.Balance(ctx, domain.NewRef("client", "nobody"), domain.TypeDeposit)
	require.NoError(t, err)
	assert.True(t, unknown.IsZero())
}

func TestSetStorage(t *testing.T) {
	ctx := context.Background()
	first := memory.NewStore()
	l := New(first)

	_, err := l.AddTransaction(ctx, domain.NewDeposit(client, service, decimal.NewFromInt(1)))
	require.NoError(t, err)

	second := memory.NewStore()
	l.SetStorage(second)
	assert.Same(t, second, l.Storage())

	sent, err := l.TransactionsFrom(ctx, client, "")
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	_, err := New(memory.NewStore()).Resolve(ctx, client)
	assert.ErrorIs(t, err, ErrNoResolver)

	reg := domain.NewRegistry()
	reg.Register("client", func(_ context.Context, id string) (any, error) {
		return "patient " + id, nil
	})

	l := New(memory.NewStore(), WithResolver(reg))

	got, err := l.Resolve(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, "patient azamat", got)

	_, err = l.Resolve(ctx, service)
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}
