package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one immutable movement of value between two agents.
// ID and CreatedAt are zero until a store saves it.
type Transaction struct {
	ID        int64           `json:"id"`
	Type      Type            `json:"type"`
	From      Ref             `json:"from"`
	To        Ref             `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    *Ref            `json:"reason,omitempty"`
	BatchID   string          `json:"batch_id"`
	DedupKey  string          `json:"dedup_key,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Option customises a transaction built by a constructor.
type Option func(*Transaction)

// WithReason attaches a reason reference.
func WithReason(reason Ref) Option {
	return func(t *Transaction) {
		r := reason
		t.Reason = &r
	}
}

// WithBatchID sets the grouping key.
func WithBatchID(batchID string) Option {
	return func(t *Transaction) {
		t.BatchID = batchID
	}
}

// WithDedupKey makes retried saves of the same transaction idempotent.
func WithDedupKey(key string) Option {
	return func(t *Transaction) {
		t.DedupKey = key
	}
}

// NewDeposit builds an unsaved DEPOSIT transaction.
func NewDeposit(from, to Ref, amount decimal.Decimal, opts ...Option) Transaction {
	t, _ := DefaultTypes.New(TypeDeposit, from, to, amount, opts...)
	return t
}

// NewCredit builds an unsaved CREDIT transaction.
func NewCredit(from, to Ref, amount decimal.Decimal, opts ...Option) Transaction {
	t, _ := DefaultTypes.New(TypeCredit, from, to, amount, opts...)
	return t
}

// IsPersisted reports whether a store has assigned the transaction an id.
func (t Transaction) IsPersisted() bool {
	return t.ID != 0
}

// Clone returns a copy that shares no pointers with t.
func (t Transaction) Clone() Transaction {
	c := t
	if t.Reason != nil {
		r := *t.Reason
		c.Reason = &r
	}

	return c
}

// SamePayload reports whether t, a transaction about to be saved, describes
// the same movement as the stored o. Store-assigned fields are ignored, and so
// is the batch id when t left it to be defaulted.
func (t Transaction) SamePayload(o Transaction) bool {
	if t.Type != o.Type || t.From != o.From || t.To != o.To || !t.Amount.Equal(o.Amount) {
		return false
	}

	if t.BatchID != "" && t.BatchID != o.BatchID {
		return false
	}

	switch {
	case t.Reason == nil && o.Reason == nil:
		return true
	case t.Reason == nil || o.Reason == nil:
		return false
	default:
		return *t.Reason == *o.Reason
	}
}

// Validate checks the invariants every transaction must hold before it is
// saved. Type membership is checked against reg when reg is non-nil.
func (t Transaction) Validate(reg *TypeRegistry) error {
	if t.IsPersisted() {
		return NewValidationError("id", "id is assigned by storage and must be empty")
	}

	if t.Type == "" {
		return &ValidationError{Field: "type", Message: "type is required", Cause: ErrInvalidTransactionType}
	}

	if reg != nil && !reg.IsRegistered(t.Type) {
		return &ValidationError{Field: "type", Message: "type " + string(t.Type) + " is not registered", Cause: ErrInvalidTransactionType}
	}

	if t.From.IsZero() {
		return NewValidationError("from", "sending agent is required")
	}

	if t.To.IsZero() {
		return NewValidationError("to", "receiving agent is required")
	}

	if t.Amount.IsNegative() {
		return NewValidationError("amount", "amount must not be negative")
	}

	if t.Reason != nil && t.Reason.IsZero() {
		return NewValidationError("reason", "reason reference is incomplete")
	}

	return nil
}

// WithDefaults fills caller-optional fields. A missing batch id becomes a new UUID.
func (t Transaction) WithDefaults() Transaction {
	if t.BatchID == "" {
		t.BatchID = uuid.NewString()
	}

	return t
}
