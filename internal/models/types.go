package models

import (
	"time"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/shopspring/decimal"
)

// RefPayload identifies an agent or a reason on the wire.
type RefPayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// TransactionRequest is the payload from the client.
type TransactionRequest struct {
	Type    string          `json:"type"`
	From    RefPayload      `json:"from"`
	To      RefPayload      `json:"to"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  *RefPayload     `json:"reason,omitempty"`
	BatchID string          `json:"batch_id,omitempty"`
}

// Transaction converts the request into an unsaved domain transaction.
func (r TransactionRequest) Transaction(dedupKey string) domain.Transaction {
	t := domain.Transaction{
		Type:     domain.Type(r.Type),
		From:     domain.NewRef(r.From.Kind, r.From.ID),
		To:       domain.NewRef(r.To.Kind, r.To.ID),
		Amount:   r.Amount,
		BatchID:  r.BatchID,
		DedupKey: dedupKey,
	}

	if r.Reason != nil {
		reason := domain.NewRef(r.Reason.Kind, r.Reason.ID)
		t.Reason = &reason
	}

	return t
}

// Transaction is the immutable record returned to clients.
type Transaction struct {
	ID        int64       `json:"id"`
	Type      string      `json:"type"`
	From      RefPayload  `json:"from"`
	To        RefPayload  `json:"to"`
	Amount    string      `json:"amount"`
	Reason    *RefPayload `json:"reason,omitempty"`
	BatchID   string      `json:"batch_id"`
	CreatedAt time.Time   `json:"created_at"`
}

// FromDomain builds the wire form of a saved transaction.
func FromDomain(t domain.Transaction) Transaction {
	out := Transaction{
		ID:        t.ID,
		Type:      string(t.Type),
		From:      RefPayload{Kind: t.From.Kind, ID: t.From.ID},
		To:        RefPayload{Kind: t.To.Kind, ID: t.To.ID},
		Amount:    t.Amount.String(),
		BatchID:   t.BatchID,
		CreatedAt: t.CreatedAt,
	}

	if t.Reason != nil {
		out.Reason = &RefPayload{Kind: t.Reason.Kind, ID: t.Reason.ID}
	}

	return out
}

// FromDomainList converts a slice, never returning nil.
func FromDomainList(txns []domain.Transaction) []Transaction {
	out := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		out = append(out, FromDomain(t))
	}

	return out
}

// TransactionList is the response for per-agent listings.
type TransactionList struct {
	Agent        RefPayload    `json:"agent"`
	Type         string        `json:"type,omitempty"`
	Transactions []Transaction `json:"transactions"`
}

// SumResponse is the response for per-agent totals.
type SumResponse struct {
	Agent RefPayload `json:"agent"`
	Type  string     `json:"type"`
	Total string     `json:"total"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
