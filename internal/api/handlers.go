package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	// Optional: a repeated key returns the transaction saved first
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var req models.TransactionRequest
	if err := dec.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	saved, err := h.ledger.AddTransaction(r.Context(), req.Transaction(idempotencyKey))
	if err != nil {
		h.respondWithStorageError(w, r, err)
		return
	}

	h.logger.Info("transaction recorded",
		zap.Int64("id", saved.ID),
		zap.String("type", string(saved.Type)),
		zap.String("batch_id", saved.BatchID),
	)

	w.Header().Set("Location", fmt.Sprintf("/api/v1/transactions/%d", saved.ID))
	respondWithJSON(w, http.StatusCreated, models.FromDomain(saved))
}

func (h *Handler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	txn, err := h.ledger.Transaction(r.Context(), id)
	if err != nil {
		h.respondWithStorageError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, models.FromDomain(txn))
}

func (h *Handler) SentHandler(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *Handler) ReceivedHandler(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *Handler) SentSumHandler(w http.ResponseWriter, r *http.Request) {
	h.sum(w, r, true)
}

func (h *Handler) ReceivedSumHandler(w http.ResponseWriter, r *http.Request) {
	h.sum(w, r, false)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, sent bool) {
	agent := agentRef(r)
	typ := domain.Type(r.URL.Query().Get("type"))

	if typ != "" && !h.ledger.Types().IsRegistered(typ) {
		respondWithError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Unknown transaction type %q", typ))
		return
	}

	var (
		txns []domain.Transaction
		err  error
	)
	if sent {
		txns, err = h.ledger.TransactionsFrom(r.Context(), agent, typ)
	} else {
		txns, err = h.ledger.TransactionsTo(r.Context(), agent, typ)
	}
	if err != nil {
		h.respondWithStorageError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, models.TransactionList{
		Agent:        models.RefPayload{Kind: agent.Kind, ID: agent.ID},
		Type:         string(typ),
		Transactions: models.FromDomainList(txns),
	})
}

func (h *Handler) sum(w http.ResponseWriter, r *http.Request, sent bool) {
	agent := agentRef(r)
	typ := domain.Type(r.URL.Query().Get("type"))

	if typ == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter type is required")
		return
	}
	if !h.ledger.Types().IsRegistered(typ) {
		respondWithError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Unknown transaction type %q", typ))
		return
	}

	var (
		total decimal.Decimal
		err   error
	)
	if sent {
		total, err = h.ledger.SumFrom(r.Context(), agent, typ)
	} else {
		total, err = h.ledger.SumTo(r.Context(), agent, typ)
	}
	if err != nil {
		h.respondWithStorageError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, models.SumResponse{
		Agent: models.RefPayload{Kind: agent.Kind, ID: agent.ID},
		Type:  string(typ),
		Total: total.String(),
	})
}

func agentRef(r *http.Request) domain.Ref {
	vars := mux.Vars(r)
	return domain.NewRef(vars["kind"], vars["id"])
}
