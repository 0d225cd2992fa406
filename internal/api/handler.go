package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/ledger"
	"github.com/punchamoorthee/txledger/internal/models"
	"github.com/punchamoorthee/txledger/internal/store"
	"go.uber.org/zap"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

func NewHandler(l *ledger.Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{ledger: l, logger: logger}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/transactions", h.timed("/transactions", h.CreateTransactionHandler)).Methods(http.MethodPost)
	v1.HandleFunc("/transactions/{id:[0-9]+}", h.timed("/transactions/{id}", h.GetTransactionHandler)).Methods(http.MethodGet)
	v1.HandleFunc("/agents/{kind}/{id}/sent", h.timed("/agents/{kind}/{id}/sent", h.SentHandler)).Methods(http.MethodGet)
	v1.HandleFunc("/agents/{kind}/{id}/received", h.timed("/agents/{kind}/{id}/received", h.ReceivedHandler)).Methods(http.MethodGet)
	v1.HandleFunc("/agents/{kind}/{id}/sent/sum", h.timed("/agents/{kind}/{id}/sent/sum", h.SentSumHandler)).Methods(http.MethodGet)
	v1.HandleFunc("/agents/{kind}/{id}/received/sum", h.timed("/agents/{kind}/{id}/received/sum", h.ReceivedSumHandler)).Methods(http.MethodGet)
}

// statusRecorder remembers the code written so the request can be counted.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// timed records latency and the response status of fn under endpoint.
func (h *Handler) timed(endpoint string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	}
}

// respondWithStorageError maps ledger and storage errors onto HTTP statuses.
func (h *Handler) respondWithStorageError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError

	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidTransactionType):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, store.ErrConstraintViolation):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrStorageUnavailable):
		h.logger.Warn("storage unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Retry-After", "1")
		respondWithError(w, http.StatusServiceUnavailable, "Storage unavailable, retry later")
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
