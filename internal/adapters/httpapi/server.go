package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/sura-tech/quotes-api/internal/app/idempotency"
	"github.com/sura-tech/quotes-api/internal/app/quotes"
	"github.com/sura-tech/quotes-api/internal/domain"
)

const (
	headerIdempotencyKey    = "Idempotency-Key"
	headerIdempotencyStatus = "Idempotency-Status"
)

// Server holds the HTTP handlers. It is a thin adapter: decode and validate
// the request, call the application service, encode the outcome.
type Server struct {
	Quotes *quotes.Service
	Logger *zap.Logger
}

func NewServer(quotesSvc *quotes.Service, logger *zap.Logger) *Server {
	return &Server{Quotes: quotesSvc, Logger: logger}
}

func (s *Server) CreateQuote(w http.ResponseWriter, r *http.Request) {
	keyHeader := r.Header.Get(headerIdempotencyKey)
	if keyHeader == "" {
		writeError(w, r, http.StatusBadRequest, "IDEMPOTENCY_KEY_REQUIRED", "Idempotency-Key header is required", nil)
		return
	}
	key, err := uuid.Parse(keyHeader)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "IDEMPOTENCY_KEY_INVALID", "Idempotency-Key must be a UUID", nil)
		return
	}

	var req QuoteCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, openapi_types.ErrValidationEmail) {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "request validation failed",
				map[string]any{"fieldErrors": map[string]string{"customer.email": "must be a valid email address"}})
			return
		}
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body", nil)
		return
	}

	if fe := req.validate(); len(fe) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "request validation failed",
			map[string]any{"fieldErrors": fe})
		return
	}

	res, err := s.Quotes.CreateQuote(r.Context(), key, req.toInput())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if res.Replayed {
		w.Header().Set(headerIdempotencyStatus, "replayed")
		s.writeJSON(w, http.StatusOK, toQuoteResponse(res.Quote))
		return
	}
	w.Header().Set(headerIdempotencyStatus, "created")
	w.Header().Set("Location", "/api/v1/quotes/"+string(res.Quote.ID))
	s.writeJSON(w, http.StatusCreated, toQuoteResponse(res.Quote))
}

func (s *Server) GetQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "quoteID")

	q, err := s.Quotes.GetQuote(r.Context(), domain.QuoteID(id))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toQuoteResponse(q))
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *idempotency.ConflictError
	if errors.As(err, &conflict) {
		writeError(w, r, http.StatusConflict, "IDEMPOTENCY_CONFLICT",
			"Idempotency-Key was already used with a different request body", nil)
		return
	}

	var ae *quotes.Error
	if errors.As(err, &ae) {
		writeError(w, r, ae.Status, ae.Code, ae.Message, ae.Details)
		return
	}

	s.Logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", RequestIDFromContext(r.Context())),
		zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error("encode response failed", zap.Error(err))
	}
}
