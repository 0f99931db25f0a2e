/**
 * @description
 * HTTP handlers for the monetization service: earnings ingestion and
 * dashboards, payout requests, and payout settings.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/app"
	"github.com/inkwell/monetization-service/internal/domain"
	"github.com/inkwell/monetization-service/internal/money"
	"github.com/inkwell/monetization-service/internal/store"
)

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service *app.Service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

type recordEarningRequest struct {
	UnlockRecordID uuid.UUID `json:"unlock_record_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	AuthorID       uuid.UUID `json:"author_id"`
	ChapterID      uuid.UUID `json:"chapter_id"`
	AmountMinor    int64     `json:"amount_minor"`
	Currency       string    `json:"currency"`
	AuthorTier     string    `json:"author_tier,omitempty"`
	OccurredAt     time.Time `json:"occurred_at,omitempty"`
}

// handleRecordEarning is the internal synchronous ingestion path; the primary
// path is the RabbitMQ unlock event consumer, which shares the same
// idempotent service call.
func (h *Handler) handleRecordEarning(w http.ResponseWriter, r *http.Request) {
	var req recordEarningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UnlockRecordID == uuid.Nil || req.AuthorID == uuid.Nil {
		http.Error(w, "unlock_record_id and author_id are required", http.StatusBadRequest)
		return
	}

	earning, err := h.service.RecordEarning(r.Context(), domain.UnlockRecord{
		ID:          req.UnlockRecordID,
		ReaderID:    req.ReaderID,
		AuthorID:    req.AuthorID,
		ChapterID:   req.ChapterID,
		GrossAmount: money.New(req.AmountMinor, req.Currency),
		AuthorTier:  req.AuthorTier,
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		log.Printf("Error recording earning for unlock %s: %v", req.UnlockRecordID, err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusCreated, earning)
}

func (h *Handler) handleEarningsSummary(w http.ResponseWriter, r *http.Request) {
	authorID, ok := AuthorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := h.service.EarningsSummary(r.Context(), authorID)
	if err != nil {
		log.Printf("Error building earnings summary for author %s: %v", authorID, err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListEarnings(w http.ResponseWriter, r *http.Request) {
	authorID, ok := AuthorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid from timestamp; expected RFC3339", http.StatusBadRequest)
			return
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid to timestamp; expected RFC3339", http.StatusBadRequest)
			return
		}
		end = parsed
	}
	if !start.Before(end) {
		http.Error(w, "from must precede to", http.StatusBadRequest)
		return
	}

	earnings, err := h.service.EarningsInPeriod(r.Context(), authorID, start, end)
	if err != nil {
		log.Printf("Error listing earnings for author %s: %v", authorID, err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusOK, earnings)
}

func (h *Handler) handleListUnpaidEarnings(w http.ResponseWriter, r *http.Request) {
	authorID, ok := AuthorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	earnings, err := h.service.UnpaidEarnings(r.Context(), authorID)
	if err != nil {
		log.Printf("Error listing unpaid earnings for author %s: %v", authorID, err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusOK, earnings)
}

type requestPayoutRequest struct {
	AmountMinor *int64  `json:"amount_minor,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

func (h *Handler) handleRequestPayout(w http.ResponseWriter, r *http.Request) {
	authorID, ok := AuthorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req requestPayoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	// An omitted currency means the platform's configured default; the service
	// fills it in so non-USD deployments do not need it on every request.
	var requested *money.Money
	if req.AmountMinor != nil {
		amount := money.New(*req.AmountMinor, req.Currency)
		requested = &amount
	}

	payout, err := h.service.RequestPayout(r.Context(), authorID, requested, req.Notes)
	if err != nil {
		log.Printf("Error requesting payout for author %s: %v", authorID, err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusCreated, payout)
}

func (h *Handler) handleListPayouts(w http.ResponseWriter, r *http.Request) {
	authorID, ok := AuthorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	payouts, err := h.service.RecentPayouts(r.Context(), authorID)
	if err != nil {
		log.Printf("Error listing payouts for author %s: %v", authorID, err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusOK, payouts)
}

type payoutDetailsResponse struct {
	Payout   *domain.Payout   `json:"payout"`
	Earnings []domain.Earning `json:"earnings"`
}

func (h *Handler) handleGetPayout(w http.ResponseWriter, r *http.Request) {
	authorID, ok := AuthorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid payout ID", http.StatusBadRequest)
		return
	}

	payout, earnings, err := h.service.PayoutDetails(r.Context(), authorID, payoutID)
	if err != nil {
		log.Printf("Error fetching payout %s: %v", payoutID, err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusOK, payoutDetailsResponse{Payout: payout, Earnings: earnings})
}

func (h *Handler) handleCancelPayout(w http.ResponseWriter, r *http.Request) {
	authorID, ok := AuthorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid payout ID", http.StatusBadRequest)
		return
	}

	payout, err := h.service.CancelPayout(r.Context(), authorID, payoutID)
	if err != nil {
		log.Printf("Error cancelling payout %s: %v", payoutID, err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusOK, payout)
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	authorID, ok := AuthorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	settings, err := h.service.GetPayoutSettings(r.Context(), authorID)
	if err != nil {
		log.Printf("Error fetching payout settings for author %s: %v", authorID, err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusOK, settings)
}

type updateSettingsRequest struct {
	MinimumPayoutMinor *int64  `json:"minimum_payout_minor,omitempty"`
	Frequency          *string `json:"frequency,omitempty"`
	AutoPayoutEnabled  *bool   `json:"auto_payout_enabled,omitempty"`
	Destination        *string `json:"destination,omitempty"`
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	authorID, ok := AuthorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	settings, err := h.service.UpdatePayoutSettings(r.Context(), authorID, app.UpdateSettingsParams{
		MinimumPayoutMinor: req.MinimumPayoutMinor,
		Frequency:          req.Frequency,
		AutoPayoutEnabled:  req.AutoPayoutEnabled,
		Destination:        req.Destination,
	})
	if err != nil {
		log.Printf("Error updating payout settings for author %s: %v", authorID, err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleTopAuthors(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid since timestamp; expected RFC3339", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	totals, err := h.service.TopEarningAuthors(r.Context(), since, limit)
	if err != nil {
		log.Printf("Error listing top earning authors: %v", err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	respondWithJSON(w, http.StatusOK, totals)
}

// statusForError maps service errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrAuthorNotFound),
		errors.Is(err, store.ErrEarningNotFound),
		errors.Is(err, store.ErrPayoutNotFound):
		return http.StatusNotFound
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrCurrencyMismatch):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrInsufficientBalance),
		errors.Is(err, store.ErrPayoutDestinationNotConfigured),
		errors.Is(err, store.ErrInvalidPayoutTransition),
		errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
