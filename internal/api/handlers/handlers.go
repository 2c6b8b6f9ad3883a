// Package handlers implements the HTTP handlers for the ledgerchat service:
// the conversational chat endpoint plus plain REST access to the stored
// financial records.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerchat/ledgerchat/internal/agents"
	"github.com/ledgerchat/ledgerchat/internal/api/middleware"
	"github.com/ledgerchat/ledgerchat/internal/gateway"
	"github.com/ledgerchat/ledgerchat/internal/recurring"
	"github.com/ledgerchat/ledgerchat/internal/store"
	"github.com/ledgerchat/ledgerchat/pkg/models"
	"github.com/rs/zerolog/log"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Store        store.Store
	Orchestrator *agents.Orchestrator
}

// New creates a new Handlers instance.
func New(s store.Store, o *agents.Orchestrator) *Handlers {
	return &Handlers{Store: s, Orchestrator: o}
}

// ── Chat ─────────────────────────────────────────────────────

// Chat processes one conversational turn. The conversation state travels in
// the request and comes back updated in the response; the server keeps none
// of it.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" && len(req.Attachments) == 0 {
		respondError(w, http.StatusBadRequest, "Message or attachments required")
		return
	}

	teamID := middleware.GetTeamID(r.Context())
	resp, err := h.Orchestrator.HandleTurn(r.Context(), teamID, &req)
	if err != nil {
		if gateway.IsConfiguration(err) {
			log.Error().Err(err).Msg("Completion gateway not configured")
			respondError(w, http.StatusServiceUnavailable, "Completion gateway is not configured")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// ── Contracts ────────────────────────────────────────────────

func (h *Handlers) ListContracts(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	rows, err := h.Store.ListContracts(r.Context(), teamID, parseListFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []models.Contract{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handlers) GetContract(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	row, err := h.Store.GetContract(r.Context(), teamID, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, row)
}

func (h *Handlers) DeleteContract(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	if err := h.Store.DeleteContract(r.Context(), teamID, chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Receivables ──────────────────────────────────────────────

func (h *Handlers) ListReceivables(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	rows, err := h.Store.ListReceivables(r.Context(), teamID, parseListFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []models.Receivable{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handlers) GetReceivable(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	row, err := h.Store.GetReceivable(r.Context(), teamID, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, row)
}

func (h *Handlers) DeleteReceivable(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	if err := h.Store.DeleteReceivable(r.Context(), teamID, chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Expenses ─────────────────────────────────────────────────

func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	rows, err := h.Store.ListExpenses(r.Context(), teamID, parseListFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []models.Expense{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handlers) GetExpense(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	row, err := h.Store.GetExpense(r.Context(), teamID, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, row)
}

func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	if err := h.Store.DeleteExpense(r.Context(), teamID, chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Recurring Expenses ───────────────────────────────────────

func (h *Handlers) ListRecurringExpenses(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	rows, err := h.Store.ListRecurringExpenses(r.Context(), teamID, parseListFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []models.RecurringExpense{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handlers) GetRecurringExpense(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	row, err := h.Store.GetRecurringExpense(r.Context(), teamID, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, row)
}

func (h *Handlers) DeleteRecurringExpense(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	if err := h.Store.DeleteRecurringExpense(r.Context(), teamID, chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpcomingOccurrences returns the next due dates of a recurring expense.
func (h *Handlers) UpcomingOccurrences(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.GetTeamID(r.Context())
	row, err := h.Store.GetRecurringExpense(r.Context(), teamID, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	n := 6
	if q := r.URL.Query().Get("count"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 && parsed <= 24 {
			n = parsed
		}
	}

	dates, err := recurring.UpcomingDue(row, time.Now().UTC(), n)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":       row.ID,
		"upcoming": dates,
	})
}

// ── Teams ────────────────────────────────────────────────────

func (h *Handlers) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.Store.ListTeams(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if teams == nil {
		teams = []models.Team{}
	}
	respondJSON(w, http.StatusOK, teams)
}

// ── Helpers ─────────────────────────────────────────────────

// parseListFilter builds a store filter from query parameters. The team
// never appears here; it comes from the authenticated context only.
func parseListFilter(r *http.Request) store.ListFilter {
	q := r.URL.Query()
	filter := store.ListFilter{
		Category:   q.Get("category"),
		Status:     q.Get("status"),
		ContractID: q.Get("contract_id"),
		SortBy:     q.Get("sort_by"),
		SortDesc:   q.Get("order") == "desc",
	}

	if v := q.Get("is_paid"); v != "" {
		b := v == "true"
		filter.IsPaid = &b
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateFrom = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateTo = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	return filter
}

func respondStoreError(w http.ResponseWriter, err error) {
	var nf *store.ErrNotFound
	if errors.As(err, &nf) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
