/*
handlers.go - HTTP handlers for the branch cashbook

PURPOSE:
  Thin HTTP layer over the cashbook service: parse, delegate, serialize.
  All atomicity lives below; a handler never talks to the store or the
  ledger directly.

ENDPOINTS:
  POST   /api/entries                       Record a cash-moving entry
  PUT    /api/entries/{id}                  Revise an entry
  DELETE /api/entries/{id}                  Delete an entry (reverses its effect)
  GET    /api/entries                       List entries for a branch/range
  GET    /api/branches/{branchID}/balance   Carry-forward balance as of a date

ERROR HANDLING:
  - 400: validation failures (bad kind, empty branch, bad timestamps)
  - 404: unknown entry
  - 409: persistent materialization conflict
  - 500: store failures (the whole operation rolled back)
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/willowysolutions/kanza-accounts-sub002/cashbook"
	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
)

// Handler holds the handlers' single dependency.
type Handler struct {
	Cashbook *cashbook.Service
}

func NewHandler(service *cashbook.Service) *Handler {
	return &Handler{Cashbook: service}
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// CreateEntry records a new cash entry and updates the day's balance.
// POST /api/entries
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	entry := req.toEntry()
	entry.Reference = req.Reference
	entry.Note = req.Note

	stored, receipt, err := h.Cashbook.RecordEntry(r.Context(), entry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, EntryResponse{
		Entry:   toEntryDTO(*stored),
		Receipt: toReceiptDTO(receipt),
	})
}

// UpdateEntry revises an entry; the balance moves by the difference only.
// PUT /api/entries/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	entry := req.toEntry()
	entry.ID = id
	entry.Reference = req.Reference
	entry.Note = req.Note

	stored, receipt, err := h.Cashbook.UpdateEntry(r.Context(), entry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{
		Entry:   toEntryDTO(*stored),
		Receipt: toReceiptDTO(receipt),
	})
}

// DeleteEntry removes an entry and reverses its balance effect.
// DELETE /api/entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	receipt, err := h.Cashbook.DeleteEntry(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": id,
		"receipt": toReceiptDTO(receipt),
	})
}

// ListEntries returns a branch's entries for a date range.
// GET /api/entries?branch_id=&kind=&from=&to=
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	branchID := r.URL.Query().Get("branch_id")
	if branchID == "" {
		writeError(w, http.StatusBadRequest, "branch_id is required", nil)
		return
	}

	from, err := parseTimeParam(r, "from", time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date", err)
		return
	}
	to, err := parseTimeParam(r, "to", time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date", err)
		return
	}

	kind := cashbook.Kind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown kind", nil)
		return
	}

	entries, err := h.Cashbook.Entries(r.Context(), branchID, kind, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BALANCE HANDLER
// =============================================================================

// GetBalance returns the branch's carry-forward balance as of a date.
// Reading never creates a receipt.
// GET /api/branches/{branchID}/balance?at=RFC3339
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")

	at, err := parseTimeParam(r, "at", time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid at date", err)
		return
	}

	balance, err := h.Cashbook.Balance(r.Context(), branchID, at)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		BranchID: branchID,
		AsOf:     at,
		Balance:  balance,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseTimeParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cashbook.ErrInvalidEntry),
		errors.Is(err, cashbook.ErrUnknownKind),
		errors.Is(err, ledger.ErrBranchRequired),
		errors.Is(err, ledger.ErrInvalidTimestamp):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	case errors.Is(err, cashbook.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry not found", err)
	case errors.Is(err, ledger.ErrDuplicateReceipt):
		writeError(w, http.StatusConflict, "balance update conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "operation failed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
