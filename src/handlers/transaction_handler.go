package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/ayna/backend/src/models"
	"github.com/username/ayna/backend/src/services"
)

type TransactionHandler struct {
	financeService services.FinanceService
}

func NewTransactionHandler(financeService services.FinanceService) *TransactionHandler {
	return &TransactionHandler{financeService: financeService}
}

type transactionRequest struct {
	Kind        string   `json:"kind"`
	Amount      *float64 `json:"amount"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Date        string   `json:"date"`
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Kind == "" || req.Amount == nil {
		sendJSONError(w, "Type and amount are required", http.StatusBadRequest)
		return
	}
	date, err := parseOptionalDate(req.Date)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := services.TransactionInput{
		Kind:   req.Kind,
		Amount: *req.Amount,
		Date:   date,
	}
	if req.Category != nil {
		in.Category = *req.Category
	}
	if req.Description != nil {
		in.Description = *req.Description
	}

	t, err := h.financeService.CreateTransaction(r.Context(), userID, in)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]any{"transaction": t})
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	startDate, err := parseOptionalDate(r.URL.Query().Get("startDate"))
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	endDate, err := parseOptionalDate(r.URL.Query().Get("endDate"))
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	filter := models.TransactionFilter{
		Kind:      r.URL.Query().Get("kind"),
		Category:  r.URL.Query().Get("category"),
		StartDate: startDate,
		EndDate:   endDate,
	}

	list, err := h.financeService.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, list)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendJSONError(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	in := services.TransactionUpdate{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.Kind != "" {
		in.Kind = &req.Kind
	}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.Date = &date
	}

	t, err := h.financeService.UpdateTransaction(r.Context(), userID, id, in)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"transaction": t})
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendJSONError(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}

	if err := h.financeService.DeleteTransaction(r.Context(), userID, id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted"})
}

func (h *TransactionHandler) HandleGetCategories(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]any{"categories": h.financeService.Categories()})
}

func (h *TransactionHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	startDate, err := parseOptionalDate(r.URL.Query().Get("startDate"))
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	endDate, err := parseOptionalDate(r.URL.Query().Get("endDate"))
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.financeService.GetSummary(r.Context(), userID, startDate, endDate)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, summary)
}
