package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/ayna/backend/src/services"
)

type RecurringHandler struct {
	financeService services.FinanceService
}

func NewRecurringHandler(financeService services.FinanceService) *RecurringHandler {
	return &RecurringHandler{financeService: financeService}
}

type recurringRuleRequest struct {
	Kind        string   `json:"kind"`
	Amount      *float64 `json:"amount"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Frequency   string   `json:"frequency"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
}

func (h *RecurringHandler) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req recurringRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Kind == "" || req.Amount == nil || req.Frequency == "" || req.StartDate == "" {
		sendJSONError(w, "Type, amount, frequency, and start date are required", http.StatusBadRequest)
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := services.RecurringRuleInput{
		Kind:      req.Kind,
		Amount:    *req.Amount,
		Frequency: req.Frequency,
		StartDate: startDate,
		EndDate:   endDate,
	}
	if req.Category != nil {
		in.Category = *req.Category
	}
	if req.Description != nil {
		in.Description = *req.Description
	}

	rule, err := h.financeService.CreateRecurringRule(r.Context(), userID, in)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]any{"recurring_rule": rule})
}

func (h *RecurringHandler) HandleListRules(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	rules, err := h.financeService.ListRecurringRules(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"recurring_rules": rules})
}

func (h *RecurringHandler) HandleUpdateRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendJSONError(w, "Invalid rule ID", http.StatusBadRequest)
		return
	}

	var req recurringRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	in := services.RecurringRuleUpdate{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.Kind != "" {
		in.Kind = &req.Kind
	}
	if req.Frequency != "" {
		in.Frequency = &req.Frequency
	}
	if req.StartDate != "" {
		startDate, err := parseDate(req.StartDate)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.StartDate = &startDate
	}
	if req.EndDate != "" {
		endDate, err := parseDate(req.EndDate)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.EndDate = &endDate
	}

	rule, err := h.financeService.UpdateRecurringRule(r.Context(), userID, id, in)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"recurring_rule": rule})
}

func (h *RecurringHandler) HandleDeleteRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendJSONError(w, "Invalid rule ID", http.StatusBadRequest)
		return
	}

	if err := h.financeService.DeleteRecurringRule(r.Context(), userID, id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"message": "Recurring transaction deleted"})
}
