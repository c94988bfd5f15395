package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/ayna/backend/src/services"
)

type SubscriptionHandler struct {
	subscriptionService services.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

type subscriptionRequest struct {
	Name             string   `json:"name"`
	BillingCycle     string   `json:"billing_cycle"`
	Price            *float64 `json:"price"`
	BillingStartDate string   `json:"billing_start_date"`
}

func (h *SubscriptionHandler) HandleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.BillingCycle == "" || req.Price == nil || req.BillingStartDate == "" {
		sendJSONError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	startDate, err := parseDate(req.BillingStartDate)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := h.subscriptionService.Create(r.Context(), userID, services.SubscriptionInput{
		Name:             req.Name,
		BillingCycle:     req.BillingCycle,
		Price:            *req.Price,
		BillingStartDate: startDate,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]any{"subscription": sub})
}

func (h *SubscriptionHandler) HandleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	list, err := h.subscriptionService.List(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, list)
}

func (h *SubscriptionHandler) HandleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendJSONError(w, "Invalid subscription ID", http.StatusBadRequest)
		return
	}

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	in := services.SubscriptionUpdate{Price: req.Price}
	if req.Name != "" {
		in.Name = &req.Name
	}
	if req.BillingCycle != "" {
		in.BillingCycle = &req.BillingCycle
	}
	if req.BillingStartDate != "" {
		startDate, err := parseDate(req.BillingStartDate)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.BillingStartDate = &startDate
	}

	sub, err := h.subscriptionService.Update(r.Context(), userID, id, in)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"subscription": sub})
}

// HandleCancelSubscription soft-cancels: the row is kept, the shadow rule is
// end-dated, and a prorated closing charge may be scheduled.
func (h *SubscriptionHandler) HandleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendJSONError(w, "Invalid subscription ID", http.StatusBadRequest)
		return
	}

	var req struct {
		CancellationDate string `json:"cancellation_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CancellationDate == "" {
		sendJSONError(w, "Cancellation date is required", http.StatusBadRequest)
		return
	}
	cancellationDate, err := parseDate(req.CancellationDate)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := h.subscriptionService.Cancel(r.Context(), userID, id, cancellationDate)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"subscription": sub})
}

func (h *SubscriptionHandler) HandleGetDailySpending(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	daily, err := h.subscriptionService.DailySpending(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]float64{"average_daily_spending": daily})
}
