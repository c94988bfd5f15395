package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/ayna/backend/src/services"
)

type EventHandler struct {
	eventService services.EventService
}

func NewEventHandler(eventService services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

func rangeFromQuery(r *http.Request) (time.Time, time.Time, bool, string) {
	startStr := r.URL.Query().Get("startDate")
	endStr := r.URL.Query().Get("endDate")
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, false, "Start date and end date are required"
	}
	start, err := parseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, err.Error()
	}
	end, err := parseDate(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, err.Error()
	}
	return start, end, true, ""
}

// HandleListOccurrences returns the expanded calendar for a date range:
// stored events (recurrence expanded) plus derived subscription billings.
func (h *EventHandler) HandleListOccurrences(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	start, end, ok, msg := rangeFromQuery(r)
	if !ok {
		sendJSONError(w, msg, http.StatusBadRequest)
		return
	}

	occurrences, err := h.eventService.Range(r.Context(), userID, start, end)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"events": occurrences})
}

// HandleUpcoming returns the next seven days of occurrences whose reminder
// window contains the current moment.
func (h *EventHandler) HandleUpcoming(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	occurrences, err := h.eventService.Upcoming(r.Context(), userID, time.Now().UTC())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"events": occurrences})
}

// HandleBillingOccurrences returns only the derived subscription billing
// occurrences for a date range.
func (h *EventHandler) HandleBillingOccurrences(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	start, end, ok, msg := rangeFromQuery(r)
	if !ok {
		sendJSONError(w, msg, http.StatusBadRequest)
		return
	}

	occurrences, err := h.eventService.BillingOccurrences(r.Context(), userID, start, end)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"events": occurrences})
}

type eventRequest struct {
	Name      *string `json:"name"`
	DateTime  string  `json:"date_time"`
	EventType *string `json:"event_type"`
	Recurring *string `json:"recurring"`
	Reminder  *string `json:"reminder"`
	Notes     *string `json:"notes"`
}

func (h *EventHandler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == nil || req.DateTime == "" || req.EventType == nil {
		sendJSONError(w, "Event name, date, and type are required", http.StatusBadRequest)
		return
	}
	dateTime, err := parseDate(req.DateTime)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := services.EventInput{
		Name:      *req.Name,
		DateTime:  dateTime,
		EventType: *req.EventType,
	}
	if req.Recurring != nil {
		in.Recurring = *req.Recurring
	}
	if req.Reminder != nil {
		in.Reminder = *req.Reminder
	}
	if req.Notes != nil {
		in.Notes = *req.Notes
	}

	event, err := h.eventService.Create(r.Context(), userID, in)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]any{"event": event})
}

func (h *EventHandler) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendJSONError(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	in := services.EventUpdate{
		Name:      req.Name,
		EventType: req.EventType,
		Recurring: req.Recurring,
		Reminder:  req.Reminder,
		Notes:     req.Notes,
	}
	if req.DateTime != "" {
		dateTime, err := parseDate(req.DateTime)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.DateTime = &dateTime
	}

	event, err := h.eventService.Update(r.Context(), userID, id, in)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"event": event})
}

func (h *EventHandler) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendJSONError(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	if err := h.eventService.Delete(r.Context(), userID, id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"message": "Event deleted"})
}
