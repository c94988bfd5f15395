package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/username/ayna/backend/src/logger"
	"github.com/username/ayna/backend/src/models"
	"github.com/username/ayna/backend/src/recurrence"
	"github.com/username/ayna/backend/src/validation"
)

type eventServiceImpl struct {
	db *sql.DB
}

func NewEventService(db *sql.DB) EventService {
	return &eventServiceImpl{db: db}
}

func eventFrequency(recurring string) string {
	switch recurring {
	case models.EventRecurringDaily:
		return models.FrequencyDaily
	case models.EventRecurringWeekly:
		return models.FrequencyWeekly
	case models.EventRecurringMonthly:
		return models.FrequencyMonthly
	case models.EventRecurringYearly:
		return models.FrequencyYearly
	}
	return ""
}

// expandEvent turns one stored event into its occurrences inside [start, end].
func expandEvent(e *models.Event, start, end time.Time) []Occurrence {
	occurrence := func(at time.Time) Occurrence {
		return Occurrence{
			Source:         OccurrenceSourceEvent,
			Name:           e.Name,
			DateTime:       at,
			EventType:      e.EventType,
			Recurring:      e.Recurring,
			Reminder:       e.Reminder,
			Notes:          e.Notes,
			EventID:        &e.ID,
			SubscriptionID: e.SubscriptionID,
		}
	}

	if e.Recurring == models.EventRecurringNone {
		if !e.DateTime.Before(start) && !e.DateTime.After(end) {
			return []Occurrence{occurrence(e.DateTime)}
		}
		return nil
	}

	freq := eventFrequency(e.Recurring)
	if freq == "" {
		return nil
	}
	iv, _ := recurrence.IntervalFor(freq)

	var out []Occurrence
	for _, at := range recurrence.Between(e.DateTime, iv, start, end) {
		out = append(out, occurrence(at))
	}
	return out
}

// billingOccurrence synthesizes the derived calendar entry for one active
// subscription's next billing date.
func billingOccurrence(sub *models.Subscription) Occurrence {
	return Occurrence{
		Source:         OccurrenceSourceSubscription,
		Name:           fmt.Sprintf("%s Billing", sub.Name),
		DateTime:       sub.NextBillingDate,
		EventType:      models.EventTypeSubscription,
		Recurring:      models.EventRecurringNone,
		Reminder:       models.Reminder1Day,
		Notes:          fmt.Sprintf("Subscription renewal for %s - %.2f", sub.Name, sub.Price),
		SubscriptionID: &sub.ID,
	}
}

func (s *eventServiceImpl) Range(ctx context.Context, userID int64, start, end time.Time) ([]Occurrence, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date before start date", ErrValidation)
	}

	events, err := models.ListEventsBetween(s.db, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list events for user %d: %w", userID, err)
	}

	occurrences := []Occurrence{}
	for _, e := range events {
		occurrences = append(occurrences, expandEvent(e, start, end)...)
	}

	billing, err := s.BillingOccurrences(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	occurrences = append(occurrences, billing...)

	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].DateTime.Before(occurrences[j].DateTime)
	})
	return occurrences, nil
}

// reminderOffset maps a reminder label to its lead time; ok is false for
// "None" and unknown labels.
func reminderOffset(reminder string) (time.Duration, bool) {
	switch reminder {
	case models.Reminder5Min:
		return 5 * time.Minute, true
	case models.Reminder1Hour:
		return time.Hour, true
	case models.Reminder1Day:
		return 24 * time.Hour, true
	case models.Reminder1Week:
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}

func (s *eventServiceImpl) Upcoming(ctx context.Context, userID int64, now time.Time) ([]Occurrence, error) {
	all, err := s.Range(ctx, userID, now, now.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}

	// Keep occurrences whose reminder window contains the current moment.
	due := []Occurrence{}
	for _, occ := range all {
		offset, ok := reminderOffset(occ.Reminder)
		if !ok {
			continue
		}
		reminderTime := occ.DateTime.Add(-offset)
		if !now.Before(reminderTime) && !now.After(occ.DateTime) {
			due = append(due, occ)
		}
	}
	return due, nil
}

func (s *eventServiceImpl) BillingOccurrences(ctx context.Context, userID int64, start, end time.Time) ([]Occurrence, error) {
	subs, err := models.ListActiveSubscriptionsBillingBetween(s.db, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list billing subscriptions for user %d: %w", userID, err)
	}

	occurrences := []Occurrence{}
	for _, sub := range subs {
		occurrences = append(occurrences, billingOccurrence(sub))
	}
	return occurrences, nil
}

func (s *eventServiceImpl) Create(ctx context.Context, userID int64, in EventInput) (*models.Event, error) {
	name := validation.CleanText(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrValidation)
	}
	if in.DateTime.IsZero() {
		return nil, fmt.Errorf("%w: event date is required", ErrValidation)
	}
	if !models.ValidEventType(in.EventType) {
		return nil, fmt.Errorf("%w: invalid event type %q", ErrValidation, in.EventType)
	}
	if in.EventType == models.EventTypeSubscription {
		return nil, fmt.Errorf("%w: subscription billing events are system-derived", ErrValidation)
	}

	recurring := in.Recurring
	if recurring == "" {
		recurring = models.EventRecurringNone
	}
	if !models.ValidEventRecurring(recurring) {
		return nil, fmt.Errorf("%w: invalid recurrence %q", ErrValidation, recurring)
	}

	reminder := in.Reminder
	if reminder == "" {
		reminder = models.ReminderNone
	}
	if !models.ValidReminder(reminder) {
		return nil, fmt.Errorf("%w: invalid reminder %q", ErrValidation, reminder)
	}

	e := &models.Event{
		UserID:    userID,
		Name:      name,
		DateTime:  in.DateTime,
		EventType: in.EventType,
		Recurring: recurring,
		Reminder:  reminder,
		Notes:     validation.CleanText(in.Notes),
	}
	if err := e.Insert(s.db); err != nil {
		return nil, fmt.Errorf("insert event for user %d: %w", userID, err)
	}
	logger.FromContext(ctx).Info("Event created", "userID", userID, "eventID", e.ID)
	return e, nil
}

func (s *eventServiceImpl) Update(ctx context.Context, userID, id int64, in EventUpdate) (*models.Event, error) {
	e, err := models.GetEvent(s.db, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: event %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if e.EventType == models.EventTypeSubscription {
		return nil, fmt.Errorf("%w: subscription billing events are not editable", ErrInvalidState)
	}

	if in.Name != nil {
		name := validation.CleanText(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: event name cannot be empty", ErrValidation)
		}
		e.Name = name
	}
	if in.DateTime != nil {
		e.DateTime = *in.DateTime
	}
	if in.EventType != nil {
		if !models.ValidEventType(*in.EventType) || *in.EventType == models.EventTypeSubscription {
			return nil, fmt.Errorf("%w: invalid event type %q", ErrValidation, *in.EventType)
		}
		e.EventType = *in.EventType
	}
	if in.Recurring != nil {
		if !models.ValidEventRecurring(*in.Recurring) {
			return nil, fmt.Errorf("%w: invalid recurrence %q", ErrValidation, *in.Recurring)
		}
		e.Recurring = *in.Recurring
	}
	if in.Reminder != nil {
		if !models.ValidReminder(*in.Reminder) {
			return nil, fmt.Errorf("%w: invalid reminder %q", ErrValidation, *in.Reminder)
		}
		e.Reminder = *in.Reminder
	}
	if in.Notes != nil {
		e.Notes = validation.CleanText(*in.Notes)
	}

	if err := e.Update(s.db); err != nil {
		return nil, fmt.Errorf("update event %d: %w", id, err)
	}
	logger.FromContext(ctx).Info("Event updated", "userID", userID, "eventID", id)
	return e, nil
}

func (s *eventServiceImpl) Delete(ctx context.Context, userID, id int64) error {
	e, err := models.GetEvent(s.db, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: event %d", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if e.EventType == models.EventTypeSubscription {
		return fmt.Errorf("%w: subscription billing events are not deletable", ErrInvalidState)
	}

	if _, err := models.DeleteEvent(s.db, id, userID); err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	logger.FromContext(ctx).Info("Event deleted", "userID", userID, "eventID", id)
	return nil
}
