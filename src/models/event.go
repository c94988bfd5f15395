package models

import (
	"database/sql"
	"time"
)

// Event is a user-created calendar entry. Subscription-billing occurrences
// are derived on read and never stored as event rows.
type Event struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Name           string    `json:"name"`
	DateTime       time.Time `json:"date_time"`
	EventType      string    `json:"event_type"`
	Recurring      string    `json:"recurring"`
	Reminder       string    `json:"reminder"`
	Notes          string    `json:"notes"`
	SubscriptionID *int64    `json:"subscription_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

const eventColumns = "id, user_id, name, date_time, event_type, recurring, reminder, notes, subscription_id, created_at"

// Insert persists the event and fills in its ID.
func (e *Event) Insert(q Querier) error {
	e.CreatedAt = time.Now().UTC()
	res, err := q.Exec(`
		INSERT INTO events (user_id, name, date_time, event_type, recurring, reminder, notes, subscription_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Name, e.DateTime, e.EventType, e.Recurring, e.Reminder,
		e.Notes, e.SubscriptionID, e.CreatedAt)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

func scanEvent(scan func(dest ...any) error) (*Event, error) {
	var e Event
	var subscriptionID sql.NullInt64
	err := scan(&e.ID, &e.UserID, &e.Name, &e.DateTime, &e.EventType,
		&e.Recurring, &e.Reminder, &e.Notes, &subscriptionID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if subscriptionID.Valid {
		e.SubscriptionID = &subscriptionID.Int64
	}
	return &e, nil
}

// GetEvent loads one event owned by userID.
func GetEvent(q Querier, id, userID int64) (*Event, error) {
	row := q.QueryRow(`
		SELECT `+eventColumns+`
		FROM events
		WHERE id = ? AND user_id = ?`, id, userID)
	return scanEvent(row.Scan)
}

// ListEventsBetween returns the user's events whose stored start time falls
// inside [start, end]. This is a coarse prefilter; recurrence expansion
// happens in the event service.
func ListEventsBetween(q Querier, userID int64, start, end time.Time) ([]*Event, error) {
	rows, err := q.Query(`
		SELECT `+eventColumns+`
		FROM events
		WHERE user_id = ? AND date_time >= ? AND date_time <= ?
		ORDER BY date_time, id`, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Update persists the mutable fields of the event.
func (e *Event) Update(q Querier) error {
	_, err := q.Exec(`
		UPDATE events
		SET name = ?, date_time = ?, event_type = ?, recurring = ?, reminder = ?, notes = ?
		WHERE id = ? AND user_id = ?`,
		e.Name, e.DateTime, e.EventType, e.Recurring, e.Reminder, e.Notes, e.ID, e.UserID)
	return err
}

// DeleteEvent removes one event owned by userID and reports whether a row was
// deleted.
func DeleteEvent(q Querier, id, userID int64) (bool, error) {
	res, err := q.Exec(`DELETE FROM events WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
