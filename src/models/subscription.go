package models

import (
	"database/sql"
	"time"
)

// Subscription is a recurring paid service. While Active it owns exactly one
// shadow RecurringRule that mirrors its price and billing cadence.
type Subscription struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	Name             string    `json:"name"`
	BillingCycle     string    `json:"billing_cycle"`
	Price            float64   `json:"price"`
	BillingStartDate time.Time `json:"billing_start_date"`
	NextBillingDate  time.Time `json:"next_billing_date"`
	Status           string    `json:"status"`
	CancellationDate NullTime  `json:"cancellation_date"`
	CreatedAt        time.Time `json:"created_at"`
}

const subscriptionColumns = "id, user_id, name, billing_cycle, price, billing_start_date, next_billing_date, status, cancellation_date, created_at"

// Insert persists the subscription and fills in its ID.
func (s *Subscription) Insert(q Querier) error {
	s.CreatedAt = time.Now().UTC()
	if s.Status == "" {
		s.Status = StatusActive
	}
	res, err := q.Exec(`
		INSERT INTO subscriptions (user_id, name, billing_cycle, price, billing_start_date, next_billing_date, status, cancellation_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.UserID, s.Name, s.BillingCycle, s.Price, s.BillingStartDate, s.NextBillingDate,
		s.Status, nullTimeArg(s.CancellationDate), s.CreatedAt)
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}

func scanSubscription(scan func(dest ...any) error) (*Subscription, error) {
	var s Subscription
	var cancellationDate sql.NullTime
	err := scan(&s.ID, &s.UserID, &s.Name, &s.BillingCycle, &s.Price,
		&s.BillingStartDate, &s.NextBillingDate, &s.Status, &cancellationDate, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.CancellationDate = NullTime(cancellationDate)
	return &s, nil
}

// GetSubscription loads one subscription owned by userID.
func GetSubscription(q Querier, id, userID int64) (*Subscription, error) {
	row := q.QueryRow(`
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = ? AND user_id = ?`, id, userID)
	return scanSubscription(row.Scan)
}

// ListSubscriptions returns all of the user's subscriptions, newest first.
func ListSubscriptions(q Querier, userID int64) ([]*Subscription, error) {
	rows, err := q.Query(`
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// ListActiveSubscriptions returns the user's active subscriptions.
func ListActiveSubscriptions(q Querier, userID int64) ([]*Subscription, error) {
	rows, err := q.Query(`
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = ? AND status = ?
		ORDER BY id`, userID, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// ListActiveSubscriptionsBillingBetween returns active subscriptions whose
// next billing date falls inside [start, end].
func ListActiveSubscriptionsBillingBetween(q Querier, userID int64, start, end time.Time) ([]*Subscription, error) {
	rows, err := q.Query(`
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = ? AND status = ? AND next_billing_date >= ? AND next_billing_date <= ?
		ORDER BY next_billing_date, id`, userID, StatusActive, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows *sql.Rows) ([]*Subscription, error) {
	subs := []*Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// Update persists the mutable fields of the subscription.
func (s *Subscription) Update(q Querier) error {
	_, err := q.Exec(`
		UPDATE subscriptions
		SET name = ?, billing_cycle = ?, price = ?, billing_start_date = ?, next_billing_date = ?, status = ?, cancellation_date = ?
		WHERE id = ? AND user_id = ?`,
		s.Name, s.BillingCycle, s.Price, s.BillingStartDate, s.NextBillingDate,
		s.Status, nullTimeArg(s.CancellationDate), s.ID, s.UserID)
	return err
}
