package models

import (
	"database/sql"
	"time"
)

// RecurringRule is a template the materializer expands into concrete
// transactions over time. Rules created for a subscription carry the
// subscription's ID so the link survives renames.
type RecurringRule struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Kind           string    `json:"kind"`
	Amount         float64   `json:"amount"`
	Category       string    `json:"category,omitempty"`
	Description    string    `json:"description,omitempty"`
	Frequency      string    `json:"frequency"`
	StartDate      time.Time `json:"start_date"`
	EndDate        NullTime  `json:"end_date"`
	LastProcessed  NullTime  `json:"last_processed"`
	SubscriptionID *int64    `json:"subscription_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

const recurringRuleColumns = "id, user_id, kind, amount, category, description, frequency, start_date, end_date, last_processed, subscription_id, created_at"

// Insert persists the rule and fills in its ID.
func (r *RecurringRule) Insert(q Querier) error {
	r.CreatedAt = time.Now().UTC()
	res, err := q.Exec(`
		INSERT INTO recurring_rules (user_id, kind, amount, category, description, frequency, start_date, end_date, last_processed, subscription_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Kind, r.Amount, nullableString(r.Category), nullableString(r.Description),
		r.Frequency, r.StartDate, nullTimeArg(r.EndDate), nullTimeArg(r.LastProcessed),
		r.SubscriptionID, r.CreatedAt)
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

func nullTimeArg(nt NullTime) any {
	if !nt.Valid {
		return nil
	}
	return nt.Time
}

func scanRecurringRule(scan func(dest ...any) error) (*RecurringRule, error) {
	var r RecurringRule
	var category, description sql.NullString
	var endDate, lastProcessed sql.NullTime
	var subscriptionID sql.NullInt64
	err := scan(&r.ID, &r.UserID, &r.Kind, &r.Amount, &category, &description,
		&r.Frequency, &r.StartDate, &endDate, &lastProcessed, &subscriptionID, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Category = category.String
	r.Description = description.String
	r.EndDate = NullTime(endDate)
	r.LastProcessed = NullTime(lastProcessed)
	if subscriptionID.Valid {
		r.SubscriptionID = &subscriptionID.Int64
	}
	return &r, nil
}

// GetRecurringRule loads one rule owned by userID.
func GetRecurringRule(q Querier, id, userID int64) (*RecurringRule, error) {
	row := q.QueryRow(`
		SELECT `+recurringRuleColumns+`
		FROM recurring_rules
		WHERE id = ? AND user_id = ?`, id, userID)
	return scanRecurringRule(row.Scan)
}

// GetRuleBySubscription loads the shadow rule linked to a subscription.
func GetRuleBySubscription(q Querier, subscriptionID, userID int64) (*RecurringRule, error) {
	row := q.QueryRow(`
		SELECT `+recurringRuleColumns+`
		FROM recurring_rules
		WHERE subscription_id = ? AND user_id = ?`, subscriptionID, userID)
	return scanRecurringRule(row.Scan)
}

// ListRecurringRules returns the user's rules, newest start date first.
func ListRecurringRules(q Querier, userID int64) ([]*RecurringRule, error) {
	rows, err := q.Query(`
		SELECT `+recurringRuleColumns+`
		FROM recurring_rules
		WHERE user_id = ?
		ORDER BY start_date DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListAllRecurringRules returns every rule across users, for the
// materializer's periodic pass.
func ListAllRecurringRules(q Querier) ([]*RecurringRule, error) {
	rows, err := q.Query(`
		SELECT ` + recurringRuleColumns + `
		FROM recurring_rules
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func collectRules(rows *sql.Rows) ([]*RecurringRule, error) {
	rules := []*RecurringRule{}
	for rows.Next() {
		r, err := scanRecurringRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// Update persists the mutable fields of the rule.
func (r *RecurringRule) Update(q Querier) error {
	_, err := q.Exec(`
		UPDATE recurring_rules
		SET kind = ?, amount = ?, category = ?, description = ?, frequency = ?, start_date = ?, end_date = ?
		WHERE id = ? AND user_id = ?`,
		r.Kind, r.Amount, nullableString(r.Category), nullableString(r.Description),
		r.Frequency, r.StartDate, nullTimeArg(r.EndDate), r.ID, r.UserID)
	return err
}

// SetLastProcessed advances the rule's materialization cursor. The cursor only
// ever moves forward.
func (r *RecurringRule) SetLastProcessed(q Querier, cursor time.Time) error {
	_, err := q.Exec(`
		UPDATE recurring_rules
		SET last_processed = ?
		WHERE id = ? AND (last_processed IS NULL OR last_processed < ?)`,
		cursor, r.ID, cursor)
	if err != nil {
		return err
	}
	r.LastProcessed = NullTime{Time: cursor, Valid: true}
	return nil
}

// DeleteRecurringRule removes one rule owned by userID and reports whether a
// row was deleted.
func DeleteRecurringRule(q Querier, id, userID int64) (bool, error) {
	res, err := q.Exec(`DELETE FROM recurring_rules WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
