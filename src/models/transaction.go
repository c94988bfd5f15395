package models

import (
	"database/sql"
	"strings"
	"time"
)

// Transaction is a single dated financial event. Rows created by the
// recurrence materializer carry the originating rule ID and occurrence date,
// which together form a natural key preventing double-posting.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Kind        string    `json:"kind"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	RuleID      *int64    `json:"rule_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	Kind      string
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Insert persists the transaction and fills in its ID.
func (t *Transaction) Insert(q Querier) error {
	t.CreatedAt = time.Now().UTC()
	res, err := q.Exec(`
		INSERT INTO transactions (user_id, kind, amount, category, description, date, rule_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Kind, t.Amount, nullableString(t.Category), nullableString(t.Description),
		t.Date, t.RuleID, t.CreatedAt)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

// InsertIgnoringDuplicate inserts the transaction unless a row with the same
// (rule_id, date) natural key already exists. It reports whether a row was
// actually written.
func (t *Transaction) InsertIgnoringDuplicate(q Querier) (bool, error) {
	t.CreatedAt = time.Now().UTC()
	res, err := q.Exec(`
		INSERT OR IGNORE INTO transactions (user_id, kind, amount, category, description, date, rule_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Kind, t.Amount, nullableString(t.Category), nullableString(t.Description),
		t.Date, t.RuleID, t.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	t.ID, err = res.LastInsertId()
	return true, err
}

func scanTransaction(scan func(dest ...any) error) (*Transaction, error) {
	var t Transaction
	var category, description sql.NullString
	var ruleID sql.NullInt64
	err := scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &category, &description,
		&t.Date, &ruleID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Category = category.String
	t.Description = description.String
	if ruleID.Valid {
		t.RuleID = &ruleID.Int64
	}
	return &t, nil
}

const transactionColumns = "id, user_id, kind, amount, category, description, date, rule_id, created_at"

// GetTransaction loads one transaction owned by userID.
func GetTransaction(q Querier, id, userID int64) (*Transaction, error) {
	row := q.QueryRow(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ? AND user_id = ?`, id, userID)
	return scanTransaction(row.Scan)
}

// ListTransactions returns the user's transactions matching the filter,
// newest first.
func ListTransactions(q Querier, userID int64, filter TransactionFilter) ([]*Transaction, error) {
	var where []string
	var args []any
	where = append(where, "user_id = ?")
	args = append(args, userID)

	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		// Include the whole end date.
		where = append(where, "date < ?")
		args = append(args, filter.EndDate.AddDate(0, 0, 1))
	}

	rows, err := q.Query(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []*Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// Update persists the mutable fields of the transaction.
func (t *Transaction) Update(q Querier) error {
	_, err := q.Exec(`
		UPDATE transactions
		SET kind = ?, amount = ?, category = ?, description = ?, date = ?
		WHERE id = ? AND user_id = ?`,
		t.Kind, t.Amount, nullableString(t.Category), nullableString(t.Description),
		t.Date, t.ID, t.UserID)
	return err
}

// DeleteTransaction removes one transaction owned by userID and reports
// whether a row was deleted.
func DeleteTransaction(q Querier, id, userID int64) (bool, error) {
	res, err := q.Exec(`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
