package models

import (
	"database/sql"
	"errors"
	"time"
)

// Account holds the running totals the Ledger Engine maintains for one user.
// Balance never goes negative; every mutation flows through the ledger.
type Account struct {
	UserID           int64     `json:"user_id"`
	Balance          float64   `json:"balance"`
	TotalSavings     float64   `json:"total_savings"`
	TotalInvestments float64   `json:"total_investments"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GetOrCreateAccount loads the account row for userID, provisioning a zeroed
// row on first touch.
func GetOrCreateAccount(q Querier, userID int64) (*Account, error) {
	acct, err := GetAccount(q, userID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = q.Exec(`
		INSERT INTO accounts (user_id, balance, total_savings, total_investments, created_at, updated_at)
		VALUES (?, 0, 0, 0, ?, ?)`,
		userID, now, now)
	if err != nil {
		return nil, err
	}
	return &Account{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
}

// GetAccount loads the account row for userID.
func GetAccount(q Querier, userID int64) (*Account, error) {
	row := q.QueryRow(`
		SELECT user_id, balance, total_savings, total_investments, created_at, updated_at
		FROM accounts
		WHERE user_id = ?`, userID)

	var acct Account
	err := row.Scan(&acct.UserID, &acct.Balance, &acct.TotalSavings, &acct.TotalInvestments,
		&acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// Save persists the account totals.
func (a *Account) Save(q Querier) error {
	a.UpdatedAt = time.Now().UTC()
	_, err := q.Exec(`
		UPDATE accounts
		SET balance = ?, total_savings = ?, total_investments = ?, updated_at = ?
		WHERE user_id = ?`,
		a.Balance, a.TotalSavings, a.TotalInvestments, a.UpdatedAt, a.UserID)
	return err
}
