package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/ayna/backend/src/database/dbtest"
	"github.com/username/ayna/backend/src/ledger"
	"github.com/username/ayna/backend/src/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newMaterializer(t *testing.T) (*sql.DB, *Materializer) {
	t.Helper()
	db := dbtest.New(t)
	return db, NewMaterializer(db, ledger.NewEngine(db))
}

func seedBalance(t *testing.T, db *sql.DB, userID int64, balance float64) {
	t.Helper()
	acct, err := models.GetOrCreateAccount(db, userID)
	require.NoError(t, err)
	acct.Balance = balance
	require.NoError(t, acct.Save(db))
}

func userTransactions(t *testing.T, db *sql.DB, userID int64) []*models.Transaction {
	t.Helper()
	list, err := models.ListTransactions(db, userID, models.TransactionFilter{})
	require.NoError(t, err)
	return list
}

func TestMaterializerPostsDueOccurrences(t *testing.T) {
	db, m := newMaterializer(t)

	rule := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindIncome,
		Amount:    100,
		Category:  "Salary",
		Frequency: models.FrequencyMonthly,
		StartDate: date(2025, time.March, 10),
	}
	require.NoError(t, rule.Insert(db))

	m.RunOnce(context.Background(), date(2025, time.June, 15))

	// March 10 through June 10 are due; July 10 is in the future.
	transactions := userTransactions(t, db, 1)
	require.Len(t, transactions, 4)
	for _, tr := range transactions {
		assert.Equal(t, models.KindIncome, tr.Kind)
		require.NotNil(t, tr.RuleID)
		assert.Equal(t, rule.ID, *tr.RuleID)
	}

	acct, err := models.GetAccount(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 400.0, acct.Balance)

	got, err := models.GetRecurringRule(db, rule.ID, 1)
	require.NoError(t, err)
	require.True(t, got.LastProcessed.Valid)
	assert.Equal(t, date(2025, time.June, 10), got.LastProcessed.Time.UTC())
}

func TestMaterializerIsIdempotent(t *testing.T) {
	db, m := newMaterializer(t)

	rule := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindIncome,
		Amount:    50,
		Frequency: models.FrequencyWeekly,
		StartDate: date(2025, time.May, 1),
	}
	require.NoError(t, rule.Insert(db))

	now := date(2025, time.May, 20)
	m.RunOnce(context.Background(), now)
	m.RunOnce(context.Background(), now)

	transactions := userTransactions(t, db, 1)
	assert.Len(t, transactions, 3)

	acct, err := models.GetAccount(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 150.0, acct.Balance)
}

func TestMaterializerResumesFromCursor(t *testing.T) {
	db, m := newMaterializer(t)

	rule := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindIncome,
		Amount:    10,
		Frequency: models.FrequencyDaily,
		StartDate: date(2025, time.August, 1),
	}
	require.NoError(t, rule.Insert(db))

	m.RunOnce(context.Background(), date(2025, time.August, 3))
	require.Len(t, userTransactions(t, db, 1), 3)

	// The next pass picks up exactly the days that became due in between,
	// including a gap larger than the run interval.
	m.RunOnce(context.Background(), date(2025, time.August, 7))
	transactions := userTransactions(t, db, 1)
	assert.Len(t, transactions, 7)
}

func TestMaterializerHonorsEndDate(t *testing.T) {
	db, m := newMaterializer(t)

	rule := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindIncome,
		Amount:    10,
		Frequency: models.FrequencyMonthly,
		StartDate: date(2025, time.January, 5),
		EndDate:   models.NullTime{Time: date(2025, time.March, 31), Valid: true},
	}
	require.NoError(t, rule.Insert(db))

	// The end date is long past, but the occurrences due before it must
	// still be generated on the first pass that sees them.
	m.RunOnce(context.Background(), date(2025, time.August, 1))
	require.Len(t, userTransactions(t, db, 1), 3)

	// Ended and caught up: later passes are no-ops.
	m.RunOnce(context.Background(), date(2025, time.September, 1))
	assert.Len(t, userTransactions(t, db, 1), 3)
}

func TestMaterializerQuarterlyCadence(t *testing.T) {
	db, m := newMaterializer(t)
	seedBalance(t, db, 1, 1000)

	// Shadow rule shape for a 3-month subscription: full price, every three
	// months, not every month.
	rule := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindExpense,
		Amount:    30,
		Category:  "Subscriptions",
		Frequency: models.FrequencyQuarterly,
		StartDate: date(2025, time.January, 15),
	}
	require.NoError(t, rule.Insert(db))

	m.RunOnce(context.Background(), date(2025, time.December, 31))

	transactions := userTransactions(t, db, 1)
	require.Len(t, transactions, 4)

	acct, err := models.GetAccount(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 880.0, acct.Balance)
}

func TestMaterializerMonthEndClamping(t *testing.T) {
	db, m := newMaterializer(t)

	rule := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindIncome,
		Amount:    1,
		Frequency: models.FrequencyMonthly,
		StartDate: date(2025, time.January, 31),
	}
	require.NoError(t, rule.Insert(db))

	m.RunOnce(context.Background(), date(2025, time.April, 30))

	transactions := userTransactions(t, db, 1)
	require.Len(t, transactions, 4)

	dates := make([]time.Time, 0, len(transactions))
	for _, tr := range transactions {
		dates = append(dates, tr.Date.UTC())
	}
	// Listing is newest first.
	assert.Equal(t, []time.Time{
		date(2025, time.April, 30),
		date(2025, time.March, 31),
		date(2025, time.February, 28),
		date(2025, time.January, 31),
	}, dates)
}

func TestMaterializerInsufficientBalanceSkipsRule(t *testing.T) {
	db, m := newMaterializer(t)

	rule := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindExpense,
		Amount:    100,
		Frequency: models.FrequencyMonthly,
		StartDate: date(2025, time.May, 1),
	}
	require.NoError(t, rule.Insert(db))

	m.RunOnce(context.Background(), date(2025, time.May, 2))

	// The occurrence cannot post without funds; nothing is written and the
	// cursor stays put so a later pass can retry.
	assert.Empty(t, userTransactions(t, db, 1))
	got, err := models.GetRecurringRule(db, rule.ID, 1)
	require.NoError(t, err)
	assert.False(t, got.LastProcessed.Valid)

	// Once funds arrive the same occurrence posts.
	seedBalance(t, db, 1, 500)
	m.RunOnce(context.Background(), date(2025, time.May, 2))
	assert.Len(t, userTransactions(t, db, 1), 1)
}

func TestMaterializerFailingRuleDoesNotBlockOthers(t *testing.T) {
	db, m := newMaterializer(t)

	broke := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindExpense,
		Amount:    100,
		Frequency: models.FrequencyMonthly,
		StartDate: date(2025, time.May, 1),
	}
	require.NoError(t, broke.Insert(db))

	healthy := &models.RecurringRule{
		UserID:    2,
		Kind:      models.KindIncome,
		Amount:    100,
		Frequency: models.FrequencyMonthly,
		StartDate: date(2025, time.May, 1),
	}
	require.NoError(t, healthy.Insert(db))

	m.RunOnce(context.Background(), date(2025, time.May, 2))

	assert.Empty(t, userTransactions(t, db, 1))
	assert.Len(t, userTransactions(t, db, 2), 1)
}
