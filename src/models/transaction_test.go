package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/ayna/backend/src/database/dbtest"
	"github.com/username/ayna/backend/src/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInsertIgnoringDuplicateNaturalKey(t *testing.T) {
	db := dbtest.New(t)

	rule := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindExpense,
		Amount:    10,
		Frequency: models.FrequencyMonthly,
		StartDate: date(2025, time.May, 1),
	}
	require.NoError(t, rule.Insert(db))

	occ := date(2025, time.May, 1)
	first := &models.Transaction{UserID: 1, Kind: models.KindExpense, Amount: 10, Date: occ, RuleID: &rule.ID}
	written, err := first.InsertIgnoringDuplicate(db)
	require.NoError(t, err)
	assert.True(t, written)

	dup := &models.Transaction{UserID: 1, Kind: models.KindExpense, Amount: 10, Date: occ, RuleID: &rule.ID}
	written, err = dup.InsertIgnoringDuplicate(db)
	require.NoError(t, err)
	assert.False(t, written)

	// A different occurrence date of the same rule is a new row.
	next := &models.Transaction{UserID: 1, Kind: models.KindExpense, Amount: 10, Date: date(2025, time.June, 1), RuleID: &rule.ID}
	written, err = next.InsertIgnoringDuplicate(db)
	require.NoError(t, err)
	assert.True(t, written)

	// Manual transactions have no rule and are never deduplicated.
	for i := 0; i < 2; i++ {
		manual := &models.Transaction{UserID: 1, Kind: models.KindExpense, Amount: 10, Date: occ}
		written, err = manual.InsertIgnoringDuplicate(db)
		require.NoError(t, err)
		assert.True(t, written)
	}

	list, err := models.ListTransactions(db, 1, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestListTransactionsFilter(t *testing.T) {
	db := dbtest.New(t)

	seed := []struct {
		kind     string
		category string
		date     time.Time
	}{
		{models.KindIncome, "Salary", date(2025, time.May, 1)},
		{models.KindExpense, "Rent", date(2025, time.May, 5)},
		{models.KindExpense, "Groceries", date(2025, time.June, 5)},
	}
	for _, s := range seed {
		tr := &models.Transaction{UserID: 1, Kind: s.kind, Amount: 10, Category: s.category, Date: s.date}
		require.NoError(t, tr.Insert(db))
	}

	list, err := models.ListTransactions(db, 1, models.TransactionFilter{Kind: models.KindExpense})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = models.ListTransactions(db, 1, models.TransactionFilter{Category: "Rent"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// The end date is inclusive for the whole day.
	start := date(2025, time.May, 1)
	end := date(2025, time.May, 5)
	list, err = models.ListTransactions(db, 1, models.TransactionFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestGetOrCreateAccountProvisionsOnce(t *testing.T) {
	db := dbtest.New(t)

	acct, err := models.GetOrCreateAccount(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, acct.Balance)

	acct.Balance = 42
	require.NoError(t, acct.Save(db))

	again, err := models.GetOrCreateAccount(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 42.0, again.Balance)
}

func TestDeleteRuleClearsTransactionLink(t *testing.T) {
	db := dbtest.New(t)

	rule := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindExpense,
		Amount:    10,
		Frequency: models.FrequencyMonthly,
		StartDate: date(2025, time.May, 1),
	}
	require.NoError(t, rule.Insert(db))

	tr := &models.Transaction{UserID: 1, Kind: models.KindExpense, Amount: 10, Date: date(2025, time.May, 1), RuleID: &rule.ID}
	require.NoError(t, tr.Insert(db))

	deleted, err := models.DeleteRecurringRule(db, rule.ID, 1)
	require.NoError(t, err)
	require.True(t, deleted)

	got, err := models.GetTransaction(db, tr.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, got.RuleID)
}
