package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/ayna/backend/src/database/dbtest"
	"github.com/username/ayna/backend/src/ledger"
	"github.com/username/ayna/backend/src/models"
)

func newFinanceService(t *testing.T) (*sql.DB, FinanceService) {
	t.Helper()
	db := dbtest.New(t)
	return db, NewFinanceService(db, ledger.NewEngine(db), cache.New(time.Minute, time.Minute))
}

func createTransaction(t *testing.T, svc FinanceService, userID int64, kind string, amount float64) *models.Transaction {
	t.Helper()
	tr, err := svc.CreateTransaction(context.Background(), userID, TransactionInput{
		Kind:   kind,
		Amount: amount,
	})
	require.NoError(t, err)
	return tr
}

func TestCreateTransactionUpdatesAccountTotals(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()

	createTransaction(t, svc, 1, models.KindIncome, 100)
	createTransaction(t, svc, 1, models.KindExpense, 40)
	createTransaction(t, svc, 1, models.KindSavings, 20)
	createTransaction(t, svc, 1, models.KindInvestment, 10)

	list, err := svc.ListTransactions(ctx, 1, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, list.Transactions, 4)
	assert.Equal(t, 30.0, list.Balance)
	assert.Equal(t, 20.0, list.TotalSavings)
	assert.Equal(t, 10.0, list.TotalInvestments)
}

func TestCreateTransactionInsufficientBalance(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, 1, TransactionInput{
		Kind:   models.KindExpense,
		Amount: 50,
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// The rejected transaction leaves no trace.
	list, err := svc.ListTransactions(ctx, 1, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Transactions)
	assert.Equal(t, 0.0, list.Balance)
}

func TestCreateTransactionValidation(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, 1, TransactionInput{Kind: "transfer", Amount: 10})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateTransaction(ctx, 1, TransactionInput{Kind: models.KindIncome, Amount: 0})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateTransaction(ctx, 1, TransactionInput{
		Kind: models.KindIncome, Amount: 10, Category: "Groceries",
	})
	assert.ErrorIs(t, err, ErrValidation, "expense category on an income")
}

func TestUpdateTransactionReappliesEffect(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()

	createTransaction(t, svc, 1, models.KindIncome, 100)
	tr := createTransaction(t, svc, 1, models.KindExpense, 30)

	kind := models.KindSavings
	updated, err := svc.UpdateTransaction(ctx, 1, tr.ID, TransactionUpdate{Kind: &kind})
	require.NoError(t, err)
	assert.Equal(t, models.KindSavings, updated.Kind)

	list, err := svc.ListTransactions(ctx, 1, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 70.0, list.Balance)
	assert.Equal(t, 30.0, list.TotalSavings)
}

func TestUpdateTransactionNotFound(t *testing.T) {
	_, svc := newFinanceService(t)
	amount := 5.0
	_, err := svc.UpdateTransaction(context.Background(), 1, 42, TransactionUpdate{Amount: &amount})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTransactionReversesEffect(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()

	tr := createTransaction(t, svc, 1, models.KindIncome, 100)
	require.NoError(t, svc.DeleteTransaction(ctx, 1, tr.ID))

	list, err := svc.ListTransactions(ctx, 1, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Transactions)
	assert.Equal(t, 0.0, list.Balance)

	err = svc.DeleteTransaction(ctx, 1, tr.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIncomeBlockedWhenSpent(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()

	tr := createTransaction(t, svc, 1, models.KindIncome, 100)
	createTransaction(t, svc, 1, models.KindExpense, 80)

	// Removing the income would leave the account 80 in the red.
	err := svc.DeleteTransaction(ctx, 1, tr.ID)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	list, err := svc.ListTransactions(ctx, 1, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, list.Transactions, 2)
	assert.Equal(t, 20.0, list.Balance)
}

func TestTransactionsAreScopedToUser(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()

	tr := createTransaction(t, svc, 1, models.KindIncome, 100)

	_, err := svc.ListTransactions(ctx, 2, models.TransactionFilter{})
	require.NoError(t, err)

	err = svc.DeleteTransaction(ctx, 2, tr.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSummary(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, 1, TransactionInput{
		Kind: models.KindIncome, Amount: 1000, Category: "Salary",
	})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, 1, TransactionInput{
		Kind: models.KindExpense, Amount: 200, Category: "Rent",
	})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, 1, TransactionInput{
		Kind: models.KindExpense, Amount: 50, Category: "Groceries",
	})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, 1, TransactionInput{
		Kind: models.KindSavings, Amount: 100, Category: "Vacation",
	})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, 1, TransactionInput{
		Kind: models.KindInvestment, Amount: 150, Category: "Stocks",
	})
	require.NoError(t, err)

	summary, err := svc.GetSummary(ctx, 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, summary.TotalIncome)
	assert.Equal(t, 250.0, summary.TotalExpenses)
	assert.Equal(t, 100.0, summary.TotalSavings)
	assert.Equal(t, 150.0, summary.TotalInvestments)
	assert.Equal(t, 600.0, summary.NetSavings)
	assert.Equal(t, 200.0, summary.Categories[models.KindExpense]["Rent"])
	assert.Equal(t, 50.0, summary.Categories[models.KindExpense]["Groceries"])
	assert.Equal(t, 500.0, summary.CurrentBalance)
	assert.Equal(t, 100.0, summary.CurrentSavings)
	assert.Equal(t, 150.0, summary.CurrentInvestments)
}

func TestGetSummaryDateRange(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()

	jan := date(2025, time.January, 15)
	jun := date(2025, time.June, 15)
	_, err := svc.CreateTransaction(ctx, 1, TransactionInput{
		Kind: models.KindIncome, Amount: 100, Date: &jan,
	})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, 1, TransactionInput{
		Kind: models.KindIncome, Amount: 40, Date: &jun,
	})
	require.NoError(t, err)

	start := date(2025, time.June, 1)
	end := date(2025, time.June, 30)
	summary, err := svc.GetSummary(ctx, 1, &start, &end)
	require.NoError(t, err)
	assert.Equal(t, 40.0, summary.TotalIncome)
	// Account totals are always the live values, not range-bound.
	assert.Equal(t, 140.0, summary.CurrentBalance)
}

func TestCreateRecurringRule(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()
	future := time.Now().UTC().AddDate(0, 1, 0)

	rule, err := svc.CreateRecurringRule(ctx, 1, RecurringRuleInput{
		Kind:      models.KindExpense,
		Amount:    500,
		Category:  "Rent",
		Frequency: models.FrequencyMonthly,
		StartDate: future,
	})
	require.NoError(t, err)
	assert.NotZero(t, rule.ID)
	assert.Nil(t, rule.SubscriptionID)
	assert.False(t, rule.LastProcessed.Valid)

	rules, err := svc.ListRecurringRules(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestCreateRecurringRuleRejectsPastStart(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()
	past := time.Now().UTC().AddDate(0, 0, -10)

	_, err := svc.CreateRecurringRule(ctx, 1, RecurringRuleInput{
		Kind:      models.KindExpense,
		Amount:    500,
		Frequency: models.FrequencyMonthly,
		StartDate: past,
	})
	assert.ErrorIs(t, err, ErrValidation)

	// Daily rules may start in the past; the materializer back-fills them.
	_, err = svc.CreateRecurringRule(ctx, 1, RecurringRuleInput{
		Kind:      models.KindIncome,
		Amount:    10,
		Frequency: models.FrequencyDaily,
		StartDate: past,
	})
	assert.NoError(t, err)
}

func TestCreateRecurringRuleRejectsInternalFrequencies(t *testing.T) {
	_, svc := newFinanceService(t)
	ctx := context.Background()
	future := time.Now().UTC().AddDate(0, 1, 0)

	for _, freq := range []string{models.FrequencyQuarterly, models.FrequencySemiannual, "fortnightly"} {
		_, err := svc.CreateRecurringRule(ctx, 1, RecurringRuleInput{
			Kind:      models.KindExpense,
			Amount:    10,
			Frequency: freq,
			StartDate: future,
		})
		assert.ErrorIs(t, err, ErrValidation, freq)
	}
}

func TestDeleteRecurringRuleKeepsPostedTransactions(t *testing.T) {
	db, svc := newFinanceService(t)
	ctx := context.Background()

	rule := &models.RecurringRule{
		UserID:    1,
		Kind:      models.KindIncome,
		Amount:    10,
		Frequency: models.FrequencyDaily,
		StartDate: date(2025, time.August, 1),
	}
	require.NoError(t, rule.Insert(db))

	m := NewMaterializer(db, ledger.NewEngine(db))
	m.RunOnce(ctx, date(2025, time.August, 3))
	require.Len(t, userTransactions(t, db, 1), 3)

	require.NoError(t, svc.DeleteRecurringRule(ctx, 1, rule.ID))

	// Posted transactions survive the rule's deletion with the link cleared.
	transactions := userTransactions(t, db, 1)
	require.Len(t, transactions, 3)
	for _, tr := range transactions {
		assert.Nil(t, tr.RuleID)
	}

	err := svc.DeleteRecurringRule(ctx, 1, rule.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
