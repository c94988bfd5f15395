package ledger

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/ayna/backend/src/database/dbtest"
	"github.com/username/ayna/backend/src/models"
)

func TestApplyEffectsPerKind(t *testing.T) {
	tests := []struct {
		kind            string
		amount          float64
		wantBalance     float64
		wantSavings     float64
		wantInvestments float64
	}{
		{models.KindIncome, 100, 200, 0, 0},
		{models.KindExpense, 40, 60, 0, 0},
		{models.KindSavings, 25, 75, 25, 0},
		{models.KindInvestment, 30, 70, 0, 30},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			acct := &models.Account{Balance: 100}
			require.NoError(t, Apply(acct, tt.kind, tt.amount))
			assert.Equal(t, tt.wantBalance, acct.Balance)
			assert.Equal(t, tt.wantSavings, acct.TotalSavings)
			assert.Equal(t, tt.wantInvestments, acct.TotalInvestments)
		})
	}
}

func TestApplyUnknownKind(t *testing.T) {
	acct := &models.Account{Balance: 100}
	assert.Error(t, Apply(acct, "transfer", 10))
}

func TestApplyInsufficientBalanceLeavesAccountUntouched(t *testing.T) {
	acct := &models.Account{Balance: 50}
	err := Apply(acct, models.KindExpense, 50.01)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 50.0, acct.Balance)
	assert.Equal(t, 0.0, acct.TotalSavings)
}

func TestReverseUndoesApply(t *testing.T) {
	acct := &models.Account{Balance: 100}
	require.NoError(t, Apply(acct, models.KindSavings, 40))
	require.NoError(t, Reverse(acct, models.KindSavings, 40))
	assert.Equal(t, 100.0, acct.Balance)
	assert.Equal(t, 0.0, acct.TotalSavings)
}

func TestApplyUpdateAcrossKinds(t *testing.T) {
	acct := &models.Account{Balance: 100}
	require.NoError(t, Apply(acct, models.KindExpense, 40))
	require.Equal(t, 60.0, acct.Balance)

	// Changing an expense into savings must move the 40 from "spent" to
	// "saved", not just net the amounts.
	require.NoError(t, ApplyUpdate(acct, models.KindExpense, 40, models.KindSavings, 40))
	assert.Equal(t, 60.0, acct.Balance)
	assert.Equal(t, 40.0, acct.TotalSavings)
}

func TestApplyUpdateInsufficientBalance(t *testing.T) {
	acct := &models.Account{Balance: 10}
	err := ApplyUpdate(acct, models.KindExpense, 5, models.KindExpense, 50)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 10.0, acct.Balance)
}

func TestApplyAvoidsFloatDrift(t *testing.T) {
	acct := &models.Account{}
	require.NoError(t, Apply(acct, models.KindIncome, 0.1))
	require.NoError(t, Apply(acct, models.KindIncome, 0.2))
	assert.Equal(t, 0.3, acct.Balance)
}

func TestWithAccountPersistsChanges(t *testing.T) {
	db := dbtest.New(t)
	engine := NewEngine(db)
	ctx := context.Background()

	err := engine.WithAccount(ctx, 1, func(tx *sql.Tx, acct *models.Account) error {
		return Apply(acct, models.KindIncome, 150)
	})
	require.NoError(t, err)

	acct, err := models.GetAccount(db, 1)
	require.NoError(t, err)
	assert.Equal(t, 150.0, acct.Balance)
}

func TestWithAccountRollsBackOnError(t *testing.T) {
	db := dbtest.New(t)
	engine := NewEngine(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := engine.WithAccount(ctx, 7, func(tx *sql.Tx, acct *models.Account) error {
		if err := Apply(acct, models.KindIncome, 999); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The provisioned account row rolls back with everything else.
	_, err = models.GetAccount(db, 7)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestWithAccountSerializesConcurrentWrites(t *testing.T) {
	db := dbtest.New(t)
	engine := NewEngine(db)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- engine.WithAccount(ctx, 1, func(tx *sql.Tx, acct *models.Account) error {
				return Apply(acct, models.KindIncome, 1)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	acct, err := models.GetAccount(db, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(writers), acct.Balance)
}
