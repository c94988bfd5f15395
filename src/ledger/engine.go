// Package ledger keeps account totals consistent with the live transaction
// set. Every balance-affecting write in the application flows through
// Engine.WithAccount, which serializes mutations per account and makes the
// account update and the transaction row one atomic unit.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/username/ayna/backend/src/models"
)

// ErrInsufficientBalance is returned when an effect would drive the account
// balance negative. The enclosing operation must be discarded in full.
var ErrInsufficientBalance = errors.New("insufficient balance for this transaction")

// Engine applies, reverses and re-applies the monetary effect of transactions
// on an account's totals.
type Engine struct {
	db    *sql.DB
	locks sync.Map // userID -> *sync.Mutex
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) lockFor(userID int64) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// WithAccount runs fn against the user's account inside one database
// transaction, holding the account's mutex for the duration. The account is
// loaded (provisioned on first touch) before fn runs and persisted after fn
// returns; any error rolls the whole unit back. User requests and the
// recurrence materializer both mutate accounts through here, so the per-key
// mutex is what prevents lost updates between the two.
func (e *Engine) WithAccount(ctx context.Context, userID int64, fn func(tx *sql.Tx, acct *models.Account) error) error {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	acct, err := models.GetOrCreateAccount(tx, userID)
	if err != nil {
		return fmt.Errorf("load account %d: %w", userID, err)
	}

	if err := fn(tx, acct); err != nil {
		return err
	}

	if err := acct.Save(tx); err != nil {
		return fmt.Errorf("persist account %d: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	committed = true
	return nil
}

// effect is the signed impact of one (kind, amount) pair on the three totals,
// held in decimals so repeated mutations do not accumulate float error.
type effect struct {
	balance     decimal.Decimal
	savings     decimal.Decimal
	investments decimal.Decimal
}

func effectOf(kind string, amount float64) (effect, error) {
	amt := decimal.NewFromFloat(amount)
	switch kind {
	case models.KindIncome:
		return effect{balance: amt}, nil
	case models.KindExpense:
		return effect{balance: amt.Neg()}, nil
	case models.KindSavings:
		return effect{balance: amt.Neg(), savings: amt}, nil
	case models.KindInvestment:
		return effect{balance: amt.Neg(), investments: amt}, nil
	}
	return effect{}, fmt.Errorf("unknown transaction kind %q", kind)
}

func applyEffects(acct *models.Account, effects ...effect) error {
	balance := decimal.NewFromFloat(acct.Balance)
	savings := decimal.NewFromFloat(acct.TotalSavings)
	investments := decimal.NewFromFloat(acct.TotalInvestments)

	for _, ef := range effects {
		balance = balance.Add(ef.balance)
		savings = savings.Add(ef.savings)
		investments = investments.Add(ef.investments)
	}

	if balance.IsNegative() {
		return ErrInsufficientBalance
	}

	acct.Balance = balance.InexactFloat64()
	acct.TotalSavings = savings.InexactFloat64()
	acct.TotalInvestments = investments.InexactFloat64()
	return nil
}

func negated(ef effect) effect {
	return effect{
		balance:     ef.balance.Neg(),
		savings:     ef.savings.Neg(),
		investments: ef.investments.Neg(),
	}
}

// Apply adds the effect of a new (kind, amount) transaction to the account.
// On ErrInsufficientBalance the account is left untouched.
func Apply(acct *models.Account, kind string, amount float64) error {
	ef, err := effectOf(kind, amount)
	if err != nil {
		return err
	}
	return applyEffects(acct, ef)
}

// Reverse removes the effect of an existing (kind, amount) transaction from
// the account, for deletion paths.
func Reverse(acct *models.Account, kind string, amount float64) error {
	ef, err := effectOf(kind, amount)
	if err != nil {
		return err
	}
	return applyEffects(acct, negated(ef))
}

// ApplyUpdate reverses the old (kind, amount) effect in full and applies the
// new one, as two effects in one step. A net delta would be wrong whenever
// the kind changes, since the kind decides which totals are touched.
func ApplyUpdate(acct *models.Account, oldKind string, oldAmount float64, newKind string, newAmount float64) error {
	oldEf, err := effectOf(oldKind, oldAmount)
	if err != nil {
		return err
	}
	newEf, err := effectOf(newKind, newAmount)
	if err != nil {
		return err
	}
	return applyEffects(acct, negated(oldEf), newEf)
}
