package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/ayna/backend/src/ledger"
	"github.com/username/ayna/backend/src/logger"
	"github.com/username/ayna/backend/src/models"
	"github.com/username/ayna/backend/src/validation"
)

const (
	ckSummary       = "agg_finance_summary_user_%d"
	ckDailySpending = "agg_daily_spending_user_%d"
)

type financeServiceImpl struct {
	db          *sql.DB
	engine      *ledger.Engine
	reportCache *cache.Cache
}

func NewFinanceService(db *sql.DB, engine *ledger.Engine, reportCache *cache.Cache) FinanceService {
	return &financeServiceImpl{
		db:          db,
		engine:      engine,
		reportCache: reportCache,
	}
}

func validateKindAmountCategory(kind string, amount float64, category string) error {
	if !models.ValidKind(kind) {
		return fmt.Errorf("%w: invalid transaction kind %q", ErrValidation, kind)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	if !models.ValidCategory(kind, category) {
		return fmt.Errorf("%w: invalid category %q for kind %s", ErrValidation, category, kind)
	}
	return nil
}

func (s *financeServiceImpl) invalidateUserCache(userID int64) {
	s.reportCache.Delete(fmt.Sprintf(ckSummary, userID))
	s.reportCache.Delete(fmt.Sprintf(ckDailySpending, userID))
}

func (s *financeServiceImpl) CreateTransaction(ctx context.Context, userID int64, in TransactionInput) (*models.Transaction, error) {
	if err := validateKindAmountCategory(in.Kind, in.Amount, in.Category); err != nil {
		return nil, err
	}

	date := time.Now().UTC()
	if in.Date != nil {
		date = *in.Date
	}

	t := &models.Transaction{
		UserID:      userID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: validation.CleanText(in.Description),
		Date:        date,
	}

	err := s.engine.WithAccount(ctx, userID, func(tx *sql.Tx, acct *models.Account) error {
		if err := ledger.Apply(acct, t.Kind, t.Amount); err != nil {
			return err
		}
		return t.Insert(tx)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateUserCache(userID)
	logger.FromContext(ctx).Info("Transaction created", "userID", userID, "transactionID", t.ID, "kind", t.Kind)
	return t, nil
}

func (s *financeServiceImpl) ListTransactions(ctx context.Context, userID int64, filter models.TransactionFilter) (*TransactionList, error) {
	transactions, err := models.ListTransactions(s.db, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions for user %d: %w", userID, err)
	}

	acct, err := models.GetAccount(s.db, userID)
	if errors.Is(err, sql.ErrNoRows) {
		acct = &models.Account{UserID: userID}
	} else if err != nil {
		return nil, fmt.Errorf("load account %d: %w", userID, err)
	}

	return &TransactionList{
		Transactions:     transactions,
		Balance:          acct.Balance,
		TotalSavings:     acct.TotalSavings,
		TotalInvestments: acct.TotalInvestments,
	}, nil
}

func (s *financeServiceImpl) UpdateTransaction(ctx context.Context, userID, id int64, in TransactionUpdate) (*models.Transaction, error) {
	var updated *models.Transaction

	err := s.engine.WithAccount(ctx, userID, func(tx *sql.Tx, acct *models.Account) error {
		t, err := models.GetTransaction(tx, id, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: transaction %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}

		oldKind, oldAmount := t.Kind, t.Amount

		if in.Kind != nil {
			t.Kind = *in.Kind
		}
		if in.Amount != nil {
			t.Amount = *in.Amount
		}
		if in.Category != nil {
			t.Category = *in.Category
		}
		if in.Description != nil {
			t.Description = validation.CleanText(*in.Description)
		}
		if in.Date != nil {
			t.Date = *in.Date
		}

		if err := validateKindAmountCategory(t.Kind, t.Amount, t.Category); err != nil {
			return err
		}

		// Reverse the old effect in full, then apply the new one. Both
		// steps run against the same loaded account; a net delta would
		// touch the wrong totals whenever the kind changes.
		if err := ledger.ApplyUpdate(acct, oldKind, oldAmount, t.Kind, t.Amount); err != nil {
			return err
		}
		if err := t.Update(tx); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateUserCache(userID)
	logger.FromContext(ctx).Info("Transaction updated", "userID", userID, "transactionID", id)
	return updated, nil
}

func (s *financeServiceImpl) DeleteTransaction(ctx context.Context, userID, id int64) error {
	err := s.engine.WithAccount(ctx, userID, func(tx *sql.Tx, acct *models.Account) error {
		t, err := models.GetTransaction(tx, id, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: transaction %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}

		if err := ledger.Reverse(acct, t.Kind, t.Amount); err != nil {
			return err
		}
		_, err = models.DeleteTransaction(tx, id, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.invalidateUserCache(userID)
	logger.FromContext(ctx).Info("Transaction deleted", "userID", userID, "transactionID", id)
	return nil
}

func (s *financeServiceImpl) Categories() map[string][]string {
	return models.PredefinedCategories
}

func (s *financeServiceImpl) GetSummary(ctx context.Context, userID int64, start, end *time.Time) (*Summary, error) {
	cacheKey := fmt.Sprintf(ckSummary, userID)
	if start == nil && end == nil {
		if cached, found := s.reportCache.Get(cacheKey); found {
			return cached.(*Summary), nil
		}
	}

	transactions, err := models.ListTransactions(s.db, userID, models.TransactionFilter{StartDate: start, EndDate: end})
	if err != nil {
		return nil, fmt.Errorf("list transactions for summary, user %d: %w", userID, err)
	}

	summary := &Summary{Categories: make(map[string]map[string]float64)}
	for _, t := range transactions {
		category := t.Category
		if category == "" {
			category = "Uncategorized"
		}
		if summary.Categories[t.Kind] == nil {
			summary.Categories[t.Kind] = make(map[string]float64)
		}
		summary.Categories[t.Kind][category] += t.Amount

		switch t.Kind {
		case models.KindIncome:
			summary.TotalIncome += t.Amount
		case models.KindExpense:
			summary.TotalExpenses += t.Amount
		case models.KindSavings:
			summary.TotalSavings += t.Amount
		case models.KindInvestment:
			summary.TotalInvestments += t.Amount
		}
	}
	summary.NetSavings = summary.TotalIncome - summary.TotalExpenses - summary.TotalInvestments

	dailySpending, err := dailySubscriptionSpending(s.db, userID)
	if err != nil {
		return nil, err
	}
	summary.AverageDailySubscriptionSpending = dailySpending

	acct, err := models.GetAccount(s.db, userID)
	if errors.Is(err, sql.ErrNoRows) {
		acct = &models.Account{UserID: userID}
	} else if err != nil {
		return nil, fmt.Errorf("load account %d: %w", userID, err)
	}
	summary.CurrentBalance = acct.Balance
	summary.CurrentSavings = acct.TotalSavings
	summary.CurrentInvestments = acct.TotalInvestments

	if start == nil && end == nil {
		s.reportCache.SetDefault(cacheKey, summary)
	}
	return summary, nil
}

func (s *financeServiceImpl) CreateRecurringRule(ctx context.Context, userID int64, in RecurringRuleInput) (*models.RecurringRule, error) {
	if err := validateKindAmountCategory(in.Kind, in.Amount, in.Category); err != nil {
		return nil, err
	}
	if !models.ValidUserFrequency(in.Frequency) {
		return nil, fmt.Errorf("%w: invalid frequency %q", ErrValidation, in.Frequency)
	}
	if in.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if in.StartDate.Before(time.Now()) && in.Frequency != models.FrequencyDaily {
		return nil, fmt.Errorf("%w: start date cannot be in the past for non-daily recurring transactions", ErrValidation)
	}

	r := &models.RecurringRule{
		UserID:      userID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: validation.CleanText(in.Description),
		Frequency:   in.Frequency,
		StartDate:   in.StartDate,
	}
	if in.EndDate != nil {
		r.EndDate = models.NullTime{Time: *in.EndDate, Valid: true}
	}

	if err := r.Insert(s.db); err != nil {
		return nil, fmt.Errorf("insert recurring rule for user %d: %w", userID, err)
	}
	logger.FromContext(ctx).Info("Recurring rule created", "userID", userID, "ruleID", r.ID, "frequency", r.Frequency)
	return r, nil
}

func (s *financeServiceImpl) ListRecurringRules(ctx context.Context, userID int64) ([]*models.RecurringRule, error) {
	rules, err := models.ListRecurringRules(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules for user %d: %w", userID, err)
	}
	return rules, nil
}

func (s *financeServiceImpl) UpdateRecurringRule(ctx context.Context, userID, id int64, in RecurringRuleUpdate) (*models.RecurringRule, error) {
	r, err := models.GetRecurringRule(s.db, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: recurring rule %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if in.Kind != nil {
		r.Kind = *in.Kind
	}
	if in.Amount != nil {
		r.Amount = *in.Amount
	}
	if in.Category != nil {
		r.Category = *in.Category
	}
	if in.Description != nil {
		r.Description = validation.CleanText(*in.Description)
	}
	if in.Frequency != nil {
		r.Frequency = *in.Frequency
	}
	if in.StartDate != nil {
		if in.StartDate.Before(time.Now()) && r.Frequency != models.FrequencyDaily {
			return nil, fmt.Errorf("%w: start date cannot be in the past for non-daily recurring transactions", ErrValidation)
		}
		r.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		r.EndDate = models.NullTime{Time: *in.EndDate, Valid: true}
	}

	if err := validateKindAmountCategory(r.Kind, r.Amount, r.Category); err != nil {
		return nil, err
	}
	if !models.ValidUserFrequency(r.Frequency) {
		return nil, fmt.Errorf("%w: invalid frequency %q", ErrValidation, r.Frequency)
	}

	if err := r.Update(s.db); err != nil {
		return nil, fmt.Errorf("update recurring rule %d: %w", id, err)
	}
	logger.FromContext(ctx).Info("Recurring rule updated", "userID", userID, "ruleID", id)
	return r, nil
}

func (s *financeServiceImpl) DeleteRecurringRule(ctx context.Context, userID, id int64) error {
	deleted, err := models.DeleteRecurringRule(s.db, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring rule %d: %w", id, err)
	}
	if !deleted {
		return fmt.Errorf("%w: recurring rule %d", ErrNotFound, id)
	}
	logger.FromContext(ctx).Info("Recurring rule deleted", "userID", userID, "ruleID", id)
	return nil
}
