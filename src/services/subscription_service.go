package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/ayna/backend/src/logger"
	"github.com/username/ayna/backend/src/models"
	"github.com/username/ayna/backend/src/recurrence"
	"github.com/username/ayna/backend/src/validation"
)

type subscriptionServiceImpl struct {
	db          *sql.DB
	reportCache *cache.Cache
}

func NewSubscriptionService(db *sql.DB, reportCache *cache.Cache) SubscriptionService {
	return &subscriptionServiceImpl{db: db, reportCache: reportCache}
}

// cycleFrequency maps a billing cycle to the shadow rule's recurrence
// frequency. Each cycle gets a matching cadence at full price, so a 3-month
// subscription bills quarterly rather than every month.
func cycleFrequency(billingCycle string) string {
	switch billingCycle {
	case models.Cycle1Month:
		return models.FrequencyMonthly
	case models.Cycle3Months:
		return models.FrequencyQuarterly
	case models.Cycle6Months:
		return models.FrequencySemiannual
	default:
		return models.FrequencyYearly
	}
}

// nextBillingDate advances a billing start date by one cycle, with calendar
// month/year arithmetic.
func nextBillingDate(start time.Time, billingCycle string) time.Time {
	iv, _ := recurrence.IntervalFor(cycleFrequency(billingCycle))
	return recurrence.OccurrenceAt(start, iv, 1)
}

// daysInBillingCycle returns the fixed day-count approximation used for daily
// spending figures.
func daysInBillingCycle(billingCycle string) int {
	switch billingCycle {
	case models.Cycle1Month:
		return 30
	case models.Cycle3Months:
		return 90
	case models.Cycle6Months:
		return 180
	case models.Cycle1Year:
		return 365
	}
	return 0
}

func (s *subscriptionServiceImpl) invalidateUserCache(userID int64) {
	s.reportCache.Delete(fmt.Sprintf(ckSummary, userID))
	s.reportCache.Delete(fmt.Sprintf(ckDailySpending, userID))
}

func (s *subscriptionServiceImpl) Create(ctx context.Context, userID int64, in SubscriptionInput) (*models.Subscription, error) {
	name := validation.CleanText(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: subscription name is required", ErrValidation)
	}
	if !models.ValidBillingCycle(in.BillingCycle) {
		return nil, fmt.Errorf("%w: invalid billing cycle %q", ErrValidation, in.BillingCycle)
	}
	if in.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be greater than 0", ErrValidation)
	}
	if in.BillingStartDate.IsZero() {
		return nil, fmt.Errorf("%w: billing start date is required", ErrValidation)
	}

	sub := &models.Subscription{
		UserID:           userID,
		Name:             name,
		BillingCycle:     in.BillingCycle,
		Price:            in.Price,
		BillingStartDate: in.BillingStartDate,
		NextBillingDate:  nextBillingDate(in.BillingStartDate, in.BillingCycle),
		Status:           models.StatusActive,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin subscription create: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := sub.Insert(tx); err != nil {
		return nil, fmt.Errorf("insert subscription for user %d: %w", userID, err)
	}

	// The shadow rule posts the subscription's cost into the ledger on every
	// billing date. It is linked by ID, so renaming the subscription cannot
	// orphan it.
	rule := &models.RecurringRule{
		UserID:         userID,
		Kind:           models.KindExpense,
		Amount:         sub.Price,
		Category:       "Subscriptions",
		Description:    fmt.Sprintf("Subscription: %s", sub.Name),
		Frequency:      cycleFrequency(sub.BillingCycle),
		StartDate:      sub.BillingStartDate,
		SubscriptionID: &sub.ID,
	}
	if err := rule.Insert(tx); err != nil {
		return nil, fmt.Errorf("insert shadow rule for subscription %d: %w", sub.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit subscription create: %w", err)
	}
	committed = true

	s.invalidateUserCache(userID)
	logger.FromContext(ctx).Info("Subscription created", "userID", userID, "subscriptionID", sub.ID, "cycle", sub.BillingCycle)
	return sub, nil
}

func (s *subscriptionServiceImpl) List(ctx context.Context, userID int64) (*SubscriptionList, error) {
	subs, err := models.ListSubscriptions(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for user %d: %w", userID, err)
	}
	daily, err := s.DailySpending(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionList{Subscriptions: subs, AverageDailySpending: daily}, nil
}

func (s *subscriptionServiceImpl) Update(ctx context.Context, userID, id int64, in SubscriptionUpdate) (*models.Subscription, error) {
	sub, err := models.GetSubscription(s.db, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: subscription %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if sub.Status == models.StatusCancelled {
		return nil, fmt.Errorf("%w: cannot edit a cancelled subscription", ErrInvalidState)
	}

	if in.Name != nil {
		name := validation.CleanText(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: subscription name cannot be empty", ErrValidation)
		}
		sub.Name = name
	}
	if in.BillingCycle != nil {
		if !models.ValidBillingCycle(*in.BillingCycle) {
			return nil, fmt.Errorf("%w: invalid billing cycle %q", ErrValidation, *in.BillingCycle)
		}
		sub.BillingCycle = *in.BillingCycle
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return nil, fmt.Errorf("%w: price must be greater than 0", ErrValidation)
		}
		sub.Price = *in.Price
	}
	if in.BillingStartDate != nil {
		sub.BillingStartDate = *in.BillingStartDate
	}
	if in.BillingCycle != nil || in.BillingStartDate != nil {
		sub.NextBillingDate = nextBillingDate(sub.BillingStartDate, sub.BillingCycle)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin subscription update: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := sub.Update(tx); err != nil {
		return nil, fmt.Errorf("update subscription %d: %w", id, err)
	}

	rule, err := models.GetRuleBySubscription(tx, sub.ID, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load shadow rule for subscription %d: %w", id, err)
	}
	if rule != nil {
		rule.Amount = sub.Price
		rule.Description = fmt.Sprintf("Subscription: %s", sub.Name)
		rule.Frequency = cycleFrequency(sub.BillingCycle)
		rule.StartDate = sub.BillingStartDate
		if err := rule.Update(tx); err != nil {
			return nil, fmt.Errorf("update shadow rule for subscription %d: %w", id, err)
		}
	} else {
		logger.FromContext(ctx).Warn("Subscription has no shadow rule", "userID", userID, "subscriptionID", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit subscription update: %w", err)
	}
	committed = true

	s.invalidateUserCache(userID)
	logger.FromContext(ctx).Info("Subscription updated", "userID", userID, "subscriptionID", id)
	return sub, nil
}

func (s *subscriptionServiceImpl) Cancel(ctx context.Context, userID, id int64, cancellationDate time.Time) (*models.Subscription, error) {
	if cancellationDate.IsZero() {
		return nil, fmt.Errorf("%w: cancellation date is required", ErrValidation)
	}

	sub, err := models.GetSubscription(s.db, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: subscription %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if sub.Status == models.StatusCancelled {
		return nil, fmt.Errorf("%w: subscription is already cancelled", ErrInvalidState)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin subscription cancel: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// Monthly subscriptions cancelled inside the current paid period still
	// owe the already-committed next charge; a one-shot rule posts it on the
	// next billing date.
	if sub.BillingCycle == models.Cycle1Month {
		daysSinceStart := int(cancellationDate.Sub(sub.BillingStartDate).Hours() / 24)
		daysUntilNextBilling := int(sub.NextBillingDate.Sub(cancellationDate).Hours() / 24)
		if daysSinceStart < daysInBillingCycle(models.Cycle1Month) && daysUntilNextBilling > 0 {
			// One-shot: start and end on the next billing date. Left
			// unlinked so the subscription keeps exactly one shadow rule.
			closing := &models.RecurringRule{
				UserID:      userID,
				Kind:        models.KindExpense,
				Amount:      sub.Price,
				Category:    "Subscriptions",
				Description: fmt.Sprintf("Final charge for %s (prorated cancellation)", sub.Name),
				Frequency:   models.FrequencyMonthly,
				StartDate:   sub.NextBillingDate,
				EndDate:     models.NullTime{Time: sub.NextBillingDate, Valid: true},
			}
			if err := closing.Insert(tx); err != nil {
				return nil, fmt.Errorf("insert closing charge for subscription %d: %w", id, err)
			}
		}
	}

	sub.Status = models.StatusCancelled
	sub.CancellationDate = models.NullTime{Time: cancellationDate, Valid: true}
	if err := sub.Update(tx); err != nil {
		return nil, fmt.Errorf("cancel subscription %d: %w", id, err)
	}

	// Soft-stop the shadow rule; the row is kept for history.
	rule, err := models.GetRuleBySubscription(tx, sub.ID, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load shadow rule for subscription %d: %w", id, err)
	}
	if rule != nil {
		rule.EndDate = models.NullTime{Time: cancellationDate, Valid: true}
		if err := rule.Update(tx); err != nil {
			return nil, fmt.Errorf("end shadow rule for subscription %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit subscription cancel: %w", err)
	}
	committed = true

	s.invalidateUserCache(userID)
	logger.FromContext(ctx).Info("Subscription cancelled", "userID", userID, "subscriptionID", id, "cancellationDate", cancellationDate)
	return sub, nil
}

func (s *subscriptionServiceImpl) DailySpending(ctx context.Context, userID int64) (float64, error) {
	cacheKey := fmt.Sprintf(ckDailySpending, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(float64), nil
	}

	total, err := dailySubscriptionSpending(s.db, userID)
	if err != nil {
		return 0, err
	}

	s.reportCache.SetDefault(cacheKey, total)
	return total, nil
}

// dailySubscriptionSpending sums price/daysInCycle over the user's active
// subscriptions, rounded to cents.
func dailySubscriptionSpending(q models.Querier, userID int64) (float64, error) {
	subs, err := models.ListActiveSubscriptions(q, userID)
	if err != nil {
		return 0, fmt.Errorf("list active subscriptions for user %d: %w", userID, err)
	}

	total := decimal.Zero
	for _, sub := range subs {
		days := daysInBillingCycle(sub.BillingCycle)
		if days == 0 {
			continue
		}
		total = total.Add(decimal.NewFromFloat(sub.Price).DivRound(decimal.NewFromInt(int64(days)), 8))
	}
	return total.Round(2).InexactFloat64(), nil
}
