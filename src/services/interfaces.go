package services

import (
	"context"
	"errors"
	"time"

	"github.com/username/ayna/backend/src/models"
)

// Service error taxonomy. Handlers map these to HTTP statuses with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
)

// TransactionInput is the payload for creating a transaction.
type TransactionInput struct {
	Kind        string     `json:"kind"`
	Amount      float64    `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date"`
}

// TransactionUpdate carries the fields of a transaction edit; nil fields are
// left unchanged.
type TransactionUpdate struct {
	Kind        *string    `json:"kind"`
	Amount      *float64   `json:"amount"`
	Category    *string    `json:"category"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
}

// TransactionList is a transaction listing together with the account totals.
type TransactionList struct {
	Transactions     []*models.Transaction `json:"transactions"`
	Balance          float64               `json:"balance"`
	TotalSavings     float64               `json:"total_savings"`
	TotalInvestments float64               `json:"total_investments"`
}

// Summary aggregates the user's finances over an optional date range.
type Summary struct {
	TotalIncome                      float64                       `json:"total_income"`
	TotalExpenses                    float64                       `json:"total_expenses"`
	TotalSavings                     float64                       `json:"total_savings"`
	TotalInvestments                 float64                       `json:"total_investments"`
	NetSavings                       float64                       `json:"net_savings"`
	Categories                       map[string]map[string]float64 `json:"categories"`
	AverageDailySubscriptionSpending float64                       `json:"average_daily_subscription_spending"`
	CurrentBalance                   float64                       `json:"current_balance"`
	CurrentSavings                   float64                       `json:"current_savings"`
	CurrentInvestments               float64                       `json:"current_investments"`
}

// RecurringRuleInput is the payload for creating a recurring rule.
type RecurringRuleInput struct {
	Kind        string     `json:"kind"`
	Amount      float64    `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Frequency   string     `json:"frequency"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// RecurringRuleUpdate carries the fields of a rule edit; nil fields are left
// unchanged.
type RecurringRuleUpdate struct {
	Kind        *string    `json:"kind"`
	Amount      *float64   `json:"amount"`
	Category    *string    `json:"category"`
	Description *string    `json:"description"`
	Frequency   *string    `json:"frequency"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// FinanceService is the transaction and recurring-rule surface, with every
// balance-affecting write routed through the Ledger Engine.
type FinanceService interface {
	CreateTransaction(ctx context.Context, userID int64, in TransactionInput) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, filter models.TransactionFilter) (*TransactionList, error)
	UpdateTransaction(ctx context.Context, userID, id int64, in TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int64) error

	Categories() map[string][]string
	GetSummary(ctx context.Context, userID int64, start, end *time.Time) (*Summary, error)

	CreateRecurringRule(ctx context.Context, userID int64, in RecurringRuleInput) (*models.RecurringRule, error)
	ListRecurringRules(ctx context.Context, userID int64) ([]*models.RecurringRule, error)
	UpdateRecurringRule(ctx context.Context, userID, id int64, in RecurringRuleUpdate) (*models.RecurringRule, error)
	DeleteRecurringRule(ctx context.Context, userID, id int64) error
}

// SubscriptionInput is the payload for creating a subscription.
type SubscriptionInput struct {
	Name             string    `json:"name"`
	BillingCycle     string    `json:"billing_cycle"`
	Price            float64   `json:"price"`
	BillingStartDate time.Time `json:"billing_start_date"`
}

// SubscriptionUpdate carries the fields of a subscription edit; nil fields
// are left unchanged.
type SubscriptionUpdate struct {
	Name             *string    `json:"name"`
	BillingCycle     *string    `json:"billing_cycle"`
	Price            *float64   `json:"price"`
	BillingStartDate *time.Time `json:"billing_start_date"`
}

// SubscriptionList is a subscription listing with the user's average daily
// subscription spend across active subscriptions.
type SubscriptionList struct {
	Subscriptions        []*models.Subscription `json:"subscriptions"`
	AverageDailySpending float64                `json:"average_daily_spending"`
}

// SubscriptionService manages subscriptions and their shadow recurring rules.
type SubscriptionService interface {
	Create(ctx context.Context, userID int64, in SubscriptionInput) (*models.Subscription, error)
	List(ctx context.Context, userID int64) (*SubscriptionList, error)
	Update(ctx context.Context, userID, id int64, in SubscriptionUpdate) (*models.Subscription, error)
	Cancel(ctx context.Context, userID, id int64, cancellationDate time.Time) (*models.Subscription, error)
	DailySpending(ctx context.Context, userID int64) (float64, error)
}

// OccurrenceSourceEvent and OccurrenceSourceSubscription tag where a calendar
// occurrence came from.
const (
	OccurrenceSourceEvent        = "event"
	OccurrenceSourceSubscription = "subscription"
)

// Occurrence is one concrete calendar entry produced by the aggregator:
// either an expansion of a stored event or a derived subscription billing.
// Derived occurrences are never persisted.
type Occurrence struct {
	Source         string    `json:"source"`
	Name           string    `json:"name"`
	DateTime       time.Time `json:"date_time"`
	EventType      string    `json:"event_type"`
	Recurring      string    `json:"recurring"`
	Reminder       string    `json:"reminder"`
	Notes          string    `json:"notes"`
	EventID        *int64    `json:"event_id,omitempty"`
	SubscriptionID *int64    `json:"subscription_id,omitempty"`
}

// EventInput is the payload for creating an event.
type EventInput struct {
	Name      string    `json:"name"`
	DateTime  time.Time `json:"date_time"`
	EventType string    `json:"event_type"`
	Recurring string    `json:"recurring"`
	Reminder  string    `json:"reminder"`
	Notes     string    `json:"notes"`
}

// EventUpdate carries the fields of an event edit; nil fields are left
// unchanged.
type EventUpdate struct {
	Name      *string    `json:"name"`
	DateTime  *time.Time `json:"date_time"`
	EventType *string    `json:"event_type"`
	Recurring *string    `json:"recurring"`
	Reminder  *string    `json:"reminder"`
	Notes     *string    `json:"notes"`
}

// EventService is the calendar surface: CRUD over stored events plus the
// read-only occurrence aggregation.
type EventService interface {
	Range(ctx context.Context, userID int64, start, end time.Time) ([]Occurrence, error)
	Upcoming(ctx context.Context, userID int64, now time.Time) ([]Occurrence, error)
	BillingOccurrences(ctx context.Context, userID int64, start, end time.Time) ([]Occurrence, error)

	Create(ctx context.Context, userID int64, in EventInput) (*models.Event, error)
	Update(ctx context.Context, userID, id int64, in EventUpdate) (*models.Event, error)
	Delete(ctx context.Context, userID, id int64) error
}
