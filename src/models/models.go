package models

import (
	"database/sql"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so store functions can run
// inside or outside an explicit transaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// NullTime is an alias for sql.NullTime for better JSON handling.
type NullTime sql.NullTime

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return nt.Time.MarshalJSON()
}

// Transaction kinds.
const (
	KindIncome     = "income"
	KindExpense    = "expense"
	KindSavings    = "savings"
	KindInvestment = "investment"
)

// Recurrence frequencies. Quarterly and semiannual are internal-only: they are
// used by subscription shadow rules for 3- and 6-month billing cycles and are
// not accepted on user-created rules.
const (
	FrequencyDaily      = "daily"
	FrequencyWeekly     = "weekly"
	FrequencyMonthly    = "monthly"
	FrequencyQuarterly  = "quarterly"
	FrequencySemiannual = "semiannual"
	FrequencyYearly     = "yearly"
)

// Subscription billing cycles and statuses.
const (
	Cycle1Month  = "1 Month"
	Cycle3Months = "3 Months"
	Cycle6Months = "6 Months"
	Cycle1Year   = "1 Year"

	StatusActive    = "Active"
	StatusCancelled = "Cancelled"
)

// Event types, recurrence options and reminder offsets.
const (
	EventTypePersonal     = "Personal"
	EventTypeWork         = "Work"
	EventTypeSubscription = "Subscription Billing"

	EventRecurringNone    = "None"
	EventRecurringDaily   = "Daily"
	EventRecurringWeekly  = "Weekly"
	EventRecurringMonthly = "Monthly"
	EventRecurringYearly  = "Yearly"

	ReminderNone    = "None"
	Reminder5Min    = "5 Minutes Before"
	Reminder1Hour   = "1 Hour Before"
	Reminder1Day    = "1 Day Before"
	Reminder1Week   = "1 Week Before"
)

// PredefinedCategories is the fixed per-kind category set. A category outside
// the set is rejected, with "Other" always allowed.
var PredefinedCategories = map[string][]string{
	KindIncome:     {"Salary", "Freelance", "Bonus", "Gift", "Other"},
	KindExpense:    {"Groceries", "Rent", "Utilities", "Entertainment", "Travel", "Subscriptions", "Other"},
	KindSavings:    {"Emergency Fund", "Vacation", "Retirement", "Education", "Other"},
	KindInvestment: {"Stocks", "Mutual Funds", "Real Estate", "Crypto", "Other"},
}

// ValidKind reports whether s is a known transaction kind.
func ValidKind(s string) bool {
	switch s {
	case KindIncome, KindExpense, KindSavings, KindInvestment:
		return true
	}
	return false
}

// ValidCategory reports whether category is allowed for the given kind.
// An empty category is allowed (uncategorized).
func ValidCategory(kind, category string) bool {
	if category == "" {
		return true
	}
	for _, c := range PredefinedCategories[kind] {
		if c == category {
			return true
		}
	}
	return category == "Other"
}

// ValidUserFrequency reports whether s is a frequency accepted on
// user-created recurring rules.
func ValidUserFrequency(s string) bool {
	switch s {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// ValidBillingCycle reports whether s is a known subscription billing cycle.
func ValidBillingCycle(s string) bool {
	switch s {
	case Cycle1Month, Cycle3Months, Cycle6Months, Cycle1Year:
		return true
	}
	return false
}

// ValidEventType reports whether s is a known event type.
func ValidEventType(s string) bool {
	switch s {
	case EventTypePersonal, EventTypeWork, EventTypeSubscription:
		return true
	}
	return false
}

// ValidEventRecurring reports whether s is a known event recurrence option.
func ValidEventRecurring(s string) bool {
	switch s {
	case EventRecurringNone, EventRecurringDaily, EventRecurringWeekly,
		EventRecurringMonthly, EventRecurringYearly:
		return true
	}
	return false
}

// ValidReminder reports whether s is a known reminder offset.
func ValidReminder(s string) bool {
	switch s {
	case ReminderNone, Reminder5Min, Reminder1Hour, Reminder1Day, Reminder1Week:
		return true
	}
	return false
}
