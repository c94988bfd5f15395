package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/ayna/backend/src/ledger"
	"github.com/username/ayna/backend/src/logger"
	"github.com/username/ayna/backend/src/models"
	"github.com/username/ayna/backend/src/recurrence"
)

// Materializer periodically expands recurring rules into posted transactions.
// Each occurrence is posted in its own ledger transaction together with the
// rule's cursor advance, so a crash mid-rule never double-posts and never
// loses already-due occurrences. The (rule_id, date) unique index backs this
// up: re-posting a known occurrence is a no-op.
type Materializer struct {
	db     *sql.DB
	engine *ledger.Engine
}

func NewMaterializer(db *sql.DB, engine *ledger.Engine) *Materializer {
	return &Materializer{db: db, engine: engine}
}

// Start runs one pass immediately and then one per interval until ctx is
// cancelled.
func (m *Materializer) Start(ctx context.Context, interval time.Duration) {
	m.RunOnce(ctx, time.Now().UTC())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.L.Info("Recurrence materializer stopped")
			return
		case <-ticker.C:
			m.RunOnce(ctx, time.Now().UTC())
		}
	}
}

// RunOnce processes every rule once. A failing rule is logged and skipped;
// it never blocks the rest of the batch.
func (m *Materializer) RunOnce(ctx context.Context, now time.Time) {
	rules, err := models.ListAllRecurringRules(m.db)
	if err != nil {
		logger.L.Error("Materializer failed to list recurring rules", "error", err)
		return
	}

	var posted int
	for _, rule := range rules {
		n, err := m.processRule(ctx, rule, now)
		posted += n
		if err != nil {
			logger.L.Error("Error processing recurring rule", "ruleID", rule.ID, "userID", rule.UserID, "error", err)
			continue
		}
	}
	logger.L.Info("Recurrence materializer pass complete", "rules", len(rules), "posted", posted)
}

// processRule posts every due occurrence of one rule and returns how many
// transactions it wrote.
func (m *Materializer) processRule(ctx context.Context, rule *models.RecurringRule, now time.Time) (int, error) {
	if rule.EndDate.Valid && rule.EndDate.Time.Before(now) && rule.LastProcessed.Valid &&
		!rule.LastProcessed.Time.Before(rule.EndDate.Time) {
		return 0, nil
	}

	iv, err := recurrence.IntervalFor(rule.Frequency)
	if err != nil {
		return 0, err
	}

	// Resume after the last posted occurrence. The cursor tracks occurrence
	// dates, never the wall clock, so occurrences that were due while the
	// job was down are still generated.
	var cursor time.Time
	if rule.LastProcessed.Valid {
		cursor = rule.LastProcessed.Time
	}

	posted := 0
	for n := recurrence.NextIndexAfter(rule.StartDate, iv, cursor); n < recurrence.MaxOccurrences; n++ {
		occ := recurrence.OccurrenceAt(rule.StartDate, iv, n)
		if occ.After(now) {
			break
		}
		if rule.EndDate.Valid && occ.After(rule.EndDate.Time) {
			break
		}

		if err := m.postOccurrence(ctx, rule, occ); err != nil {
			return posted, fmt.Errorf("post occurrence %s: %w", occ.Format(time.RFC3339), err)
		}
		posted++
	}
	return posted, nil
}

// postOccurrence writes one transaction and advances the rule's cursor as a
// single atomic ledger unit.
func (m *Materializer) postOccurrence(ctx context.Context, rule *models.RecurringRule, occ time.Time) error {
	return m.engine.WithAccount(ctx, rule.UserID, func(tx *sql.Tx, acct *models.Account) error {
		t := &models.Transaction{
			UserID:      rule.UserID,
			Kind:        rule.Kind,
			Amount:      rule.Amount,
			Category:    rule.Category,
			Description: rule.Description,
			Date:        occ,
			RuleID:      &rule.ID,
		}

		inserted, err := t.InsertIgnoringDuplicate(tx)
		if err != nil {
			return err
		}
		if inserted {
			if err := ledger.Apply(acct, t.Kind, t.Amount); err != nil {
				return err
			}
		}
		return rule.SetLastProcessed(tx, occ)
	})
}
