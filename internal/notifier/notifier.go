// Package notifier publishes human-readable announcements for completed grants
// and rounds. Notifiers sit outside the pipeline: their failures are reported
// to the caller but never change a decision.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"patron/internal/metrics"
	"patron/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Notifier receives completed records
type Notifier interface {
	Name() string
	GrantDisbursed(ctx context.Context, grant models.Grant) error
	RoundCompleted(ctx context.Context, summary RoundSummary) error
	AgentLive(ctx context.Context, treasury common.Address) error
}

// RoundSummary is the closing report of one round
type RoundSummary struct {
	Round           uint64          `json:"round"`
	Theme           string          `json:"theme"`
	Grants          []models.Grant  `json:"grants"`
	Evaluated       int             `json:"evaluated"`
	TreasuryBalance decimal.Decimal `json:"treasury_balance"` // ETH
}

// Total returns the ETH disbursed in the round
func (s RoundSummary) Total() decimal.Decimal {
	total := decimal.Zero
	for _, g := range s.Grants {
		total = total.Add(g.Amount)
	}
	return total
}

// Top returns the highest-scoring grant of the round
func (s RoundSummary) Top() (models.Grant, bool) {
	if len(s.Grants) == 0 {
		return models.Grant{}, false
	}
	top := s.Grants[0]
	for _, g := range s.Grants[1:] {
		if g.Score.Total > top.Score.Total {
			top = g
		}
	}
	return top, true
}

// Multi fans an announcement out to every notifier. Each failure is logged and
// counted; the joined error is returned for the caller to log.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Name() string {
	return "multi"
}

func (m *Multi) GrantDisbursed(ctx context.Context, grant models.Grant) error {
	return m.each(func(n Notifier) error { return n.GrantDisbursed(ctx, grant) })
}

func (m *Multi) RoundCompleted(ctx context.Context, summary RoundSummary) error {
	return m.each(func(n Notifier) error { return n.RoundCompleted(ctx, summary) })
}

func (m *Multi) AgentLive(ctx context.Context, treasury common.Address) error {
	return m.each(func(n Notifier) error { return n.AgentLive(ctx, treasury) })
}

func (m *Multi) each(fn func(Notifier) error) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := fn(n); err != nil {
			slog.Warn("Notifier failed", "notifier", n.Name(), "error", err)
			metrics.NotifierFailures.WithLabelValues(n.Name()).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
