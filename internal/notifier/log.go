package notifier

import (
	"context"
	"log/slog"

	"patron/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

// Log writes announcements to the structured log. It is always enabled.
type Log struct {
	format Formatter
	logger *slog.Logger
}

func NewLog(format Formatter, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{format: format, logger: logger}
}

func (l *Log) Name() string {
	return "log"
}

func (l *Log) GrantDisbursed(ctx context.Context, grant models.Grant) error {
	l.logger.InfoContext(ctx, "Grant announcement",
		"grant_id", grant.ID,
		"round", grant.RoundID,
		"recipient", grant.Recipient.Hex(),
		"text", l.format.Grant(grant),
	)
	return nil
}

func (l *Log) RoundCompleted(ctx context.Context, summary RoundSummary) error {
	l.logger.InfoContext(ctx, "Round summary",
		"round", summary.Round,
		"grants", len(summary.Grants),
		"text", l.format.Round(summary),
	)
	return nil
}

func (l *Log) AgentLive(ctx context.Context, treasury common.Address) error {
	l.logger.InfoContext(ctx, "Launch announcement", "text", l.format.Live(treasury))
	return nil
}
