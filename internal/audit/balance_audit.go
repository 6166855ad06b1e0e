// Package audit periodically checks that every cached account balance still
// equals the net of the account's entries.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/repository"
)

type SnapshotSource interface {
	AllSnapshots(ctx context.Context) ([]repository.BalanceSnapshot, error)
}

// Report summarises one audit run.
type Report struct {
	Checked int
	Drifted []repository.BalanceSnapshot
}

// BalanceAuditor logs accounts whose balance drifted. It never corrects them.
type BalanceAuditor struct {
	source  SnapshotSource
	log     zerolog.Logger
	timeout time.Duration
}

func NewBalanceAuditor(source SnapshotSource, log zerolog.Logger) *BalanceAuditor {
	return &BalanceAuditor{
		source:  source,
		log:     log.With().Str("component", "balance_audit").Logger(),
		timeout: 5 * time.Minute,
	}
}

func (a *BalanceAuditor) Run(ctx context.Context) (*Report, error) {
	snapshots, err := a.source.AllSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read balances: %w", err)
	}
	report := &Report{Checked: len(snapshots)}
	for _, s := range snapshots {
		if s.Drift().IsZero() {
			continue
		}
		report.Drifted = append(report.Drifted, s)
		a.log.Warn().
			Str("account_id", s.AccountID).
			Str("user_id", s.UserID).
			Str("balance", s.Balance.String()).
			Str("computed", s.Computed().String()).
			Str("drift", s.Drift().String()).
			Msg("account balance drifted from its entries")
	}
	a.log.Info().Int("checked", report.Checked).Int("drifted", len(report.Drifted)).Msg("balance audit finished")
	return report, nil
}

// Schedule registers the audit under spec (standard cron syntax or a
// descriptor such as "@daily") and returns the started scheduler. The caller
// stops it on shutdown.
func (a *BalanceAuditor) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		if _, err := a.Run(runCtx); err != nil {
			a.log.Error().Err(err).Msg("balance audit failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid audit schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
