package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/repository"
	"github.com/Shreyansh-Sheth/expense-tracker/internal/store"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/events"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
	sharedredis "github.com/Shreyansh-Sheth/expense-tracker/shared/redis"
)

// DashboardCacheTTL bounds how long a cached dashboard can outlive a missed
// invalidation event.
const DashboardCacheTTL = 10 * time.Minute

const dateKeyLayout = "2006-01-02"

// LedgerQueryService serves every read of accounts, entries and tags. All
// reads are scoped to the requesting user; another user's records read as
// missing.
type LedgerQueryService struct {
	accounts  *repository.AccountReadRepository
	entries   *repository.EntryReadRepository
	tags      *repository.TagRepository
	dashboard sharedredis.Cache[models.DashboardView]
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

func NewLedgerQueryService(
	accounts *repository.AccountReadRepository,
	entries *repository.EntryReadRepository,
	tags *repository.TagRepository,
	dashboard sharedredis.Cache[models.DashboardView],
	loc *time.Location,
	log zerolog.Logger,
) *LedgerQueryService {
	if dashboard == nil {
		dashboard = sharedredis.NopCache[models.DashboardView]{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerQueryService{
		accounts:  accounts,
		entries:   entries,
		tags:      tags,
		dashboard: dashboard,
		loc:       loc,
		now:       time.Now,
		log:       log.With().Str("component", "ledger_queries").Logger(),
	}
}

// WithClock replaces the clock periods are resolved against.
func (s *LedgerQueryService) WithClock(now func() time.Time) *LedgerQueryService {
	s.now = now
	return s
}

func (s *LedgerQueryService) rangeOf(p cqrs.Period) cqrs.DateRange {
	return p.Range(s.now().In(s.loc))
}

func (s *LedgerQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
	return s.accounts.ListByUserID(ctx, q.UserID)
}

// GetAccount fetches a single account view and enforces ownership.
func (s *LedgerQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	view, err := s.accounts.GetByID(ctx, q.AccountID)
	if err != nil {
		return nil, notFound(err, cqrs.ErrAccountNotFound)
	}
	if view.UserID != q.RequestingUserID {
		return nil, cqrs.ErrAccountNotFound
	}
	return view, nil
}

func (s *LedgerQueryService) ListTags(ctx context.Context, q cqrs.ListTagsQuery) ([]models.Tag, error) {
	return s.tags.ListByUserID(ctx, q.UserID)
}

func (s *LedgerQueryService) ListExpenses(ctx context.Context, q cqrs.ListEntriesQuery) ([]models.ExpenseView, error) {
	return s.entries.ListExpenses(ctx, q.UserID, q.Filter.AccountID, s.rangeOf(q.Filter.Period))
}

func (s *LedgerQueryService) ListIncome(ctx context.Context, q cqrs.ListEntriesQuery) ([]models.IncomeView, error) {
	return s.entries.ListIncome(ctx, q.UserID, q.Filter.AccountID, s.rangeOf(q.Filter.Period))
}

func (s *LedgerQueryService) GetExpense(ctx context.Context, q cqrs.GetExpenseQuery) (*models.ExpenseView, error) {
	view, err := s.entries.GetExpense(ctx, q.UserID, q.ExpenseID)
	if err != nil {
		return nil, notFound(err, cqrs.ErrExpenseNotFound)
	}
	return view, nil
}

// ReconcileAccount compares the cached balance with the net of the account's
// entries. It only reports; the balance is never rewritten here.
func (s *LedgerQueryService) ReconcileAccount(ctx context.Context, q cqrs.ReconcileAccountQuery) (*models.ReconciliationView, error) {
	snap, err := s.accounts.Snapshot(ctx, q.AccountID)
	if err != nil {
		return nil, notFound(err, cqrs.ErrAccountNotFound)
	}
	if snap.UserID != q.RequestingUserID {
		return nil, cqrs.ErrAccountNotFound
	}
	return &models.ReconciliationView{
		AccountID:       snap.AccountID,
		CachedBalance:   snap.Balance,
		IncomeTotal:     snap.IncomeTotal,
		ExpenseTotal:    snap.ExpenseTotal,
		ComputedBalance: snap.Computed(),
		Drift:           snap.Drift(),
		Consistent:      snap.Drift().IsZero(),
	}, nil
}

// Dashboard returns daily expense and income totals under independent
// filters, plus the user's accounts for the filter controls.
func (s *LedgerQueryService) Dashboard(ctx context.Context, q cqrs.DashboardQuery) (*models.DashboardView, error) {
	key := s.dashboardKey(q)
	if view, ok := s.dashboard.Get(ctx, key); ok {
		return view, nil
	}

	expenses, err := s.dailyTotals(ctx, repository.KindExpense, q.UserID, q.Expense)
	if err != nil {
		return nil, err
	}
	income, err := s.dailyTotals(ctx, repository.KindIncome, q.UserID, q.Income)
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListByUserID(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	view := &models.DashboardView{
		Expenses: expenses,
		Income:   income,
		Accounts: make([]models.AccountRef, len(accounts)),
	}
	for i, a := range accounts {
		view.Accounts[i] = models.AccountRef{ID: a.ID, Name: a.Name}
	}

	s.dashboard.SetTracked(ctx, dashboardIndex(q.UserID), key, view)
	return view, nil
}

// dailyTotals sums amounts per calendar day in the service's time zone.
func (s *LedgerQueryService) dailyTotals(ctx context.Context, kind repository.EntryKind, userID string, f cqrs.EntryFilter) ([]models.DailyTotal, error) {
	points, err := s.entries.DatedAmounts(ctx, kind, userID, f.AccountID, s.rangeOf(f.Period))
	if err != nil {
		return nil, err
	}
	totals := []models.DailyTotal{}
	for _, p := range points {
		day := p.Date.In(s.loc).Format(dateKeyLayout)
		if n := len(totals); n > 0 && totals[n-1].Date == day {
			totals[n-1].Amount = totals[n-1].Amount.Add(p.Amount)
			continue
		}
		totals = append(totals, models.DailyTotal{Date: day, Amount: p.Amount})
	}
	return totals, nil
}

// HandleLedgerEvent drops every cached dashboard of the event's user. It is
// registered as the ledger stream subscriber's handler.
func (s *LedgerQueryService) HandleLedgerEvent(ctx context.Context, event events.Event) error {
	if event.UserID == "" {
		return fmt.Errorf("ledger event %s without user", event.Type)
	}
	s.dashboard.DeleteTracked(ctx, dashboardIndex(event.UserID))
	s.log.Debug().Str("event", event.Type).Str("user_id", event.UserID).Msg("dashboard cache invalidated")
	return nil
}

func dashboardIndex(userID string) string {
	return "dashboard:index:" + userID
}

// dashboardKey includes the local calendar day, since periods are resolved
// against it.
func (s *LedgerQueryService) dashboardKey(q cqrs.DashboardQuery) string {
	return fmt.Sprintf("dashboard:%s:%s:%s:%s:%s:%s",
		q.UserID, s.now().In(s.loc).Format(dateKeyLayout),
		q.Expense.AccountID, periodOrAll(q.Expense.Period), q.Income.AccountID, periodOrAll(q.Income.Period))
}

func periodOrAll(p cqrs.Period) cqrs.Period {
	if p == "" {
		return cqrs.PeriodAll
	}
	return p
}

func notFound(err, sentinel error) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
