package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/store"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/events"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/utils"
)

// ErrTxFailed wraps every storage failure that aborted a ledger transaction.
var ErrTxFailed = errors.New("ledger transaction failed")

// OpeningBalanceTitle names the income entry that carries an account's
// starting balance.
const OpeningBalanceTitle = "Opening balance"

// Transactor runs a function inside one database transaction.
type Transactor interface {
	ExecTx(ctx context.Context, fn func(q store.DBTX) error) error
	Dialect() store.Dialect
}

// AccountViewInvalidator drops cached account views after their balance moved.
type AccountViewInvalidator interface {
	InvalidateAccountViews(ctx context.Context, ids ...string)
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType, userID string, data any) error
}

// LedgerCommandService performs every mutation that touches an account
// balance. Each operation commits its entry rows and the balance change in a
// single transaction, then invalidates caches and publishes ledger events.
type LedgerCommandService struct {
	tx        Transactor
	accounts  AccountViewInvalidator
	publisher EventPublisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewLedgerCommandService wires the service. accounts and publisher may be nil
// when Redis is disabled.
func NewLedgerCommandService(tx Transactor, accounts AccountViewInvalidator, publisher EventPublisher, log zerolog.Logger) *LedgerCommandService {
	return &LedgerCommandService{
		tx:        tx,
		accounts:  accounts,
		publisher: publisher,
		log:       log.With().Str("component", "ledger_commands").Logger(),
		now:       time.Now,
	}
}

// WithClock replaces the clock used for created/updated timestamps.
func (s *LedgerCommandService) WithClock(now func() time.Time) *LedgerCommandService {
	s.now = now
	return s
}

type pendingEvent struct {
	eventType string
	data      any
}

// outcome collects what a committed transaction must announce.
type outcome struct {
	touched []string
	events  []pendingEvent
}

func (o *outcome) balanceMoved(accountID string, balance, change decimal.Decimal) {
	o.touched = append(o.touched, accountID)
	o.events = append(o.events, pendingEvent{events.BalanceUpdated, events.BalanceUpdatedEvent{
		AccountID:  accountID,
		NewBalance: balance,
		Change:     change,
	}})
}

func (o *outcome) emit(eventType string, data any) {
	o.events = append(o.events, pendingEvent{eventType, data})
}

// run executes fn in a transaction and, once committed, announces the outcome.
func (s *LedgerCommandService) run(ctx context.Context, userID string, fn func(w *ledgerWriter, o *outcome) error) error {
	var o outcome
	now := s.now().UTC()
	err := s.tx.ExecTx(ctx, func(q store.DBTX) error {
		o = outcome{}
		return fn(&ledgerWriter{q: q, dialect: s.tx.Dialect(), now: now}, &o)
	})
	if err != nil {
		if errors.Is(err, cqrs.ErrAccountNotFound) || errors.Is(err, cqrs.ErrExpenseNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	if s.accounts != nil && len(o.touched) > 0 {
		s.accounts.InvalidateAccountViews(ctx, o.touched...)
	}
	if s.publisher != nil {
		for _, e := range o.events {
			if err := s.publisher.Publish(ctx, events.LedgerEventsStream, e.eventType, userID, e.data); err != nil {
				s.log.Warn().Err(err).Str("event", e.eventType).Str("user_id", userID).Msg("failed to publish ledger event")
			}
		}
	}
	return nil
}

// CreateAccount creates an account. A positive opening balance is booked as an
// income entry in the same transaction so the balance always matches the
// entries.
func (s *LedgerCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	if !validAmount(cmd.OpeningBalance) {
		return nil, cqrs.ErrInvalidAmount
	}
	now := s.now().UTC()
	account := &models.Account{
		ID:        utils.GenerateID(utils.AccountPrefix),
		UserID:    cmd.UserID,
		Name:      cmd.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.run(ctx, cmd.UserID, func(w *ledgerWriter, o *outcome) error {
		if err := w.insertAccount(ctx, account); err != nil {
			return err
		}
		o.emit(events.AccountCreated, events.AccountCreatedEvent{
			AccountID:      account.ID,
			Name:           account.Name,
			OpeningBalance: cmd.OpeningBalance,
		})
		if !cmd.OpeningBalance.IsPositive() {
			return nil
		}

		income := &models.Income{
			ID:        utils.GenerateID(utils.IncomePrefix),
			UserID:    cmd.UserID,
			Title:     OpeningBalanceTitle,
			Amount:    cmd.OpeningBalance,
			Date:      now,
			AccountID: &account.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		balance, err := w.adjustBalance(ctx, cmd.UserID, account.ID, cmd.OpeningBalance)
		if err != nil {
			return err
		}
		if err := w.insertIncome(ctx, income); err != nil {
			return err
		}
		account.Balance = balance
		o.balanceMoved(account.ID, balance, cmd.OpeningBalance)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// CreateIncome records an income and credits its account.
func (s *LedgerCommandService) CreateIncome(ctx context.Context, cmd cqrs.CreateIncomeCommand) (*models.Income, error) {
	if !validAmount(cmd.Amount) {
		return nil, cqrs.ErrInvalidAmount
	}
	now := s.now().UTC()
	income := &models.Income{
		ID:          utils.GenerateID(utils.IncomePrefix),
		UserID:      cmd.UserID,
		Title:       cmd.Title,
		Amount:      cmd.Amount,
		Description: optional(cmd.Description),
		Date:        cmd.Date.UTC(),
		AccountID:   &cmd.AccountID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.run(ctx, cmd.UserID, func(w *ledgerWriter, o *outcome) error {
		balance, err := w.adjustBalance(ctx, cmd.UserID, cmd.AccountID, cmd.Amount)
		if err != nil {
			return err
		}
		if err := w.insertIncome(ctx, income); err != nil {
			return err
		}
		o.emit(events.IncomeCreated, events.EntryEvent{
			EntryID:   income.ID,
			AccountID: cmd.AccountID,
			Amount:    income.Amount,
			Date:      income.Date,
		})
		o.balanceMoved(cmd.AccountID, balance, cmd.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return income, nil
}

// CreateExpense records an expense with its tags and debits its account.
// Missing tags are created in the same transaction.
func (s *LedgerCommandService) CreateExpense(ctx context.Context, cmd cqrs.CreateExpenseCommand) (*models.Expense, error) {
	if !validAmount(cmd.Amount) {
		return nil, cqrs.ErrInvalidAmount
	}
	now := s.now().UTC()
	expense := &models.Expense{
		ID:          utils.GenerateID(utils.ExpensePrefix),
		UserID:      cmd.UserID,
		Title:       cmd.Title,
		Amount:      cmd.Amount,
		Description: optional(cmd.Description),
		Date:        cmd.Date.UTC(),
		AccountID:   &cmd.AccountID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.run(ctx, cmd.UserID, func(w *ledgerWriter, o *outcome) error {
		tagIDs, err := w.ensureTags(ctx, cmd.UserID, cmd.Tags)
		if err != nil {
			return err
		}
		balance, err := w.adjustBalance(ctx, cmd.UserID, cmd.AccountID, cmd.Amount.Neg())
		if err != nil {
			return err
		}
		if err := w.insertExpense(ctx, expense); err != nil {
			return err
		}
		if err := w.linkTags(ctx, expense.ID, tagIDs); err != nil {
			return err
		}
		expense.TagIDs = nonNil(tagIDs)
		o.emit(events.ExpenseCreated, events.EntryEvent{
			EntryID:   expense.ID,
			AccountID: cmd.AccountID,
			Amount:    expense.Amount,
			Date:      expense.Date,
			Tags:      cmd.Tags,
		})
		o.balanceMoved(cmd.AccountID, balance, cmd.Amount.Neg())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// EditExpense rewrites an expense and moves the balance difference:
//   - account changed: the old account gets the old amount back and the new
//     account is debited the new amount
//   - same account, amount changed: the account moves by old minus new
//   - otherwise no balance write
//
// The tag set is replaced wholesale.
func (s *LedgerCommandService) EditExpense(ctx context.Context, cmd cqrs.EditExpenseCommand) (*models.Expense, error) {
	if !validAmount(cmd.Amount) {
		return nil, cqrs.ErrInvalidAmount
	}
	now := s.now().UTC()
	expense := &models.Expense{
		ID:          cmd.ExpenseID,
		UserID:      cmd.UserID,
		Title:       cmd.Title,
		Amount:      cmd.Amount,
		Description: optional(cmd.Description),
		Date:        cmd.Date.UTC(),
		AccountID:   &cmd.AccountID,
		UpdatedAt:   now,
	}

	err := s.run(ctx, cmd.UserID, func(w *ledgerWriter, o *outcome) error {
		old, err := w.getExpenseForUpdate(ctx, cmd.UserID, cmd.ExpenseID)
		if err != nil {
			return err
		}
		expense.CreatedAt = old.CreatedAt

		switch {
		case old.AccountID == nil || *old.AccountID != cmd.AccountID:
			if old.AccountID != nil {
				balance, err := w.adjustBalance(ctx, cmd.UserID, *old.AccountID, old.Amount)
				if err != nil {
					return err
				}
				o.balanceMoved(*old.AccountID, balance, old.Amount)
			}
			balance, err := w.adjustBalance(ctx, cmd.UserID, cmd.AccountID, cmd.Amount.Neg())
			if err != nil {
				return err
			}
			o.balanceMoved(cmd.AccountID, balance, cmd.Amount.Neg())
		case !old.Amount.Equal(cmd.Amount):
			delta := old.Amount.Sub(cmd.Amount)
			balance, err := w.adjustBalance(ctx, cmd.UserID, cmd.AccountID, delta)
			if err != nil {
				return err
			}
			o.balanceMoved(cmd.AccountID, balance, delta)
		}

		tagIDs, err := w.ensureTags(ctx, cmd.UserID, cmd.Tags)
		if err != nil {
			return err
		}
		if err := w.updateExpense(ctx, expense); err != nil {
			return err
		}
		if err := w.replaceExpenseTags(ctx, expense.ID, tagIDs); err != nil {
			return err
		}
		expense.TagIDs = nonNil(tagIDs)
		o.emit(events.ExpenseUpdated, events.EntryEvent{
			EntryID:   expense.ID,
			AccountID: cmd.AccountID,
			Amount:    expense.Amount,
			Date:      expense.Date,
			Tags:      cmd.Tags,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func validAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && store.HasMoneyScale(d)
}
