package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	AccountCreated = "account.created"
	IncomeCreated  = "income.created"
	ExpenseCreated = "expense.created"
	ExpenseUpdated = "expense.updated"
	BalanceUpdated = "balance.updated"
)

// LedgerEventsStream carries every committed ledger mutation.
const LedgerEventsStream = "ledger.events"

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type AccountCreatedEvent struct {
	AccountID      string          `json:"accountId"`
	Name           string          `json:"name"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
}

// EntryEvent describes a created or edited income/expense.
type EntryEvent struct {
	EntryID   string          `json:"entryId"`
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Tags      []string        `json:"tags,omitempty"`
}

type BalanceUpdatedEvent struct {
	AccountID  string          `json:"accountId"`
	NewBalance decimal.Decimal `json:"newBalance"`
	Change     decimal.Decimal `json:"change"`
}
