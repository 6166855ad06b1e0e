package cqrs

import (
	"time"

	"github.com/shopspring/decimal"
)

type RegisterUserCommand struct {
	Email    string
	Password string
}

type LoginCommand struct {
	Email    string
	Password string
}

type RefreshTokenCommand struct {
	Token string
}

type CreateAccountCommand struct {
	UserID         string
	Name           string
	OpeningBalance decimal.Decimal
}

// EntryFields are the validated fields shared by income and expense payloads.
type EntryFields struct {
	Title       string
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	AccountID   string
}

type CreateIncomeCommand struct {
	UserID string
	EntryFields
}

type CreateExpenseCommand struct {
	UserID string
	EntryFields
	Tags []string
}

type EditExpenseCommand struct {
	UserID    string
	ExpenseID string
	EntryFields
	Tags []string
}
