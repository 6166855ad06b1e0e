package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountView is the read-optimised projection of an account.
// UserID is populated for ownership checks but never serialised to the API response.
type AccountView struct {
	ID        string          `json:"id"`
	UserID    string          `json:"-"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdTimestamp"`
	UpdatedAt time.Time       `json:"updatedTimestamp"`
}

// AccountRef is the display pair joined onto entry rows.
type AccountRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExpenseView is an expense joined with its account and tag names.
type ExpenseView struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	Account     *AccountRef     `json:"account,omitempty"`
	Tags        []Tag           `json:"tags"`
	CreatedAt   time.Time       `json:"createdTimestamp"`
}

// IncomeView is an income joined with its account.
type IncomeView struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	Account     *AccountRef     `json:"account,omitempty"`
	CreatedAt   time.Time       `json:"createdTimestamp"`
}

// DailyTotal is one point of a dashboard chart.
type DailyTotal struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// DashboardView carries both chart series plus the account list for the filters.
type DashboardView struct {
	Expenses []DailyTotal `json:"expenseChartData"`
	Income   []DailyTotal `json:"incomeChartData"`
	Accounts []AccountRef `json:"accounts"`
}

// ReconciliationView compares the cached balance with the sum of the entries.
type ReconciliationView struct {
	AccountID       string          `json:"accountId"`
	CachedBalance   decimal.Decimal `json:"cachedBalance"`
	IncomeTotal     decimal.Decimal `json:"incomeTotal"`
	ExpenseTotal    decimal.Decimal `json:"expenseTotal"`
	ComputedBalance decimal.Decimal `json:"computedBalance"`
	Drift           decimal.Decimal `json:"drift"`
	Consistent      bool            `json:"consistent"`
}
