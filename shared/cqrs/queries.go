package cqrs

// ---------- Account queries ----------

// GetAccountQuery fetches a single account, subject to ownership check.
type GetAccountQuery struct {
	AccountID        string
	RequestingUserID string
}

// ListAccountsQuery fetches all accounts belonging to a user.
type ListAccountsQuery struct {
	UserID string
}

// ReconcileAccountQuery compares an account's cached balance with its entries.
type ReconcileAccountQuery struct {
	AccountID        string
	RequestingUserID string
}

// ---------- Entry queries ----------

// EntryFilter narrows an entry listing. An empty AccountID matches every account.
type EntryFilter struct {
	AccountID string
	Period    Period
}

// ListEntriesQuery fetches the expenses or income of a user.
type ListEntriesQuery struct {
	UserID string
	Filter EntryFilter
}

// GetExpenseQuery fetches a single expense with its tags.
type GetExpenseQuery struct {
	ExpenseID string
	UserID    string
}

// DashboardQuery carries independent filters for both chart series.
type DashboardQuery struct {
	UserID  string
	Expense EntryFilter
	Income  EntryFilter
}

// ---------- Tag queries ----------

type ListTagsQuery struct {
	UserID string
}
