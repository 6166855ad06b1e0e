package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/store"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
	sharedredis "github.com/Shreyansh-Sheth/expense-tracker/shared/redis"
)

const accountViewKeyPrefix = "account:view:"

// AccountReadRepository handles all read operations for accounts.
// It treats Redis as the primary read store for single accounts and falls
// back to the database transparently, warming the cache on every cold read.
// Balances are never written here; see the ledger command service.
type AccountReadRepository struct {
	db    store.DBTX
	cache sharedredis.Cache[models.AccountView]
}

func NewAccountReadRepository(db store.DBTX, cache sharedredis.Cache[models.AccountView]) *AccountReadRepository {
	if cache == nil {
		cache = sharedredis.NopCache[models.AccountView]{}
	}
	return &AccountReadRepository{db: db, cache: cache}
}

// GetByID returns an AccountView, trying Redis first then the database.
// The view carries UserID so the caller can enforce ownership.
func (r *AccountReadRepository) GetByID(ctx context.Context, id string) (*models.AccountView, error) {
	if view, ok := r.cache.Get(ctx, accountViewKeyPrefix+id); ok {
		return view, nil
	}

	query := `
		SELECT id, user_id, name, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var view models.AccountView
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&view.ID, &view.UserID, &view.Name, store.Money(&view.Balance), &view.CreatedAt, &view.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, store.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	view.CreatedAt, view.UpdatedAt = view.CreatedAt.UTC(), view.UpdatedAt.UTC()

	r.cache.Set(ctx, accountViewKeyPrefix+id, &view)
	return &view, nil
}

// ListByUserID returns all AccountViews for the given user, newest first.
func (r *AccountReadRepository) ListByUserID(ctx context.Context, userID string) ([]models.AccountView, error) {
	query := `
		SELECT id, user_id, name, balance, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	views := []models.AccountView{}
	for rows.Next() {
		var view models.AccountView
		if err := rows.Scan(
			&view.ID, &view.UserID, &view.Name, store.Money(&view.Balance), &view.CreatedAt, &view.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		view.CreatedAt, view.UpdatedAt = view.CreatedAt.UTC(), view.UpdatedAt.UTC()
		views = append(views, view)
	}
	return views, rows.Err()
}

// InvalidateAccountViews drops cached views whose balance or fields changed.
func (r *AccountReadRepository) InvalidateAccountViews(ctx context.Context, ids ...string) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = accountViewKeyPrefix + id
	}
	r.cache.Delete(ctx, keys...)
}

// BalanceSnapshot pairs an account's cached balance with the sums of its entries.
type BalanceSnapshot struct {
	AccountID    string
	UserID       string
	Balance      decimal.Decimal
	IncomeTotal  decimal.Decimal
	ExpenseTotal decimal.Decimal
}

// Computed is the balance implied by the entries.
func (s BalanceSnapshot) Computed() decimal.Decimal {
	return s.IncomeTotal.Sub(s.ExpenseTotal)
}

// Drift is cached minus computed; zero when the account is consistent.
func (s BalanceSnapshot) Drift() decimal.Decimal {
	return s.Balance.Sub(s.Computed())
}

const snapshotQuery = `
	SELECT a.id, a.user_id, a.balance,
		COALESCE((SELECT SUM(i.amount) FROM incomes i WHERE i.account_id = a.id), 0),
		COALESCE((SELECT SUM(e.amount) FROM expenses e WHERE e.account_id = a.id), 0)
	FROM accounts a
`

// Snapshot reads the balance snapshot of one account.
func (r *AccountReadRepository) Snapshot(ctx context.Context, accountID string) (*BalanceSnapshot, error) {
	var s BalanceSnapshot
	err := r.db.QueryRowContext(ctx, snapshotQuery+" WHERE a.id = $1", accountID).Scan(
		&s.AccountID, &s.UserID, store.Money(&s.Balance), store.Money(&s.IncomeTotal), store.Money(&s.ExpenseTotal),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", accountID, store.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read balance snapshot: %w", err)
	}
	return &s, nil
}

// AllSnapshots reads the balance snapshot of every account.
func (r *AccountReadRepository) AllSnapshots(ctx context.Context) ([]BalanceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, snapshotQuery+" ORDER BY a.id")
	if err != nil {
		return nil, fmt.Errorf("failed to read balance snapshots: %w", err)
	}
	defer rows.Close()

	var out []BalanceSnapshot
	for rows.Next() {
		var s BalanceSnapshot
		if err := rows.Scan(&s.AccountID, &s.UserID, store.Money(&s.Balance), store.Money(&s.IncomeTotal), store.Money(&s.ExpenseTotal)); err != nil {
			return nil, fmt.Errorf("failed to scan balance snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
