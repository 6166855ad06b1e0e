package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/store"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/utils"
)

// ledgerWriter issues the statements of one ledger transaction. It is the only
// code that writes accounts.balance, and only ever through adjustBalance.
type ledgerWriter struct {
	q       store.DBTX
	dialect store.Dialect
	now     time.Time
}

func (w *ledgerWriter) insertAccount(ctx context.Context, a *models.Account) error {
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.UserID, a.Name, 0, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// adjustBalance adds delta to the balance in storage and returns the new value.
// An account that does not exist or belongs to someone else updates no row.
func (w *ledgerWriter) adjustBalance(ctx context.Context, userID, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := w.q.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
		RETURNING balance
	`, store.MinorUnits(delta), w.now, accountID, userID).Scan(store.Money(&balance))
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("account %s: %w", accountID, cqrs.ErrAccountNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to adjust balance of %s: %w", accountID, err)
	}
	return balance, nil
}

func (w *ledgerWriter) insertIncome(ctx context.Context, i *models.Income) error {
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO incomes (id, user_id, title, amount, description, date, account_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, i.ID, i.UserID, i.Title, store.MinorUnits(i.Amount), i.Description, i.Date, i.AccountID, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert income: %w", err)
	}
	return nil
}

func (w *ledgerWriter) insertExpense(ctx context.Context, e *models.Expense) error {
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, title, amount, description, date, account_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.UserID, e.Title, store.MinorUnits(e.Amount), e.Description, e.Date, e.AccountID, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// lockedExpense is the part of a stored expense that drives balance reversal.
type lockedExpense struct {
	Amount    decimal.Decimal
	AccountID *string
	CreatedAt time.Time
}

// getExpenseForUpdate loads the user's expense and, on Postgres, locks the row
// until the transaction ends so concurrent edits apply one after the other.
func (w *ledgerWriter) getExpenseForUpdate(ctx context.Context, userID, expenseID string) (*lockedExpense, error) {
	var (
		e         lockedExpense
		accountID sql.NullString
	)
	err := w.q.QueryRowContext(ctx, `
		SELECT amount, account_id, created_at
		FROM expenses
		WHERE id = $1 AND user_id = $2`+w.dialect.ForUpdate(),
		expenseID, userID,
	).Scan(store.Money(&e.Amount), &accountID, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, cqrs.ErrExpenseNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load expense: %w", err)
	}
	if accountID.Valid {
		e.AccountID = &accountID.String
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func (w *ledgerWriter) updateExpense(ctx context.Context, e *models.Expense) error {
	_, err := w.q.ExecContext(ctx, `
		UPDATE expenses
		SET title = $1, amount = $2, description = $3, date = $4, account_id = $5, updated_at = $6
		WHERE id = $7 AND user_id = $8
	`, e.Title, store.MinorUnits(e.Amount), e.Description, e.Date, e.AccountID, e.UpdatedAt, e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return nil
}

// replaceExpenseTags makes tagIDs the complete tag set of the expense.
func (w *ledgerWriter) replaceExpenseTags(ctx context.Context, expenseID string, tagIDs []string) error {
	if _, err := w.q.ExecContext(ctx, `DELETE FROM expense_tags WHERE expense_id = $1`, expenseID); err != nil {
		return fmt.Errorf("failed to clear expense tags: %w", err)
	}
	return w.linkTags(ctx, expenseID, tagIDs)
}

func (w *ledgerWriter) linkTags(ctx context.Context, expenseID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	values := make([]string, len(tagIDs))
	args := make([]any, 0, len(tagIDs)*2)
	for i, id := range tagIDs {
		values[i] = "(" + store.Placeholders(i*2+1, 2) + ")"
		args = append(args, expenseID, id)
	}
	query := `INSERT INTO expense_tags (expense_id, tag_id) VALUES ` + strings.Join(values, ", ")
	if _, err := w.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to link expense tags: %w", err)
	}
	return nil
}

// ensureTags resolves names to the user's tag ids, creating the missing tags.
// Creation tolerates a concurrent insert of the same name; the ids are read
// back afterwards so both writers end up with the same tag.
func (w *ledgerWriter) ensureTags(ctx context.Context, userID string, names []string) ([]string, error) {
	names = uniqueNames(names)
	if len(names) == 0 {
		return nil, nil
	}
	existing, err := w.lookupTags(ctx, userID, names)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range names {
		if _, ok := existing[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		values := make([]string, len(missing))
		args := make([]any, 0, len(missing)*4)
		for i, name := range missing {
			values[i] = "(" + store.Placeholders(i*4+1, 4) + ")"
			args = append(args, utils.GenerateID(utils.TagPrefix), userID, name, w.now)
		}
		query := `INSERT INTO tags (id, user_id, name, created_at) VALUES ` + strings.Join(values, ", ") +
			` ON CONFLICT (user_id, name) DO NOTHING`
		if _, err := w.q.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to create tags: %w", err)
		}
		if existing, err = w.lookupTags(ctx, userID, names); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := existing[name]
		if !ok {
			return nil, fmt.Errorf("tag %q was not created", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (w *ledgerWriter) lookupTags(ctx context.Context, userID string, names []string) (map[string]string, error) {
	args := make([]any, 0, len(names)+1)
	args = append(args, userID)
	for _, name := range names {
		args = append(args, name)
	}
	rows, err := w.q.QueryContext(ctx,
		`SELECT id, name FROM tags WHERE user_id = $1 AND name IN (`+store.Placeholders(2, len(names))+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tags: %w", err)
	}
	defer rows.Close()

	found := make(map[string]string, len(names))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		found[name] = id
	}
	return found, rows.Err()
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0:0]
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
