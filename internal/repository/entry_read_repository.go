package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/store"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
)

// EntryReadRepository serves expense and income listings joined with their
// account and tag names.
type EntryReadRepository struct {
	db store.DBTX
}

func NewEntryReadRepository(db store.DBTX) *EntryReadRepository {
	return &EntryReadRepository{db: db}
}

const expenseColumns = `
	SELECT e.id, e.user_id, e.title, e.amount, e.description, e.date, e.created_at,
		a.id, a.name
	FROM expenses e
	LEFT JOIN accounts a ON a.id = e.account_id
`

// ListExpenses returns a user's expenses inside the range, newest first.
func (r *EntryReadRepository) ListExpenses(ctx context.Context, userID, accountID string, rng cqrs.DateRange) ([]models.ExpenseView, error) {
	c := entryConditions("e", userID, accountID, rng)
	rows, err := r.db.QueryContext(ctx, expenseColumns+c.where()+" ORDER BY e.date DESC, e.id", c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	views := []models.ExpenseView{}
	for rows.Next() {
		view, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	if err := r.attachTags(ctx, views); err != nil {
		return nil, err
	}
	return views, nil
}

// GetExpense returns one expense owned by the user.
func (r *EntryReadRepository) GetExpense(ctx context.Context, userID, expenseID string) (*models.ExpenseView, error) {
	row := r.db.QueryRowContext(ctx, expenseColumns+" WHERE e.id = $1 AND e.user_id = $2", expenseID, userID)
	view, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, store.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	views := []models.ExpenseView{*view}
	if err := r.attachTags(ctx, views); err != nil {
		return nil, err
	}
	return &views[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*models.ExpenseView, error) {
	var (
		view        models.ExpenseView
		description sql.NullString
		accountID   sql.NullString
		accountName sql.NullString
	)
	err := row.Scan(
		&view.ID, &view.UserID, &view.Title, store.Money(&view.Amount), &description, &view.Date, &view.CreatedAt,
		&accountID, &accountName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}
	if description.Valid {
		view.Description = &description.String
	}
	if accountID.Valid {
		view.Account = &models.AccountRef{ID: accountID.String, Name: accountName.String}
	}
	view.Date, view.CreatedAt = view.Date.UTC(), view.CreatedAt.UTC()
	view.Tags = []models.Tag{}
	return &view, nil
}

// attachTags loads the tag names of every listed expense with one query.
func (r *EntryReadRepository) attachTags(ctx context.Context, views []models.ExpenseView) error {
	if len(views) == 0 {
		return nil
	}
	index := make(map[string]int, len(views))
	args := make([]any, len(views))
	for i, v := range views {
		index[v.ID] = i
		args[i] = v.ID
	}

	query := `
		SELECT et.expense_id, t.id, t.name
		FROM expense_tags et
		JOIN tags t ON t.id = et.tag_id
		WHERE et.expense_id IN (` + store.Placeholders(1, len(args)) + `)
		ORDER BY t.name
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load expense tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID string
		var tag models.Tag
		if err := rows.Scan(&expenseID, &tag.ID, &tag.Name); err != nil {
			return fmt.Errorf("failed to scan expense tag: %w", err)
		}
		i := index[expenseID]
		tag.UserID = views[i].UserID
		views[i].Tags = append(views[i].Tags, tag)
	}
	return rows.Err()
}

// ListIncome returns a user's income inside the range, newest first.
func (r *EntryReadRepository) ListIncome(ctx context.Context, userID, accountID string, rng cqrs.DateRange) ([]models.IncomeView, error) {
	c := entryConditions("i", userID, accountID, rng)
	query := `
		SELECT i.id, i.user_id, i.title, i.amount, i.description, i.date, i.created_at,
			a.id, a.name
		FROM incomes i
		LEFT JOIN accounts a ON a.id = i.account_id
	` + c.where() + " ORDER BY i.date DESC, i.id"

	rows, err := r.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list income: %w", err)
	}
	defer rows.Close()

	views := []models.IncomeView{}
	for rows.Next() {
		var (
			view        models.IncomeView
			description sql.NullString
			accountID   sql.NullString
			accountName sql.NullString
		)
		if err := rows.Scan(
			&view.ID, &view.UserID, &view.Title, store.Money(&view.Amount), &description, &view.Date, &view.CreatedAt,
			&accountID, &accountName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan income: %w", err)
		}
		if description.Valid {
			view.Description = &description.String
		}
		if accountID.Valid {
			view.Account = &models.AccountRef{ID: accountID.String, Name: accountName.String}
		}
		view.Date, view.CreatedAt = view.Date.UTC(), view.CreatedAt.UTC()
		views = append(views, view)
	}
	return views, rows.Err()
}

// EntryKind selects the table a chart series is drawn from.
type EntryKind string

const (
	KindExpense EntryKind = "expenses"
	KindIncome  EntryKind = "incomes"
)

// DatedAmount is one entry reduced to what a chart needs.
type DatedAmount struct {
	Date   time.Time
	Amount decimal.Decimal
}

// DatedAmounts returns (date, amount) pairs in ascending date order.
func (r *EntryReadRepository) DatedAmounts(ctx context.Context, kind EntryKind, userID, accountID string, rng cqrs.DateRange) ([]DatedAmount, error) {
	if kind != KindExpense && kind != KindIncome {
		return nil, fmt.Errorf("unknown entry kind %q", kind)
	}
	c := entryConditions("x", userID, accountID, rng)
	query := "SELECT x.date, x.amount FROM " + string(kind) + " x" + c.where() + " ORDER BY x.date ASC"

	rows, err := r.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s amounts: %w", kind, err)
	}
	defer rows.Close()

	var out []DatedAmount
	for rows.Next() {
		var p DatedAmount
		if err := rows.Scan(&p.Date, store.Money(&p.Amount)); err != nil {
			return nil, fmt.Errorf("failed to scan %s amount: %w", kind, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
