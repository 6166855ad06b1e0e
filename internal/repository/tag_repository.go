package repository

import (
	"context"
	"fmt"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/store"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
)

// TagRepository reads a user's tags. Tags are created by the ledger command
// service as part of expense writes.
type TagRepository struct {
	db store.DBTX
}

func NewTagRepository(db store.DBTX) *TagRepository { return &TagRepository{db: db} }

func (r *TagRepository) ListByUserID(ctx context.Context, userID string) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, name FROM tags WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
