package orders

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error
	return o, err
}

// RecentIDs lists the most recently created order ids, newest first.
// The reconciliation batch walks this list.
func (r *Repo) RecentIDs(ctx context.Context, limit int) ([]string, error) {
	if limit < 1 {
		limit = 200
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&Order{}).
		Order("created_at DESC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
