package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/luvo/internal/db"
)

type FeedViewRepository struct {
	db *gorm.DB
}

func NewFeedViewRepository(database *gorm.DB) *FeedViewRepository {
	return &FeedViewRepository{db: database}
}

func (r *FeedViewRepository) WithTx(tx *gorm.DB) *FeedViewRepository {
	return &FeedViewRepository{db: tx}
}

// Mark records that viewer has seen every id in viewedIDs.
// Re-marking a pair is a no-op.
func (r *FeedViewRepository) Mark(ctx context.Context, viewerID uint64, viewedIDs ...uint64) error {
	if len(viewedIDs) == 0 {
		return nil
	}
	rows := make([]db.FeedView, 0, len(viewedIDs))
	for _, id := range viewedIDs {
		rows = append(rows, db.FeedView{ViewerID: viewerID, ViewedID: id})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "viewer_id"}, {Name: "viewed_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *FeedViewRepository) Count(ctx context.Context, viewerID, viewedID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.FeedView{}).
		Where("viewer_id = ? AND viewed_id = ?", viewerID, viewedID).
		Count(&count).Error
	return count, err
}
