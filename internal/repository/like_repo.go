package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/utils/pagination"
)

// LikeRepository provides data access methods for the Like model.
// It encapsulates all queries related to directed likes between users.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// WithTx returns a copy bound to tx.
func (r *LikeRepository) WithTx(tx *gorm.DB) *LikeRepository {
	return &LikeRepository{db: tx}
}

// UserCount is a user id with an aggregated count.
type UserCount struct {
	UserID uint64
	Count  int64
}

// notMatched excludes rows of alias l whose pair already has a Match.
const notMatched = `
	NOT EXISTS (
		SELECT 1 FROM matches m
		WHERE (m.user1_id = l.liker_id AND m.user2_id = l.liked_id)
		   OR (m.user1_id = l.liked_id AND m.user2_id = l.liker_id)
	)`

// Create inserts the like liker -> liked if it does not exist yet.
//
// Behavior:
//   - (liker_id, liked_id) is unique; an existing row is left untouched.
//   - created reports whether a new row was written, which drives the
//     "like received" notification.
//
// Example:
//
//	created, err := repo.Create(ctx, 1, 2) // user 1 liked user 2
func (r *LikeRepository) Create(ctx context.Context, likerID, likedID uint64) (bool, error) {
	like := db.Like{LikerID: likerID, LikedID: likedID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "liker_id"}, {Name: "liked_id"}},
			DoNothing: true,
		}).
		Create(&like)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Get returns the like liker -> liked or gorm.ErrRecordNotFound.
func (r *LikeRepository) Get(ctx context.Context, likerID, likedID uint64) (*db.Like, error) {
	var like db.Like
	err := r.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		First(&like).Error
	if err != nil {
		return nil, err
	}
	return &like, nil
}

// HasLiked checks whether liker has liked liked, ignored or not.
// Used for the reciprocity check in Like.
func (r *LikeRepository) HasLiked(ctx context.Context, likerID, likedID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Count(&count).Error
	return count > 0, err
}

// Delete removes the like liker -> liked and reports how many rows went away.
func (r *LikeRepository) Delete(ctx context.Context, likerID, likedID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Delete(&db.Like{})
	return res.RowsAffected, res.Error
}

// SetIgnored flags or unflags the like liker -> liked.
func (r *LikeRepository) SetIgnored(ctx context.Context, likerID, likedID uint64, ignored bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Update("is_ignored", ignored)
	return res.RowsAffected, res.Error
}

// ClearIgnoredPair unflags both directed likes between a and b.
func (r *LikeRepository) ClearIgnoredPair(ctx context.Context, a, b uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("(liker_id = ? AND liked_id = ?) OR (liker_id = ? AND liked_id = ?)", a, b, b, a).
		Update("is_ignored", false).Error
}

// GetLikers returns the likes received by likedID.
//
// Behavior:
//   - Excludes likes the recipient ignored.
//   - Excludes pairs that are already matched.
//   - Ordered by created_at DESC, liker_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.GetLikers(ctx, 42, nil, 20) // first 20 people who liked user 42
func (r *LikeRepository) GetLikers(
	ctx context.Context,
	likedID uint64,
	paginationToken *string,
	limit int,
) ([]db.Like, *string, error) {
	var likes []db.Like

	// decode cursor if provided
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("likes l").
		Select("l.*").
		Where("l.liked_id = ? AND l.is_ignored = ?", likedID, false).
		Where(notMatched).
		Order("l.created_at DESC, l.liker_id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := cursor.Time()
		query = query.Where(
			"(l.created_at < ? OR (l.created_at = ? AND l.liker_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&likes).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(likes) > limit {
		last := likes[limit-1]
		token, _ := pagination.Encode(pagination.After(last.LikerID, last.CreatedAt))
		nextToken = &token
		likes = likes[:limit]
	}

	return likes, nextToken, nil
}

// CountLikers returns how many pending likes likedID has received.
// Same filter as GetLikers. Used with the Redis cache (DB is fallback).
func (r *LikeRepository) CountLikers(ctx context.Context, likedID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.liked_id = ? AND l.is_ignored = ?", likedID, false).
		Where(notMatched).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// TopLiked returns users ordered by received likes, most liked first.
func (r *LikeRepository) TopLiked(ctx context.Context, limit int) ([]UserCount, error) {
	var rows []UserCount
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Select("liked_id AS user_id, COUNT(*) AS count").
		Group("liked_id").
		Order("count DESC, liked_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
