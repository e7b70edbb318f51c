package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/luvo/internal/db"
)

// FeedRepository answers the candidate-pool query of the feed.
type FeedRepository struct {
	db *gorm.DB
}

func NewFeedRepository(database *gorm.DB) *FeedRepository {
	return &FeedRepository{db: database}
}

// withProfile restricts alias u to users with a completed profile.
func withProfile(q *gorm.DB) *gorm.DB {
	return q.Where("u.first_name <> '' AND u.birthdate IS NOT NULL AND u.gender <> ''")
}

// PoolIDs returns the ids of every user the viewer may still be shown.
//
// Behavior:
//   - Excludes the viewer, users the viewer liked, users matched with the
//     viewer and users the viewer already saw.
//   - Excludes users without a profile.
//   - gender != "" restricts the pool to that gender.
//   - Ordered by id DESC (newest users first).
func (r *FeedRepository) PoolIDs(ctx context.Context, viewerID uint64, gender string) ([]uint64, error) {
	q := r.db.WithContext(ctx).
		Table("users u").
		Where("u.id <> ?", viewerID).
		Where("NOT EXISTS (SELECT 1 FROM likes l WHERE l.liker_id = ? AND l.liked_id = u.id)", viewerID).
		Where("NOT EXISTS (SELECT 1 FROM feed_views v WHERE v.viewer_id = ? AND v.viewed_id = u.id)", viewerID).
		Where(`NOT EXISTS (
			SELECT 1 FROM matches m
			WHERE (m.user1_id = ? AND m.user2_id = u.id) OR (m.user2_id = ? AND m.user1_id = u.id)
		)`, viewerID, viewerID)
	q = withProfile(q)
	if gender != "" {
		q = q.Where("u.gender = ?", gender)
	}

	var ids []uint64
	err := q.Order("u.id DESC").Pluck("u.id", &ids).Error
	return ids, err
}

// ProfileIDs returns ids of users with a profile, except those in exclude,
// optionally restricted to gender.
func (r *FeedRepository) ProfileIDs(ctx context.Context, exclude []uint64, gender string) ([]uint64, error) {
	q := withProfile(r.db.WithContext(ctx).Table("users u"))
	if len(exclude) > 0 {
		q = q.Where("u.id NOT IN ?", exclude)
	}
	if gender != "" {
		q = q.Where("u.gender = ?", gender)
	}

	var ids []uint64
	err := q.Order("u.id DESC").Pluck("u.id", &ids).Error
	return ids, err
}

// PreferredGender is the candidate gender shown to a viewer of gender g;
// "" means unfiltered.
func PreferredGender(g string) string {
	switch g {
	case db.GenderMale:
		return db.GenderFemale
	case db.GenderFemale:
		return db.GenderMale
	default:
		return ""
	}
}
