package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/luvo/internal/db"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// CanonicalPair orders a and b as (min, max).
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Create inserts the match for the unordered pair {a, b}.
// A uniqueness hit means the match already exists and is not an error;
// created reports whether a row was written.
func (r *MatchRepository) Create(ctx context.Context, a, b uint64) (bool, error) {
	u1, u2 := CanonicalPair(a, b)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(&db.Match{User1ID: u1, User2ID: u2})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *MatchRepository) Exists(ctx context.Context, a, b uint64) (bool, error) {
	u1, u2 := CanonicalPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		Count(&count).Error
	return count > 0, err
}

func (r *MatchRepository) Delete(ctx context.Context, a, b uint64) (int64, error) {
	u1, u2 := CanonicalPair(a, b)
	res := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		Delete(&db.Match{})
	return res.RowsAffected, res.Error
}

// ListForUser returns every match of userID, newest first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&matches).Error
	return matches, err
}

// Peer returns the other side of m for userID.
func Peer(m db.Match, userID uint64) uint64 {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}
