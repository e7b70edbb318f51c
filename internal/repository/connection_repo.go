package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/luvo/internal/db"
)

// ConnectionRepository stores the Instagram follow graph.
type ConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(database *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: database}
}

// Replace swaps every edge of userID for edges, atomically.
func (r *ConnectionRepository) Replace(ctx context.Context, userID uint64, edges []db.InstagramConnection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&db.InstagramConnection{}).Error; err != nil {
			return err
		}
		if len(edges) == 0 {
			return nil
		}
		for i := range edges {
			edges[i].UserID = userID
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error
	})
}

// DirectIDs returns the distinct users userID is connected to, any type.
func (r *ConnectionRepository) DirectIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.InstagramConnection{}).
		Where("user_id = ? AND connected_id <> ?", userID, userID).
		Distinct().
		Pluck("connected_id", &ids).Error
	return ids, err
}

// SecondDegreeIDs returns the users connected to any of firstDegree.
// The caller removes first-degree ids and itself.
func (r *ConnectionRepository) SecondDegreeIDs(ctx context.Context, firstDegree []uint64) ([]uint64, error) {
	if len(firstDegree) == 0 {
		return nil, nil
	}
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.InstagramConnection{}).
		Where("user_id IN ?", firstDegree).
		Distinct().
		Pluck("connected_id", &ids).Error
	return ids, err
}
