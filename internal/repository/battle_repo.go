package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/luvo/internal/db"
)

type BattleRepository struct {
	db *gorm.DB
}

func NewBattleRepository(database *gorm.DB) *BattleRepository {
	return &BattleRepository{db: database}
}

func (r *BattleRepository) WithTx(tx *gorm.DB) *BattleRepository {
	return &BattleRepository{db: tx}
}

// Session returns the session of ownerID for day ("2006-01-02"), or nil
// when the owner has not played that day.
func (r *BattleRepository) Session(ctx context.Context, ownerID uint64, day string) (*db.BattleSession, error) {
	var s db.BattleSession
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND battle_date = ?", ownerID, day).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *BattleRepository) CreateSession(ctx context.Context, s *db.BattleSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *BattleRepository) SaveSession(ctx context.Context, s *db.BattleSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *BattleRepository) RecordResult(ctx context.Context, winnerID, loserID uint64) error {
	return r.db.WithContext(ctx).Create(&db.BattleResult{WinnerID: winnerID, LoserID: loserID}).Error
}

// Leaders returns users ordered by battle wins, most wins first.
func (r *BattleRepository) Leaders(ctx context.Context, limit int) ([]UserCount, error) {
	var rows []UserCount
	err := r.db.WithContext(ctx).
		Model(&db.BattleResult{}).
		Select("winner_id AS user_id, COUNT(*) AS count").
		Group("winner_id").
		Order("count DESC, winner_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
