package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/luvo/internal/db"
)

type ModerationRepository struct {
	db *gorm.DB
}

func NewModerationRepository(database *gorm.DB) *ModerationRepository {
	return &ModerationRepository{db: database}
}

func (r *ModerationRepository) WithTx(tx *gorm.DB) *ModerationRepository {
	return &ModerationRepository{db: tx}
}

// Open creates the pending case of userID. Opening twice returns the
// existing case.
func (r *ModerationRepository) Open(ctx context.Context, userID uint64) (*db.ModerationCase, error) {
	c := db.ModerationCase{UserID: userID, Status: db.ModerationPending}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&c).Error
	if err != nil {
		return nil, err
	}
	return r.GetByUser(ctx, userID)
}

func (r *ModerationRepository) Get(ctx context.Context, id uint64) (*db.ModerationCase, error) {
	var c db.ModerationCase
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetForUpdate loads the case with a row lock where the dialect has one.
func (r *ModerationRepository) GetForUpdate(ctx context.Context, id uint64) (*db.ModerationCase, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c db.ModerationCase
	if err := q.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ModerationRepository) GetByUser(ctx context.Context, userID uint64) (*db.ModerationCase, error) {
	var c db.ModerationCase
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ModerationRepository) Save(ctx context.Context, c *db.ModerationCase) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// SetMessage stores where the review card was posted.
func (r *ModerationRepository) SetMessage(ctx context.Context, id uint64, chatID int64, messageID int) error {
	return r.db.WithContext(ctx).
		Model(&db.ModerationCase{}).
		Where("id = ?", id).
		Updates(map[string]any{"chat_id": chatID, "message_id": messageID}).Error
}
