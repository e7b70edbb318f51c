package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/luvo/internal/db"
)

type PhotoRepository struct {
	db *gorm.DB
}

func NewPhotoRepository(database *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: database}
}

func (r *PhotoRepository) WithTx(tx *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: tx}
}

func (r *PhotoRepository) Create(ctx context.Context, p *db.Photo) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// ListActive returns the active photos of userID, oldest first.
func (r *PhotoRepository) ListActive(ctx context.Context, userID uint64) ([]db.Photo, error) {
	var photos []db.Photo
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC, id ASC").
		Find(&photos).Error
	return photos, err
}

// ActiveKeys returns the active photo keys of every user in userIDs,
// each list oldest first.
func (r *PhotoRepository) ActiveKeys(ctx context.Context, userIDs []uint64) (map[uint64][]string, error) {
	out := make(map[uint64][]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var photos []db.Photo
	err := r.db.WithContext(ctx).
		Select("user_id", "s3_key").
		Where("user_id IN ? AND is_active = ?", userIDs, true).
		Order("created_at ASC, id ASC").
		Find(&photos).Error
	if err != nil {
		return nil, err
	}
	for _, p := range photos {
		out[p.UserID] = append(out[p.UserID], p.S3Key)
	}
	return out, nil
}

func (r *PhotoRepository) CountActive(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Photo{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count, err
}

// LockActiveIDs returns the ids of userID's active photos, locking the rows
// FOR UPDATE until the surrounding transaction ends. SQLite ignores the lock.
func (r *PhotoRepository) LockActiveIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&db.Photo{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// GetForUser returns photoID if it belongs to userID.
func (r *PhotoRepository) GetForUser(ctx context.Context, userID, photoID uint64) (*db.Photo, error) {
	var p db.Photo
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", photoID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PhotoRepository) Delete(ctx context.Context, photoID uint64) error {
	return r.db.WithContext(ctx).Delete(&db.Photo{}, photoID).Error
}

// DeactivateAll hides every active photo of userID.
func (r *PhotoRepository) DeactivateAll(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.Photo{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]any{"is_active": false, "is_general": false}).Error
}

// PromoteOldest makes the oldest active photo of userID the general one
// when none is.
func (r *PhotoRepository) PromoteOldest(ctx context.Context, userID uint64) error {
	var general int64
	err := r.db.WithContext(ctx).
		Model(&db.Photo{}).
		Where("user_id = ? AND is_active = ? AND is_general = ?", userID, true, true).
		Count(&general).Error
	if err != nil || general > 0 {
		return err
	}

	var oldest db.Photo
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC, id ASC").
		First(&oldest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&oldest).Update("is_general", true).Error
}

// KnownKeys returns the subset of keys already referenced by a photo row.
func (r *PhotoRepository) KnownKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	out := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var found []string
	err := r.db.WithContext(ctx).Model(&db.Photo{}).
		Where("s3_key IN ?", keys).
		Distinct().
		Pluck("s3_key", &found).Error
	if err != nil {
		return nil, err
	}
	for _, k := range found {
		out[k] = true
	}
	return out, nil
}
