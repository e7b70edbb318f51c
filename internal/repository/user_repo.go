package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/luvo/internal/db"
)

// UserRepository provides data access methods for the User model.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDs loads users keyed by id. Missing ids are simply absent.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]db.User, error) {
	out := make(map[uint64]db.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []db.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).
		Where("telegram_user_id = ?", telegramID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindOrCreateByTelegramID returns the user of telegramID, creating an
// empty account on first sight. The Telegram username is refreshed on
// every call.
//
// Two concurrent first logins race on the unique telegram_user_id; the
// loser re-reads the winner's row.
func (r *UserRepository) FindOrCreateByTelegramID(
	ctx context.Context,
	telegramID int64,
	username string,
) (*db.User, bool, error) {
	u, err := r.FindByTelegramID(ctx, telegramID)
	if err == nil {
		if username != "" && u.TelegramUsername != username {
			u.TelegramUsername = username
			if err := r.db.WithContext(ctx).Model(u).Update("telegram_username", username).Error; err != nil {
				return nil, false, err
			}
		}
		return u, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	u = &db.User{TelegramUserID: telegramID, TelegramUsername: username}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_user_id"}},
			DoNothing: true,
		}).
		Create(u)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		u, err = r.FindByTelegramID(ctx, telegramID)
		return u, false, err
	}
	return u, true, nil
}

// Update persists every column of u.
func (r *UserRepository) Update(ctx context.Context, u *db.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

// ListWithInstagram returns users that configured an Instagram username.
func (r *UserRepository) ListWithInstagram(ctx context.Context) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("instagram_username <> ''").
		Order("id ASC").
		Find(&users).Error
	return users, err
}

// IDsByInstagram maps Instagram usernames to registered user ids.
func (r *UserRepository) IDsByInstagram(ctx context.Context, usernames []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(usernames))
	if len(usernames) == 0 {
		return out, nil
	}
	var users []db.User
	err := r.db.WithContext(ctx).
		Select("id", "instagram_username").
		Where("instagram_username IN ?", usernames).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.InstagramUsername] = u.ID
	}
	return out, nil
}

// ExpirePremiums clears the premium flag of users whose subscription ended
// before now.
func (r *UserRepository) ExpirePremiums(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("is_premium = ? AND premium_expires_at IS NOT NULL AND premium_expires_at < ?", true, now).
		Update("is_premium", false)
	return res.RowsAffected, res.Error
}

// Purged describes what DeleteCascade removed outside the database rows.
type Purged struct {
	// PhotoKeys are the storage keys of the deleted photos.
	PhotoKeys []string
	// LikedIDs are the users the deleted user had liked; their received
	// like counters are stale after the delete.
	LikedIDs []uint64
}

// DeleteCascade removes userID and every row that references it.
func (r *UserRepository) DeleteCascade(ctx context.Context, userID uint64) (*Purged, error) {
	out := &Purged{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Photo{}).Where("user_id = ?", userID).Pluck("s3_key", &out.PhotoKeys).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.Like{}).Where("liker_id = ?", userID).Pluck("liked_id", &out.LikedIDs).Error; err != nil {
			return err
		}

		steps := []struct {
			model any
			where string
			args  int
		}{
			{&db.Photo{}, "user_id = ?", 1},
			{&db.Like{}, "liker_id = ? OR liked_id = ?", 2},
			{&db.Match{}, "user1_id = ? OR user2_id = ?", 2},
			{&db.FeedView{}, "viewer_id = ? OR viewed_id = ?", 2},
			{&db.InstagramConnection{}, "user_id = ? OR connected_id = ?", 2},
			{&db.BattleResult{}, "winner_id = ? OR loser_id = ?", 2},
			{&db.BattleSession{}, "owner_id = ?", 1},
		}
		for _, s := range steps {
			args := make([]any, s.args)
			for i := range args {
				args[i] = userID
			}
			if err := tx.Where(s.where, args...).Delete(s.model).Error; err != nil {
				return err
			}
		}

		// sessions of other owners may still point at the user
		for _, col := range []string{"left_id", "right_id", "final_winner_id"} {
			if err := tx.Model(&db.BattleSession{}).Where(col+" = ?", userID).Update(col, nil).Error; err != nil {
				return err
			}
		}

		res := tx.Delete(&db.User{}, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
