package photo

import (
	"context"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/luvo/internal/app"
	"github.com/oggyb/luvo/internal/db"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/repository"
)

const defaultMaxPerUser = 6

// File is one uploaded image.
type File struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	Name        string
}

// Photo is the client view of a stored photo.
type Photo struct {
	PhotoID   uint64    `json:"photo_id"`
	UserID    uint64    `json:"user_id"`
	URL       string    `json:"url"`
	IsGeneral bool      `json:"is_general"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	appCtx *app.AppContext
	photos *repository.PhotoRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		photos: repository.NewPhotoRepository(appCtx.DB),
	}
}

func (s *Service) maxPerUser() int64 {
	if n := s.appCtx.Config.Photos.MaxPerUser; n > 0 {
		return int64(n)
	}
	return defaultMaxPerUser
}

func (s *Service) view(p db.Photo) Photo {
	return Photo{
		PhotoID:   p.ID,
		UserID:    p.UserID,
		URL:       s.appCtx.Storage.URL(p.S3Key),
		IsGeneral: p.IsGeneral,
		CreatedAt: p.CreatedAt,
	}
}

// storageErr keeps domain errors from the pool and wraps anything else.
func storageErr(err error) error {
	if svcErr.KindOf(err) != svcErr.KindInternal {
		return svcErr.Map(err)
	}
	return svcErr.Upstream("storage unavailable", err)
}

func (s *Service) put(ctx context.Context, userID uint64, f File) (string, error) {
	hint := fmt.Sprintf("users/%d/%s", userID, f.Name)
	key, err := s.appCtx.Storage.Put(ctx, f.Reader, f.Size, f.ContentType, hint)
	if err != nil {
		s.appCtx.Logger.Error("photo upload failed", "user", userID, "err", err)
		return "", storageErr(err)
	}
	return key, nil
}

// shared reports whether key is used by more than one user and must
// never be deleted.
func (s *Service) shared(key string) bool {
	return key != "" && key == s.appCtx.Config.Moderation.PlaceholderPhotoKey
}

// purge deletes objects best-effort.
func (s *Service) purge(ctx context.Context, keys []string) {
	for _, k := range keys {
		if s.shared(k) {
			continue
		}
		if err := s.appCtx.Storage.Delete(ctx, k); err != nil {
			s.appCtx.Logger.Warn("photo object delete failed", "key", k, "err", err)
		}
	}
}

// Upload stores f and adds it to userID's active photos. The first
// active photo becomes the general one.
func (s *Service) Upload(ctx context.Context, userID uint64, f File) (*Photo, error) {
	count, err := s.photos.CountActive(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if count >= s.maxPerUser() {
		return nil, svcErr.Conflict(fmt.Sprintf("at most %d photos allowed", s.maxPerUser()))
	}

	key, err := s.put(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	p := db.Photo{UserID: userID, S3Key: key, IsActive: true, IsGeneral: count == 0}
	if err := s.photos.Create(ctx, &p); err != nil {
		s.purge(ctx, []string{key})
		return nil, svcErr.Map(err)
	}

	out := s.view(p)
	return &out, nil
}

// List returns the active photos of userID, oldest first.
func (s *Service) List(ctx context.Context, userID uint64) ([]Photo, error) {
	photos, err := s.photos.ListActive(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]Photo, 0, len(photos))
	for _, p := range photos {
		out = append(out, s.view(p))
	}
	return out, nil
}

// Delete removes photoID of userID and its stored object.
//
// Behavior:
//   - NotFound when the photo does not exist or belongs to someone else.
//   - Conflict when it is the user's last active photo.
//   - The object is deleted inside the transaction; a storage failure
//     rolls the row back and surfaces as Upstream.
//   - Deleting the general photo promotes the oldest remaining one.
func (s *Service) Delete(ctx context.Context, userID, photoID uint64) error {
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		photos := s.photos.WithTx(tx)

		// concurrent deletes of the same user serialize on these rows
		active, err := photos.LockActiveIDs(ctx, userID)
		if err != nil {
			return err
		}

		p, err := photos.GetForUser(ctx, userID, photoID)
		if err != nil {
			if svcErr.Is(err, svcErr.KindNotFound) {
				return svcErr.NotFound("photo not found")
			}
			return err
		}

		if p.IsActive && len(active) <= 1 {
			return svcErr.Conflict("cannot delete the last photo")
		}

		if err := photos.Delete(ctx, p.ID); err != nil {
			return err
		}
		if err := photos.PromoteOldest(ctx, userID); err != nil {
			return err
		}

		if s.shared(p.S3Key) {
			return nil
		}
		if err := s.appCtx.Storage.Delete(ctx, p.S3Key); err != nil {
			s.appCtx.Logger.Error("photo object delete failed", "key", p.S3Key, "err", err)
			return storageErr(err)
		}
		return nil
	})
	return svcErr.Map(err)
}

// Replace swaps every active photo of userID for files.
// New objects are stored first; the old rows are removed in one
// transaction and their objects deleted best-effort after commit.
func (s *Service) Replace(ctx context.Context, userID uint64, files []File) ([]Photo, error) {
	if len(files) == 0 {
		return nil, svcErr.InvalidArgument("at least one photo is required")
	}
	if int64(len(files)) > s.maxPerUser() {
		return nil, svcErr.InvalidArgument(fmt.Sprintf("at most %d photos allowed", s.maxPerUser()))
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		key, err := s.put(ctx, userID, f)
		if err != nil {
			s.purge(ctx, keys)
			return nil, err
		}
		keys = append(keys, key)
	}

	var oldKeys []string
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		photos := s.photos.WithTx(tx)

		old, err := photos.ListActive(ctx, userID)
		if err != nil {
			return err
		}
		for _, p := range old {
			oldKeys = append(oldKeys, p.S3Key)
			if err := photos.Delete(ctx, p.ID); err != nil {
				return err
			}
		}

		for i, key := range keys {
			p := db.Photo{UserID: userID, S3Key: key, IsActive: true, IsGeneral: i == 0}
			if err := photos.Create(ctx, &p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.purge(ctx, keys)
		return nil, svcErr.Map(err)
	}

	s.purge(ctx, oldKeys)
	return s.List(ctx, userID)
}
