// Package admin holds password-gated maintenance operations.
package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/oggyb/luvo/internal/app"
	"github.com/oggyb/luvo/internal/db"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/repository"
)

const DefaultImportFolder = "demos"

var aboutTemplates = []string{"😊", "🚀", "🎨", "🎶", "☕", "📚", "Travelling", "Coffee lover", "🌟", "😎"}

// ImportResult summarizes ImportFromStorage.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type Service struct {
	appCtx *app.AppContext
	photos *repository.PhotoRepository
	faker  *gofakeit.Faker
	now    func() time.Time
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		photos: repository.NewPhotoRepository(appCtx.DB),
		faker:  gofakeit.New(time.Now().UnixNano()),
		now:    time.Now,
	}
}

// Authorize checks password against the configured bcrypt hash.
func (s *Service) Authorize(password string) error {
	hash := s.appCtx.Config.Admin.PasswordHash
	if hash == "" {
		return svcErr.Unavailable("admin access is not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		s.appCtx.Logger.Warn("admin password rejected")
		return svcErr.Forbidden("invalid admin password")
	}
	return nil
}

// ImportFromStorage creates one demo user per object directly under
// folder, using the object as the user's general photo. Objects already
// referenced by a photo are skipped, so a rerun imports only new ones.
func (s *Service) ImportFromStorage(ctx context.Context, folder string) (*ImportResult, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = DefaultImportFolder
	}
	prefix := folder + "/"

	keys, err := s.appCtx.Storage.List(ctx, prefix)
	if err != nil {
		return nil, svcErr.Upstream("storage listing failed", err)
	}

	var top []string
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		top = append(top, k)
	}
	known, err := s.photos.KnownKeys(ctx, top)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	res := &ImportResult{}
	for _, key := range top {
		if known[key] {
			res.Skipped++
			continue
		}
		if err := s.importOne(ctx, key); err != nil {
			return res, svcErr.Map(err)
		}
		res.Imported++
	}
	s.appCtx.Logger.Info("demo import finished", "folder", folder, "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

func (s *Service) importOne(ctx context.Context, key string) error {
	today := s.now().UTC()
	birth := s.faker.DateRange(today.AddDate(-22, 0, 0), today.AddDate(-18, 0, 0)).UTC().Truncate(24 * time.Hour)
	about := ""
	if s.faker.Float64Range(0, 1) < 0.4 {
		about = s.faker.RandomString(aboutTemplates)
	}

	const attempts = 3
	var err error
	for i := 0; i < attempts; i++ {
		u := db.User{
			// demo accounts get negative ids, which Telegram never issues
			TelegramUserID:    -int64(s.faker.Number(100_000_000, 999_999_999)),
			TelegramUsername:  "tg_" + strings.ToLower(s.faker.LetterN(8)),
			InstagramUsername: "inst_" + strings.ToLower(s.faker.LetterN(8)),
			FirstName:         s.faker.FirstName(),
			Birthdate:         &birth,
			Gender:            db.GenderFemale,
			About:             about,
		}
		err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&u).Error; err != nil {
				return err
			}
			return tx.Create(&db.Photo{UserID: u.ID, S3Key: key, IsGeneral: true, IsActive: true}).Error
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

// ResetDB drops and re-creates every table and clears cached counters.
func (s *Service) ResetDB(ctx context.Context) error {
	if err := db.Reset(s.appCtx.DB.WithContext(ctx)); err != nil {
		return svcErr.Internal(err)
	}
	if s.appCtx.RedisCache != nil {
		if _, err := s.appCtx.RedisCache.Purge(ctx); err != nil {
			s.appCtx.Logger.Warn("cache purge after reset failed", "err", err)
		}
	}
	s.appCtx.Logger.Warn("database was reset")
	return nil
}
