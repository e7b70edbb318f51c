// Package moderation drives the admin review of new profiles.
package moderation

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/luvo/internal/app"
	"github.com/oggyb/luvo/internal/db"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/notify"
	"github.com/oggyb/luvo/internal/repository"
)

// Publisher posts a review card for a freshly opened case.
type Publisher interface {
	Publish(ctx context.Context, card *Card) error
}

// Card is everything a reviewer needs to decide on a case.
type Card struct {
	Case   db.ModerationCase
	User   db.User
	Photos []string
}

type Service struct {
	appCtx    *app.AppContext
	cases     *repository.ModerationRepository
	users     *repository.UserRepository
	photos    *repository.PhotoRepository
	publisher Publisher
	now       func() time.Time
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		cases:  repository.NewModerationRepository(appCtx.DB),
		users:  repository.NewUserRepository(appCtx.DB),
		photos: repository.NewPhotoRepository(appCtx.DB),
		now:    time.Now,
	}
}

// SetPublisher wires the bot. Without one, cases are only persisted.
func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// Open starts the review of userID. Opening an already open case is a
// no-op; the card is posted only once.
func (s *Service) Open(ctx context.Context, userID uint64) (*db.ModerationCase, error) {
	c, err := s.cases.Open(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if s.publisher == nil || c.Status != db.ModerationPending || c.MessageID != 0 {
		return c, nil
	}

	card, err := s.Card(ctx, c.ID)
	if err != nil {
		s.appCtx.Logger.Warn("moderation card build failed", "case", c.ID, "err", err)
		return c, nil
	}
	if err := s.publisher.Publish(ctx, card); err != nil {
		s.appCtx.Logger.Warn("moderation card publish failed", "case", c.ID, "err", err)
	}
	return c, nil
}

// Card loads the case with its user and active photo URLs.
func (s *Service) Card(ctx context.Context, caseID uint64) (*Card, error) {
	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	card := &Card{Case: *c}
	u, err := s.users.GetByID(ctx, c.UserID)
	if err != nil {
		if svcErr.Is(err, svcErr.KindNotFound) {
			return card, nil
		}
		return nil, svcErr.Map(err)
	}
	card.User = *u

	keys, err := s.photos.ActiveKeys(ctx, []uint64{u.ID})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	for _, k := range keys[u.ID] {
		card.Photos = append(card.Photos, s.appCtx.Storage.URL(k))
	}
	return card, nil
}

// AttachMessage remembers where the card of caseID was posted.
func (s *Service) AttachMessage(ctx context.Context, caseID uint64, chatID int64, messageID int) error {
	return svcErr.Map(s.cases.SetMessage(ctx, caseID, chatID, messageID))
}

func validFlag(flag int) bool {
	return flag == db.FlagHidePhoto || flag == db.FlagHideName || flag == db.FlagHideBio
}

// pending loads caseID for update and rejects decided cases.
func pending(ctx context.Context, cases *repository.ModerationRepository, caseID uint64) (*db.ModerationCase, error) {
	c, err := cases.GetForUpdate(ctx, caseID)
	if err != nil {
		if svcErr.Is(err, svcErr.KindNotFound) {
			return nil, svcErr.NotFound("moderation case not found")
		}
		return nil, err
	}
	if c.Status != db.ModerationPending {
		return nil, svcErr.Conflict(fmt.Sprintf("case already %s", c.Status))
	}
	return c, nil
}

// ToggleFlag flips one redaction flag of a pending case.
func (s *Service) ToggleFlag(ctx context.Context, caseID uint64, flag int) (*db.ModerationCase, error) {
	if !validFlag(flag) {
		return nil, svcErr.InvalidArgument("unknown moderation flag")
	}

	var out *db.ModerationCase
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cases := s.cases.WithTx(tx)
		c, err := pending(ctx, cases, caseID)
		if err != nil {
			return err
		}
		c.Flags ^= flag
		out = c
		return cases.Save(ctx, c)
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return out, nil
}

// Approve applies the selected redactions and closes the case.
// The user is notified only when something was redacted.
func (s *Service) Approve(ctx context.Context, caseID uint64, adminID int64) (*db.ModerationCase, error) {
	cfg := s.appCtx.Config.Moderation

	var (
		out     *db.ModerationCase
		tgID    int64
		changed bool
	)
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cases := s.cases.WithTx(tx)
		c, err := pending(ctx, cases, caseID)
		if err != nil {
			return err
		}

		u, err := s.users.WithTx(tx).GetByID(ctx, c.UserID)
		if err != nil {
			return err
		}
		tgID = u.TelegramUserID

		if c.Flags&db.FlagHidePhoto != 0 && cfg.PlaceholderPhotoKey != "" {
			photos := s.photos.WithTx(tx)
			if err := photos.DeactivateAll(ctx, u.ID); err != nil {
				return err
			}
			placeholder := db.Photo{UserID: u.ID, S3Key: cfg.PlaceholderPhotoKey, IsActive: true, IsGeneral: true}
			if err := photos.Create(ctx, &placeholder); err != nil {
				return err
			}
			changed = true
		}
		if c.Flags&db.FlagHideName != 0 {
			u.FirstName = cfg.PlaceholderName
			changed = true
		}
		if c.Flags&db.FlagHideBio != 0 {
			u.About = cfg.PlaceholderBio
			changed = true
		}
		if changed {
			if err := s.users.WithTx(tx).Update(ctx, u); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		c.Status = db.ModerationApproved
		c.DecidedBy = adminID
		c.DecidedAt = &now
		out = c
		return cases.Save(ctx, c)
	})
	if err != nil {
		s.appCtx.Logger.Error("moderation approve failed", "case", caseID, "err", err)
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Info("profile approved", "case", caseID, "user", out.UserID, "flags", out.Flags, "admin", adminID)
	if changed {
		s.appCtx.Notifier.Notify(ctx, tgID, notify.KindModerationApproved)
	}
	return out, nil
}

// Decline deletes the user with every row referencing it and closes the
// case. Stored photos are removed best-effort after commit.
func (s *Service) Decline(ctx context.Context, caseID uint64, adminID int64) (*db.ModerationCase, error) {
	var (
		out    *db.ModerationCase
		tgID   int64
		purged *repository.Purged
	)
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cases := s.cases.WithTx(tx)
		c, err := pending(ctx, cases, caseID)
		if err != nil {
			return err
		}

		users := s.users.WithTx(tx)
		u, err := users.GetByID(ctx, c.UserID)
		if err != nil {
			return err
		}
		tgID = u.TelegramUserID

		purged, err = users.DeleteCascade(ctx, u.ID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		c.Status = db.ModerationDeclined
		c.DecidedBy = adminID
		c.DecidedAt = &now
		out = c
		return cases.Save(ctx, c)
	})
	if err != nil {
		s.appCtx.Logger.Error("moderation decline failed", "case", caseID, "err", err)
		return nil, svcErr.Map(err)
	}

	if rc := s.appCtx.RedisCache; rc != nil {
		if err := rc.InvalidateLikeCounts(ctx, purged.LikedIDs...); err != nil {
			s.appCtx.Logger.Warn("like count invalidation failed", "case", caseID, "err", err)
		}
	}

	for _, k := range purged.PhotoKeys {
		if k == s.appCtx.Config.Moderation.PlaceholderPhotoKey {
			continue
		}
		if err := s.appCtx.Storage.Delete(ctx, k); err != nil {
			s.appCtx.Logger.Warn("declined user photo delete failed", "key", k, "err", err)
		}
	}

	s.appCtx.Logger.Info("profile declined", "case", caseID, "user", out.UserID, "admin", adminID)
	s.appCtx.Notifier.Notify(ctx, tgID, notify.KindModerationDeclined)
	return out, nil
}
