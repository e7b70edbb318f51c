// Package profile owns the profile attributes inlined on User.
package profile

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/oggyb/luvo/internal/app"
	"github.com/oggyb/luvo/internal/db"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/repository"
	"github.com/oggyb/luvo/internal/service/moderation"
	"github.com/oggyb/luvo/internal/service/photo"
	"github.com/oggyb/luvo/internal/service/social"
	"github.com/oggyb/luvo/internal/service/view"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// CreateInput is the form of POST /users.
type CreateInput struct {
	FirstName         string `form:"first_name" validate:"required,max=128"`
	Birthdate         string `form:"birthdate" validate:"required,datetime=2006-01-02"`
	Gender            string `form:"gender" validate:"required,oneof=male female other"`
	About             string `form:"about" validate:"max=2000"`
	InstagramUsername string `form:"instagram_username" validate:"max=64"`
	Country           string `form:"country" validate:"max=64"`
	City              string `form:"city" validate:"max=64"`
	District          string `form:"district" validate:"max=64"`
}

// UpdateInput is the form of PUT /users/me. Nil fields are left as is.
type UpdateInput struct {
	FirstName         *string `form:"first_name" validate:"omitempty,min=1,max=128"`
	Birthdate         *string `form:"birthdate" validate:"omitempty,datetime=2006-01-02"`
	Gender            *string `form:"gender" validate:"omitempty,oneof=male female other"`
	About             *string `form:"about" validate:"omitempty,max=2000"`
	TelegramUsername  *string `form:"telegram_username" validate:"omitempty,max=64"`
	InstagramUsername *string `form:"instagram_username" validate:"omitempty,max=64"`
	Country           *string `form:"country" validate:"omitempty,max=64"`
	City              *string `form:"city" validate:"omitempty,max=64"`
	District          *string `form:"district" validate:"omitempty,max=64"`
}

// Me is the owner's view of their profile.
type Me struct {
	view.Candidate
	TelegramUserID   int64      `json:"telegram_user_id"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at"`
}

type Service struct {
	appCtx     *app.AppContext
	users      *repository.UserRepository
	photos     *photo.Service
	moderation *moderation.Service
	builder    *view.Builder

	now func() time.Time
}

func NewService(appCtx *app.AppContext, photos *photo.Service, mod *moderation.Service) *Service {
	users := repository.NewUserRepository(appCtx.DB)
	return &Service{
		appCtx:     appCtx,
		users:      users,
		photos:     photos,
		moderation: mod,
		builder:    view.NewBuilder(users, repository.NewPhotoRepository(appCtx.DB), appCtx.Storage),
		now:        time.Now,
	}
}

// validationErr flattens validator output into one InvalidArgument.
func validationErr(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return svcErr.InvalidArgument(err.Error())
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return svcErr.InvalidArgument("invalid profile: " + strings.Join(parts, ", "))
}

func (s *Service) birthdate(raw string) (time.Time, error) {
	t, err := time.Parse(view.DateLayout, raw)
	if err != nil {
		return time.Time{}, svcErr.InvalidArgument("birthdate must be YYYY-MM-DD")
	}
	if !t.Before(s.now().UTC()) {
		return time.Time{}, svcErr.InvalidArgument("birthdate must be in the past")
	}
	return t, nil
}

// Create fills the profile of userID and stores its first photo, which
// becomes the general one. The new profile is sent to moderation.
func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput, file photo.File) (*Me, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationErr(err)
	}
	birth, err := s.birthdate(in.Birthdate)
	if err != nil {
		return nil, err
	}
	if file.Reader == nil {
		return nil, svcErr.InvalidArgument("file is required")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if u.HasProfile() {
		return nil, svcErr.AlreadyExists("profile already exists")
	}

	if _, err := s.photos.Upload(ctx, u.ID, file); err != nil {
		return nil, err
	}

	u.FirstName = in.FirstName
	u.Birthdate = &birth
	u.Gender = in.Gender
	u.About = in.About
	u.InstagramUsername = social.Normalize(in.InstagramUsername)
	u.Country, u.City, u.District = in.Country, in.City, in.District
	if err := s.users.Update(ctx, u); err != nil {
		return nil, svcErr.Map(err)
	}

	if s.moderation != nil {
		if _, err := s.moderation.Open(ctx, u.ID); err != nil {
			s.appCtx.Logger.Warn("moderation open failed", "user", u.ID, "err", err)
		}
	}
	s.appCtx.Logger.Info("profile created", "user", u.ID)
	return s.me(ctx, *u)
}

// Me returns the owner's profile. A user without one gets NotFound.
func (s *Service) Me(ctx context.Context, userID uint64) (*Me, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !u.HasProfile() {
		return nil, svcErr.NotFound("profile not created yet")
	}
	return s.me(ctx, *u)
}

// Update applies the non-nil fields of in. Non-empty files replace all
// active photos.
func (s *Service) Update(ctx context.Context, userID uint64, in UpdateInput, files []photo.File) (*Me, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationErr(err)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !u.HasProfile() {
		return nil, svcErr.PreconditionFailed("create a profile first")
	}

	if in.Birthdate != nil {
		birth, err := s.birthdate(*in.Birthdate)
		if err != nil {
			return nil, err
		}
		u.Birthdate = &birth
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.FirstName, in.FirstName)
	set(&u.Gender, in.Gender)
	set(&u.About, in.About)
	set(&u.TelegramUsername, in.TelegramUsername)
	set(&u.Country, in.Country)
	set(&u.City, in.City)
	set(&u.District, in.District)
	if in.InstagramUsername != nil {
		u.InstagramUsername = social.Normalize(*in.InstagramUsername)
	}

	if len(files) > 0 {
		if _, err := s.photos.Replace(ctx, u.ID, files); err != nil {
			return nil, err
		}
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, svcErr.Map(err)
	}
	return s.me(ctx, *u)
}

// Public returns the candidate view of another user.
func (s *Service) Public(ctx context.Context, userID uint64) (*view.Candidate, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("user not found")
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !u.HasProfile() {
		return nil, svcErr.NotFound("user not found")
	}
	c, err := s.builder.One(ctx, *u)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &c, nil
}

func (s *Service) me(ctx context.Context, u db.User) (*Me, error) {
	c, err := s.builder.One(ctx, u)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &Me{Candidate: c, TelegramUserID: u.TelegramUserID, PremiumExpiresAt: u.PremiumExpiresAt}, nil
}
