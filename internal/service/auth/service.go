// Package auth exchanges Telegram WebApp initData for API tokens.
package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oggyb/luvo/internal/app"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/repository"
)

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	HasProfile  bool   `json:"has_profile"`
	ExpiresInMS int64  `json:"expires_in_ms"`
}

type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
	now    func() time.Time
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
		now:    time.Now,
	}
}

func (s *Service) ttl() time.Duration {
	if d := s.appCtx.Config.Auth.TokenTTL; d > 0 {
		return d
	}
	return 24 * time.Hour
}

// Login verifies initData, creates the user on first sight and issues a
// signed token for it.
func (s *Service) Login(ctx context.Context, initData string) (*Token, error) {
	cfg := s.appCtx.Config
	tgUser, err := VerifyInitData(initData, cfg.Telegram.BotToken, cfg.Auth.InitDataMaxAge, s.now())
	if err != nil {
		s.appCtx.Logger.Warn("init data rejected", "err", err)
		return nil, err
	}

	u, created, err := s.users.FindOrCreateByTelegramID(ctx, tgUser.ID, tgUser.Username)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if created {
		s.appCtx.Logger.Info("user registered", "user", u.ID, "tg_user", tgUser.ID)
	}

	token, err := s.Issue(u.ID)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	return &Token{
		AccessToken: token,
		TokenType:   "bearer",
		HasProfile:  u.HasProfile(),
		ExpiresInMS: s.ttl().Milliseconds(),
	}, nil
}

// Issue signs an HS256 token whose subject is userID.
func (s *Service) Issue(userID uint64) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(userID, 10),
		"iat": now.Unix(),
		"exp": now.Add(s.ttl()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.appCtx.Config.Auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates tokenString and returns its subject.
func (s *Service) Parse(tokenString string) (uint64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.appCtx.Config.Auth.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return 0, svcErr.Unauthorized("invalid or expired token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, svcErr.Unauthorized("invalid token structure - missing subject")
	}
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || userID == 0 {
		return 0, svcErr.Unauthorized("invalid user id in token")
	}
	return userID, nil
}
