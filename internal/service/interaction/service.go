package interaction

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/oggyb/luvo/internal/app"
	"github.com/oggyb/luvo/internal/cache"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/notify"
	"github.com/oggyb/luvo/internal/repository"
	"github.com/oggyb/luvo/internal/service/view"
	"github.com/oggyb/luvo/internal/utils/pagination"
)

const (
	DefaultLikesLimit = 20
	MaxLikesLimit     = 50
	DefaultTopLimit   = 20
	MaxTopLimit       = 100
)

// LikeResult is returned by Like. Peer is set only when the like matched.
type LikeResult struct {
	Matched bool            `json:"matched"`
	Peer    *view.Candidate `json:"peer,omitempty"`
}

// IncomingLike is one entry of the "who liked me" list.
type IncomingLike struct {
	view.Candidate
	LikedAt int64 `json:"liked_at"`
}

// TopEntry is one leaderboard row.
type TopEntry struct {
	view.Candidate
	LikesCount int64 `json:"likes_count"`
}

// Service implements likes, matches and views on top of the repositories
// and the Redis counters.
type Service struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	likes   *repository.LikeRepository
	matches *repository.MatchRepository
	views   *repository.FeedViewRepository
	builder *view.Builder
}

func NewService(appCtx *app.AppContext) *Service {
	users := repository.NewUserRepository(appCtx.DB)
	return &Service{
		appCtx:  appCtx,
		users:   users,
		likes:   repository.NewLikeRepository(appCtx.DB),
		matches: repository.NewMatchRepository(appCtx.DB),
		views:   repository.NewFeedViewRepository(appCtx.DB),
		builder: view.NewBuilder(users, repository.NewPhotoRepository(appCtx.DB), appCtx.Storage),
	}
}

// Like records liker -> liked and creates the match when the like is
// reciprocal.
//
// Behavior:
//   - Self-like is InvalidArgument; an unknown or profile-less target is NotFound.
//   - A liker without a profile gets PreconditionFailed, as in the feed.
//   - Repeating a like is a no-op and sends no second notification.
//   - A reciprocal like (even an ignored one) creates the match and clears
//     the ignored flag on both sides.
//   - Notifications are sent after commit: "like received" for a new
//     non-matching like, "match" to both sides for a new match.
func (s *Service) Like(ctx context.Context, likerID, likedID uint64) (*LikeResult, error) {
	if likerID == likedID {
		return nil, svcErr.InvalidArgument("cannot like yourself")
	}

	liker, err := s.users.GetByID(ctx, likerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !liker.HasProfile() {
		return nil, svcErr.PreconditionFailed("profile not completed")
	}
	target, err := s.users.GetByID(ctx, likedID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !target.HasProfile() {
		return nil, svcErr.NotFound("user not found")
	}

	var created, matched, newMatch bool
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := s.likes.WithTx(tx)

		created, err = likes.Create(ctx, likerID, likedID)
		if err != nil {
			return fmt.Errorf("create like: %w", err)
		}

		matched, err = likes.HasLiked(ctx, likedID, likerID)
		if err != nil {
			return fmt.Errorf("check reciprocal like: %w", err)
		}
		if !matched {
			return nil
		}

		newMatch, err = s.matches.WithTx(tx).Create(ctx, likerID, likedID)
		if err != nil {
			return fmt.Errorf("create match: %w", err)
		}
		return likes.ClearIgnoredPair(ctx, likerID, likedID)
	})
	if err != nil {
		s.appCtx.Logger.Error("like failed", "liker", likerID, "liked", likedID, "err", err)
		return nil, svcErr.Map(err)
	}

	s.invalidateCounts(ctx, likerID, likedID)

	if created {
		s.appCtx.Metrics.LikesTotal.Inc()
		if !matched {
			s.appCtx.Notifier.Notify(ctx, target.TelegramUserID, notify.KindLikeReceived)
		}
	}
	if newMatch {
		s.appCtx.Metrics.MatchesTotal.Inc()
		s.appCtx.Notifier.Notify(ctx, liker.TelegramUserID, notify.KindMatch)
		s.appCtx.Notifier.Notify(ctx, target.TelegramUserID, notify.KindMatch)
	}

	s.appCtx.Logger.Debug("like recorded",
		"liker", likerID, "liked", likedID, "created", created, "matched", matched)

	res := &LikeResult{Matched: matched}
	if matched {
		peer, err := s.builder.One(ctx, *target)
		if err != nil {
			return nil, svcErr.Map(err)
		}
		res.Peer = &peer
	}
	return res, nil
}

// Unlike removes liker -> liked and the match of the pair, if any.
func (s *Service) Unlike(ctx context.Context, likerID, likedID uint64) error {
	if likerID == likedID {
		return svcErr.InvalidArgument("cannot unlike yourself")
	}

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.likes.WithTx(tx).Delete(ctx, likerID, likedID)
		if err != nil {
			return err
		}
		if n == 0 {
			return svcErr.NotFound("like not found")
		}
		_, err = s.matches.WithTx(tx).Delete(ctx, likerID, likedID)
		return err
	})
	if err != nil {
		return svcErr.Map(err)
	}

	s.invalidateCounts(ctx, likerID, likedID)
	return nil
}

// Ignore hides the inbound like liker -> rejecter from the rejecter's list.
func (s *Service) Ignore(ctx context.Context, rejecterID, likerID uint64) error {
	if rejecterID == likerID {
		return svcErr.InvalidArgument("cannot ignore yourself")
	}

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := s.likes.WithTx(tx)
		if _, err := likes.Get(ctx, likerID, rejecterID); err != nil {
			if svcErr.Is(err, svcErr.KindNotFound) {
				return svcErr.NotFound("like not found")
			}
			return err
		}

		matched, err := s.matches.WithTx(tx).Exists(ctx, likerID, rejecterID)
		if err != nil {
			return err
		}
		if matched {
			return svcErr.Conflict("users are already matched")
		}

		if _, err := likes.SetIgnored(ctx, likerID, rejecterID, true); err != nil {
			return err
		}
		return s.views.WithTx(tx).Mark(ctx, rejecterID, likerID)
	})
	if err != nil {
		return svcErr.Map(err)
	}

	s.invalidateCounts(ctx, rejecterID)
	return nil
}

// View records that viewer has seen viewed. Repeated calls are no-ops.
func (s *Service) View(ctx context.Context, viewerID, viewedID uint64) error {
	if viewerID == viewedID {
		return svcErr.InvalidArgument("cannot view yourself")
	}
	if _, err := s.users.GetByID(ctx, viewedID); err != nil {
		return svcErr.Map(err)
	}
	if err := s.views.Mark(ctx, viewerID, viewedID); err != nil {
		return svcErr.Map(err)
	}
	return nil
}

// IncomingLikes lists the pending likers of userID, newest first.
func (s *Service) IncomingLikes(ctx context.Context, userID uint64, cursor *string, limit int) ([]IncomingLike, *string, error) {
	if limit == 0 {
		limit = DefaultLikesLimit
	}
	if limit < 1 || limit > MaxLikesLimit {
		return nil, nil, svcErr.InvalidArgument("limit must be between 1 and 50")
	}

	if cursor != nil {
		if _, err := pagination.Decode(*cursor); err != nil {
			return nil, nil, svcErr.InvalidArgument("invalid cursor")
		}
	}

	likes, next, err := s.likes.GetLikers(ctx, userID, cursor, limit)
	if err != nil {
		s.appCtx.Logger.Error("GetLikers failed", "user", userID, "err", err)
		return nil, nil, svcErr.Map(err)
	}

	ids := make([]uint64, 0, len(likes))
	likedAt := make(map[uint64]int64, len(likes))
	for _, l := range likes {
		ids = append(ids, l.LikerID)
		likedAt[l.LikerID] = l.CreatedAt.UnixMilli()
	}
	candidates, err := s.builder.ByIDs(ctx, ids)
	if err != nil {
		return nil, nil, svcErr.Map(err)
	}

	out := make([]IncomingLike, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, IncomingLike{Candidate: c, LikedAt: likedAt[c.UserID]})
	}
	return out, next, nil
}

// CountIncomingLikes returns how many pending likes userID has.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:userID), refreshing the TTL.
//  2. On a miss or Redis failure, falls back to repository.CountLikers.
//  3. On DB fetch, updates Redis with a 1h TTL.
func (s *Service) CountIncomingLikes(ctx context.Context, userID uint64) (int64, error) {
	if rc := s.appCtx.RedisCache; rc != nil {
		n, ok, err := rc.GetLikeCount(ctx, userID)
		if err != nil {
			s.appCtx.Logger.Warn("like count cache read failed", "user", userID, "err", err)
		} else if ok {
			return n, nil
		}
	}

	count, err := s.likes.CountLikers(ctx, userID)
	if err != nil {
		return 0, svcErr.Map(err)
	}

	if rc := s.appCtx.RedisCache; rc != nil {
		if err := rc.UpdateLikeCount(ctx, userID, count); err != nil {
			s.appCtx.Logger.Warn("like count cache write failed", "user", userID, "err", err)
		}
	}
	return count, nil
}

// Matches returns the peers of every match of userID, newest match first.
func (s *Service) Matches(ctx context.Context, userID uint64) ([]view.Candidate, error) {
	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, repository.Peer(m, userID))
	}
	out, err := s.builder.ByIDs(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return out, nil
}

// Top returns the most liked users. Results are cached for cache.TopTTL
// per limit.
func (s *Service) Top(ctx context.Context, limit int) ([]TopEntry, error) {
	if limit == 0 {
		limit = DefaultTopLimit
	}
	if limit < 1 || limit > MaxTopLimit {
		return nil, svcErr.InvalidArgument("limit must be between 1 and 100")
	}

	rc := s.appCtx.RedisCache
	if rc != nil {
		var cached []TopEntry
		ok, err := rc.GetJSON(ctx, rc.KeyForTop(limit), &cached)
		if err != nil {
			s.appCtx.Logger.Warn("top cache read failed", "err", err)
		} else if ok {
			return cached, nil
		}
	}

	rows, err := s.likes.TopLiked(ctx, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	ids := make([]uint64, 0, len(rows))
	counts := make(map[uint64]int64, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
		counts[r.UserID] = r.Count
	}
	candidates, err := s.builder.ByIDs(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := make([]TopEntry, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, TopEntry{Candidate: c, LikesCount: counts[c.UserID]})
	}

	if rc != nil {
		if err := rc.SetJSON(ctx, rc.KeyForTop(limit), out, cache.TopTTL); err != nil {
			s.appCtx.Logger.Warn("top cache write failed", "err", err)
		}
	}
	return out, nil
}

func (s *Service) invalidateCounts(ctx context.Context, userIDs ...uint64) {
	if s.appCtx.RedisCache == nil {
		return
	}
	if err := s.appCtx.RedisCache.InvalidateLikeCounts(ctx, userIDs...); err != nil {
		s.appCtx.Logger.Warn("like count invalidation failed", "users", userIDs, "err", err)
	}
}
