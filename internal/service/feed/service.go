package feed

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/oggyb/luvo/internal/app"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/repository"
	"github.com/oggyb/luvo/internal/service/view"
)

// DefaultLimit is used when neither the request nor the config sets one.
const DefaultLimit = 10

// Service selects feed batches.
type Service struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	feed    *repository.FeedRepository
	conns   *repository.ConnectionRepository
	views   *repository.FeedViewRepository
	builder *view.Builder

	shuffle func(ids []uint64)
}

func NewService(appCtx *app.AppContext) *Service {
	users := repository.NewUserRepository(appCtx.DB)
	return &Service{
		appCtx:  appCtx,
		users:   users,
		feed:    repository.NewFeedRepository(appCtx.DB),
		conns:   repository.NewConnectionRepository(appCtx.DB),
		views:   repository.NewFeedViewRepository(appCtx.DB),
		builder: view.NewBuilder(users, repository.NewPhotoRepository(appCtx.DB), appCtx.Storage),
		shuffle: func(ids []uint64) {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		},
	}
}

// GetFeed returns the next batch of candidates for viewerID.
//
// Behavior:
//   - limit 0 means Feed.DefaultLimit; otherwise it must be within
//     1..Feed.MaxLimit. offset >= 0.
//   - A viewer without a profile gets PreconditionFailed.
//   - The pool excludes the viewer, liked, matched and already seen users,
//     and users without a profile; male viewers see women and vice versa.
//   - The pool is ranked in tiers: direct Instagram connections, then their
//     connections, then everyone else; newest users first inside a tier.
//   - offset/limit apply to the ranked list. An empty page over a non-empty
//     pool falls back to a random sample of the pool.
//   - Every returned candidate is recorded as viewed.
func (s *Service) GetFeed(ctx context.Context, viewerID uint64, limit, offset int) ([]view.Candidate, error) {
	maxLimit := s.appCtx.Config.Feed.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 50
	}
	if limit == 0 {
		limit = s.appCtx.Config.Feed.DefaultLimit
		if limit <= 0 || limit > maxLimit {
			limit = min(DefaultLimit, maxLimit)
		}
	}
	if limit < 1 || limit > maxLimit {
		return nil, svcErr.InvalidArgument(fmt.Sprintf("limit must be between 1 and %d", maxLimit))
	}
	if offset < 0 {
		return nil, svcErr.InvalidArgument("offset must not be negative")
	}

	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !viewer.HasProfile() {
		return nil, svcErr.PreconditionFailed("profile not completed")
	}

	pool, err := s.feed.PoolIDs(ctx, viewer.ID, repository.PreferredGender(viewer.Gender))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if len(pool) == 0 {
		return []view.Candidate{}, nil
	}

	ranked, err := s.rank(ctx, viewer.ID, pool)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	var page []uint64
	if offset < len(ranked) {
		end := offset + limit
		if end > len(ranked) {
			end = len(ranked)
		}
		page = ranked[offset:end]
	}
	if len(page) == 0 {
		page = s.sample(pool, limit)
	}

	if err := s.views.Mark(ctx, viewer.ID, page...); err != nil {
		return nil, svcErr.Map(err)
	}

	candidates, err := s.builder.ByIDs(ctx, page)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	s.appCtx.Metrics.FeedServed.Add(float64(len(candidates)))
	s.appCtx.Logger.Debug("feed served",
		"viewer", viewer.ID, "pool", len(pool), "served", len(candidates), "offset", offset)
	return candidates, nil
}

// rank orders pool by social tier, keeping pool order inside a tier.
func (s *Service) rank(ctx context.Context, viewerID uint64, pool []uint64) ([]uint64, error) {
	direct, err := s.conns.DirectIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(direct) == 0 {
		return pool, nil
	}
	second, err := s.conns.SecondDegreeIDs(ctx, direct)
	if err != nil {
		return nil, err
	}

	tier1 := make(map[uint64]bool, len(direct))
	for _, id := range direct {
		tier1[id] = true
	}
	tier2 := make(map[uint64]bool, len(second))
	for _, id := range second {
		if !tier1[id] && id != viewerID {
			tier2[id] = true
		}
	}

	ranked := make([]uint64, 0, len(pool))
	var t2, t3 []uint64
	for _, id := range pool {
		switch {
		case tier1[id]:
			ranked = append(ranked, id)
		case tier2[id]:
			t2 = append(t2, id)
		default:
			t3 = append(t3, id)
		}
	}
	ranked = append(ranked, t2...)
	return append(ranked, t3...), nil
}

func (s *Service) sample(pool []uint64, limit int) []uint64 {
	ids := append([]uint64(nil), pool...)
	s.shuffle(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}
