// Package battle implements the daily "who is hotter" mini-game: the
// owner picks a winner of each pair, the winner stays and meets a fresh
// opponent until the final round.
package battle

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/luvo/internal/app"
	"github.com/oggyb/luvo/internal/db"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/repository"
	"github.com/oggyb/luvo/internal/service/view"
)

const (
	Rounds = 15

	DefaultLeadersLimit = 20
	MaxLeadersLimit     = 100
)

// Stage is what the owner currently sees.
type Stage struct {
	Stage       int              `json:"stage"`
	Profiles    []view.Candidate `json:"profiles"`
	FinalWinner *view.Candidate  `json:"final_winner"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Leader is one battle leaderboard row.
type Leader struct {
	view.Candidate
	Wins int64 `json:"wins"`
}

type Service struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	feed    *repository.FeedRepository
	battles *repository.BattleRepository
	builder *view.Builder

	now     func() time.Time
	shuffle func(ids []uint64)
}

func NewService(appCtx *app.AppContext) *Service {
	users := repository.NewUserRepository(appCtx.DB)
	return &Service{
		appCtx:  appCtx,
		users:   users,
		feed:    repository.NewFeedRepository(appCtx.DB),
		battles: repository.NewBattleRepository(appCtx.DB),
		builder: view.NewBuilder(users, repository.NewPhotoRepository(appCtx.DB), appCtx.Storage),
		now:     time.Now,
		shuffle: func(ids []uint64) {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		},
	}
}

func (s *Service) today() string {
	return s.now().UTC().Format(view.DateLayout)
}

// draw returns up to n random user ids the owner may be shown.
func (s *Service) draw(ctx context.Context, f *repository.FeedRepository, owner *db.User, exclude []uint64, n int) ([]uint64, error) {
	ids, err := f.ProfileIDs(ctx, exclude, repository.PreferredGender(owner.Gender))
	if err != nil {
		return nil, err
	}
	s.shuffle(ids)
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids, nil
}

// Pair returns the current stage of today's battle, starting one with
// two random users when the owner has not played today.
func (s *Service) Pair(ctx context.Context, ownerID uint64) (*Stage, error) {
	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	day := s.today()
	session, err := s.battles.Session(ctx, owner.ID, day)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if session == nil {
		session, err = s.start(ctx, owner, day)
		if err != nil {
			return nil, err
		}
	}
	return s.stage(ctx, session)
}

func (s *Service) start(ctx context.Context, owner *db.User, day string) (*db.BattleSession, error) {
	ids, err := s.draw(ctx, s.feed, owner, []uint64{owner.ID}, 2)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if len(ids) < 2 {
		return nil, svcErr.NotFound("not enough users for a battle")
	}

	session := &db.BattleSession{OwnerID: owner.ID, BattleDate: day, LeftID: &ids[0], RightID: &ids[1]}
	err = s.battles.CreateSession(ctx, session)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent request started the battle first
		session, err = s.battles.Session(ctx, owner.ID, day)
		if err == nil && session == nil {
			err = gorm.ErrRecordNotFound
		}
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	s.appCtx.Logger.Debug("battle started", "owner", owner.ID, "day", day)
	return session, nil
}

// Vote records winnerID as the winner of the current pair.
//
// Behavior:
//   - InvalidArgument when no battle runs today or winnerID is not in the pair.
//   - The winner keeps its side and meets a random new opponent.
//   - After the last round the winner becomes final and the pair is cleared.
//   - Voting on a finished battle returns the final stage unchanged.
//   - NotFound, with nothing recorded, when no opponent is left.
func (s *Service) Vote(ctx context.Context, ownerID, winnerID uint64) (*Stage, error) {
	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	day := s.today()
	var session *db.BattleSession
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		battles := s.battles.WithTx(tx)

		cur, err := battles.Session(ctx, owner.ID, day)
		if err != nil {
			return err
		}
		if cur == nil {
			return svcErr.InvalidArgument("battle has not started yet")
		}
		session = cur
		if cur.CompletedRounds >= Rounds {
			return nil
		}

		var loser *uint64
		onLeft := cur.LeftID != nil && *cur.LeftID == winnerID
		switch {
		case onLeft:
			loser = cur.RightID
		case cur.RightID != nil && *cur.RightID == winnerID:
			loser = cur.LeftID
		default:
			return svcErr.InvalidArgument("winner is not part of the current pair")
		}

		cur.CompletedRounds++
		if cur.CompletedRounds >= Rounds {
			w := winnerID
			cur.FinalWinnerID = &w
			cur.LeftID, cur.RightID = nil, nil
		} else {
			ids, err := s.draw(ctx, repository.NewFeedRepository(tx), owner, []uint64{owner.ID, winnerID}, 1)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return svcErr.NotFound("no opponents left")
			}
			opponent := ids[0]
			if onLeft {
				cur.RightID = &opponent
			} else {
				cur.LeftID = &opponent
			}
		}

		if loser != nil {
			if err := battles.RecordResult(ctx, winnerID, *loser); err != nil {
				return err
			}
		}
		return battles.SaveSession(ctx, cur)
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.stage(ctx, session)
}

func (s *Service) stage(ctx context.Context, session *db.BattleSession) (*Stage, error) {
	out := &Stage{Profiles: []view.Candidate{}, UpdatedAt: session.UpdatedAt}

	if session.FinalWinnerID != nil {
		winners, err := s.builder.ByIDs(ctx, []uint64{*session.FinalWinnerID})
		if err != nil {
			return nil, svcErr.Map(err)
		}
		if len(winners) == 0 {
			return nil, svcErr.NotFound("winner is no longer available")
		}
		out.Stage = Rounds
		out.FinalWinner = &winners[0]
		return out, nil
	}

	var ids []uint64
	for _, id := range []*uint64{session.LeftID, session.RightID} {
		if id != nil {
			ids = append(ids, *id)
		}
	}
	profiles, err := s.builder.ByIDs(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if len(profiles) < 2 {
		return nil, svcErr.NotFound("not enough users for a battle")
	}
	out.Profiles = profiles
	out.Stage = min(session.CompletedRounds+1, Rounds)
	return out, nil
}

// Leaders returns users ordered by battle wins.
func (s *Service) Leaders(ctx context.Context, limit int) ([]Leader, error) {
	if limit == 0 {
		limit = DefaultLeadersLimit
	}
	if limit < 1 || limit > MaxLeadersLimit {
		return nil, svcErr.InvalidArgument("limit must be between 1 and 100")
	}

	rows, err := s.battles.Leaders(ctx, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	ids := make([]uint64, 0, len(rows))
	wins := make(map[uint64]int64, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
		wins[r.UserID] = r.Count
	}
	candidates, err := s.builder.ByIDs(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]Leader, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Leader{Candidate: c, Wins: wins[c.UserID]})
	}
	return out, nil
}
