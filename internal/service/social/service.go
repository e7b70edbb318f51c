// Package social mirrors users' Instagram follow graphs into
// instagram_connections, which the feed reads for ranking.
package social

import (
	"context"
	"strings"

	"github.com/oggyb/luvo/internal/app"
	"github.com/oggyb/luvo/internal/db"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/repository"
)

// SyncResult summarizes one sync.
type SyncResult struct {
	Subscriptions int `json:"subscriptions"`
	Followers     int `json:"followers"`
	Connections   int `json:"connections"`
}

type Service struct {
	appCtx    *app.AppContext
	users     *repository.UserRepository
	conns     *repository.ConnectionRepository
	connector Connector
}

func NewService(appCtx *app.AppContext, connector Connector) *Service {
	return &Service{
		appCtx:    appCtx,
		users:     repository.NewUserRepository(appCtx.DB),
		conns:     repository.NewConnectionRepository(appCtx.DB),
		connector: connector,
	}
}

// Normalize lowercases an Instagram username and strips a leading "@".
func Normalize(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// Sync refreshes the edges of userID from the connector.
// Only accounts registered here become edges; self-edges are dropped.
func (s *Service) Sync(ctx context.Context, userID uint64) (*SyncResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.sync(ctx, u)
}

func (s *Service) sync(ctx context.Context, u *db.User) (*SyncResult, error) {
	username := Normalize(u.InstagramUsername)
	if username == "" {
		return nil, svcErr.PreconditionFailed("set instagram_username in your profile first")
	}

	g, err := s.connector.Fetch(ctx, username)
	if err != nil {
		s.appCtx.Logger.Warn("instagram fetch failed", "user", u.ID, "err", err)
		return nil, svcErr.Map(err)
	}

	names := make([]string, 0, len(g.Subscriptions)+len(g.Followers))
	for _, n := range g.Subscriptions {
		names = append(names, Normalize(n))
	}
	for _, n := range g.Followers {
		names = append(names, Normalize(n))
	}
	ids, err := s.users.IDsByInstagram(ctx, names)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	type edge struct {
		id   uint64
		kind string
	}
	seen := make(map[edge]bool)
	var edges []db.InstagramConnection
	add := func(list []string, kind string) {
		for _, n := range list {
			id, ok := ids[Normalize(n)]
			if !ok || id == u.ID || seen[edge{id, kind}] {
				continue
			}
			seen[edge{id, kind}] = true
			edges = append(edges, db.InstagramConnection{ConnectedID: id, Type: kind})
		}
	}
	add(g.Subscriptions, db.ConnectionSubscription)
	add(g.Followers, db.ConnectionFollower)

	if err := s.conns.Replace(ctx, u.ID, edges); err != nil {
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Info("instagram synced", "user", u.ID, "edges", len(edges))
	return &SyncResult{
		Subscriptions: len(g.Subscriptions),
		Followers:     len(g.Followers),
		Connections:   len(edges),
	}, nil
}

// SyncAll re-syncs every user with an Instagram username. One failing
// account does not stop the run; failed counts them.
func (s *Service) SyncAll(ctx context.Context) (synced, failed int, err error) {
	users, err := s.users.ListWithInstagram(ctx)
	if err != nil {
		return 0, 0, svcErr.Map(err)
	}
	for i := range users {
		if ctx.Err() != nil {
			return synced, failed, svcErr.Map(ctx.Err())
		}
		if _, err := s.sync(ctx, &users[i]); err != nil {
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}
