// Package view maps users to the public Candidate projection shared by
// feed, likes, matches, battle and the leaderboard.
package view

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/repository"
	"github.com/oggyb/luvo/internal/storage"
)

const DateLayout = "2006-01-02"

// Candidate is what another user sees of a profile.
type Candidate struct {
	UserID            uint64    `json:"user_id"`
	FirstName         string    `json:"first_name"`
	Birthdate         string    `json:"birthdate,omitempty"`
	Age               int       `json:"age,omitempty"`
	Gender            string    `json:"gender"`
	About             string    `json:"about"`
	Country           string    `json:"country,omitempty"`
	City              string    `json:"city,omitempty"`
	District          string    `json:"district,omitempty"`
	Latitude          *float64  `json:"latitude,omitempty"`
	Longitude         *float64  `json:"longitude,omitempty"`
	TelegramUsername  string    `json:"telegram_username,omitempty"`
	InstagramUsername string    `json:"instagram_username,omitempty"`
	IsPremium         bool      `json:"is_premium"`
	Photos            []string  `json:"photos"`
	CreatedAt         time.Time `json:"created_at"`
}

// Builder resolves users and their active photo URLs.
type Builder struct {
	users  *repository.UserRepository
	photos *repository.PhotoRepository
	store  storage.ObjectStore
	now    func() time.Time
}

func NewBuilder(users *repository.UserRepository, photos *repository.PhotoRepository, store storage.ObjectStore) *Builder {
	return &Builder{users: users, photos: photos, store: store, now: time.Now}
}

// One maps a single loaded user.
func (b *Builder) One(ctx context.Context, u db.User) (Candidate, error) {
	keys, err := b.photos.ActiveKeys(ctx, []uint64{u.ID})
	if err != nil {
		return Candidate{}, err
	}
	return b.build(u, keys[u.ID]), nil
}

// ByIDs resolves ids in order. Ids of deleted users are skipped.
func (b *Builder) ByIDs(ctx context.Context, ids []uint64) ([]Candidate, error) {
	out := make([]Candidate, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var (
		users map[uint64]db.User
		keys  map[uint64][]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = b.users.GetByIDs(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		keys, err = b.photos.ActiveKeys(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			continue
		}
		out = append(out, b.build(u, keys[id]))
	}
	return out, nil
}

func (b *Builder) build(u db.User, keys []string) Candidate {
	c := Candidate{
		UserID:            u.ID,
		FirstName:         u.FirstName,
		Gender:            u.Gender,
		About:             u.About,
		Country:           u.Country,
		City:              u.City,
		District:          u.District,
		Latitude:          u.Latitude,
		Longitude:         u.Longitude,
		TelegramUsername:  u.TelegramUsername,
		InstagramUsername: u.InstagramUsername,
		IsPremium:         u.IsPremium,
		Photos:            make([]string, 0, len(keys)),
		CreatedAt:         u.CreatedAt,
	}
	if u.Birthdate != nil {
		c.Birthdate = u.Birthdate.Format(DateLayout)
		c.Age = Age(*u.Birthdate, b.now())
	}
	for _, k := range keys {
		c.Photos = append(c.Photos, b.store.URL(k))
	}
	return c
}

// Age is the number of full years between birth and now.
func Age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
