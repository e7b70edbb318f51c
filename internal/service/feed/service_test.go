package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/luvo/internal/app/apptest"
	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/db/dbtest"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/repository"
)

func ids(t *testing.T, svc *Service, viewer uint64, limit, offset int) []uint64 {
	t.Helper()
	got, err := svc.GetFeed(context.Background(), viewer, limit, offset)
	require.NoError(t, err)
	out := make([]uint64, 0, len(got))
	for _, c := range got {
		out = append(out, c.UserID)
	}
	return out
}

func TestGetFeed_GenderAndExclusions(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	svc := NewService(env.AppContext)

	viewer := dbtest.Profile(1, "Max", db.GenderMale)
	w1 := dbtest.Profile(2, "Ann", db.GenderFemale)
	w2 := dbtest.Profile(3, "Eva", db.GenderFemale)
	w3 := dbtest.Profile(4, "Ira", db.GenderFemale)
	m1 := dbtest.Profile(5, "Leo", db.GenderMale)
	noProfile := db.User{TelegramUserID: 6, Gender: db.GenderFemale}
	dbtest.CreateUsers(t, env.DB, &viewer, &w1, &w2, &w3, &m1, &noProfile)

	_, err := repository.NewLikeRepository(env.DB).Create(ctx, viewer.ID, w1.ID)
	require.NoError(t, err)

	// newest first, liked and other gender excluded
	assert.Equal(t, []uint64{w3.ID, w2.ID}, ids(t, svc, viewer.ID, 10, 0))

	n, err := repository.NewFeedViewRepository(env.DB).Count(ctx, viewer.ID, w3.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetFeed_SeenUsersDropOut(t *testing.T) {
	env := apptest.New(t)
	svc := NewService(env.AppContext)

	viewer := dbtest.Profile(1, "Ann", db.GenderFemale)
	a := dbtest.Profile(2, "Bob", db.GenderMale)
	b := dbtest.Profile(3, "Cid", db.GenderMale)
	dbtest.CreateUsers(t, env.DB, &viewer, &a, &b)

	assert.Equal(t, []uint64{b.ID}, ids(t, svc, viewer.ID, 1, 0))
	assert.Equal(t, []uint64{a.ID}, ids(t, svc, viewer.ID, 1, 0))
	assert.Empty(t, ids(t, svc, viewer.ID, 1, 0))
}

func TestGetFeed_TieredBySocialGraph(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	svc := NewService(env.AppContext)

	viewer := dbtest.Profile(1, "Max", db.GenderOther)
	friend := dbtest.Profile(2, "Ann", db.GenderFemale)
	friendOfFriend := dbtest.Profile(3, "Eva", db.GenderFemale)
	stranger := dbtest.Profile(4, "Ira", db.GenderFemale)
	dbtest.CreateUsers(t, env.DB, &viewer, &friend, &friendOfFriend, &stranger)

	conns := repository.NewConnectionRepository(env.DB)
	require.NoError(t, conns.Replace(ctx, viewer.ID, []db.InstagramConnection{
		{ConnectedID: friend.ID, Type: db.ConnectionSubscription},
	}))
	require.NoError(t, conns.Replace(ctx, friend.ID, []db.InstagramConnection{
		{ConnectedID: friendOfFriend.ID, Type: db.ConnectionFollower},
		{ConnectedID: viewer.ID, Type: db.ConnectionFollower},
	}))

	assert.Equal(t, []uint64{friend.ID, friendOfFriend.ID, stranger.ID}, ids(t, svc, viewer.ID, 10, 0))
}

func TestGetFeed_OffsetPastEndSamplesPool(t *testing.T) {
	env := apptest.New(t)
	svc := NewService(env.AppContext)
	svc.shuffle = func([]uint64) {}

	viewer := dbtest.Profile(1, "Ann", db.GenderFemale)
	a := dbtest.Profile(2, "Bob", db.GenderMale)
	b := dbtest.Profile(3, "Cid", db.GenderMale)
	dbtest.CreateUsers(t, env.DB, &viewer, &a, &b)

	assert.Equal(t, []uint64{b.ID}, ids(t, svc, viewer.ID, 1, 5))
}

func TestGetFeed_Validation(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	svc := NewService(env.AppContext)

	viewer := dbtest.Profile(1, "Ann", db.GenderFemale)
	empty := db.User{TelegramUserID: 2}
	dbtest.CreateUsers(t, env.DB, &viewer, &empty)

	_, err := svc.GetFeed(ctx, viewer.ID, -1, 0)
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument))
	_, err = svc.GetFeed(ctx, viewer.ID, 51, 0)
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument))
	assert.Contains(t, svcErr.PublicMessage(err), "between 1 and 50")
	_, err = svc.GetFeed(ctx, viewer.ID, 10, -1)
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument))

	_, err = svc.GetFeed(ctx, empty.ID, 10, 0)
	assert.True(t, svcErr.Is(err, svcErr.KindPreconditionFailed))
	_, err = svc.GetFeed(ctx, empty.ID, 0, 0)
	assert.True(t, svcErr.Is(err, svcErr.KindPreconditionFailed))

	// empty pool is not an error
	got, err := svc.GetFeed(ctx, viewer.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetFeed_ZeroLimitUsesConfiguredDefault(t *testing.T) {
	env := apptest.New(t)
	env.Config.Feed.DefaultLimit = 2
	svc := NewService(env.AppContext)

	viewer := dbtest.Profile(1, "Max", db.GenderMale)
	w1 := dbtest.Profile(2, "Ann", db.GenderFemale)
	w2 := dbtest.Profile(3, "Eva", db.GenderFemale)
	w3 := dbtest.Profile(4, "Ira", db.GenderFemale)
	dbtest.CreateUsers(t, env.DB, &viewer, &w1, &w2, &w3)

	assert.Equal(t, []uint64{w3.ID, w2.ID}, ids(t, svc, viewer.ID, 0, 0))

	env.Config.Feed.DefaultLimit = 0
	assert.Equal(t, []uint64{w1.ID}, ids(t, svc, viewer.ID, 0, 0))
}
