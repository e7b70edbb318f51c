package battle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/luvo/internal/app/apptest"
	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/db/dbtest"
	svcErr "github.com/oggyb/luvo/internal/errors"
)

type fixture struct {
	env   *apptest.Env
	svc   *Service
	owner db.User
	women []db.User
}

func setup(t *testing.T, women int) fixture {
	t.Helper()
	env := apptest.New(t)
	svc := NewService(env.AppContext)
	svc.shuffle = func([]uint64) {}

	owner := dbtest.Profile(1, "Max", db.GenderMale)
	other := dbtest.Profile(2, "Leo", db.GenderMale)
	dbtest.CreateUsers(t, env.DB, &owner, &other)

	f := fixture{env: env, svc: svc, owner: owner}
	for i := 0; i < women; i++ {
		w := dbtest.Profile(int64(10+i), "W", db.GenderFemale)
		dbtest.CreateUsers(t, env.DB, &w)
		f.women = append(f.women, w)
	}
	return f
}

func profileIDs(st *Stage) []uint64 {
	var out []uint64
	for _, p := range st.Profiles {
		out = append(out, p.UserID)
	}
	return out
}

func TestPair_StartsOncePerDay(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 3)

	st, err := f.svc.Pair(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Stage)
	// newest women first, men never shown to a man
	assert.Equal(t, []uint64{f.women[2].ID, f.women[1].ID}, profileIDs(st))

	again, err := f.svc.Pair(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, profileIDs(st), profileIDs(again))

	var n int64
	f.env.DB.Model(&db.BattleSession{}).Count(&n)
	assert.Equal(t, int64(1), n)

	// a new day starts a new battle
	f.svc.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	_, err = f.svc.Pair(ctx, f.owner.ID)
	require.NoError(t, err)
	f.env.DB.Model(&db.BattleSession{}).Count(&n)
	assert.Equal(t, int64(2), n)
}

func TestPair_NotEnoughUsers(t *testing.T) {
	f := setup(t, 1)
	_, err := f.svc.Pair(context.Background(), f.owner.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
}

func TestVote_PlaysToFinal(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 3)

	_, err := f.svc.Vote(ctx, f.owner.ID, f.women[0].ID)
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument), "vote before start")

	st, err := f.svc.Pair(ctx, f.owner.ID)
	require.NoError(t, err)
	champion := st.Profiles[1].UserID

	_, err = f.svc.Vote(ctx, f.owner.ID, 9999)
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument))

	for round := 1; round < Rounds; round++ {
		st, err = f.svc.Vote(ctx, f.owner.ID, champion)
		require.NoError(t, err)
		assert.Equal(t, round+1, st.Stage)
		require.Len(t, st.Profiles, 2)
		// the winner keeps the right side
		assert.Equal(t, champion, st.Profiles[1].UserID)
		assert.NotEqual(t, champion, st.Profiles[0].UserID)
	}

	st, err = f.svc.Vote(ctx, f.owner.ID, champion)
	require.NoError(t, err)
	assert.Equal(t, Rounds, st.Stage)
	assert.Empty(t, st.Profiles)
	require.NotNil(t, st.FinalWinner)
	assert.Equal(t, champion, st.FinalWinner.UserID)

	// finished battles are stable
	st, err = f.svc.Vote(ctx, f.owner.ID, champion)
	require.NoError(t, err)
	assert.Equal(t, champion, st.FinalWinner.UserID)

	leaders, err := f.svc.Leaders(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, leaders)
	assert.Equal(t, champion, leaders[0].UserID)
	assert.Equal(t, int64(Rounds), leaders[0].Wins)
}

func TestVote_NoOpponentLeftRollsBack(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 2)

	st, err := f.svc.Pair(ctx, f.owner.ID)
	require.NoError(t, err)
	winner, loser := st.Profiles[0].UserID, st.Profiles[1].UserID

	require.NoError(t, f.env.DB.Exec("DELETE FROM users WHERE id = ?", loser).Error)

	_, err = f.svc.Vote(ctx, f.owner.ID, winner)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	var s db.BattleSession
	require.NoError(t, f.env.DB.First(&s).Error)
	assert.Equal(t, 0, s.CompletedRounds)

	var n int64
	f.env.DB.Model(&db.BattleResult{}).Count(&n)
	assert.Zero(t, n)
}

func TestLeaders_Validation(t *testing.T) {
	f := setup(t, 0)
	_, err := f.svc.Leaders(context.Background(), 101)
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument))
}
