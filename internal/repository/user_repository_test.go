package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/db/dbtest"
	"github.com/oggyb/luvo/internal/repository"
)

func TestFindOrCreateByTelegramID(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewUserRepository(dbtest.New(t))

	u, created, err := repo.FindOrCreateByTelegramID(ctx, 777, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, u.ID)
	assert.False(t, u.HasProfile())

	again, created, err := repo.FindOrCreateByTelegramID(ctx, 777, "alice_new")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "alice_new", again.TelegramUsername)
}

func TestExpirePremiums(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	repo := repository.NewUserRepository(dbase)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	expired := db.User{TelegramUserID: 1, IsPremium: true, PremiumExpiresAt: &past}
	active := db.User{TelegramUserID: 2, IsPremium: true, PremiumExpiresAt: &future}
	dbtest.CreateUsers(t, dbase, &expired, &active)

	n, err := repo.ExpirePremiums(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, _ := repo.GetByID(ctx, expired.ID)
	assert.False(t, got.IsPremium)
	got, _ = repo.GetByID(ctx, active.ID)
	assert.True(t, got.IsPremium)
}

func TestDeleteCascade(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	users := repository.NewUserRepository(dbase)

	a := dbtest.Profile(1, "Anna", db.GenderFemale)
	b := dbtest.Profile(2, "Boris", db.GenderMale)
	dbtest.CreateUsers(t, dbase, &a, &b)

	require.NoError(t, dbase.Create(&db.Photo{UserID: a.ID, S3Key: "photos/a.jpg", IsActive: true}).Error)
	require.NoError(t, dbase.Create(&db.Photo{UserID: b.ID, S3Key: "photos/b.jpg", IsActive: true}).Error)
	_, _ = repository.NewLikeRepository(dbase).Create(ctx, a.ID, b.ID)
	_, _ = repository.NewLikeRepository(dbase).Create(ctx, b.ID, a.ID)
	_, _ = repository.NewMatchRepository(dbase).Create(ctx, a.ID, b.ID)
	_ = repository.NewFeedViewRepository(dbase).Mark(ctx, b.ID, a.ID)
	require.NoError(t, dbase.Create(&db.InstagramConnection{UserID: b.ID, ConnectedID: a.ID, Type: db.ConnectionFollower}).Error)
	require.NoError(t, dbase.Create(&db.BattleResult{WinnerID: a.ID, LoserID: b.ID}).Error)
	left := a.ID
	require.NoError(t, dbase.Create(&db.BattleSession{OwnerID: b.ID, BattleDate: "2025-01-01", LeftID: &left}).Error)

	purged, err := users.DeleteCascade(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"photos/a.jpg"}, purged.PhotoKeys)
	assert.Equal(t, []uint64{b.ID}, purged.LikedIDs)

	_, err = users.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	for _, table := range []string{"likes", "matches", "feed_views", "instagram_connections", "battle_results"} {
		var n int64
		dbase.Table(table).Count(&n)
		assert.Zero(t, n, table)
	}
	var photos int64
	dbase.Model(&db.Photo{}).Count(&photos)
	assert.Equal(t, int64(1), photos)

	var s db.BattleSession
	require.NoError(t, dbase.First(&s).Error)
	assert.Nil(t, s.LeftID)

	_, err = users.DeleteCascade(ctx, a.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestIDsByInstagram(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	repo := repository.NewUserRepository(dbase)

	a := db.User{TelegramUserID: 1, InstagramUsername: "anna"}
	b := db.User{TelegramUserID: 2}
	dbtest.CreateUsers(t, dbase, &a, &b)

	ids, err := repo.IDsByInstagram(ctx, []string{"anna", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"anna": a.ID}, ids)

	withIG, err := repo.ListWithInstagram(ctx)
	require.NoError(t, err)
	require.Len(t, withIG, 1)
	assert.Equal(t, a.ID, withIG[0].ID)
}
