package view_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/db/dbtest"
	"github.com/oggyb/luvo/internal/repository"
	"github.com/oggyb/luvo/internal/service/view"
	"github.com/oggyb/luvo/internal/storage"
)

func TestAge(t *testing.T) {
	birth := time.Date(2000, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 24, view.Age(birth, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 25, view.Age(birth, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, view.Age(birth, time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestByIDs_KeepsOrderAndPhotoOrder(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)

	a := dbtest.Profile(1, "Anna", db.GenderFemale)
	b := dbtest.Profile(2, "Boris", db.GenderMale)
	dbtest.CreateUsers(t, gdb, &a, &b)

	photos := repository.NewPhotoRepository(gdb)
	require.NoError(t, photos.Create(ctx, &db.Photo{UserID: a.ID, S3Key: "u/1.jpg", IsActive: true}))
	require.NoError(t, photos.Create(ctx, &db.Photo{UserID: a.ID, S3Key: "u/2.jpg", IsActive: true}))
	require.NoError(t, photos.Create(ctx, &db.Photo{UserID: a.ID, S3Key: "u/old.jpg", IsActive: false}))

	builder := view.NewBuilder(repository.NewUserRepository(gdb), photos, storage.NewMemory("https://cdn"))
	got, err := builder.ByIDs(ctx, []uint64{b.ID, 999, a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Boris", got[0].FirstName)
	assert.Empty(t, got[0].Photos)
	assert.Equal(t, "Anna", got[1].FirstName)
	assert.Equal(t, []string{"https://cdn/u/1.jpg", "https://cdn/u/2.jpg"}, got[1].Photos)
	assert.Equal(t, "1998-05-17", got[1].Birthdate)
}
