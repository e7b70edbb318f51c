package profile_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/luvo/internal/app/apptest"
	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/db/dbtest"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/service/moderation"
	"github.com/oggyb/luvo/internal/service/photo"
	"github.com/oggyb/luvo/internal/service/profile"
)

func jpeg(name string) photo.File {
	data := []byte("fake-jpeg-" + name)
	return photo.File{Reader: bytes.NewReader(data), Size: int64(len(data)), ContentType: "image/jpeg", Name: name}
}

func newService(env *apptest.Env) *profile.Service {
	return profile.NewService(env.AppContext, photo.NewService(env.AppContext), moderation.NewService(env.AppContext))
}

func strp(s string) *string { return &s }

func validInput() profile.CreateInput {
	return profile.CreateInput{
		FirstName:         "Ann",
		Birthdate:         "1999-03-02",
		Gender:            db.GenderFemale,
		About:             "hi",
		InstagramUsername: "@Ann.Photo",
		Country:           "Uzbekistan",
		City:              "Tashkent",
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	svc := newService(env)

	u := db.User{TelegramUserID: 101}
	dbtest.CreateUsers(t, env.DB, &u)

	me, err := svc.Create(ctx, u.ID, validInput(), jpeg("selfie.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "Ann", me.FirstName)
	assert.Equal(t, "1999-03-02", me.Birthdate)
	assert.Equal(t, "ann.photo", me.InstagramUsername)
	assert.Equal(t, int64(101), me.TelegramUserID)
	require.Len(t, me.Photos, 1)

	var cases int64
	env.DB.Model(&db.ModerationCase{}).Where("user_id = ?", u.ID).Count(&cases)
	assert.Equal(t, int64(1), cases)

	_, err = svc.Create(ctx, u.ID, validInput(), jpeg("again.jpg"))
	assert.True(t, svcErr.Is(err, svcErr.KindConflict))
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	svc := newService(env)

	u := db.User{TelegramUserID: 101}
	dbtest.CreateUsers(t, env.DB, &u)

	cases := map[string]func(*profile.CreateInput){
		"missing name":    func(in *profile.CreateInput) { in.FirstName = "" },
		"bad date":        func(in *profile.CreateInput) { in.Birthdate = "02.03.1999" },
		"future birthday": func(in *profile.CreateInput) { in.Birthdate = "2999-01-01" },
		"bad gender":      func(in *profile.CreateInput) { in.Gender = "robot" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.Create(ctx, u.ID, in, jpeg("a.jpg"))
			assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument), err)
		})
	}

	_, err := svc.Create(ctx, u.ID, validInput(), photo.File{})
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument))

	var photos int64
	env.DB.Model(&db.Photo{}).Count(&photos)
	assert.Zero(t, photos)
}

func TestMeAndUpdate(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	svc := newService(env)

	blank := db.User{TelegramUserID: 100}
	dbtest.CreateUsers(t, env.DB, &blank)
	_, err := svc.Me(ctx, blank.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
	_, err = svc.Update(ctx, blank.ID, profile.UpdateInput{FirstName: strp("X")}, nil)
	assert.True(t, svcErr.Is(err, svcErr.KindPreconditionFailed))

	u := db.User{TelegramUserID: 101}
	dbtest.CreateUsers(t, env.DB, &u)
	_, err = svc.Create(ctx, u.ID, validInput(), jpeg("one.jpg"))
	require.NoError(t, err)

	me, err := svc.Update(ctx, u.ID, profile.UpdateInput{
		About:             strp("updated"),
		InstagramUsername: strp("@NEW"),
	}, []photo.File{jpeg("a.jpg"), jpeg("b.jpg")})
	require.NoError(t, err)
	assert.Equal(t, "Ann", me.FirstName)
	assert.Equal(t, "updated", me.About)
	assert.Equal(t, "new", me.InstagramUsername)
	assert.Len(t, me.Photos, 2)

	_, err = svc.Update(ctx, u.ID, profile.UpdateInput{FirstName: strp("")}, nil)
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidArgument))

	got, err := svc.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.About)
}

func TestPublic(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	svc := newService(env)

	ann := dbtest.Profile(1, "Ann", db.GenderFemale)
	blank := db.User{TelegramUserID: 2}
	dbtest.CreateUsers(t, env.DB, &ann, &blank)

	c, err := svc.Public(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", c.FirstName)

	_, err = svc.Public(ctx, blank.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
	_, err = svc.Public(ctx, 9999)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
}
