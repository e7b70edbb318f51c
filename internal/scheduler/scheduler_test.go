package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/luvo/internal/app/apptest"
	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/db/dbtest"
	"github.com/oggyb/luvo/internal/repository"
	"github.com/oggyb/luvo/internal/service/social"
)

func TestPremiumSweep(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)
	env.Config.Scheduler.PremiumSweepCron = "0 */15 * * * *"

	past := time.Now().UTC().Add(-time.Minute)
	u := db.User{TelegramUserID: 1, IsPremium: true, PremiumExpiresAt: &past}
	dbtest.CreateUsers(t, env.DB, &u)

	s := New(env.AppContext)
	require.NoError(t, s.RegisterDefaults(nil))
	require.NoError(t, s.RunNow(JobPremiumSweep))

	got, err := repository.NewUserRepository(env.DB).GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPremium)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.Metrics.JobRuns.WithLabelValues(JobPremiumSweep, "ok")))

	// no connector configured, so no sync job
	assert.Error(t, s.RunNow(JobSocialSync))
}

func TestSocialSyncJob(t *testing.T) {
	env := apptest.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(social.Graph{})
	}))
	t.Cleanup(srv.Close)
	env.Config.Instagram.ConnectorURL = srv.URL
	env.Config.Instagram.SyncCron = "0 0 4 * * *"

	u := dbtest.Profile(1, "Ann", db.GenderFemale)
	u.InstagramUsername = "ann"
	dbtest.CreateUsers(t, env.DB, &u)

	s := New(env.AppContext)
	sync := social.NewService(env.AppContext, social.NewHTTPConnector(srv.URL, time.Second))
	require.NoError(t, s.RegisterDefaults(sync))
	require.NoError(t, s.RunNow(JobSocialSync))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.Metrics.JobRuns.WithLabelValues(JobSocialSync, "ok")))
}

func TestRegister(t *testing.T) {
	env := apptest.New(t)
	s := New(env.AppContext)

	assert.Error(t, s.Register(Job{Name: "bad", Spec: "not a spec", Run: func(context.Context) error { return nil }}))
	assert.NoError(t, s.Register(Job{Name: "off", Run: func(context.Context) error { return nil }}))

	boom := Job{Name: "boom", Spec: "@every 1h", Run: func(context.Context) error { return errors.New("boom") }}
	require.NoError(t, s.Register(boom))
	assert.Error(t, s.Register(boom))

	assert.Error(t, s.RunNow("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.Metrics.JobRuns.WithLabelValues("boom", "error")))

	s.Start()
	s.Stop()
}
