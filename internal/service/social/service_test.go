package social_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/luvo/internal/app/apptest"
	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/db/dbtest"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/repository"
	"github.com/oggyb/luvo/internal/service/social"
)

func connectorServer(t *testing.T, graphs map[string]social.Graph) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/{name}/graph", func(w http.ResponseWriter, r *http.Request) {
		g, ok := graphs[r.PathValue("name")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(g)
	})
	mux.HandleFunc("/users/broken/graph", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func withInstagram(tgID int64, name, ig string) db.User {
	u := dbtest.Profile(tgID, name, db.GenderFemale)
	u.InstagramUsername = ig
	return u
}

func TestSync_StoresRegisteredEdges(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	ann := withInstagram(1, "Ann", "ann")
	bob := withInstagram(2, "Bob", "bob")
	cid := withInstagram(3, "Cid", "cid")
	dbtest.CreateUsers(t, env.DB, &ann, &bob, &cid)

	srv := connectorServer(t, map[string]social.Graph{
		"ann": {
			Subscriptions: []string{"bob", "@Cid", "stranger", "ann"},
			Followers:     []string{"bob", "bob"},
		},
	})
	svc := social.NewService(env.AppContext, social.NewHTTPConnector(srv.URL, time.Second))

	res, err := svc.Sync(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Subscriptions)
	assert.Equal(t, 3, res.Connections)

	conns := repository.NewConnectionRepository(env.DB)
	direct, err := conns.DirectIDs(ctx, ann.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{bob.ID, cid.ID}, direct)

	// a second sync replaces, never duplicates
	_, err = svc.Sync(ctx, ann.ID)
	require.NoError(t, err)
	var n int64
	env.DB.Model(&db.InstagramConnection{}).Count(&n)
	assert.Equal(t, int64(3), n)
}

func TestSync_Errors(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	noIG := dbtest.Profile(1, "Ann", db.GenderFemale)
	missing := withInstagram(2, "Bob", "ghost")
	broken := withInstagram(3, "Cid", "broken")
	dbtest.CreateUsers(t, env.DB, &noIG, &missing, &broken)

	srv := connectorServer(t, nil)
	svc := social.NewService(env.AppContext, social.NewHTTPConnector(srv.URL, time.Second))

	_, err := svc.Sync(ctx, noIG.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindPreconditionFailed))

	_, err = svc.Sync(ctx, missing.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	_, err = svc.Sync(ctx, broken.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindUpstream))

	unconfigured := social.NewService(env.AppContext, social.NewHTTPConnector("", time.Second))
	_, err = unconfigured.Sync(ctx, missing.ID)
	assert.True(t, svcErr.Is(err, svcErr.KindUnavailable))
}

func TestSyncAll_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	ann := withInstagram(1, "Ann", "ann")
	bob := withInstagram(2, "Bob", "broken")
	cid := withInstagram(3, "Cid", "cid")
	dbtest.CreateUsers(t, env.DB, &ann, &bob, &cid)

	srv := connectorServer(t, map[string]social.Graph{
		"ann": {Subscriptions: []string{"cid"}},
		"cid": {Followers: []string{"ann"}},
	})
	svc := social.NewService(env.AppContext, social.NewHTTPConnector(srv.URL, time.Second))

	synced, failed, err := svc.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 1, failed)
}
