package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/luvo/internal/app/apptest"
	"github.com/oggyb/luvo/internal/db"
	"github.com/oggyb/luvo/internal/db/dbtest"
	"github.com/oggyb/luvo/internal/service/auth"
	"github.com/oggyb/luvo/internal/service/moderation"
	"github.com/oggyb/luvo/internal/service/social"
)

type harness struct {
	t   *testing.T
	env *apptest.Env
	srv *HTTPServer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := apptest.New(t)
	svc := NewServices(env.AppContext, moderation.NewService(env.AppContext), social.NewHTTPConnector("", time.Second))
	return &harness{t: t, env: env, srv: NewHTTPServer(env.AppContext, svc)}
}

func (h *harness) token(userID uint64) string {
	tok, err := h.srv.svc.Auth.Issue(userID)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(req *http.Request, token string) (int, map[string]any, []byte) {
	h.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.srv.App().Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)
	return resp.StatusCode, obj, raw
}

func (h *harness) json(method, path, token string, body any) (int, map[string]any, []byte) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.do(req, token)
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, fileField string, files ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range files {
		fw, err := w.CreateFormFile(fileField, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("jpeg-bytes-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestPingAndHealth(t *testing.T) {
	h := newHarness(t)

	status, body, _ := h.json(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body, _ = h.json(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	status, body, _ := h.json(http.MethodGet, "/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "authorization required", body["detail"])

	status, _, _ = h.json(http.MethodGet, "/feed", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginThenCreateProfile(t *testing.T) {
	h := newHarness(t)

	vals := url.Values{}
	vals.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	vals.Set("user", `{"id":4242,"username":"ann"}`)
	vals.Set("hash", auth.Sign(vals, h.env.Config.Telegram.BotToken))

	status, body, _ := h.json(http.MethodPost, "/auth", "", map[string]string{"init_data": vals.Encode()})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, false, body["has_profile"])
	token := body["access_token"].(string)

	status, _, _ = h.json(http.MethodGet, "/users/me", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	req := multipartRequest(t, http.MethodPost, "/users", map[string]string{
		"first_name": "Ann",
		"birthdate":  "1999-01-02",
		"gender":     "female",
		"about":      "hi",
	}, "file", "me.jpg")
	status, body, raw := h.do(req, token)
	require.Equal(t, http.StatusCreated, status, string(raw))
	assert.Equal(t, "Ann", body["first_name"])
	assert.Equal(t, float64(4242), body["telegram_user_id"])

	req = multipartRequest(t, http.MethodPut, "/users/me", map[string]string{"about": "new bio"}, "photos", "a.jpg", "b.jpg")
	status, body, raw = h.do(req, token)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, "new bio", body["about"])
	assert.Len(t, body["photos"], 2)

	status, body, _ = h.json(http.MethodPost, "/auth", "", map[string]string{"init_data": "hash=deadbeef&auth_date=1"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.NotEmpty(t, body["detail"])
}

func TestLikeMatchFlow(t *testing.T) {
	h := newHarness(t)
	ann := dbtest.Profile(1, "Ann", db.GenderFemale)
	bob := dbtest.Profile(2, "Bob", db.GenderMale)
	dbtest.CreateUsers(t, h.env.DB, &ann, &bob)
	annTok, bobTok := h.token(ann.ID), h.token(bob.ID)

	status, _, _ := h.json(http.MethodGet, "/feed", bobTok, nil)
	require.Equal(t, http.StatusOK, status)

	status, body, _ := h.json(http.MethodPost, "/interactions/like/"+strconv.FormatUint(ann.ID, 10), bobTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["matched"])

	status, body, _ = h.json(http.MethodGet, "/interactions/likes/count", annTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, body, _ = h.json(http.MethodGet, "/interactions/likes?limit=10", annTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)

	status, body, _ = h.json(http.MethodPost, "/interactions/like/"+strconv.FormatUint(bob.ID, 10), annTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["matched"])

	status, _, raw := h.json(http.MethodGet, "/interactions/matches", bobTok, nil)
	require.Equal(t, http.StatusOK, status)
	var matches []map[string]any
	require.NoError(t, json.Unmarshal(raw, &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "Ann", matches[0]["first_name"])

	status, _, _ = h.json(http.MethodDelete, "/interactions/like/"+strconv.FormatUint(ann.ID, 10), bobTok, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _, _ = h.json(http.MethodPost, "/interactions/like/abc", bobTok, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _, _ = h.json(http.MethodPost, "/interactions/like/"+strconv.FormatUint(bob.ID, 10), bobTok, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _, _ = h.json(http.MethodGet, "/interactions/likes?limit=x", annTok, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFeedWithoutProfile(t *testing.T) {
	h := newHarness(t)
	blank := db.User{TelegramUserID: 9}
	dbtest.CreateUsers(t, h.env.DB, &blank)

	status, _, _ := h.json(http.MethodGet, "/feed", h.token(blank.ID), nil)
	assert.Equal(t, http.StatusPreconditionFailed, status)
}

func TestBattleVoteValidation(t *testing.T) {
	h := newHarness(t)
	max := dbtest.Profile(1, "Max", db.GenderMale)
	dbtest.CreateUsers(t, h.env.DB, &max)

	status, _, _ := h.json(http.MethodPost, "/battle/vote", h.token(max.ID), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = h.json(http.MethodGet, "/battle/pair", h.token(max.ID), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPhotosAndSync(t *testing.T) {
	h := newHarness(t)
	ann := dbtest.Profile(1, "Ann", db.GenderFemale)
	ann.InstagramUsername = "ann"
	dbtest.CreateUsers(t, h.env.DB, &ann)
	tok := h.token(ann.ID)

	status, body, _ := h.do(multipartRequest(t, http.MethodPost, "/photos", nil, "file", "x.png"), tok)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["is_general"])
	id := strconv.FormatFloat(body["photo_id"].(float64), 'f', 0, 64)

	status, _, _ = h.json(http.MethodDelete, "/photos/"+id, tok, nil)
	assert.Equal(t, http.StatusBadRequest, status, "last photo is kept")

	status, _, _ = h.json(http.MethodPost, "/instagram/sync", tok, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestLocationsAndAdmin(t *testing.T) {
	h := newHarness(t)

	status, _, raw := h.json(http.MethodGet, "/locations/countries", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(string(raw), "Uzbekistan"))

	status, _, _ = h.json(http.MethodGet, "/locations/cities?country=Atlantis", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _, _ = h.json(http.MethodGet, "/locations/districts?country=Russia", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = h.json(http.MethodPost, "/admin/reset-db", "", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.json(http.MethodGet, "/ping", "", nil)

	status, _, raw := h.json(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "luvo_")
}
