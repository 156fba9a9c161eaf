package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "sid", "secret", time.Hour, false), mr
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestAnonymousSessionIsNotPersisted(t *testing.T) {
	sm, mr := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))
	assert.Empty(t, rec.Result().Cookies())
	assert.Empty(t, mr.Keys())
}

func TestCommitThenLoadRestoresUser(t *testing.T) {
	sm, mr := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("42")
	sess.Set("k", "v")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, sm.sign(sess.ID), cookie.Value)
	assert.True(t, mr.Exists(sm.redisKey(sess.ID)))
	assert.Equal(t, time.Hour, mr.TTL(sm.redisKey(sess.ID)))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookie)
	loaded, err := sm.Load(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "42", loaded.User())
	assert.Equal(t, "v", loaded.Get("k"))
}

func TestUnknownSessionIDIsNotResurrected(t *testing.T) {
	sm, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sm.sign("forged")})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "forged", sess.ID)
	assert.Empty(t, sess.User())
}

func TestTamperedCookieStartsFreshSession(t *testing.T) {
	sm, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("42")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))

	forged := httptest.NewRequest(http.MethodGet, "/", nil)
	forged.AddCookie(&http.Cookie{Name: "sid", Value: sess.ID})
	loaded, err := sm.Load(context.Background(), forged)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, loaded.ID)
	assert.Empty(t, loaded.User())

	other := &SessionManager{secret: []byte("other-secret")}
	resigned := httptest.NewRequest(http.MethodGet, "/", nil)
	resigned.AddCookie(&http.Cookie{Name: "sid", Value: other.sign(sess.ID)})
	loaded, err = sm.Load(context.Background(), resigned)
	require.NoError(t, err)
	assert.Empty(t, loaded.User())
	assert.Contains(t, sessionCookie(t, rec).Value, sess.ID+".")
}

func TestUntouchedSessionSlidesExpiry(t *testing.T) {
	sm, mr := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("42")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))

	mr.FastForward(30 * time.Minute)
	require.Equal(t, 30*time.Minute, mr.TTL(sm.redisKey(sess.ID)))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(sessionCookie(t, rec))
	loaded, err := sm.Load(context.Background(), next)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, loaded))
	assert.Equal(t, time.Hour, mr.TTL(sm.redisKey(sess.ID)))
	assert.Equal(t, 3600, sessionCookie(t, rec).MaxAge)
}

func TestRegenerateDropsPreviousKey(t *testing.T) {
	sm, mr := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("1")
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), sess))
	oldID := sess.ID

	sm.Regenerate(sess)
	require.NotEqual(t, oldID, sess.ID)
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), sess))

	assert.False(t, mr.Exists(sm.redisKey(oldID)))
	assert.True(t, mr.Exists(sm.redisKey(sess.ID)))
}

func TestDestroyExpiresCookieAndKey(t *testing.T) {
	sm, mr := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("1")
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), sess))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
	assert.Empty(t, mr.Keys())
}

func TestMiddlewareCommitsBeforeBody(t *testing.T) {
	sm, _ := newTestManager(t)
	h := sm.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SessionFromContext(r.Context()).SetUser("7")
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, sessionCookie(t, rec).Value)
}

func TestMiddlewareFailsWhenStoreIsDown(t *testing.T) {
	sm, mr := newTestManager(t)
	mr.Close()
	h := sm.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sm.sign("abc")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
