package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizen-card-cli/model"
)

func newTestPersister(t *testing.T) *Persister {
	t.Helper()
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	return NewPersister(kv, WithSnapshotDelay(time.Hour))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestAuthStore_LoginPersistsSession(t *testing.T) {
	api := &stubAuthAPI{loginResp: model.AuthResponse{Token: "tok-1", User: model.User{ID: "1", Email: "a@b.co", IsVerified: true}}}
	persist := newTestPersister(t)
	auth := NewAuthStore(api, persist, nil)

	require.NoError(t, auth.Login(context.Background(), model.Credentials{Email: "a@b.co", Password: "x"}))

	assert.Equal(t, "tok-1", auth.Token())
	assert.True(t, auth.IsAuthenticated())
	assert.True(t, auth.IsVerified())
	card, ok := auth.Card()
	require.True(t, ok)
	assert.Equal(t, "1111222233334444", card.CardNumber)

	var session model.Session
	ok, err := persist.Load(context.Background(), sessionKey, &session)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok-1", session.Token)
}

func TestAuthStore_LoginFailureRecordsError(t *testing.T) {
	api := &stubAuthAPI{loginErr: errStub}
	auth := NewAuthStore(api, nil, nil)

	err := auth.Login(context.Background(), model.Credentials{Email: "a@b.co", Password: "x"})
	require.ErrorIs(t, err, errStub)
	assert.Equal(t, errStub.Error(), auth.Err())
	assert.False(t, auth.IsAuthenticated())
	assert.False(t, auth.Loading())
}

func TestAuthStore_LogoutTwice(t *testing.T) {
	api := &stubAuthAPI{loginResp: model.AuthResponse{Token: "tok-1"}}
	auth := NewAuthStore(api, newTestPersister(t), nil)
	ctx := context.Background()

	var ended int32
	auth.OnSessionEnd(func() { atomic.AddInt32(&ended, 1) })

	require.NoError(t, auth.Login(ctx, model.Credentials{Email: "a@b.co", Password: "x"}))
	require.NoError(t, auth.Logout(ctx))
	require.NoError(t, auth.Logout(ctx))

	assert.Empty(t, auth.Token())
	_, ok := auth.User()
	assert.False(t, ok)
	assert.Equal(t, 1, api.logoutCalls, "server logout only while a session exists")
	assert.Equal(t, int32(2), atomic.LoadInt32(&ended))
}

func TestAuthStore_ConcurrentUnauthorizedTearsDownOnce(t *testing.T) {
	api := &stubAuthAPI{loginResp: model.AuthResponse{Token: "tok-1"}}
	auth := NewAuthStore(api, newTestPersister(t), nil)
	require.NoError(t, auth.Login(context.Background(), model.Credentials{Email: "a@b.co", Password: "x"}))

	var teardowns int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if auth.HandleUnauthorized("tok-1") {
				atomic.AddInt32(&teardowns, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), teardowns)
	assert.Empty(t, auth.Token())
}

func TestAuthStore_StaleUnauthorizedIgnored(t *testing.T) {
	api := &stubAuthAPI{loginResp: model.AuthResponse{Token: "tok-2"}}
	auth := NewAuthStore(api, nil, nil)
	require.NoError(t, auth.Login(context.Background(), model.Credentials{Email: "a@b.co", Password: "x"}))

	assert.False(t, auth.HandleUnauthorized("tok-1"))
	assert.False(t, auth.HandleUnauthorized(""))
	assert.Equal(t, "tok-2", auth.Token())
}

func TestAuthStore_InitAuthExpiredTokenSkipsNetwork(t *testing.T) {
	persist := newTestPersister(t)
	ctx := context.Background()
	expired := signedToken(t, time.Now().Add(-time.Hour))
	require.NoError(t, persist.Save(ctx, sessionKey, model.Session{Token: expired}))

	api := &stubAuthAPI{}
	auth := NewAuthStore(api, persist, nil)
	require.NoError(t, auth.InitAuth(ctx))

	assert.Empty(t, auth.Token())
	assert.Equal(t, 0, api.profileHits)
	ok, err := persist.Load(ctx, sessionKey, &model.Session{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthStore_InitAuthConfirmsWithProfile(t *testing.T) {
	persist := newTestPersister(t)
	ctx := context.Background()
	valid := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, persist.Save(ctx, sessionKey, model.Session{Token: valid}))

	api := &stubAuthAPI{profile: model.User{ID: "9", Email: "z@b.co"}}
	auth := NewAuthStore(api, persist, nil)
	require.NoError(t, auth.InitAuth(ctx))

	assert.Equal(t, valid, auth.Token())
	user, ok := auth.User()
	require.True(t, ok)
	assert.Equal(t, model.ID("9"), user.ID)
}

func TestAuthStore_InitAuthClearsOnProfileFailure(t *testing.T) {
	persist := newTestPersister(t)
	ctx := context.Background()
	require.NoError(t, persist.Save(ctx, sessionKey, model.Session{Token: "opaque-token"}))

	api := &stubAuthAPI{profileErr: errStub}
	auth := NewAuthStore(api, persist, nil)
	require.ErrorIs(t, auth.InitAuth(ctx), errStub)

	assert.Empty(t, auth.Token())
	assert.Equal(t, 1, api.profileHits)
}
