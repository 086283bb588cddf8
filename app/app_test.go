package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizen-card-cli/config"
	"citizen-card-cli/fakeapi"
	"citizen-card-cli/model"
	"citizen-card-cli/router"
	"citizen-card-cli/store"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestApp(t *testing.T) (*App, *fakeapi.Server, *httptest.Server) {
	t.Helper()
	backend := fakeapi.New(fakeapi.DefaultSeed(), fakeapi.Config{})
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	v, err := config.LoadConfig(writeEmptyConfig(t))
	require.NoError(t, err)
	cfg, err := config.ParseConfig(v)
	require.NoError(t, err)
	cfg.API.BaseURL = ts.URL + fakeapi.APIPrefix
	cfg.Storage.Dir = t.TempDir()

	a, err := New(context.Background(), cfg, WithHTTPClient(ts.Client()), WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a, backend, ts
}

func writeEmptyConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", root)
	path := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))
	return path
}

func login(t *testing.T, a *App) {
	t.Helper()
	require.NoError(t, a.Auth.Login(context.Background(), model.Credentials{Email: "demo@citizen.example", Password: "Demo1234!"}))
}

func TestLogin_TokenReachesBackend(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx := context.Background()

	require.Error(t, a.Wallet.FetchWalletInfo(ctx))
	login(t, a)
	require.NoError(t, a.Wallet.FetchWalletInfo(ctx))
	assert.Equal(t, 1500.0, a.Wallet.CurrentBalance())

	card, ok := a.Auth.Card()
	require.True(t, ok)
	assert.Equal(t, "4000123412341234", card.CardNumber)
}

func TestConcurrentUnauthorized_RedirectsOnce(t *testing.T) {
	a, backend, _ := newTestApp(t)
	ctx := context.Background()
	login(t, a)
	require.NoError(t, a.Wallet.FetchWalletInfo(ctx))

	loc := a.Nav.Push("/wallet/history")
	require.Equal(t, "/wallet/history", loc.Path)

	var redirects atomic.Int32
	a.Nav.OnNavigate(func(l router.Location) {
		if l.Path == router.PathLogin {
			redirects.Add(1)
		}
	})
	backend.Faults().Set("/wallet/transactions", fakeapi.FaultConfig{StatusCode: http.StatusUnauthorized})

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.Wallet.FetchTransactions(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), redirects.Load())
	assert.Equal(t, "/login?redirect=%2Fwallet%2Fhistory", a.Nav.Current().FullPath())
	assert.False(t, a.Auth.IsAuthenticated())
	_, ok := a.Wallet.Info()
	assert.False(t, ok, "wallet is reset when the session ends")
	assert.Equal(t, "/wallet/history", a.Nav.PostLoginTarget())
}

func TestInit_RestoresSessionAndSnapshots(t *testing.T) {
	a, _, ts := newTestApp(t)
	ctx := context.Background()
	login(t, a)
	a.Movies.SetFilters(store.MovieFilters{CategoryID: "c2"})
	require.NoError(t, a.Close(ctx))

	cfg := *a.Config
	restarted, err := New(ctx, &cfg, WithHTTPClient(ts.Client()), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer restarted.Close(ctx)

	require.NoError(t, restarted.Init(ctx))
	assert.True(t, restarted.Auth.IsAuthenticated())
	assert.Equal(t, "c2", restarted.Movies.Filters().CategoryID)
	assert.Len(t, restarted.Movies.Categories(), 3)
	assert.NotEmpty(t, restarted.Discounts.MemberDiscounts())
	assert.NoError(t, restarted.LastError())
}

func TestInit_ReportsFailuresWithoutStopping(t *testing.T) {
	a, backend, _ := newTestApp(t)
	backend.Faults().Set("/movies/categories", fakeapi.FaultConfig{StatusCode: http.StatusInternalServerError})

	var reported []error
	a.OnError(func(err error) { reported = append(reported, err) })

	require.NoError(t, a.Init(context.Background()))
	require.Len(t, reported, 1)
	assert.Error(t, a.LastError())
}

func TestLogout_ClearsDependentStores(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx := context.Background()
	login(t, a)
	require.NoError(t, a.Discounts.FetchMemberDiscounts(ctx))
	require.NotEmpty(t, a.Discounts.MemberDiscounts())

	require.NoError(t, a.Auth.Logout(ctx))
	assert.Empty(t, a.Discounts.MemberDiscounts())
	assert.Equal(t, router.PathHome, a.Nav.Current().Path)
}
