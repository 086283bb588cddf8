package router

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	signedIn atomic.Bool
}

func (f *fakeAuth) IsAuthenticated() bool {
	return f.signedIn.Load()
}

func TestMatch_Routes(t *testing.T) {
	cases := []struct {
		path   string
		name   string
		params map[string]string
	}{
		{"/", "home", nil},
		{"/movies", "movies", nil},
		{"/movies/", "movies", nil},
		{"/movies/42", "movie-detail", map[string]string{"id": "42"}},
		{"/booking/7", "booking-movie", map[string]string{"movieId": "7"}},
		{"/booking/showing/s9", "booking-seats", map[string]string{"showingId": "s9"}},
		{"/booking/confirm", "booking-confirm", nil},
		{"/discounts/d1", "discount-detail", map[string]string{"id": "d1"}},
		{"/nowhere/at/all", "not-found", nil},
	}
	for _, tc := range cases {
		route, params := defaultTable.match(cleanPath(tc.path))
		assert.Equal(t, tc.name, route.Name, tc.path)
		assert.Equal(t, tc.params, params, tc.path)
	}
}

func TestPush_AuthGuardRedirectsToLogin(t *testing.T) {
	auth := &fakeAuth{}
	nav := NewNavigator(auth, nil)

	loc := nav.Push("/wallet/history?page=2")
	assert.Equal(t, PathLogin, loc.Path)
	assert.Equal(t, "/wallet/history?page=2", loc.Query.Get(RedirectParam))
	assert.Equal(t, "/wallet/history?page=2", nav.PostLoginTarget())

	loc = nav.Push("/movies/3")
	assert.Equal(t, "movie-detail", loc.Route.Name)
	assert.Equal(t, "3", loc.Param("id"))
}

func TestPush_GuestRouteWhileSignedIn(t *testing.T) {
	auth := &fakeAuth{}
	auth.signedIn.Store(true)
	nav := NewNavigator(auth, nil)

	assert.Equal(t, PathHome, nav.Push("/login").Path)
	assert.Equal(t, PathHome, nav.Push("/register").Path)
	assert.Equal(t, "/wallet", nav.Push("/wallet").Path)
}

func TestRedirectToLogin_PreservesLocation(t *testing.T) {
	auth := &fakeAuth{}
	auth.signedIn.Store(true)
	nav := NewNavigator(auth, nil)

	var seen []string
	nav.OnNavigate(func(loc Location) { seen = append(seen, loc.FullPath()) })

	nav.Push("/booking/showing/s1")
	auth.signedIn.Store(false)

	loc := nav.RedirectToLogin()
	require.Equal(t, PathLogin, loc.Path)
	assert.Equal(t, "/booking/showing/s1", loc.Query.Get(RedirectParam))

	again := nav.RedirectToLogin()
	assert.Equal(t, loc.FullPath(), again.FullPath())
	assert.Len(t, seen, 2, "redirect on the login page is a no-op")
}

func TestPostLoginTarget_IgnoresUnsafeRedirects(t *testing.T) {
	nav := NewNavigator(&fakeAuth{}, nil)

	nav.Push("/login?redirect=https://evil.example")
	assert.Equal(t, PathHome, nav.PostLoginTarget())

	nav.Push("/login?redirect=//evil.example")
	assert.Equal(t, PathHome, nav.PostLoginTarget())

	nav.Push("/login?redirect=/login")
	assert.Equal(t, PathHome, nav.PostLoginTarget())

	nav.Push("/login")
	assert.Equal(t, PathHome, nav.PostLoginTarget())
}

func TestBack_ReappliesGuards(t *testing.T) {
	auth := &fakeAuth{}
	auth.signedIn.Store(true)
	nav := NewNavigator(auth, nil)

	nav.Push("/wallet")
	nav.Push("/movies")
	auth.signedIn.Store(false)

	loc := nav.Back()
	assert.Equal(t, PathLogin, loc.Path)
	assert.Equal(t, "/wallet", loc.Query.Get(RedirectParam))

	nav.Back()
	assert.Equal(t, PathHome, nav.Current().Path)
}

func TestLookup(t *testing.T) {
	route, ok := Lookup("wallet-topup")
	require.True(t, ok)
	assert.True(t, route.Meta.RequiresAuth)
	assert.Equal(t, "/wallet/topup", route.Path)
}
