package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type Meta struct {
	Title        string
	RequiresAuth bool
	// Guest routes are only for signed-out members, such as login.
	Guest bool
}

type Route struct {
	Name string
	Path string
	Meta Meta
}

const (
	PathHome     = "/"
	PathLogin    = "/login"
	PathRegister = "/register"
	PathError    = "/error"

	RedirectParam = "redirect"
)

var notFound = Route{Name: "not-found", Path: "*", Meta: Meta{Title: "Page not found"}}

// Routes lists every screen of the client.
var Routes = []Route{
	{Name: "home", Path: PathHome, Meta: Meta{Title: "Home"}},
	{Name: "login", Path: PathLogin, Meta: Meta{Title: "Sign in", Guest: true}},
	{Name: "register", Path: PathRegister, Meta: Meta{Title: "Register", Guest: true}},
	{Name: "member", Path: "/member", Meta: Meta{Title: "Member centre", RequiresAuth: true}},
	{Name: "member-profile", Path: "/member/profile", Meta: Meta{Title: "Profile", RequiresAuth: true}},
	{Name: "member-card", Path: "/member/card", Meta: Meta{Title: "Citizen card", RequiresAuth: true}},
	{Name: "movies", Path: "/movies", Meta: Meta{Title: "Movies"}},
	{Name: "movie-detail", Path: "/movies/{id}", Meta: Meta{Title: "Movie"}},
	{Name: "booking", Path: "/booking", Meta: Meta{Title: "Booking", RequiresAuth: true}},
	{Name: "booking-movie", Path: "/booking/{movieId}", Meta: Meta{Title: "Choose a showing", RequiresAuth: true}},
	{Name: "booking-seats", Path: "/booking/showing/{showingId}", Meta: Meta{Title: "Choose seats", RequiresAuth: true}},
	{Name: "booking-confirm", Path: "/booking/confirm", Meta: Meta{Title: "Confirm booking", RequiresAuth: true}},
	{Name: "wallet", Path: "/wallet", Meta: Meta{Title: "Wallet", RequiresAuth: true}},
	{Name: "wallet-topup", Path: "/wallet/topup", Meta: Meta{Title: "Top up", RequiresAuth: true}},
	{Name: "wallet-history", Path: "/wallet/history", Meta: Meta{Title: "Transactions", RequiresAuth: true}},
	{Name: "discounts", Path: "/discounts", Meta: Meta{Title: "Discounts", RequiresAuth: true}},
	{Name: "discount-detail", Path: "/discounts/{id}", Meta: Meta{Title: "Discount", RequiresAuth: true}},
	{Name: "error", Path: PathError, Meta: Meta{Title: "Error"}},
}

// table resolves paths to routes using chi's radix tree.
type table struct {
	mux    *chi.Mux
	byPath map[string]Route
	byName map[string]Route
}

func newTable(routes []Route) *table {
	t := &table{
		mux:    chi.NewRouter(),
		byPath: map[string]Route{},
		byName: map[string]Route{},
	}
	noop := func(http.ResponseWriter, *http.Request) {}
	for _, route := range routes {
		t.mux.Get(route.Path, noop)
		t.byPath[route.Path] = route
		t.byName[route.Name] = route
	}
	return t
}

// match returns the route for path and its parameters. Unknown paths resolve
// to the not-found route.
func (t *table) match(path string) (Route, map[string]string) {
	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, http.MethodGet, path) {
		return notFound, nil
	}
	route, ok := t.byPath[rctx.RoutePattern()]
	if !ok {
		return notFound, nil
	}
	var params map[string]string
	for i, key := range rctx.URLParams.Keys {
		if params == nil {
			params = map[string]string{}
		}
		params[key] = rctx.URLParams.Values[i]
	}
	return route, params
}

// Lookup returns the route registered under name.
func Lookup(name string) (Route, bool) {
	route, ok := defaultTable.byName[name]
	return route, ok
}

var defaultTable = newTable(Routes)

func cleanPath(path string) string {
	if path == "" {
		return PathHome
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = PathHome
		}
	}
	return path
}
