package router

import (
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// AuthState is the slice of the auth store the guards need.
type AuthState interface {
	IsAuthenticated() bool
}

type Location struct {
	Path   string
	Query  url.Values
	Route  Route
	Params map[string]string
}

// FullPath returns the path with its query string.
func (l Location) FullPath() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

func (l Location) Param(name string) string {
	return l.Params[name]
}

// Navigator keeps the current location and applies the auth guards on every
// navigation.
type Navigator struct {
	auth   AuthState
	table  *table
	logger logrus.FieldLogger

	mu        sync.Mutex
	current   Location
	history   []Location
	listeners []func(Location)
}

func NewNavigator(auth AuthState, logger logrus.FieldLogger) *Navigator {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	n := &Navigator{auth: auth, table: defaultTable, logger: logger}
	n.current = n.resolve(PathHome)
	return n
}

// OnNavigate registers fn to observe every location change.
func (n *Navigator) OnNavigate(fn func(Location)) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

func (n *Navigator) Current() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Push navigates to target after the guards run. An auth-only route while
// signed out lands on the login page with the target kept in redirect; a
// guest route while signed in lands on home.
func (n *Navigator) Push(target string) Location {
	return n.navigate(target, true)
}

// Replace navigates like Push without adding a history entry.
func (n *Navigator) Replace(target string) Location {
	return n.navigate(target, false)
}

// Back returns to the previous location, or home when there is none. The
// guards run again, so a page that needed the session is not reachable after
// logout.
func (n *Navigator) Back() Location {
	n.mu.Lock()
	if len(n.history) == 0 {
		n.mu.Unlock()
		return n.navigate(PathHome, false)
	}
	prev := n.history[len(n.history)-1]
	n.history = n.history[:len(n.history)-1]
	n.mu.Unlock()
	return n.navigate(prev.FullPath(), false)
}

func (n *Navigator) navigate(target string, record bool) Location {
	loc := n.resolve(target)
	signedIn := n.auth != nil && n.auth.IsAuthenticated()

	switch {
	case loc.Route.Meta.RequiresAuth && !signedIn:
		n.logger.WithField("path", loc.FullPath()).Debug("auth required, redirecting to login")
		loc = n.loginLocation(loc.FullPath())
	case loc.Route.Meta.Guest && signedIn:
		loc = n.resolve(PathHome)
	}
	n.commit(loc, record)
	return loc
}

// RedirectToLogin sends the member to the login page keeping the current
// location as the post-login target. It is a no-op on the login page.
func (n *Navigator) RedirectToLogin() Location {
	n.mu.Lock()
	current := n.current
	n.mu.Unlock()

	if current.Path == PathLogin {
		return current
	}
	loc := n.loginLocation(current.FullPath())
	n.commit(loc, true)
	return loc
}

// PostLoginTarget returns the pending redirect of the login page, or home.
// Only local paths are honoured.
func (n *Navigator) PostLoginTarget() string {
	current := n.Current()
	target := current.Query.Get(RedirectParam)
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return PathHome
	}
	if cleanPath(strings.SplitN(target, "?", 2)[0]) == PathLogin {
		return PathHome
	}
	return target
}

func (n *Navigator) loginLocation(redirect string) Location {
	loc := n.resolve(PathLogin)
	if redirect != "" && redirect != PathHome {
		loc.Query = url.Values{RedirectParam: {redirect}}
	}
	return loc
}

func (n *Navigator) resolve(target string) Location {
	path, rawQuery, _ := strings.Cut(target, "?")
	path = cleanPath(path)
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}
	route, params := n.table.match(path)
	return Location{Path: path, Query: query, Route: route, Params: params}
}

func (n *Navigator) commit(loc Location, record bool) {
	n.mu.Lock()
	if record && n.current.Path != "" {
		n.history = append(n.history, n.current)
	}
	n.current = loc
	listeners := append([]func(Location){}, n.listeners...)
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(loc)
	}
}
