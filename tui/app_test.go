package tui

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizen-card-cli/app"
	"citizen-card-cli/config"
	"citizen-card-cli/fakeapi"
	"citizen-card-cli/model"
	"citizen-card-cli/router"
)

type testItem struct {
	value string
}

func (t testItem) Title() string       { return t.value }
func (t testItem) Description() string { return "" }
func (t testItem) FilterValue() string { return strings.ToLower(t.value) }

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	backend := fakeapi.New(fakeapi.DefaultSeed(), fakeapi.Config{})
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", root)
	path := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.API.BaseURL = ts.URL + fakeapi.APIPrefix
	cfg.Storage.Dir = t.TempDir()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	a, err := app.New(context.Background(), cfg, app.WithHTTPClient(ts.Client()), app.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func newFilterModel(t *testing.T, items []list.Item) *appModel {
	m := newModel(context.Background(), newTestApp(t))
	m.state = stateSelectMovie
	m.movieList.SetItems(items)
	return &m
}

// step feeds msg to the model and runs the command it returns, once.
func step(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(appModel)
}

func press(t *testing.T, m appModel, key tea.KeyMsg) (appModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key)
	return next.(appModel), cmd
}

func signIn(t *testing.T, m appModel) appModel {
	t.Helper()
	m = step(t, m, m.loginCmd(model.Credentials{Email: "demo@citizen.example", Password: "Demo1234!"}))
	require.True(t, m.app.Auth.IsAuthenticated())
	return m
}

func TestHandleFilterInput_AppendsRunes(t *testing.T) {
	m := newFilterModel(t, []list.Item{
		testItem{value: "Harbour Lights"},
		testItem{value: "Orbit Nine"},
	})

	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("o")}) {
		t.Fatal("expected filter input to be handled")
	}
	if got := m.movieList.FilterValue(); got != "o" {
		t.Fatalf("expected filter value to be %q, got %q", "o", got)
	}

	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}) {
		t.Fatal("expected filter input to be handled")
	}
	if got := m.movieList.FilterValue(); got != "or" {
		t.Fatalf("expected filter value to be %q, got %q", "or", got)
	}
}

func TestHandleFilterInput_Backspace(t *testing.T) {
	m := newFilterModel(t, []list.Item{
		testItem{value: "Harbour Lights"},
		testItem{value: "Orbit Nine"},
	})

	_ = m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("o")})
	_ = m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})

	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeyBackspace}) {
		t.Fatal("expected backspace to be handled")
	}
	if got := m.movieList.FilterValue(); got != "o" {
		t.Fatalf("expected filter value to be %q, got %q", "o", got)
	}
}

func TestHandleFilterInput_Space(t *testing.T) {
	m := newFilterModel(t, []list.Item{
		testItem{value: "Orbit Nine"},
	})

	for _, r := range "orbit" {
		_ = m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeySpace}) {
		t.Fatal("expected space to be handled")
	}
	if got := m.movieList.FilterValue(); got != "orbit " {
		t.Fatalf("expected filter value to be %q, got %q", "orbit ", got)
	}
}

func TestHandleFilterInput_IgnoredOnMenu(t *testing.T) {
	m := newModel(context.Background(), newTestApp(t))
	if m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}) {
		t.Fatal("menu keys must not be captured by the filter")
	}
}

func testSeatMap() model.SeatMap {
	return model.SeatMap{
		ShowingID: "s9",
		Bounds:    model.SeatBounds{Lines: 2, Columns: 3},
		Lines: []model.SeatLine{
			{Line: 1, Seats: []model.Seat{
				{Label: "A1", Status: model.SeatAvailable, Line: 1, Column: 1},
				{Label: "A2", Status: model.SeatOccupied, Line: 1, Column: 2},
				{Label: "A3", Status: model.SeatAvailable, Line: 1, Column: 3},
			}},
			{Line: 2, Seats: []model.Seat{
				{Label: "B1", Status: model.SeatAvailable, Type: model.SeatTypeAccessible, Line: 2, Column: 1},
				{Label: "B3", Status: model.SeatBlocked, Line: 2, Column: 3},
			}},
		},
	}
}

func TestSeatPicker_MovesOverGapsAndPicksFreeSeats(t *testing.T) {
	p := newSeatPicker(testSeatMap())
	seat, ok := p.current()
	require.True(t, ok)
	assert.Equal(t, "A1", seat.Label)

	p.move(0, 1)
	assert.False(t, p.toggle(), "occupied seats cannot be picked")
	p.move(0, 1)
	assert.True(t, p.toggle())

	p.move(1, 0)
	seat, _ = p.current()
	assert.Equal(t, "B3", seat.Label)
	p.move(0, -1)
	seat, _ = p.current()
	assert.Equal(t, "B1", seat.Label, "the missing B2 is skipped")
	assert.True(t, p.toggle())
	assert.Equal(t, []string{"A3", "B1"}, p.selected())

	assert.True(t, p.toggle())
	assert.Equal(t, []string{"A3"}, p.selected())

	p.move(0, -1)
	seat, _ = p.current()
	assert.Equal(t, "B1", seat.Label, "the cursor stops at the edge")
}

func TestSeatPicker_StartsOnFirstFreeSeat(t *testing.T) {
	m := testSeatMap()
	m.Lines[0].Seats[0].Status = model.SeatOccupied
	p := newSeatPicker(m)
	seat, _ := p.current()
	assert.Equal(t, "A3", seat.Label)
}

func TestSeatPicker_Render(t *testing.T) {
	p := newSeatPicker(testSeatMap())
	p.move(0, 1)
	p.move(0, 1)
	require.True(t, p.toggle())

	out := p.render()
	assert.Contains(t, out, "SCREEN")
	assert.Contains(t, out, "Picked: A3")
	assert.Contains(t, out, "Available: 3")
	assert.Contains(t, out, "Total: 5")

	p.showNumbers = true
	assert.Contains(t, p.render(), "numbers are seat labels")

	assert.Equal(t, "No seat map data.", newSeatPicker(model.SeatMap{}).render())
}

func TestSeatLabels(t *testing.T) {
	seat := model.Seat{Label: "C12", Line: 3, Column: 12}
	assert.Equal(t, "C", seatRowLabel(seat))
	assert.Equal(t, "12", seatNumberLabel(seat))
	assert.Equal(t, "4", seatRowLabel(model.Seat{Label: "17", Line: 4}))
}

func TestFrontLinesAndPairs(t *testing.T) {
	m := testSeatMap()
	assert.Equal(t, map[int]bool{1: true}, frontLineSet(m, 1))
	assert.Len(t, frontLineSet(m, 5), 2)
	assert.Equal(t, 0, countAdjacentPairs(m))

	m.Lines[0].Seats[1].Status = model.SeatAvailable
	assert.Equal(t, 1, countAdjacentPairs(m))
}

func TestStateForPath(t *testing.T) {
	cases := map[string]appState{
		"/":                     stateMenu,
		"/wallet":               stateWallet,
		"/wallet/history":       stateWallet,
		"/wallet/topup":         stateTopUp,
		"/discounts/d1":         stateDiscounts,
		"/member/card":          stateBookings,
		"/movies/m1":            stateSelectMovie,
		"/booking/showing/s1":   stateSelectMovie,
		"/wallet?page=2":        stateWallet,
		"/somewhere/else/again": stateMenu,
	}
	for path, want := range cases {
		assert.Equal(t, want, stateForPath(path), path)
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := parseAmount(" $250 ")
	require.NoError(t, err)
	assert.Equal(t, 250.0, amount)

	_, err = parseAmount("lots")
	assert.Error(t, err)
	_, err = parseAmount("0")
	assert.Error(t, err)
}

func TestGuardedScreen_RedirectsToLoginAndBack(t *testing.T) {
	m := newModel(context.Background(), newTestApp(t))

	next, _ := m.open(stateWallet)
	m = next.(appModel)
	assert.Equal(t, stateLogin, m.state)
	assert.Equal(t, router.PathLogin, m.app.Nav.Current().Path)
	assert.Equal(t, "/wallet", m.app.Nav.PostLoginTarget())

	m = signIn(t, m)
	assert.Equal(t, stateLoading, m.state)
	assert.Equal(t, "Loading wallet", m.loading)
	assert.Equal(t, "/wallet", m.app.Nav.Current().Path)

	m = step(t, m, m.walletCmd())
	assert.Equal(t, stateWallet, m.state)
	assert.Len(t, m.txList.Items(), len(m.app.Wallet.Transactions()))
	assert.Contains(t, m.View(), "Balance $1500.00")
}

func TestTopUp_ReturnsToWallet(t *testing.T) {
	m := newModel(context.Background(), newTestApp(t))
	m = signIn(t, m)

	next, _ := m.open(stateTopUp)
	m = next.(appModel)
	require.Equal(t, stateTopUp, m.state)
	assert.Equal(t, "/wallet/topup", m.app.Nav.Current().Path)

	m.amountInput.SetValue("abc")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.True(t, m.noticeErr)

	m.amountInput.SetValue("200")
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m = step(t, m, m.topUpCmd(200))
	assert.Equal(t, stateWallet, m.state)
	assert.Equal(t, "/wallet", m.app.Nav.Current().Path)
	assert.Equal(t, 1700.0, m.app.Wallet.CurrentBalance())
	assert.NotEmpty(t, m.txList.Items())
}

func TestLoginForm_ValidatesBeforeSending(t *testing.T) {
	m := newModel(context.Background(), newTestApp(t))
	m.toLogin()
	m.loginInputs[0].SetValue("not-an-email")
	m.loginFocus = 1
	m.loginInputs[1].SetValue("whatever")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, stateLogin, m.state)
	assert.True(t, m.noticeErr)
}

func TestLogin_WrongPasswordStaysOnForm(t *testing.T) {
	m := newModel(context.Background(), newTestApp(t))
	m.toLogin()
	m = step(t, m, m.loginCmd(model.Credentials{Email: "demo@citizen.example", Password: "Wrong1234!"}))
	assert.Equal(t, stateLogin, m.state)
	assert.True(t, m.noticeErr)
	assert.Empty(t, m.loginInputs[1].Value())
}

func TestBookingFlow_PickSeatsBookAndPay(t *testing.T) {
	m := newModel(context.Background(), newTestApp(t))
	m = signIn(t, m)

	next, _ := m.open(stateSelectMovie)
	m = step(t, next.(appModel), m.moviesCmd())
	require.Equal(t, stateSelectMovie, m.state)

	m.movie = m.app.Movies.Movies()[0]
	require.Equal(t, "Harbour Lights", m.movie.Name)
	m = step(t, m, m.showingsCmd(m.movie.ID.String()))
	require.Equal(t, stateShowShowings, m.state)

	require.True(t, m.enter(stateShowSeatMap, "s1"))
	m = step(t, m, m.seatMapCmd("s1"))
	require.Equal(t, stateShowSeatMap, m.state)
	seat, ok := m.picker.current()
	require.True(t, ok)
	assert.Equal(t, "A3", seat.Label, "A1 and A2 are taken")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	require.Equal(t, []string{"A3", "A4"}, m.picker.selected())

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, stateLoading, m.state)
	require.NotNil(t, cmd)
	m = step(t, m, m.quoteCmd(m.picker.selected(), ""))
	require.Equal(t, stateConfirm, m.state)
	assert.Equal(t, 360.0, m.quote.OriginalAmount)
	assert.Equal(t, "/booking/confirm", m.app.Nav.Current().Path)

	m = step(t, m, m.bookCmd(m.discountID()))
	require.Equal(t, stateBooked, m.state)
	assert.Equal(t, []string{"A3", "A4"}, m.booking.Seats)

	m = step(t, m, m.payCmd(m.booking))
	assert.Equal(t, stateLoading, m.state)
	assert.Contains(t, m.notice, "Paid $360.00")
	assert.Equal(t, 1140.0, m.app.Wallet.CurrentBalance())
}

func TestBookingFlow_TakenSeatReloadsSeatMap(t *testing.T) {
	m := newModel(context.Background(), newTestApp(t))
	m = signIn(t, m)
	m = step(t, m, m.seatMapCmd("s1"))
	require.Equal(t, stateShowSeatMap, m.state)

	m = step(t, m, m.quoteCmd([]string{"A1"}, ""))
	assert.Equal(t, stateLoading, m.state)
	assert.Equal(t, "Refreshing seat map", m.loading)
	assert.True(t, m.noticeErr)
}

func TestSessionEnded_ReturnsToLogin(t *testing.T) {
	m := newModel(context.Background(), newTestApp(t))
	m.state = stateWallet

	next, _ := m.Update(sessionEndedMsg{})
	m = next.(appModel)
	assert.Equal(t, stateLogin, m.state)
	assert.Contains(t, m.notice, "session has ended")
}

func TestErrorState_EscReturns(t *testing.T) {
	m := newModel(context.Background(), newTestApp(t))
	next, _ := m.fail("load movies", assert.AnError, stateMenu)
	m = next.(appModel)
	require.Equal(t, stateError, m.state)
	assert.Contains(t, m.View(), assert.AnError.Error())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, stateMenu, m.state)
	assert.Equal(t, assert.AnError, m.app.LastError())
}
