// Package tui is the interactive terminal client: browse movies, pick seats
// on the seat map, book and pay from the wallet.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"citizen-card-cli/app"
	"citizen-card-cli/model"
	"citizen-card-cli/router"
	"citizen-card-cli/service"
	"citizen-card-cli/store"
)

type appState int

const (
	stateLoading appState = iota
	stateLogin
	stateMenu
	stateSelectMovie
	stateShowShowings
	stateShowSeatMap
	stateConfirm
	stateBooked
	stateBookings
	stateWallet
	stateTopUp
	stateDiscounts
	stateError
)

const topUpMethod = "card"

type appModel struct {
	app *app.App
	ctx context.Context

	state     appState
	lastState appState
	loading   string
	err       error
	notice    string
	noticeErr bool

	width  int
	height int

	menuList     list.Model
	movieList    list.Model
	showingList  list.Model
	bookingList  list.Model
	txList       list.Model
	discountList list.Model

	loginInputs []textinput.Model
	loginFocus  int
	amountInput textinput.Model

	movie       model.Movie
	picker      seatPicker
	discountIdx int
	quote       model.BookingQuote
	booking     model.Booking
	memberOnly  bool

	spinner spinner.Model
}

type errMsg struct {
	op          string
	err         error
	returnState appState
}

type loggedInMsg struct{ err error }

type loggedOutMsg struct{ err error }

type sessionEndedMsg struct{}

type moviesMsg struct{ err error }

type showingsMsg struct{ err error }

type seatMapMsg struct{ err error }

type quoteMsg struct {
	quote model.BookingQuote
	err   error
}

type bookedMsg struct {
	booking model.Booking
	err     error
}

type paidMsg struct {
	tx  model.Transaction
	err error
}

type bookingsMsg struct{ err error }

type cancelledMsg struct {
	booking model.Booking
	err     error
}

type walletMsg struct{ err error }

type topUpMsg struct {
	tx  model.Transaction
	err error
}

type discountsMsg struct{ err error }

func New(ctx context.Context, a *app.App) tea.Model {
	return newModel(ctx, a)
}

func newModel(ctx context.Context, a *app.App) appModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))

	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 120
	email.Focus()
	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 64

	amount := textinput.New()
	amount.Placeholder = "amount, 1 to 10000"
	amount.CharLimit = 9

	menu := newList("Citizen Card")
	menu.SetFilteringEnabled(false)
	menu.SetItems(buildMenuItems(a.Auth.IsAuthenticated()))

	m := appModel{
		app:          a,
		ctx:          ctx,
		state:        stateMenu,
		menuList:     menu,
		movieList:    newList("Movies"),
		showingList:  newList("Showings"),
		bookingList:  newList("My bookings"),
		txList:       newList("Wallet transactions"),
		discountList: newList("Discounts"),
		loginInputs:  []textinput.Model{email, password},
		amountInput:  amount,
		discountIdx:  -1,
		spinner:      s,
	}
	if err := a.LastError(); err != nil {
		m.setNotice(err.Error(), true)
	}
	return m
}

// Run starts the program and blocks until the user quits. A session that
// expires mid-request sends the user back to the login form.
func Run(ctx context.Context, a *app.App) error {
	p := tea.NewProgram(New(ctx, a), tea.WithAltScreen(), tea.WithContext(ctx))
	a.Nav.OnNavigate(func(loc router.Location) {
		if loc.Path == router.PathLogin {
			go p.Send(sessionEndedMsg{})
		}
	})
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m appModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil
	case tea.KeyMsg:
		if m.handleFilterInput(msg) {
			return m, nil
		}
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case errMsg:
		return m.fail(msg.op, msg.err, msg.returnState)
	case sessionEndedMsg:
		if m.state == stateLogin || m.app.Auth.IsAuthenticated() {
			return m, nil
		}
		m.toLogin()
		m.setNotice("Your session has ended, please sign in again.", true)
		return m, textinput.Blink
	case loggedInMsg:
		if msg.err != nil {
			m.app.ReportError("login", msg.err)
			m.state = stateLogin
			m.loginInputs[1].Reset()
			m.setNotice(msg.err.Error(), true)
			return m, nil
		}
		m.menuList.SetItems(buildMenuItems(true))
		user, _ := m.app.Auth.User()
		m.setNotice("Signed in as "+user.Email, false)
		return m.open(stateForPath(m.app.Nav.PostLoginTarget()))
	case loggedOutMsg:
		if msg.err != nil {
			m.app.ReportError("logout", msg.err)
		}
		m.menuList.SetItems(buildMenuItems(false))
		m.app.Nav.Replace(router.PathHome)
		m.state = stateMenu
		m.setNotice("Signed out.", false)
		return m, nil
	case moviesMsg:
		if msg.err != nil {
			return m.fail("load movies", msg.err, stateMenu)
		}
		m.movieList.SetItems(buildMovieItems(m.app.Movies.Movies()))
		m.movieList.ResetFilter()
		m.state = stateSelectMovie
		return m, nil
	case showingsMsg:
		if msg.err != nil {
			return m.fail("load showings", msg.err, stateSelectMovie)
		}
		showings := m.app.Movies.Showings()
		if len(showings) == 0 {
			return m.fail("load showings", fmt.Errorf("no showings for %s", m.movie.Name), stateSelectMovie)
		}
		m.showingList.Title = "Showings • " + m.movie.Name
		m.showingList.SetItems(buildShowingItems(showings, time.Now()))
		m.showingList.ResetFilter()
		m.state = stateShowShowings
		return m, nil
	case seatMapMsg:
		if msg.err != nil {
			return m.fail("load seat map", msg.err, stateShowShowings)
		}
		seatMap, _ := m.app.Movies.SeatMap()
		picker := newSeatPicker(seatMap)
		picker.showNumbers = m.picker.showNumbers
		m.picker = picker
		m.state = stateShowSeatMap
		return m, nil
	case quoteMsg:
		if msg.err != nil {
			if errors.Is(msg.err, service.ErrSeatsUnavailable) {
				return m.reloadSeatMap(msg.err)
			}
			return m.fail("calculate amount", msg.err, stateShowSeatMap)
		}
		m.quote = msg.quote
		if m.app.Nav.Current().Path != m.pathFor(stateConfirm) && !m.enter(stateConfirm) {
			return m, textinput.Blink
		}
		m.state = stateConfirm
		return m, nil
	case bookedMsg:
		if msg.booking.ID == "" {
			if errors.Is(msg.err, service.ErrSeatsUnavailable) {
				return m.reloadSeatMap(msg.err)
			}
			return m.fail("create booking", msg.err, stateConfirm)
		}
		m.app.ReportError("refresh bookings", msg.err)
		m.booking = msg.booking
		m.state = stateBooked
		return m, nil
	case paidMsg:
		if msg.tx.TransactionID == "" {
			return m.fail("pay booking", msg.err, stateBookings)
		}
		m.app.ReportError("refresh wallet", msg.err)
		m.setNotice(fmt.Sprintf("Paid %s, balance %s.", formatPrice(msg.tx.Amount), formatPrice(m.app.Wallet.CurrentBalance())), false)
		return m.open(stateBookings)
	case bookingsMsg:
		if msg.err != nil {
			return m.fail("load bookings", msg.err, stateMenu)
		}
		m.bookingList.SetItems(buildBookingItems(m.app.Bookings.Bookings()))
		m.state = stateBookings
		return m, nil
	case cancelledMsg:
		if msg.booking.ID == "" {
			return m.fail("cancel booking", msg.err, stateBookings)
		}
		m.app.ReportError("refresh bookings", msg.err)
		m.bookingList.SetItems(buildBookingItems(m.app.Bookings.Bookings()))
		m.setNotice(fmt.Sprintf("Booking %s cancelled.", msg.booking.ID), false)
		m.state = stateBookings
		return m, nil
	case walletMsg:
		if msg.err != nil {
			return m.fail("load wallet", msg.err, stateMenu)
		}
		m.txList.SetItems(buildTransactionItems(m.app.Wallet.Transactions()))
		m.state = stateWallet
		return m, nil
	case topUpMsg:
		if msg.tx.TransactionID == "" {
			return m.fail("top up", msg.err, stateTopUp)
		}
		m.app.ReportError("refresh wallet", msg.err)
		m.txList.SetItems(buildTransactionItems(m.app.Wallet.Transactions()))
		m.app.Nav.Replace("/wallet")
		m.setNotice(fmt.Sprintf("Topped up %s, balance %s.", formatPrice(msg.tx.Amount), formatPrice(m.app.Wallet.CurrentBalance())), false)
		m.state = stateWallet
		return m, nil
	case discountsMsg:
		if msg.err != nil {
			return m.fail("load discounts", msg.err, stateMenu)
		}
		m.refreshDiscountList()
		m.state = stateDiscounts
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case stateLogin:
		m.loginInputs[m.loginFocus], cmd = m.loginInputs[m.loginFocus].Update(msg)
	case stateTopUp:
		m.amountInput, cmd = m.amountInput.Update(msg)
	case stateMenu:
		m.menuList, cmd = m.menuList.Update(msg)
	default:
		if listPtr := m.activeList(); listPtr != nil {
			*listPtr, cmd = listPtr.Update(msg)
		}
	}
	return m, cmd
}

func (m appModel) View() string {
	header := m.headerView()
	switch m.state {
	case stateLoading:
		return header + "\n\n" + m.loadingView()
	case stateLogin:
		return header + "\n\n" + m.loginView()
	case stateMenu:
		return header + "\n\n" + m.menuList.View()
	case stateSelectMovie:
		return header + "\n\n" + m.movieList.View()
	case stateShowShowings:
		return header + "\n\n" + m.showingList.View()
	case stateShowSeatMap:
		return header + "\n\n" + m.picker.render()
	case stateConfirm:
		return header + "\n\n" + m.confirmView()
	case stateBooked:
		return header + "\n\n" + m.bookedView()
	case stateBookings:
		return header + "\n\n" + m.bookingList.View()
	case stateWallet:
		return header + "\n\n" + m.walletView()
	case stateTopUp:
		return header + "\n\n" + "Top up your wallet\n\n" + m.amountInput.View()
	case stateDiscounts:
		return header + "\n\n" + m.discountList.View()
	case stateError:
		return header + "\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error()) + "\n\n" + hint("Press esc to go back or ctrl+c to quit.")
	default:
		return header
	}
}

func (m appModel) headerView() string {
	title := lipgloss.NewStyle().Bold(true).Render("Citizen Card")
	sub := []string{}
	if route := m.app.Nav.Current().Route; route.Meta.Title != "" {
		sub = append(sub, route.Meta.Title)
	}
	if user, ok := m.app.Auth.User(); ok {
		sub = append(sub, user.Email)
		if info, ok := m.app.Wallet.Info(); ok {
			sub = append(sub, "Balance: "+formatPrice(info.Balance))
		}
	}
	if m.state == stateShowShowings || m.state == stateShowSeatMap || m.state == stateConfirm {
		if showing, ok := m.app.Bookings.SelectedShowing(); ok && m.state != stateShowShowings {
			sub = append(sub, fmt.Sprintf("%s • %s • %s", showing.MovieName, showing.VenueName, showing.ShowTime.Local().Format("Mon 02 Jan 15:04")))
		} else if m.movie.Name != "" {
			sub = append(sub, m.movie.Name)
		}
	}
	if m.app.Busy() && m.state != stateLoading {
		sub = append(sub, m.spinner.View()+" syncing")
	}
	meta := strings.Join(sub, " • ")
	if meta != "" {
		meta = "\n" + lipgloss.NewStyle().Faint(true).Render(meta)
	}

	hints := "ctrl+c quit • esc back • type to filter • enter select"
	switch m.state {
	case stateLogin:
		hints = "ctrl+c quit • esc back • tab next field • enter sign in"
	case stateMenu:
		hints = "q quit • enter open"
	case stateShowSeatMap:
		hints = "ctrl+c quit • esc back • arrows/hjkl move • space pick • n toggle numbers • enter continue"
	case stateConfirm:
		hints = "ctrl+c quit • esc back • tab/d cycle discount • enter book"
	case stateBooked:
		hints = "q quit • p pay from wallet • enter my bookings • esc menu"
	case stateBookings:
		hints = "ctrl+c quit • esc back • type to filter • ctrl+x cancel • ctrl+p pay pending"
	case stateWallet:
		hints = "ctrl+c quit • esc back • type to filter • ctrl+t top up"
	case stateTopUp:
		hints = "ctrl+c quit • esc back • enter top up"
	case stateDiscounts:
		hints = "ctrl+c quit • esc back • type to filter • ctrl+o mine/all"
	case stateError:
		hints = "ctrl+c quit • esc back"
	}

	filterLine := ""
	if listPtr := m.activeList(); listPtr != nil {
		if filter := listPtr.FilterValue(); filter != "" {
			filterLine = "\n" + hint(fmt.Sprintf("Filter: %s", filter))
		}
	}
	noticeLine := ""
	if m.notice != "" {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
		if m.noticeErr {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
		}
		noticeLine = "\n" + style.Render(m.notice)
	}
	return title + meta + filterLine + noticeLine + "\n" + hint(hints)
}

func (m appModel) loginView() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Sign in"))
	b.WriteString("\n\n")
	labels := []string{"Email    ", "Password "}
	for i, input := range m.loginInputs {
		b.WriteString(labels[i] + input.View() + "\n")
	}
	return b.String()
}

func (m appModel) confirmView() string {
	showing, _ := m.app.Bookings.SelectedShowing()
	rows := [][2]string{
		{"Movie", showing.MovieName},
		{"Venue", showing.VenueName},
		{"Showing", showing.ShowTime.Local().Format("Mon 02 Jan 15:04")},
		{"Seats", strings.Join(m.app.Bookings.SelectedSeats(), ", ")},
		{"Price", formatPrice(m.quote.OriginalAmount)},
		{"Discount", m.discountLabel()},
		{"You save", formatPrice(m.quote.DiscountAmount)},
		{"To pay", formatPrice(m.quote.FinalAmount)},
	}
	return detailsView("Confirm booking", rows)
}

func (m appModel) bookedView() string {
	b := m.booking
	rows := [][2]string{
		{"Booking", b.ID.String()},
		{"Movie", b.MovieName},
		{"Showing", b.ShowTime.Local().Format("Mon 02 Jan 15:04")},
		{"Seats", strings.Join(b.Seats, ", ")},
		{"To pay", formatPrice(bookingAmount(b))},
		{"Status", b.Status},
	}
	return detailsView("Booking created", rows)
}

func (m appModel) walletView() string {
	info, _ := m.app.Wallet.Info()
	card := m.app.Wallet.CardInfo()
	summary := fmt.Sprintf("Balance %s • card %s • %s • income %s • spent %s",
		formatPrice(info.Balance), maskCard(card.CardNumber), info.Status,
		formatPrice(m.app.Wallet.TotalIncome()), formatPrice(m.app.Wallet.TotalExpense()))
	return lipgloss.NewStyle().Bold(true).Render(summary) + "\n\n" + m.txList.View()
}

func detailsView(title string, rows [][2]string) string {
	labelStyle := lipgloss.NewStyle().Faint(true).Width(10)
	lines := []string{lipgloss.NewStyle().Bold(true).Render(title), ""}
	for _, row := range rows {
		lines = append(lines, labelStyle.Render(row[0])+" "+row[1])
	}
	panel := lipgloss.NewStyle().
		Padding(1, 3).
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("63"))
	return panel.Render(strings.Join(lines, "\n"))
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	key := msg.String()
	switch key {
	case "ctrl+c":
		return m, tea.Quit, true
	case "esc":
		if listPtr := m.activeList(); listPtr != nil && listPtr.FilterValue() != "" {
			listPtr.ResetFilter()
			return m, nil, true
		}
		next, cmd := m.goBack()
		return next, cmd, true
	}
	if m.state == stateLoading {
		return m, nil, true
	}

	switch m.state {
	case stateLogin:
		return m.handleLoginKey(msg)
	case stateTopUp:
		if key != "enter" {
			return m, nil, false
		}
		amount, err := parseAmount(m.amountInput.Value())
		if err != nil {
			m.setNotice(err.Error(), true)
			return m, nil, true
		}
		m.notice = ""
		next, cmd := m.load("Topping up", m.topUpCmd(amount))
		return next, cmd, true
	case stateMenu:
		if key == "q" {
			return m, tea.Quit, true
		}
		if key != "enter" {
			return m, nil, false
		}
		item, ok := m.menuList.SelectedItem().(menuItem)
		if !ok {
			return m, nil, true
		}
		m.notice = ""
		if item.logout {
			next, cmd := m.load("Signing out", m.logoutCmd())
			return next, cmd, true
		}
		next, cmd := m.open(item.target)
		return next, cmd, true
	case stateSelectMovie:
		if key != "enter" {
			return m, nil, false
		}
		item, ok := m.movieList.SelectedItem().(movieItem)
		if !ok {
			return m, nil, true
		}
		m.movie = item.movie
		m.app.Nav.Push("/movies/" + item.movie.ID.String())
		next, cmd := m.load("Loading showings", m.showingsCmd(item.movie.ID.String()))
		return next, cmd, true
	case stateShowShowings:
		if key != "enter" {
			return m, nil, false
		}
		item, ok := m.showingList.SelectedItem().(showingItem)
		if !ok {
			return m, nil, true
		}
		if !item.bookable() {
			m.setNotice("This showing cannot be booked any more.", true)
			return m, nil, true
		}
		m.notice = ""
		if !m.enter(stateShowSeatMap, item.showing.ID.String()) {
			return m, textinput.Blink, true
		}
		next, cmd := m.load("Loading seat map", m.seatMapCmd(item.showing.ID.String()))
		return next, cmd, true
	case stateShowSeatMap:
		return m.handleSeatKey(key)
	case stateConfirm:
		switch key {
		case "q":
			return m, tea.Quit, true
		case "tab", "d":
			discounts := m.app.Discounts.MemberDiscounts()
			if len(discounts) == 0 {
				m.setNotice("No member discounts available for your card.", false)
				return m, nil, true
			}
			m.discountIdx++
			if m.discountIdx >= len(discounts) {
				m.discountIdx = -1
			}
			next, cmd := m.load("Pricing", m.quoteCmd(nil, m.discountID()))
			return next, cmd, true
		case "enter":
			next, cmd := m.load("Booking", m.bookCmd(m.discountID()))
			return next, cmd, true
		}
		return m, nil, true
	case stateBooked:
		switch key {
		case "q":
			return m, tea.Quit, true
		case "p":
			next, cmd := m.load("Paying", m.payCmd(m.booking))
			return next, cmd, true
		case "enter":
			next, cmd := m.open(stateBookings)
			return next, cmd, true
		}
		return m, nil, true
	case stateBookings:
		item, ok := m.bookingList.SelectedItem().(bookingItem)
		switch key {
		case "ctrl+x":
			if !ok {
				return m, nil, true
			}
			if item.booking.Status == model.BookingCancelled {
				m.setNotice("This booking is already cancelled.", true)
				return m, nil, true
			}
			next, cmd := m.load("Cancelling", m.cancelCmd(item.booking.ID.String()))
			return next, cmd, true
		case "ctrl+p":
			if !ok {
				return m, nil, true
			}
			if item.booking.Status != model.BookingPending {
				m.setNotice("Only pending bookings can be paid.", true)
				return m, nil, true
			}
			next, cmd := m.load("Paying", m.payCmd(item.booking))
			return next, cmd, true
		}
		return m, nil, false
	case stateWallet:
		if key == "ctrl+t" {
			next, cmd := m.open(stateTopUp)
			return next, cmd, true
		}
		return m, nil, false
	case stateDiscounts:
		if key == "ctrl+o" {
			m.memberOnly = !m.memberOnly
			m.refreshDiscountList()
			return m, nil, true
		}
		return m, nil, false
	case stateError:
		if key == "q" {
			return m, tea.Quit, true
		}
		if key == "enter" {
			next, cmd := m.goBack()
			return next, cmd, true
		}
		return m, nil, true
	}
	return m, nil, false
}

func (m appModel) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "tab", "down", "shift+tab", "up":
		dir := 1
		if s := msg.String(); s == "shift+tab" || s == "up" {
			dir = -1
		}
		m.loginFocus = (m.loginFocus + dir + len(m.loginInputs)) % len(m.loginInputs)
		return m, m.focusLogin(), true
	case "enter":
		if m.loginFocus == 0 {
			m.loginFocus = 1
			return m, m.focusLogin(), true
		}
		creds := model.Credentials{
			Email:    strings.TrimSpace(m.loginInputs[0].Value()),
			Password: m.loginInputs[1].Value(),
		}
		if creds.Email == "" || creds.Password == "" {
			m.setNotice(service.ErrCredentialsRequired.Error(), true)
			return m, nil, true
		}
		if err := service.ValidateEmail(creds.Email); err != nil {
			m.setNotice(err.Error(), true)
			return m, nil, true
		}
		m.notice = ""
		next, cmd := m.load("Signing in", m.loginCmd(creds))
		return next, cmd, true
	}
	return m, nil, false
}

func (m appModel) handleSeatKey(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "q":
		return m, tea.Quit, true
	case "up", "k":
		m.picker.move(-1, 0)
	case "down", "j":
		m.picker.move(1, 0)
	case "left", "h":
		m.picker.move(0, -1)
	case "right", "l":
		m.picker.move(0, 1)
	case " ", "x":
		if !m.picker.toggle() {
			m.setNotice("That seat is not available.", true)
			return m, nil, true
		}
		m.notice = ""
	case "n":
		m.picker.showNumbers = !m.picker.showNumbers
	case "enter":
		seats := m.picker.selected()
		if len(seats) == 0 {
			m.setNotice("Pick at least one seat with space.", true)
			return m, nil, true
		}
		m.notice = ""
		m.discountIdx = -1
		next, cmd := m.load("Checking seats", m.quoteCmd(seats, ""))
		return next, cmd, true
	}
	return m, nil, true
}

func (m appModel) goBack() (tea.Model, tea.Cmd) {
	m.notice = ""
	var target appState
	switch m.state {
	case stateLogin, stateSelectMovie, stateBookings, stateWallet, stateDiscounts, stateBooked:
		target = stateMenu
	case stateShowShowings:
		target = stateSelectMovie
	case stateShowSeatMap:
		m.app.Bookings.ClearBookingData()
		target = stateShowShowings
	case stateConfirm:
		target = stateShowSeatMap
	case stateTopUp:
		target = stateWallet
	case stateError:
		m.state = m.lastState
		m.err = nil
		return m, nil
	default:
		return m, nil
	}
	m.app.Nav.Replace(m.pathFor(target))
	m.state = target
	return m, nil
}

// open navigates to target and loads what it shows. Guarded targets send a
// signed out user to the login form first.
func (m appModel) open(target appState) (tea.Model, tea.Cmd) {
	if target == stateLogin {
		m.app.Nav.Push(router.PathLogin)
		m.toLogin()
		return m, textinput.Blink
	}
	if !m.enter(target) {
		return m, textinput.Blink
	}
	switch target {
	case stateSelectMovie:
		return m.load("Loading movies", m.moviesCmd())
	case stateBookings:
		return m.load("Loading bookings", m.bookingsCmd())
	case stateWallet:
		return m.load("Loading wallet", m.walletCmd())
	case stateDiscounts:
		return m.load("Loading discounts", m.discountsCmd())
	case stateTopUp:
		m.amountInput.Reset()
		m.state = stateTopUp
		return m, m.amountInput.Focus()
	default:
		m.state = target
		return m, nil
	}
}

// enter pushes the route of target. It reports false when the guards sent
// the user to the login page instead.
func (m *appModel) enter(target appState, ids ...string) bool {
	path := m.pathFor(target, ids...)
	loc := m.app.Nav.Push(path)
	if loc.Path == router.PathLogin && path != router.PathLogin {
		m.toLogin()
		return false
	}
	return true
}

func (m *appModel) toLogin() {
	m.state = stateLogin
	m.loginFocus = 0
	if user, ok := m.app.Auth.User(); ok && m.loginInputs[0].Value() == "" {
		m.loginInputs[0].SetValue(user.Email)
	}
	m.loginInputs[1].Reset()
	m.focusLogin()
}

func (m *appModel) focusLogin() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.loginInputs {
		if i == m.loginFocus {
			cmd = m.loginInputs[i].Focus()
			continue
		}
		m.loginInputs[i].Blur()
	}
	return cmd
}

func (m appModel) load(title string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.loading = title
	m.state = stateLoading
	return m, tea.Batch(cmd, m.spinner.Tick)
}

func (m appModel) reloadSeatMap(err error) (tea.Model, tea.Cmd) {
	m.setNotice(err.Error()+", pick again.", true)
	showing, _ := m.app.Bookings.SelectedShowing()
	return m.load("Refreshing seat map", m.seatMapCmd(showing.ID.String()))
}

// fail records err and shows it until the user goes back to returnState.
func (m appModel) fail(op string, err error, returnState appState) (tea.Model, tea.Cmd) {
	if err == nil || errors.Is(err, store.ErrSuperseded) {
		if m.state == stateLoading {
			m.state = returnState
		}
		return m, nil
	}
	m.app.ReportError(op, err)
	if service.IsUnauthorized(err) && !m.app.Auth.IsAuthenticated() {
		m.toLogin()
		m.setNotice(err.Error(), true)
		return m, textinput.Blink
	}
	m.err = err
	m.lastState = returnState
	m.state = stateError
	return m, nil
}

func (m *appModel) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m *appModel) refreshDiscountList() {
	title := "Discounts"
	if m.memberOnly {
		title = "Discounts • for your card"
	}
	m.discountList.Title = title
	m.discountList.SetItems(buildDiscountItems(m.app.Discounts.Discounts(), m.app.Discounts.MemberDiscounts(), m.memberOnly, time.Now()))
}

func (m appModel) discountID() model.ID {
	discounts := m.app.Discounts.MemberDiscounts()
	if m.discountIdx < 0 || m.discountIdx >= len(discounts) {
		return ""
	}
	return discounts[m.discountIdx].ID
}

func (m appModel) discountLabel() string {
	discounts := m.app.Discounts.MemberDiscounts()
	if m.discountIdx < 0 || m.discountIdx >= len(discounts) {
		if len(discounts) == 0 {
			return "none"
		}
		return fmt.Sprintf("none (%d available)", len(discounts))
	}
	d := discounts[m.discountIdx]
	return fmt.Sprintf("%s, %s", d.Name, formatDiscountValue(d))
}

func (m appModel) pathFor(state appState, ids ...string) string {
	id := ""
	if len(ids) > 0 {
		id = ids[0]
	}
	switch state {
	case stateLogin:
		return router.PathLogin
	case stateSelectMovie:
		return "/movies"
	case stateShowShowings:
		return "/movies/" + m.movie.ID.String()
	case stateShowSeatMap:
		if id == "" {
			showing, _ := m.app.Bookings.SelectedShowing()
			id = showing.ID.String()
		}
		return "/booking/showing/" + id
	case stateConfirm:
		return "/booking/confirm"
	case stateBookings:
		return "/member"
	case stateWallet:
		return "/wallet"
	case stateTopUp:
		return "/wallet/topup"
	case stateDiscounts:
		return "/discounts"
	default:
		return router.PathHome
	}
}

// stateForPath maps a route back to the screen that shows it, used for the
// post-login redirect.
func stateForPath(path string) appState {
	path, _, _ = strings.Cut(path, "?")
	switch {
	case path == "/wallet/topup":
		return stateTopUp
	case strings.HasPrefix(path, "/wallet"):
		return stateWallet
	case strings.HasPrefix(path, "/discounts"):
		return stateDiscounts
	case strings.HasPrefix(path, "/member"):
		return stateBookings
	case strings.HasPrefix(path, "/movies"), strings.HasPrefix(path, "/booking"):
		return stateSelectMovie
	default:
		return stateMenu
	}
}

func (m *appModel) handleFilterInput(msg tea.KeyMsg) bool {
	listPtr := m.activeList()
	if listPtr == nil {
		return false
	}
	if !listPtr.FilteringEnabled() {
		return false
	}
	switch msg.Type {
	case tea.KeyRunes:
		if len(msg.Runes) == 0 {
			return false
		}
		m.appendFilter(listPtr, string(msg.Runes))
		return true
	case tea.KeySpace:
		m.appendFilter(listPtr, " ")
		return true
	case tea.KeyBackspace, tea.KeyDelete:
		if listPtr.FilterValue() == "" {
			return false
		}
		m.popFilter(listPtr)
		return true
	default:
		return false
	}
}

func (m *appModel) appendFilter(listPtr *list.Model, value string) {
	if value == "" {
		return
	}
	listPtr.SetFilterText(listPtr.FilterValue() + value)
}

func (m *appModel) popFilter(listPtr *list.Model) {
	value := trimLastRune(listPtr.FilterValue())
	if value == "" {
		listPtr.ResetFilter()
		return
	}
	listPtr.SetFilterText(value)
}

func trimLastRune(value string) string {
	runes := []rune(value)
	if len(runes) <= 1 {
		return ""
	}
	return string(runes[:len(runes)-1])
}

func (m *appModel) activeList() *list.Model {
	switch m.state {
	case stateSelectMovie:
		return &m.movieList
	case stateShowShowings:
		return &m.showingList
	case stateBookings:
		return &m.bookingList
	case stateWallet:
		return &m.txList
	case stateDiscounts:
		return &m.discountList
	default:
		return nil
	}
}

func (m appModel) loadingView() string {
	title := m.loading
	if title == "" {
		title = "Loading"
	}
	return fmt.Sprintf("%s %s\n\n%s", m.spinner.View(), title, hint("Talking to the citizen card service..."))
}

func (m *appModel) resizeLists() {
	if m.width == 0 || m.height == 0 {
		return
	}
	h := max(m.height-7, 6)
	m.menuList.SetSize(m.width, h)
	m.movieList.SetSize(m.width, h)
	m.showingList.SetSize(m.width, h)
	m.bookingList.SetSize(m.width, h)
	m.txList.SetSize(m.width, max(h-2, 4))
	m.discountList.SetSize(m.width, h)
}

func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = title
	l.Filter = caseInsensitiveFilter
	l.SetFilteringEnabled(true)
	l.SetShowFilter(true)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	return l
}

func hint(text string) string {
	return lipgloss.NewStyle().Faint(true).Render(text)
}

func caseInsensitiveFilter(term string, targets []string) []list.Rank {
	term = strings.ToLower(term)
	lower := make([]string, len(targets))
	for i, t := range targets {
		lower[i] = strings.ToLower(t)
	}
	return list.DefaultFilter(term, lower)
}

func bookingAmount(b model.Booking) float64 {
	if b.FinalAmount > 0 || b.DiscountAmount > 0 {
		return b.FinalAmount
	}
	return b.Amount
}

func maskCard(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("•", 4) + " " + number[len(number)-4:]
}
