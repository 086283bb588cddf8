package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"

	"citizen-card-cli/model"
)

type menuItem struct {
	title  string
	desc   string
	target appState
	logout bool
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return strings.ToLower(i.title) }

func buildMenuItems(signedIn bool) []list.Item {
	items := []list.Item{
		menuItem{title: "Movies", desc: "Browse movies and book seats", target: stateSelectMovie},
		menuItem{title: "My bookings", desc: "Upcoming and past bookings", target: stateBookings},
		menuItem{title: "Wallet", desc: "Balance, top-ups and transactions", target: stateWallet},
		menuItem{title: "Discounts", desc: "Discounts for your citizen card", target: stateDiscounts},
	}
	if signedIn {
		return append(items, menuItem{title: "Sign out", desc: "Forget this session", logout: true})
	}
	return append(items, menuItem{title: "Sign in", desc: "Use your citizen card account", target: stateLogin})
}

type movieItem struct {
	movie model.Movie
}

func (m movieItem) Title() string {
	return m.movie.Name
}

func (m movieItem) Description() string {
	parts := []string{}
	if m.movie.CategoryName != "" {
		parts = append(parts, m.movie.CategoryName)
	}
	if m.movie.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%d min", m.movie.Duration))
	}
	if m.movie.Rating > 0 {
		parts = append(parts, fmt.Sprintf("rated %.1f", m.movie.Rating))
	}
	return strings.Join(parts, " • ")
}

func (m movieItem) FilterValue() string {
	return strings.ToLower(strings.Join([]string{m.movie.Name, m.movie.CategoryName}, " "))
}

func buildMovieItems(movies []model.Movie) []list.Item {
	items := make([]list.Item, 0, len(movies))
	for _, movie := range movies {
		items = append(items, movieItem{movie: movie})
	}
	return items
}

type showingItem struct {
	showing model.Showing
	now     time.Time
}

func (s showingItem) Title() string {
	return fmt.Sprintf("%s • %s", s.showing.ShowTime.Local().Format("Mon 02 Jan 15:04"), s.showing.VenueName)
}

func (s showingItem) Description() string {
	seats := fmt.Sprintf("%d of %d seats free", s.showing.AvailableSeats, s.showing.TotalSeats)
	switch {
	case !s.showing.ShowTime.After(s.now):
		seats = "started"
	case s.showing.AvailableSeats == 0:
		seats = "sold out"
	}
	return fmt.Sprintf("%s • %s", formatPrice(s.showing.Price), seats)
}

func (s showingItem) FilterValue() string {
	return strings.ToLower(s.showing.VenueName + " " + s.showing.ShowTime.Local().Format("Mon 02 Jan 15:04"))
}

func (s showingItem) bookable() bool {
	return s.showing.ShowTime.After(s.now) && s.showing.AvailableSeats > 0
}

func buildShowingItems(showings []model.Showing, now time.Time) []list.Item {
	items := make([]list.Item, 0, len(showings))
	for _, showing := range showings {
		items = append(items, showingItem{showing: showing, now: now})
	}
	return items
}

type bookingItem struct {
	booking model.Booking
}

func (b bookingItem) Title() string {
	return fmt.Sprintf("%s • %s", b.booking.MovieName, b.booking.ShowTime.Local().Format("Mon 02 Jan 15:04"))
}

func (b bookingItem) Description() string {
	amount := b.booking.Amount
	if b.booking.FinalAmount > 0 || b.booking.DiscountAmount > 0 {
		amount = b.booking.FinalAmount
	}
	return fmt.Sprintf("%s • seats %s • %s", b.booking.Status, strings.Join(b.booking.Seats, ", "), formatPrice(amount))
}

func (b bookingItem) FilterValue() string {
	return strings.ToLower(strings.Join([]string{b.booking.MovieName, b.booking.VenueName, b.booking.Status}, " "))
}

func buildBookingItems(bookings []model.Booking) []list.Item {
	items := make([]list.Item, 0, len(bookings))
	for _, booking := range bookings {
		items = append(items, bookingItem{booking: booking})
	}
	return items
}

type transactionItem struct {
	tx model.Transaction
}

func (t transactionItem) Title() string {
	sign := "+"
	if t.tx.Type == model.TxPayment {
		sign = "-"
	}
	return fmt.Sprintf("%s%s • %s", sign, formatPrice(t.tx.Amount), t.tx.Type)
}

func (t transactionItem) Description() string {
	parts := []string{t.tx.CreatedAt.Local().Format("2006-01-02 15:04")}
	if t.tx.Description != "" {
		parts = append(parts, t.tx.Description)
	}
	parts = append(parts, "balance "+formatPrice(t.tx.Balance))
	return strings.Join(parts, " • ")
}

func (t transactionItem) FilterValue() string {
	return strings.ToLower(t.tx.Type + " " + t.tx.Description)
}

func buildTransactionItems(txs []model.Transaction) []list.Item {
	items := make([]list.Item, 0, len(txs))
	for _, tx := range txs {
		items = append(items, transactionItem{tx: tx})
	}
	return items
}

type discountItem struct {
	discount model.Discount
	mine     bool
	now      time.Time
}

func (d discountItem) Title() string {
	if d.mine {
		return d.discount.Name + " ★"
	}
	return d.discount.Name
}

func (d discountItem) Description() string {
	parts := []string{formatDiscountValue(d.discount), model.DiscountStatus(d.discount, d.now)}
	if d.discount.Category != "" {
		parts = append(parts, d.discount.Category)
	}
	if left, limited := model.RemainingUses(d.discount); limited {
		parts = append(parts, fmt.Sprintf("%d uses left", left))
	}
	parts = append(parts, "until "+d.discount.ValidUntil.Local().Format(time.DateOnly))
	return strings.Join(parts, " • ")
}

func (d discountItem) FilterValue() string {
	return strings.ToLower(strings.Join([]string{d.discount.Name, d.discount.Category, d.discount.Type}, " "))
}

// buildDiscountItems marks the discounts the member's card can use. With
// memberOnly set only those are listed.
func buildDiscountItems(all []model.Discount, member []model.Discount, memberOnly bool, now time.Time) []list.Item {
	mine := make(map[model.ID]bool, len(member))
	for _, d := range member {
		mine[d.ID] = true
	}
	source := all
	if memberOnly {
		source = member
	}
	items := make([]list.Item, 0, len(source))
	for _, d := range source {
		items = append(items, discountItem{discount: d, mine: mine[d.ID], now: now})
	}
	return items
}

func formatDiscountValue(d model.Discount) string {
	if d.Type == "PERCENTAGE" {
		return fmt.Sprintf("%g%% off", d.Value)
	}
	return formatPrice(d.Value) + " off"
}

func formatPrice(price float64) string {
	if price <= 0 {
		return "-"
	}
	return fmt.Sprintf("$%.2f", price)
}
