package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"citizen-card-cli/model"
	"citizen-card-cli/service"
)

var errInsufficientBalance = errors.New("wallet balance is too low, top up first")

func (m appModel) loginCmd(creds model.Credentials) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		err := a.Auth.Login(ctx, creds)
		if err == nil {
			if e := a.Discounts.FetchMemberDiscounts(ctx); e != nil {
				a.ReportError("load member discounts", e)
			}
		}
		return loggedInMsg{err: err}
	}
}

func (m appModel) logoutCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return loggedOutMsg{err: a.Auth.Logout(ctx)}
	}
}

func (m appModel) moviesCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return moviesMsg{err: a.Movies.FetchMovies(ctx)}
	}
}

func (m appModel) showingsCmd(movieID string) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return showingsMsg{err: a.Movies.FetchShowings(ctx, movieID, time.Time{})}
	}
}

func (m appModel) seatMapCmd(showingID string) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		if err := a.Bookings.SelectShowing(ctx, showingID); err != nil {
			return seatMapMsg{err: err}
		}
		return seatMapMsg{err: a.Movies.FetchSeatMap(ctx, showingID)}
	}
}

// quoteCmd prices the selection. With seats set they are checked against the
// live seat map first; nil keeps the current selection.
func (m appModel) quoteCmd(seats []string, discountID model.ID) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		if seats != nil {
			if err := a.Bookings.SelectSeats(ctx, seats); err != nil {
				return quoteMsg{err: err}
			}
		}
		quote, err := a.Bookings.CalculateAmount(ctx, discountID)
		return quoteMsg{quote: quote, err: err}
	}
}

func (m appModel) bookCmd(discountID model.ID) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		booking, err := a.Bookings.CreateBooking(ctx, model.BookingExtras{DiscountID: discountID})
		return bookedMsg{booking: booking, err: err}
	}
}

// payCmd pays a booking from the wallet, using the booking id as the order.
func (m appModel) payCmd(b model.Booking) tea.Cmd {
	a, ctx := m.app, m.ctx
	amount := bookingAmount(b)
	return func() tea.Msg {
		enough, err := a.Wallet.CheckBalance(ctx, amount)
		if err != nil {
			return paidMsg{err: err}
		}
		if !enough {
			return paidMsg{err: fmt.Errorf("%w: %s needed", errInsufficientBalance, formatPrice(amount))}
		}
		tx, err := a.Wallet.Pay(ctx, model.PaymentRequest{
			Amount:  amount,
			Purpose: "Movie booking " + b.ID.String(),
			OrderID: b.ID.String(),
		})
		return paidMsg{tx: tx, err: err}
	}
}

func (m appModel) bookingsCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return bookingsMsg{err: a.Bookings.FetchBookings(ctx)}
	}
}

func (m appModel) cancelCmd(id string) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		booking, err := a.Bookings.CancelBooking(ctx, id)
		return cancelledMsg{booking: booking, err: err}
	}
}

func (m appModel) walletCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return walletMsg{err: a.Wallet.Refresh(ctx)}
	}
}

func (m appModel) topUpCmd(amount float64) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		tx, err := a.Wallet.TopUp(ctx, amount, topUpMethod)
		return topUpMsg{tx: tx, err: err}
	}
}

// discountsCmd loads the catalogue and the member's usable discounts. Either
// one failing fails the screen.
func (m appModel) discountsCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return discountsMsg{err: errors.Join(
			a.Discounts.FetchDiscounts(ctx),
			a.Discounts.FetchMemberDiscounts(ctx),
		)}
	}
}

func parseAmount(s string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$")), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return amount, service.ValidateAmount(amount)
}
