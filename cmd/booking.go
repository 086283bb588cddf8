package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"citizen-card-cli/app"
	"citizen-card-cli/model"
	"citizen-card-cli/service"
)

const noDiscount = "No discount"

var errNoBookingID = errors.New("the server accepted the booking but returned no booking id")

// bookingCreated tells a failed booking from a created one. An error next to
// a booking id only means the follow-up list refresh failed.
func bookingCreated(b model.Booking, err error) error {
	switch {
	case b.ID == "" && err != nil:
		return err
	case b.ID == "":
		return errNoBookingID
	}
	return nil
}

var (
	bookSeats    []string
	bookDiscount string
	bookPay      bool
	bookYes      bool

	bookingStatus string
	bookingPage   int
)

var bookCmd = &cobra.Command{
	Use:   "book [showing-id]",
	Short: "Book seats for a showing",
	Long: `Book seats for a showing. Anything not given as a flag is asked for:
the movie and showing, the seats and an optional member discount.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/booking"); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			showingID := ""
			if len(args) == 1 {
				showingID = args[0]
			} else {
				id, err := pickShowing(ctx, a)
				if err != nil {
					return err
				}
				showingID = id
			}
			if err := enter(a, "/booking/showing/"+showingID); err != nil {
				return err
			}
			if err := a.Bookings.SelectShowing(ctx, showingID); err != nil {
				return err
			}
			showing, _ := a.Bookings.SelectedShowing()
			if !showing.ShowTime.After(time.Now()) {
				return fmt.Errorf("showing %s has already started", showingID)
			}
			if err := a.Movies.FetchSeatMap(ctx, showingID); err != nil {
				return err
			}
			seatMap, _ := a.Movies.SeatMap()
			fmt.Fprintf(out, "%s at %s, %s\n\n", showing.MovieName, showing.VenueName, when(showing.ShowTime))
			renderSeatMap(out, seatMap, nil)

			seats := normalizeLabels(bookSeats)
			if len(seats) == 0 {
				picked, err := promptSeats(seatMap)
				if err != nil {
					return err
				}
				seats = picked
			}
			if err := a.Bookings.SelectSeats(ctx, seats); err != nil {
				if errors.Is(err, service.ErrSeatsUnavailable) {
					return fmt.Errorf("%w, run \"citizen seats %s\" to see what is free", err, showingID)
				}
				return err
			}

			discountID := model.ID(bookDiscount)
			if !cmd.Flags().Changed("discount") {
				id, err := promptDiscount(a.Discounts.MemberDiscounts())
				if err != nil {
					return err
				}
				discountID = id
			}
			quote, err := a.Bookings.CalculateAmount(ctx, discountID)
			if err != nil {
				return err
			}

			if err := enter(a, "/booking/confirm"); err != nil {
				return err
			}
			t := newTable(out, nil)
			t.AppendRows(details{
				{"Movie", showing.MovieName},
				{"Showing", when(showing.ShowTime)},
				{"Seats", strings.Join(a.Bookings.SelectedSeats(), ", ")},
				{"Price", money(quote.OriginalAmount)},
				{"Discount", money(quote.DiscountAmount)},
				{"To pay", money(quote.FinalAmount)},
			}.rows())
			t.Render()
			if !bookYes && !confirm("Confirm booking") {
				a.Bookings.ClearBookingData()
				fmt.Fprintln(out, "Booking discarded.")
				return nil
			}

			booking, err := a.Bookings.CreateBooking(ctx, model.BookingExtras{DiscountID: discountID})
			if e := bookingCreated(booking, err); e != nil {
				return e
			}
			if err != nil {
				a.ReportError("refresh bookings", err)
			}
			fmt.Fprintf(out, "Booking %s created, seats %s.\n", booking.ID, strings.Join(booking.Seats, ", "))

			if bookPay || (!bookYes && confirm(fmt.Sprintf("Pay %s from your wallet now", money(quote.FinalAmount)))) {
				return payBooking(ctx, a, cmd, booking, quote.FinalAmount)
			}
			fmt.Fprintf(out, "Pay later with \"citizen wallet pay --order %s --amount %s\".\n", booking.ID, money(quote.FinalAmount))
			return nil
		})
	},
}

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "List your bookings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/member"); err != nil {
				return err
			}
			a.Bookings.SetStatusFilter(strings.ToUpper(bookingStatus))
			if bookingPage > 0 {
				p := a.Bookings.Pagination()
				a.Bookings.SetPagination(bookingPage, p.Limit)
			}
			if err := a.Bookings.FetchBookings(ctx); err != nil {
				return err
			}
			bookings := a.Bookings.Bookings()
			if len(bookings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No bookings yet.")
				return nil
			}
			renderBookings(cmd.OutOrStdout(), bookings)
			p := a.Bookings.Pagination()
			fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d bookings in total, %d upcoming, %d completed, %d cancelled\n",
				p.Page, p.Total, len(a.Bookings.UpcomingBookings()), len(a.Bookings.CompletedBookings()), len(a.Bookings.CancelledBookings()))
			return nil
		})
	},
}

var bookingCmd = &cobra.Command{
	Use:   "booking <id>",
	Short: "Show a booking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/member"); err != nil {
				return err
			}
			if err := a.Bookings.FetchBookingDetails(ctx, args[0]); err != nil {
				return err
			}
			b, _ := a.Bookings.CurrentBooking()
			t := newTable(cmd.OutOrStdout(), nil)
			t.AppendRows(details{
				{"Booking", b.ID.String()},
				{"Movie", b.MovieName},
				{"Venue", b.VenueName},
				{"Showing", when(b.ShowTime)},
				{"Seats", strings.Join(b.Seats, ", ")},
				{"Amount", money(b.Amount)},
				{"Discount", money(b.DiscountAmount)},
				{"Paid", money(bookingTotal(b))},
				{"Status", b.Status},
				{"Booked at", when(b.BookingTime)},
			}.rows())
			t.Render()
			return nil
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <booking-id>",
	Short: "Cancel a booking, up to two hours before the show",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/member"); err != nil {
				return err
			}
			if !yes && !confirm("Cancel booking "+args[0]) {
				return nil
			}
			booking, err := a.Bookings.CancelBooking(ctx, args[0])
			if booking.ID == "" {
				return err
			}
			if err != nil {
				a.ReportError("refresh bookings", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Booking %s cancelled.\n", booking.ID)
			return nil
		})
	},
}

func init() {
	bookCmd.Flags().StringSliceVar(&bookSeats, "seats", nil, "seat labels, e.g. A1,A2")
	bookCmd.Flags().StringVar(&bookDiscount, "discount", "", "member discount id, empty for none")
	bookCmd.Flags().BoolVar(&bookPay, "pay", false, "pay from the wallet right after booking")
	bookCmd.Flags().BoolVarP(&bookYes, "yes", "y", false, "do not ask for confirmation")

	bookingsCmd.Flags().StringVar(&bookingStatus, "status", "", "pending, completed or cancelled")
	bookingsCmd.Flags().IntVarP(&bookingPage, "page", "p", 0, "page number")

	cancelCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	rootCmd.AddCommand(bookCmd, bookingsCmd, bookingCmd, cancelCmd)
}

func pickShowing(ctx context.Context, a *app.App) (string, error) {
	if err := a.Movies.FetchMovies(ctx); err != nil {
		return "", err
	}
	movieID, err := promptSelectMovie(a.Movies.Movies())
	if err != nil {
		return "", err
	}
	if err := enter(a, "/booking/"+movieID); err != nil {
		return "", err
	}
	if err := a.Movies.FetchShowings(ctx, movieID, time.Time{}); err != nil {
		return "", err
	}
	var upcoming []model.Showing
	for _, s := range a.Movies.Showings() {
		if s.ShowTime.After(time.Now()) && s.AvailableSeats > 0 {
			upcoming = append(upcoming, s)
		}
	}
	return promptSelectShowing(upcoming)
}

func normalizeLabels(labels []string) []string {
	var out []string
	for _, l := range labels {
		if l = strings.ToUpper(strings.TrimSpace(l)); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func promptSeats(m model.SeatMap) ([]string, error) {
	p := promptui.Prompt{
		Label: "Seats (comma separated)",
		Validate: func(input string) error {
			labels := normalizeLabels(strings.Split(input, ","))
			if len(labels) == 0 {
				return service.ErrSeatsRequired
			}
			for _, l := range labels {
				seat, ok := m.Seat(l)
				if !ok {
					return fmt.Errorf("no seat %s", l)
				}
				if !seat.Available() {
					return fmt.Errorf("seat %s is taken", l)
				}
			}
			return nil
		},
	}
	input, err := p.Run()
	if err != nil {
		return nil, err
	}
	return normalizeLabels(strings.Split(input, ",")), nil
}

func promptDiscount(discounts []model.Discount) (model.ID, error) {
	if len(discounts) == 0 {
		return "", nil
	}
	discountIDByName := map[string]model.ID{noDiscount: ""}
	for _, d := range discounts {
		discountIDByName[fmt.Sprintf("%s (%s)", d.Name, discountValue(d))] = d.ID
	}
	names := maps.Keys(discountIDByName)
	sort.Strings(names)

	selectDiscount := promptui.Select{
		Label: "Use a member discount",
		Items: names,
		Size:  10,
	}
	_, name, err := selectDiscount.Run()
	if err != nil {
		return "", err
	}
	return discountIDByName[name], nil
}

func payBooking(ctx context.Context, a *app.App, cmd *cobra.Command, b model.Booking, amount float64) error {
	enough, err := a.Wallet.CheckBalance(ctx, amount)
	if err != nil {
		return err
	}
	if !enough {
		return fmt.Errorf("wallet balance is too low to pay %s, top up with \"citizen wallet topup\"", money(amount))
	}
	tx, err := a.Wallet.Pay(ctx, model.PaymentRequest{
		Amount:  amount,
		Purpose: "Movie booking " + b.ID.String(),
		OrderID: b.ID.String(),
	})
	if tx.TransactionID == "" {
		return err
	}
	if err != nil {
		a.ReportError("refresh wallet", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Paid %s, transaction %s. Balance %s.\n", money(tx.Amount), tx.TransactionID, money(a.Wallet.CurrentBalance()))
	return nil
}
