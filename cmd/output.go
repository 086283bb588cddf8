package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/manifoldco/promptui"

	"citizen-card-cli/model"
)

const timeLayout = "2006-01-02 15:04"

var rowConfigAutoMerge = table.RowConfig{AutoMerge: true}

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	if len(header) > 0 {
		t.AppendHeader(header, rowConfigAutoMerge)
	}
	t.Style().Options.SeparateRows = true
	return t
}

// details is a two column label/value listing.
type details [][2]string

func (d details) rows() []table.Row {
	rows := make([]table.Row, 0, len(d))
	for _, kv := range d {
		rows = append(rows, table.Row{kv[0], kv[1]})
	}
	return rows
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func renderMovies(out io.Writer, movies []model.Movie) {
	t := newTable(out, table.Row{"ID", "Movie", "Category", "Duration", "Rating"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 30},
		{Number: 5, Align: text.AlignRight},
	})
	for _, m := range movies {
		t.AppendRow(table.Row{m.ID, m.Name, m.CategoryName, fmt.Sprintf("%d min", m.Duration), fmt.Sprintf("%.1f", m.Rating)})
	}
	t.Render()
}

func renderShowings(out io.Writer, showings []model.Showing) {
	t := newTable(out, table.Row{"Movie", "Venue", "ID", "Time", "Seats", "Price"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true, WidthMax: 20},
		{Number: 2, AutoMerge: true},
		{Number: 6, Align: text.AlignRight},
	})
	for _, s := range showings {
		t.AppendRow(table.Row{
			s.MovieName,
			s.VenueName,
			s.ID,
			when(s.ShowTime),
			fmt.Sprintf("%d/%d", s.AvailableSeats, s.TotalSeats),
			money(s.Price),
		}, rowConfigAutoMerge)
	}
	t.Render()
}

func renderBookings(out io.Writer, bookings []model.Booking) {
	t := newTable(out, table.Row{"ID", "Movie", "Showing", "Seats", "Paid", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 24},
		{Number: 5, Align: text.AlignRight},
	})
	for _, b := range bookings {
		t.AppendRow(table.Row{b.ID, b.MovieName, when(b.ShowTime), strings.Join(b.Seats, ", "), money(bookingTotal(b)), b.Status})
	}
	t.Render()
}

func bookingTotal(b model.Booking) float64 {
	if b.FinalAmount > 0 || b.DiscountAmount > 0 {
		return b.FinalAmount
	}
	return b.Amount
}

func renderTransactions(out io.Writer, txs []model.Transaction) {
	t := newTable(out, table.Row{"ID", "Type", "Amount", "Balance", "Description", "Date"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, WidthMax: 28},
	})
	for _, tx := range txs {
		amount := money(tx.Amount)
		if tx.Type == model.TxPayment {
			amount = "-" + amount
		}
		t.AppendRow(table.Row{tx.TransactionID, tx.Type, amount, money(tx.Balance), tx.Description, when(tx.CreatedAt)})
	}
	t.Render()
}

func renderDiscounts(out io.Writer, discounts []model.Discount, now time.Time) {
	t := newTable(out, table.Row{"ID", "Discount", "Type", "Value", "Category", "Valid until", "Uses", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 24},
		{Number: 4, Align: text.AlignRight},
	})
	for _, d := range discounts {
		t.AppendRow(table.Row{d.ID, d.Name, d.Type, discountValue(d), d.Category, when(d.ValidUntil), remaining(d), model.DiscountStatus(d, now)})
	}
	t.Render()
}

func discountValue(d model.Discount) string {
	if d.Type == "PERCENTAGE" {
		return fmt.Sprintf("%g%%", d.Value)
	}
	return money(d.Value)
}

func remaining(d model.Discount) string {
	left, limited := model.RemainingUses(d)
	if !limited {
		return "unlimited"
	}
	return fmt.Sprintf("%d left", left)
}

// renderSeatMap prints one line per row, "[ ]" for free seats and "[x]" for
// taken ones, with the chosen seats marked "[*]".
func renderSeatMap(out io.Writer, m model.SeatMap, chosen []string) {
	picked := make(map[string]bool, len(chosen))
	for _, c := range chosen {
		picked[c] = true
	}
	fmt.Fprintln(out, strings.Repeat(" ", 4)+centered("SCREEN", m.Bounds.Columns*4))
	for _, line := range m.Lines {
		var b strings.Builder
		col := 1
		for _, seat := range line.Seats {
			for ; col < seat.Column; col++ {
				b.WriteString("    ")
			}
			switch {
			case picked[seat.Label]:
				b.WriteString("[*] ")
			case seat.Available():
				b.WriteString("[ ] ")
			default:
				b.WriteString("[x] ")
			}
			col++
		}
		label := ""
		if len(line.Seats) > 0 {
			label = strings.TrimRight(line.Seats[0].Label, "0123456789")
		}
		fmt.Fprintf(out, "%-3s %s\n", label, strings.TrimRight(b.String(), " "))
	}
	fmt.Fprintf(out, "\n%d seats available\n", m.AvailableCount())
}

func centered(s string, width int) string {
	if width <= len(s) {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat("-", pad) + s + strings.Repeat("-", width-len(s)-pad)
}

func confirm(label string) bool {
	p := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := p.Run()
	return err == nil
}

// aborted reports whether err came from the member leaving a prompt.
func aborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort)
}
