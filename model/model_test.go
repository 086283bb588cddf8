package model

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"
)

func TestFormatWalletInfo_BalanceMatchesRawNumber(t *testing.T) {
	cases := []string{
		`{"wallet_id":1,"balance":1250.5,"card_number":"1234567890123456","card_type":"NORMAL"}`,
		`{"wallet_id":"w-1","balance":"1250.50","card_number":"1234567890123456","card_type":"NORMAL"}`,
	}
	for _, payload := range cases {
		var raw RawWalletInfo
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		info := FormatWalletInfo(raw)
		if info.Balance != 1250.5 {
			t.Fatalf("expected balance 1250.5, got %v", info.Balance)
		}
		if info.CardNumber != "1234567890123456" {
			t.Fatalf("unexpected card number: %q", info.CardNumber)
		}
	}
}

func TestNumber_RejectsGarbage(t *testing.T) {
	var n Number
	if err := json.Unmarshal([]byte(`"abc"`), &n); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
	if err := json.Unmarshal([]byte(`null`), &n); err != nil || n != 0 {
		t.Fatalf("expected null to decode to zero, got %v (%v)", n, err)
	}
}

func TestID_AcceptsNumbersAndStrings(t *testing.T) {
	var ids []ID
	if err := json.Unmarshal([]byte(`[42,"abc",null]`), &ids); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ids[0] != "42" || ids[1] != "abc" || ids[2] != "" {
		t.Fatalf("unexpected ids: %+v", ids)
	}
}

func TestDiscount_ExpiredYesterday(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d := Discount{
		ValidFrom:  now.AddDate(0, -1, 0),
		ValidUntil: now.AddDate(0, 0, -1),
	}
	if IsDiscountActive(d, now) {
		t.Fatal("expected expired discount to be inactive")
	}
	if got := DiscountStatus(d, now); got != DiscountExpired {
		t.Fatalf("expected %q, got %q", DiscountExpired, got)
	}
}

func TestDiscount_Depleted(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d := Discount{
		ValidFrom:  now.AddDate(0, 0, -1),
		ValidUntil: now.AddDate(0, 0, 1),
		UsageLimit: 3,
		UsageCount: 3,
	}
	remaining, limited := RemainingUses(d)
	if !limited || remaining != 0 {
		t.Fatalf("expected 0 remaining uses, got %d (limited=%v)", remaining, limited)
	}
	if got := DiscountStatus(d, now); got != DiscountDepleted {
		t.Fatalf("expected %q, got %q", DiscountDepleted, got)
	}
	if IsDiscountActive(d, now) {
		t.Fatal("expected depleted discount to be inactive")
	}
}

func TestDiscount_StatusTable(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		discount  Discount
		status    string
		active    bool
		remaining int
		limited   bool
	}{
		{
			name:     "upcoming",
			discount: Discount{ValidFrom: now.Add(time.Hour), ValidUntil: now.Add(48 * time.Hour)},
			status:   DiscountUpcoming,
		},
		{
			name:     "unlimited active",
			discount: Discount{ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour), UsageCount: 99},
			status:   DiscountActive,
			active:   true,
		},
		{
			name:      "limited active",
			discount:  Discount{ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour), UsageLimit: 5, UsageCount: 2},
			status:    DiscountActive,
			active:    true,
			remaining: 3,
			limited:   true,
		},
		{
			name:      "over-used clamps to zero",
			discount:  Discount{ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour), UsageLimit: 2, UsageCount: 4},
			status:    DiscountDepleted,
			remaining: 0,
			limited:   true,
		},
		{
			name:     "valid until is exclusive for activity",
			discount: Discount{ValidFrom: now.Add(-time.Hour), ValidUntil: now},
			status:   DiscountActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DiscountStatus(tt.discount, now); got != tt.status {
				t.Fatalf("status: expected %q, got %q", tt.status, got)
			}
			if got := IsDiscountActive(tt.discount, now); got != tt.active {
				t.Fatalf("active: expected %v, got %v", tt.active, got)
			}
			remaining, limited := RemainingUses(tt.discount)
			if remaining != tt.remaining || limited != tt.limited {
				t.Fatalf("remaining: expected %d/%v, got %d/%v", tt.remaining, tt.limited, remaining, limited)
			}
		})
	}
}

func TestFormatBooking_FallsBackToNestedShowing(t *testing.T) {
	show := time.Date(2025, 5, 1, 20, 0, 0, 0, time.UTC)
	raw := RawBooking{
		BookingID: "b1",
		ShowingID: "s1",
		Seats:     []string{"A1", "A2"},
		Amount:    Number(360),
		Status:    BookingPending,
		Showing:   &RawShowing{ShowingID: "s1", ShowTime: show, MovieName: "Dune"},
	}
	booking := FormatBooking(raw)
	if !booking.ShowTime.Equal(show) {
		t.Fatalf("expected show time %v, got %v", show, booking.ShowTime)
	}
	if booking.MovieName != "Dune" {
		t.Fatalf("expected movie name from showing, got %q", booking.MovieName)
	}
	raw.Seats[0] = "Z9"
	if booking.Seats[0] != "A1" {
		t.Fatal("expected seats to be copied")
	}
}

func TestFormatSeatMap_GroupsLines(t *testing.T) {
	raw := RawSeatMap{ShowingID: "s1", Rows: 2, Columns: 3}
	for row := 2; row >= 1; row-- {
		for col := 3; col >= 1; col-- {
			raw.Seats = append(raw.Seats, RawSeat{
				SeatID: string(rune('A'+row-1)) + strconv.Itoa(col),
				Row:    row,
				Column: col,
				Status: SeatAvailable,
			})
		}
	}
	raw.Seats[0].Status = SeatOccupied

	m := FormatSeatMap(raw)
	if len(m.Lines) != 2 || m.Lines[0].Line != 1 {
		t.Fatalf("unexpected lines: %+v", m.Lines)
	}
	if m.Lines[0].Seats[0].Label != "A1" {
		t.Fatalf("expected first seat A1, got %q", m.Lines[0].Seats[0].Label)
	}
	if got := m.AvailableCount(); got != 5 {
		t.Fatalf("expected 5 available seats, got %d", got)
	}
	if seat, ok := m.Seat("B3"); !ok || seat.Available() {
		t.Fatalf("expected B3 to be occupied, got %+v", seat)
	}
}
