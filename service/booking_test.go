package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"citizen-card-cli/model"
)

type recordedCall struct {
	method string
	path   string
	body   map[string]any
}

type recorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *recorder) add(req *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(req.Body).Decode(&body)
	r.mu.Lock()
	r.calls = append(r.calls, recordedCall{method: req.Method, path: req.URL.Path, body: body})
	r.mu.Unlock()
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.method+" "+c.path)
	}
	return out
}

func TestCancelBooking_WithinWindowMakesNoRequest(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	bookings := NewBookingService(newTestClient(server, WithClock(func() time.Time { return now })))

	_, err := bookings.CancelBooking(context.Background(), "b1", now.Add(90*time.Minute))
	if !errors.Is(err, ErrCancelWindowClosed) {
		t.Fatalf("expected ErrCancelWindowClosed, got %v", err)
	}
	if got := rec.paths(); len(got) != 0 {
		t.Fatalf("expected no requests, got %v", got)
	}
}

func TestCancelBooking_OutsideWindowCallsCancel(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		_, _ = w.Write([]byte(`{"BookingID":"b1","ShowingID":"s1","Seats":["A1"],"Amount":180,"Status":"CANCELLED"}`))
	}))
	defer server.Close()

	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	bookings := NewBookingService(newTestClient(server, WithClock(func() time.Time { return now })))

	booking, err := bookings.CancelBooking(context.Background(), "b1", now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if booking.Status != model.BookingCancelled {
		t.Fatalf("unexpected status: %s", booking.Status)
	}
	got := rec.paths()
	if len(got) != 1 || got[0] != "PUT /bookings/b1/cancel" {
		t.Fatalf("unexpected requests: %v", got)
	}
	if rec.calls[0].body["cancelTime"] != now.Format(time.RFC3339) {
		t.Fatalf("unexpected cancel body: %+v", rec.calls[0].body)
	}
}

func TestCancelBooking_UnknownShowTimeFetchesDetails(t *testing.T) {
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		show := now.Add(time.Hour).Format(time.RFC3339)
		_, _ = w.Write([]byte(`{"BookingID":"b1","ShowingID":"s1","Status":"PENDING","Showing":{"ShowingID":"s1","ShowTime":"` + show + `"}}`))
	}))
	defer server.Close()

	bookings := NewBookingService(newTestClient(server, WithClock(func() time.Time { return now })))

	_, err := bookings.CancelBooking(context.Background(), "b1", time.Time{})
	if !errors.Is(err, ErrCancelWindowClosed) {
		t.Fatalf("expected ErrCancelWindowClosed, got %v", err)
	}
	got := rec.paths()
	if len(got) != 1 || got[0] != "GET /bookings/b1" {
		t.Fatalf("expected only the detail fetch, got %v", got)
	}
}

func TestCreateBooking_ReverifiesAvailability(t *testing.T) {
	rec := &recorder{}
	available := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		switch r.URL.Path {
		case "/showings/s1/check-seats":
			_ = json.NewEncoder(w).Encode(map[string]bool{"available": available})
		case "/bookings":
			_, _ = w.Write([]byte(`{"BookingID":"b42","ShowingID":"s1","Seats":["A1","A2"],"Amount":"360","Status":"PENDING"}`))
		}
	}))
	defer server.Close()

	bookings := NewBookingService(newTestClient(server))
	ctx := context.Background()

	booking, err := bookings.CreateBooking(ctx, "s1", []string{"a1", "A2", "A1"}, model.BookingExtras{DiscountID: "d1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if booking.ID != "b42" || booking.Amount != 360 {
		t.Fatalf("unexpected booking: %+v", booking)
	}
	got := rec.paths()
	if len(got) != 2 || got[0] != "POST /showings/s1/check-seats" || got[1] != "POST /bookings" {
		t.Fatalf("unexpected requests: %v", got)
	}
	create := rec.calls[1].body
	if create["status"] != model.BookingPending || create["discountId"] != "d1" {
		t.Fatalf("unexpected create body: %+v", create)
	}
	if seats, _ := create["seats"].([]any); len(seats) != 2 {
		t.Fatalf("expected de-duplicated seats, got %+v", create["seats"])
	}

	available = false
	_, err = bookings.CreateBooking(ctx, "s1", []string{"A1"}, model.BookingExtras{})
	if !errors.Is(err, ErrSeatsUnavailable) {
		t.Fatalf("expected ErrSeatsUnavailable, got %v", err)
	}
	if got := rec.paths(); len(got) != 3 {
		t.Fatalf("expected no booking POST after failed check, got %v", got)
	}
}

func TestCheckSeats_ValidatesLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer server.Close()

	bookings := NewBookingService(newTestClient(server))
	if _, err := bookings.CheckSeatsAvailability(context.Background(), "s1", nil); !errors.Is(err, ErrSeatsRequired) {
		t.Fatalf("expected ErrSeatsRequired, got %v", err)
	}
	if _, err := bookings.CheckSeatsAvailability(context.Background(), "s1", []string{"AA1"}); !errors.Is(err, ErrInvalidSeat) {
		t.Fatalf("expected ErrInvalidSeat, got %v", err)
	}
	if _, err := bookings.CheckSeatsAvailability(context.Background(), " ", []string{"A1"}); !errors.Is(err, ErrIDRequired) {
		t.Fatalf("expected ErrIDRequired, got %v", err)
	}
}

func TestListBookings_NewestFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("_sort") != "bookingTime" {
			t.Errorf("expected sort param, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"bookings":[
			{"BookingID":"old","BookingTime":"2025-01-01T10:00:00Z","Status":"COMPLETED"},
			{"BookingID":"new","BookingTime":"2025-02-01T10:00:00Z","Status":"PENDING"}
		],"total":2}`))
	}))
	defer server.Close()

	bookings := NewBookingService(newTestClient(server))
	list, err := bookings.ListBookings(context.Background(), model.BookingQuery{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(list.Bookings) != 2 || list.Bookings[0].ID != "new" || list.Pagination.Total != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
}
