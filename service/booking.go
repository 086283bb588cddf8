package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"citizen-card-cli/model"
)

// CancelWindow is how close to show time a booking can no longer be cancelled.
const CancelWindow = 2 * time.Hour

type BookingService struct {
	client *Client
	now    func() time.Time
}

func NewBookingService(client *Client) *BookingService {
	return &BookingService{client: client, now: client.now}
}

type seatCheckResponse struct {
	Available bool `json:"available"`
}

// CheckSeatsAvailability asks the server whether every seat in seats is free.
func (s *BookingService) CheckSeatsAvailability(ctx context.Context, showingID string, seats []string) (bool, error) {
	escaped, err := requireID(showingID)
	if err != nil {
		return false, err
	}
	normalized, err := normalizeSeats(seats)
	if err != nil {
		return false, err
	}
	body := map[string]any{
		"seats":     normalized,
		"checkTime": s.now().UTC().Format(time.RFC3339),
	}
	var resp seatCheckResponse
	if err := s.client.postJSON(ctx, fmt.Sprintf("/showings/%s/check-seats", escaped), body, &resp); err != nil {
		return false, wrapErr("booking.check_seats", "failed to check seat availability", err)
	}
	return resp.Available, nil
}

// CreateBooking re-verifies availability and then submits a PENDING booking.
func (s *BookingService) CreateBooking(ctx context.Context, showingID string, seats []string, extras model.BookingExtras) (model.Booking, error) {
	normalized, err := normalizeSeats(seats)
	if err != nil {
		return model.Booking{}, err
	}
	available, err := s.CheckSeatsAvailability(ctx, showingID, normalized)
	if err != nil {
		return model.Booking{}, err
	}
	if !available {
		return model.Booking{}, ErrSeatsUnavailable
	}

	req := model.BookingRequest{
		ShowingID:   model.ID(strings.TrimSpace(showingID)),
		Seats:       normalized,
		DiscountID:  extras.DiscountID,
		BookingTime: s.now().UTC(),
		Status:      model.BookingPending,
	}
	var raw model.RawBooking
	if err := s.client.postJSON(ctx, "/bookings", req, &raw); err != nil {
		return model.Booking{}, wrapErr("booking.create", "failed to create booking", err)
	}
	return model.FormatBooking(raw), nil
}

// ListBookings returns the member's bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, q model.BookingQuery) (model.BookingList, error) {
	values := pageQuery(q.Page, q.Limit)
	values.Set("_sort", "bookingTime")
	values.Set("_order", "desc")
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if !q.StartDate.IsZero() {
		values.Set("startDate", q.StartDate.Format(time.DateOnly))
	}
	if !q.EndDate.IsZero() {
		values.Set("endDate", q.EndDate.Format(time.DateOnly))
	}

	var raw model.RawBookingList
	if err := s.client.getJSON(ctx, "/bookings", values, &raw); err != nil {
		return model.BookingList{}, wrapErr("booking.list", "failed to load bookings", err)
	}
	out := model.BookingList{Pagination: raw.Pagination}
	for _, b := range raw.Bookings {
		out.Bookings = append(out.Bookings, model.FormatBooking(b))
	}
	if out.Pagination.Total == 0 {
		out.Pagination.Total = raw.Total
	}
	model.SortBookingsNewestFirst(out.Bookings)
	return out, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (model.Booking, error) {
	escaped, err := requireID(bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	var raw model.RawBooking
	if err := s.client.getJSON(ctx, "/bookings/"+escaped, nil, &raw); err != nil {
		return model.Booking{}, wrapErr("booking.get", "failed to load booking", err)
	}
	return model.FormatBooking(raw), nil
}

// CancelBooking enforces the cancellation window before calling the server.
// showTime is the cached show time of the booking; when zero the booking is
// fetched first to learn it.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string, showTime time.Time) (model.Booking, error) {
	escaped, err := requireID(bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if showTime.IsZero() {
		booking, err := s.GetBooking(ctx, bookingID)
		if err != nil {
			return model.Booking{}, err
		}
		showTime = booking.ShowTime
	}
	if err := CheckCancelWindow(showTime, s.now()); err != nil {
		return model.Booking{}, err
	}

	body := map[string]string{"cancelTime": s.now().UTC().Format(time.RFC3339)}
	var raw model.RawBooking
	if err := s.client.putJSON(ctx, fmt.Sprintf("/bookings/%s/cancel", escaped), body, &raw); err != nil {
		return model.Booking{}, wrapErr("booking.cancel", "failed to cancel booking", err)
	}
	return model.FormatBooking(raw), nil
}

// CalculateAmount asks the server to price a seat set with an optional discount.
func (s *BookingService) CalculateAmount(ctx context.Context, showingID string, seats []string, discountID model.ID) (model.BookingQuote, error) {
	if _, err := requireID(showingID); err != nil {
		return model.BookingQuote{}, err
	}
	normalized, err := normalizeSeats(seats)
	if err != nil {
		return model.BookingQuote{}, err
	}
	body := map[string]any{"showingId": showingID, "seats": normalized}
	if discountID != "" {
		body["discountId"] = discountID
	}
	var raw model.RawBookingQuote
	if err := s.client.postJSON(ctx, "/bookings/calculate", body, &raw); err != nil {
		return model.BookingQuote{}, wrapErr("booking.calculate", "failed to calculate booking amount", err)
	}
	return model.FormatBookingQuote(raw), nil
}

// CheckCancelWindow rejects show times closer than CancelWindow to now. A
// zero show time is unknown and also rejected.
func CheckCancelWindow(showTime time.Time, now time.Time) error {
	if showTime.IsZero() || showTime.Sub(now) < CancelWindow {
		return ErrCancelWindowClosed
	}
	return nil
}
