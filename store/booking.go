package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"citizen-card-cli/model"
	"citizen-card-cli/service"
)

var (
	ErrNoShowingSelected = errors.New("select a showing first")
	ErrNoSeatsSelected   = errors.New("select seats first")
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseShowingSelected
	PhaseSeatsSelected
	PhaseBooked
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseShowingSelected:
		return "showing-selected"
	case PhaseSeatsSelected:
		return "seats-selected"
	case PhaseBooked:
		return "booked"
	default:
		return "unknown"
	}
}

type BookingAPI interface {
	CheckSeatsAvailability(ctx context.Context, showingID string, seats []string) (bool, error)
	CreateBooking(ctx context.Context, showingID string, seats []string, extras model.BookingExtras) (model.Booking, error)
	ListBookings(ctx context.Context, q model.BookingQuery) (model.BookingList, error)
	GetBooking(ctx context.Context, bookingID string) (model.Booking, error)
	CancelBooking(ctx context.Context, bookingID string, showTime time.Time) (model.Booking, error)
	CalculateAmount(ctx context.Context, showingID string, seats []string, discountID model.ID) (model.BookingQuote, error)
}

type ShowingAPI interface {
	GetShowing(ctx context.Context, showingID string) (model.Showing, error)
}

type bookingSnapshot struct {
	Status     string `json:"status,omitempty"`
	Pagination Page   `json:"pagination"`
}

// BookingStore drives the selection workflow
// Idle → ShowingSelected → SeatsSelected → Booked and keeps the member's
// booking list.
type BookingStore struct {
	base
	api      BookingAPI
	showings ShowingAPI

	phase    Phase
	showing  *model.Showing
	seats    []string
	quote    *model.BookingQuote
	current  *model.Booking
	bookings []model.Booking

	status     string
	pagination Page
}

func NewBookingStore(api BookingAPI, showings ShowingAPI, persist *Persister, logger logrus.FieldLogger) *BookingStore {
	return &BookingStore{
		base:       newBase(persist, logger),
		api:        api,
		showings:   showings,
		pagination: defaultPage(),
	}
}

func (s *BookingStore) StoreID() string {
	return "bookings"
}

func (s *BookingStore) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bookingSnapshot{Status: s.status, Pagination: s.pagination}
}

func (s *BookingStore) Restore(data []byte) error {
	var snap bookingSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	s.status = snap.Status
	s.pagination = snap.Pagination.normalized()
	s.mu.Unlock()
	return nil
}

func (s *BookingStore) changed() {
	s.persist.Schedule(s.StoreID(), s.Snapshot)
}

// SelectShowing loads the authoritative showing and starts a new selection.
// On failure the previous state is kept.
func (s *BookingStore) SelectShowing(ctx context.Context, showingID string) error {
	s.mu.Lock()
	token := s.start("selection")
	s.mu.Unlock()

	showing, err := s.showings.GetShowing(ctx, showingID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("selection", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.showing = &showing
	s.seats = nil
	s.quote = nil
	s.phase = PhaseShowingSelected
	return nil
}

// SelectSeats commits seats only after the server confirms the exact set is
// free. An unavailable set leaves the selection untouched.
func (s *BookingStore) SelectSeats(ctx context.Context, seats []string) error {
	s.mu.Lock()
	if s.showing == nil || s.phase == PhaseIdle || s.phase == PhaseBooked {
		s.fail(ErrNoShowingSelected)
		s.mu.Unlock()
		return ErrNoShowingSelected
	}
	showingID := s.showing.ID.String()
	token := s.start("selection")
	s.mu.Unlock()

	available, err := s.api.CheckSeatsAvailability(ctx, showingID, seats)
	if err == nil && !available {
		err = service.ErrSeatsUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("selection", token, err) {
		return ErrSuperseded
	}
	if err != nil {
		return err
	}
	s.seats = append([]string(nil), seats...)
	s.quote = nil
	s.phase = PhaseSeatsSelected
	return nil
}

// CreateBooking submits the current selection. The booking is kept even when
// the follow-up list refresh fails; that failure is returned wrapped.
func (s *BookingStore) CreateBooking(ctx context.Context, extras model.BookingExtras) (model.Booking, error) {
	s.mu.Lock()
	if s.phase != PhaseSeatsSelected || s.showing == nil || len(s.seats) == 0 {
		s.fail(ErrNoSeatsSelected)
		s.mu.Unlock()
		return model.Booking{}, ErrNoSeatsSelected
	}
	showingID := s.showing.ID.String()
	seats := append([]string(nil), s.seats...)
	token := s.start("booking")
	s.mu.Unlock()

	booking, err := s.api.CreateBooking(ctx, showingID, seats, extras)

	s.mu.Lock()
	s.finish("booking", token, err)
	if err != nil {
		s.mu.Unlock()
		return model.Booking{}, err
	}
	s.current = &booking
	s.seq["selection"]++
	s.showing = nil
	s.seats = nil
	s.quote = nil
	s.phase = PhaseBooked
	s.mu.Unlock()

	if err := s.FetchBookings(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return booking, fmt.Errorf("booking %s created but refreshing the list failed: %w", booking.ID, err)
	}
	return booking, nil
}

// CancelBooking cancels id if its show time is more than two hours away.
// The cached show time is used when known; otherwise the service fetches it.
func (s *BookingStore) CancelBooking(ctx context.Context, id string) (model.Booking, error) {
	s.mu.Lock()
	showTime := s.cachedShowTime(id)
	token := s.start("cancel")
	s.mu.Unlock()

	booking, err := s.api.CancelBooking(ctx, id, showTime)

	s.mu.Lock()
	s.finish("cancel", token, err)
	if err != nil {
		s.mu.Unlock()
		return model.Booking{}, err
	}
	s.seq["selection"]++
	s.phase = PhaseIdle
	s.showing = nil
	s.seats = nil
	s.quote = nil
	s.current = nil
	s.mu.Unlock()

	if err := s.FetchBookings(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return booking, fmt.Errorf("booking %s cancelled but refreshing the list failed: %w", id, err)
	}
	return booking, nil
}

func (s *BookingStore) FetchBookings(ctx context.Context) error {
	s.mu.Lock()
	token := s.start("list")
	q := model.BookingQuery{Status: s.status, Page: s.pagination.Page, Limit: s.pagination.Limit}
	s.mu.Unlock()

	list, err := s.api.ListBookings(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("list", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.bookings = list.Bookings
	s.pagination.Total = list.Pagination.Total
	return nil
}

func (s *BookingStore) FetchBookingDetails(ctx context.Context, id string) error {
	s.mu.Lock()
	token := s.start("current")
	s.mu.Unlock()

	booking, err := s.api.GetBooking(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("current", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.current = &booking
	return nil
}

// CalculateAmount prices the current selection, optionally with a discount.
func (s *BookingStore) CalculateAmount(ctx context.Context, discountID model.ID) (model.BookingQuote, error) {
	s.mu.Lock()
	if s.phase != PhaseSeatsSelected || s.showing == nil {
		s.mu.Unlock()
		return model.BookingQuote{}, ErrNoSeatsSelected
	}
	showingID := s.showing.ID.String()
	seats := append([]string(nil), s.seats...)
	token := s.start("quote")
	s.mu.Unlock()

	quote, err := s.api.CalculateAmount(ctx, showingID, seats, discountID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("quote", token, err) {
		if err != nil {
			return model.BookingQuote{}, err
		}
		return model.BookingQuote{}, ErrSuperseded
	}
	if err != nil {
		return model.BookingQuote{}, err
	}
	s.quote = &quote
	return quote, nil
}

// ClearBookingData drops the selection and the current booking and returns to Idle.
func (s *BookingStore) ClearBookingData() {
	s.mu.Lock()
	s.seq["selection"]++
	s.phase = PhaseIdle
	s.showing = nil
	s.seats = nil
	s.quote = nil
	s.current = nil
	s.err = ""
	s.mu.Unlock()
}

// Reset clears everything tied to the signed-in member.
func (s *BookingStore) Reset() {
	s.ClearBookingData()
	s.mu.Lock()
	s.seq["list"]++
	s.bookings = nil
	s.pagination.Total = 0
	s.mu.Unlock()
}

func (s *BookingStore) SetPagination(page int, limit int) {
	s.mu.Lock()
	s.pagination.Page = page
	s.pagination.Limit = limit
	s.pagination = s.pagination.normalized()
	s.mu.Unlock()
	s.changed()
}

// SetStatusFilter narrows FetchBookings to one status; empty means all.
func (s *BookingStore) SetStatusFilter(status string) {
	s.mu.Lock()
	s.status = status
	s.pagination.Page = 1
	s.mu.Unlock()
	s.changed()
}

func (s *BookingStore) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *BookingStore) SelectedShowing() (model.Showing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.showing == nil {
		return model.Showing{}, false
	}
	return *s.showing, true
}

func (s *BookingStore) SelectedSeats() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seats...)
}

func (s *BookingStore) Quote() (model.BookingQuote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil {
		return model.BookingQuote{}, false
	}
	return *s.quote, true
}

func (s *BookingStore) CurrentBooking() (model.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Booking{}, false
	}
	return *s.current, true
}

func (s *BookingStore) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Booking(nil), s.bookings...)
}

func (s *BookingStore) Pagination() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagination
}

// CanBook reports whether a selection is ready and nothing is in flight.
func (s *BookingStore) CanBook() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseSeatsSelected && len(s.seats) > 0 && s.pending == 0
}

func (s *BookingStore) CompletedBookings() []model.Booking {
	return s.bookingsWithStatus(model.BookingCompleted)
}

func (s *BookingStore) UpcomingBookings() []model.Booking {
	return s.bookingsWithStatus(model.BookingPending)
}

func (s *BookingStore) CancelledBookings() []model.Booking {
	return s.bookingsWithStatus(model.BookingCancelled)
}

func (s *BookingStore) bookingsWithStatus(status string) []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out
}

// cachedShowTime looks id up in the current booking and the list. Callers hold mu.
func (s *BookingStore) cachedShowTime(id string) time.Time {
	if s.current != nil && s.current.ID.String() == id && !s.current.ShowTime.IsZero() {
		return s.current.ShowTime
	}
	for _, b := range s.bookings {
		if b.ID.String() == id {
			return b.ShowTime
		}
	}
	return time.Time{}
}
