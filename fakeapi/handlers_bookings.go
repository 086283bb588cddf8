package fakeapi

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"citizen-card-cli/model"
	"citizen-card-cli/service"
)

type quoteRequest struct {
	ShowingID  model.ID `json:"showingId"`
	Seats      []string `json:"seats"`
	DiscountID model.ID `json:"discountId"`
}

// quote prices seats at sh with an optional discount. Callers hold mu.
func (s *Server) quote(mem *member, sh *showing, seats []string, discountID model.ID, now time.Time) (model.RawBookingQuote, *model.RawDiscount, string) {
	original := math.Round(sh.raw.Price.Float64()*float64(len(seats))*100) / 100
	q := model.RawBookingQuote{OriginalAmount: model.Number(original), FinalAmount: model.Number(original)}
	if discountID == "" {
		return q, nil, ""
	}
	d, ok := s.state.discounts[discountID]
	if !ok {
		return q, nil, "discount not found"
	}
	if eligible, reason := eligibility(mem, d, now); !eligible {
		return q, nil, reason
	}
	off := discountAmount(d, original)
	q.DiscountAmount = model.Number(off)
	q.FinalAmount = model.Number(math.Round((original-off)*100) / 100)
	return q, d, ""
}

func (s *Server) calculateAmount(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Seats) == 0 {
		s.writeError(w, http.StatusBadRequest, "SEATS_REQUIRED", "at least one seat is required", nil)
		return
	}
	now := s.cfg.Now()
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	sh, ok := s.state.showings[req.ShowingID]
	if !ok {
		s.writeError(w, http.StatusNotFound, "SHOWING_NOT_FOUND", "showing not found", nil)
		return
	}
	q, _, reason := s.quote(s.state.members[currentSession(r).memberID], sh, req.Seats, req.DiscountID, now)
	if reason != "" {
		s.writeError(w, http.StatusBadRequest, "DISCOUNT_UNAVAILABLE", reason, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) createBooking(w http.ResponseWriter, r *http.Request) {
	var req model.BookingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Seats) == 0 {
		s.writeError(w, http.StatusBadRequest, "SEATS_REQUIRED", "at least one seat is required", nil)
		return
	}
	now := s.cfg.Now().UTC()
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	sh, ok := s.state.showings[req.ShowingID]
	if !ok {
		s.writeError(w, http.StatusNotFound, "SHOWING_NOT_FOUND", "showing not found", nil)
		return
	}
	if !sh.raw.ShowTime.After(now) {
		s.writeError(w, http.StatusBadRequest, "SHOWING_STARTED", "showing has already started", nil)
		return
	}
	if !sh.seatsFree(req.Seats) {
		s.writeError(w, http.StatusConflict, "SEATS_UNAVAILABLE", service.ErrSeatsUnavailable.Error(), nil)
		return
	}
	mem := s.state.members[currentSession(r).memberID]
	q, d, reason := s.quote(mem, sh, req.Seats, req.DiscountID, now)
	if reason != "" {
		s.writeError(w, http.StatusBadRequest, "DISCOUNT_UNAVAILABLE", reason, nil)
		return
	}
	for _, label := range req.Seats {
		sh.seats[label] = model.SeatOccupied
	}

	snapshot := sh.snapshot()
	b := &booking{memberID: mem.user.ID, raw: model.RawBooking{
		BookingID:      model.ID(uuid.NewString()),
		MemberID:       mem.user.ID,
		MovieID:        sh.raw.MovieID,
		MovieName:      sh.raw.MovieName,
		ShowingID:      sh.raw.ShowingID,
		ShowTime:       sh.raw.ShowTime,
		VenueName:      sh.raw.VenueName,
		Seats:          append([]string(nil), req.Seats...),
		Amount:         q.OriginalAmount,
		DiscountAmount: q.DiscountAmount,
		FinalAmount:    q.FinalAmount,
		Status:         model.BookingPending,
		BookingTime:    now,
		Showing:        &snapshot,
	}}
	if d != nil {
		b.raw.DiscountID = d.DiscountID
		s.redeem(mem, d, q.DiscountAmount.Float64(), now)
	}
	s.state.bookings[b.raw.BookingID] = b
	s.writeJSON(w, http.StatusCreated, b.raw)
}

func (s *Server) listBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, _ := time.Parse(time.DateOnly, q.Get("startDate"))
	end, _ := time.Parse(time.DateOnly, q.Get("endDate"))
	memberID := currentSession(r).memberID

	s.state.mu.Lock()
	var out []model.RawBooking
	for _, b := range s.state.bookings {
		if b.memberID != memberID {
			continue
		}
		if status := q.Get("status"); status != "" && b.raw.Status != status {
			continue
		}
		if !start.IsZero() && b.raw.BookingTime.Before(start) {
			continue
		}
		if !end.IsZero() && !b.raw.BookingTime.Before(end.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, b.raw)
	}
	s.state.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if q.Get("_order") == "asc" {
			return out[i].BookingTime.Before(out[j].BookingTime)
		}
		return out[i].BookingTime.After(out[j].BookingTime)
	})
	page, pagination := paginate(out, r)
	if page == nil {
		page = []model.RawBooking{}
	}
	s.writeJSON(w, http.StatusOK, model.RawBookingList{Bookings: page, Total: pagination.Total, Pagination: pagination})
}

// ownBooking returns the caller's booking or writes a 404. Callers hold mu.
func (s *Server) ownBooking(w http.ResponseWriter, r *http.Request) *booking {
	b, ok := s.state.bookings[model.ID(chi.URLParam(r, "id"))]
	if !ok || b.memberID != currentSession(r).memberID {
		s.writeError(w, http.StatusNotFound, "BOOKING_NOT_FOUND", "booking not found", nil)
		return nil
	}
	return b
}

func (s *Server) getBooking(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if b := s.ownBooking(w, r); b != nil {
		s.writeJSON(w, http.StatusOK, b.raw)
	}
}

// cancelBooking applies the same cancellation window as the client and
// releases the seats.
func (s *Server) cancelBooking(w http.ResponseWriter, r *http.Request) {
	now := s.cfg.Now()
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	b := s.ownBooking(w, r)
	if b == nil {
		return
	}
	if b.raw.Status == model.BookingCancelled {
		s.writeError(w, http.StatusConflict, "ALREADY_CANCELLED", "booking is already cancelled", nil)
		return
	}
	if err := service.CheckCancelWindow(b.raw.ShowTime, now); err != nil {
		s.writeError(w, http.StatusBadRequest, "CANCEL_WINDOW_CLOSED", err.Error(), nil)
		return
	}
	if sh, ok := s.state.showings[b.raw.ShowingID]; ok {
		for _, label := range b.raw.Seats {
			delete(sh.seats, label)
		}
		snapshot := sh.snapshot()
		b.raw.Showing = &snapshot
	}
	b.raw.Status = model.BookingCancelled
	s.writeJSON(w, http.StatusOK, b.raw)
}
