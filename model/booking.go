package model

import (
	"sort"
	"time"
)

const (
	BookingPending   = "PENDING"
	BookingCompleted = "COMPLETED"
	BookingCancelled = "CANCELLED"
)

type RawBooking struct {
	BookingID      ID          `json:"BookingID"`
	MemberID       ID          `json:"MemberID,omitempty"`
	MovieID        ID          `json:"MovieID,omitempty"`
	MovieName      string      `json:"MovieName,omitempty"`
	ShowingID      ID          `json:"ShowingID"`
	ShowTime       time.Time   `json:"ShowTime,omitzero"`
	VenueName      string      `json:"VenueName,omitempty"`
	Seats          []string    `json:"Seats"`
	Amount         Number      `json:"Amount"`
	DiscountID     ID          `json:"DiscountID,omitempty"`
	DiscountAmount Number      `json:"DiscountAmount,omitempty"`
	FinalAmount    Number      `json:"FinalAmount,omitempty"`
	Status         string      `json:"Status"`
	BookingTime    time.Time   `json:"BookingTime,omitzero"`
	Showing        *RawShowing `json:"Showing,omitempty"`
}

type RawBookingList struct {
	Bookings   []RawBooking `json:"bookings"`
	Total      int          `json:"total"`
	Pagination Pagination   `json:"pagination"`
}

type Booking struct {
	ID             ID        `json:"id"`
	MovieID        ID        `json:"movieId,omitempty"`
	MovieName      string    `json:"movieName,omitempty"`
	ShowingID      ID        `json:"showingId"`
	ShowTime       time.Time `json:"showTime,omitzero"`
	VenueName      string    `json:"venueName,omitempty"`
	Seats          []string  `json:"seats"`
	Amount         float64   `json:"amount"`
	DiscountID     ID        `json:"discountId,omitempty"`
	DiscountAmount float64   `json:"discountAmount,omitempty"`
	FinalAmount    float64   `json:"finalAmount,omitempty"`
	Status         string    `json:"status"`
	BookingTime    time.Time `json:"bookingTime,omitzero"`
}

type BookingList struct {
	Bookings   []Booking  `json:"bookings"`
	Pagination Pagination `json:"pagination"`
}

// BookingRequest is the body submitted to create a booking.
type BookingRequest struct {
	ShowingID   ID        `json:"showingId"`
	Seats       []string  `json:"seats"`
	DiscountID  ID        `json:"discountId,omitempty"`
	BookingTime time.Time `json:"bookingTime"`
	Status      string    `json:"status"`
}

// BookingExtras carries optional fields merged into a booking request.
type BookingExtras struct {
	DiscountID ID
}

type BookingQuote struct {
	OriginalAmount float64 `json:"originalAmount"`
	DiscountAmount float64 `json:"discountAmount"`
	FinalAmount    float64 `json:"finalAmount"`
}

type RawBookingQuote struct {
	OriginalAmount Number `json:"originalAmount"`
	DiscountAmount Number `json:"discountAmount"`
	FinalAmount    Number `json:"finalAmount"`
}

type BookingQuery struct {
	Status    string
	StartDate time.Time
	EndDate   time.Time
	Page      int
	Limit     int
}

func FormatBooking(raw RawBooking) Booking {
	showTime := raw.ShowTime
	movieName := raw.MovieName
	venueName := raw.VenueName
	if raw.Showing != nil {
		if showTime.IsZero() {
			showTime = raw.Showing.ShowTime
		}
		if movieName == "" {
			movieName = raw.Showing.MovieName
		}
		if venueName == "" {
			venueName = raw.Showing.VenueName
		}
	}
	seats := append([]string(nil), raw.Seats...)
	return Booking{
		ID:             raw.BookingID,
		MovieID:        raw.MovieID,
		MovieName:      movieName,
		ShowingID:      raw.ShowingID,
		ShowTime:       showTime,
		VenueName:      venueName,
		Seats:          seats,
		Amount:         raw.Amount.Float64(),
		DiscountID:     raw.DiscountID,
		DiscountAmount: raw.DiscountAmount.Float64(),
		FinalAmount:    raw.FinalAmount.Float64(),
		Status:         raw.Status,
		BookingTime:    raw.BookingTime,
	}
}

func FormatBookingQuote(raw RawBookingQuote) BookingQuote {
	return BookingQuote{
		OriginalAmount: raw.OriginalAmount.Float64(),
		DiscountAmount: raw.DiscountAmount.Float64(),
		FinalAmount:    raw.FinalAmount.Float64(),
	}
}

// SortBookingsNewestFirst orders bookings by descending booking time.
func SortBookingsNewestFirst(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].BookingTime.After(bookings[j].BookingTime)
	})
}
