package model

import (
	"sort"
	"time"
)

type RawMovie struct {
	MovieID      ID           `json:"MovieID"`
	MovieName    string       `json:"MovieName"`
	Description  string       `json:"Description,omitempty"`
	Duration     int          `json:"Duration"`
	CategoryID   ID           `json:"CategoryID"`
	CategoryName string       `json:"CategoryName,omitempty"`
	ReleaseDate  time.Time    `json:"ReleaseDate,omitzero"`
	Rating       Number       `json:"Rating,omitempty"`
	Showings     []RawShowing `json:"Showings,omitempty"`
}

type RawShowing struct {
	ShowingID      ID        `json:"ShowingID"`
	MovieID        ID        `json:"MovieID"`
	MovieName      string    `json:"MovieName,omitempty"`
	VenueID        ID        `json:"VenueID"`
	VenueName      string    `json:"VenueName,omitempty"`
	ShowTime       time.Time `json:"ShowTime"`
	AvailableSeats int       `json:"AvailableSeats"`
	TotalSeats     int       `json:"TotalSeats"`
	Price          Number    `json:"Price"`
}

type RawCategory struct {
	CategoryID   ID     `json:"CategoryID"`
	CategoryName string `json:"CategoryName"`
	Description  string `json:"Description,omitempty"`
	MovieCount   int    `json:"MovieCount"`
}

type RawMovieList struct {
	Movies     []RawMovie `json:"movies"`
	Total      int        `json:"total"`
	Pagination Pagination `json:"pagination"`
}

type RawShowingList struct {
	Showings   []RawShowing `json:"showings"`
	Total      int          `json:"total"`
	Pagination Pagination   `json:"pagination"`
}

type Movie struct {
	ID           ID        `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Duration     int       `json:"duration"`
	CategoryID   ID        `json:"categoryId"`
	CategoryName string    `json:"categoryName,omitempty"`
	ReleaseDate  time.Time `json:"releaseDate,omitzero"`
	Rating       float64   `json:"rating"`
	Showings     []Showing `json:"showings"`
}

type Showing struct {
	ID             ID        `json:"id"`
	MovieID        ID        `json:"movieId"`
	MovieName      string    `json:"movieName,omitempty"`
	VenueID        ID        `json:"venueId"`
	VenueName      string    `json:"venueName,omitempty"`
	ShowTime       time.Time `json:"showTime"`
	AvailableSeats int       `json:"availableSeats"`
	TotalSeats     int       `json:"totalSeats"`
	Price          float64   `json:"price"`
}

type Category struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MovieCount  int    `json:"movieCount"`
}

type MovieList struct {
	Movies     []Movie    `json:"movies"`
	Pagination Pagination `json:"pagination"`
}

type ShowingList struct {
	Showings   []Showing  `json:"showings"`
	Pagination Pagination `json:"pagination"`
}

// MovieQuery holds list filters sent as query parameters.
type MovieQuery struct {
	CategoryID string
	Keyword    string
	SortBy     string
	Order      string
	Page       int
	Limit      int
}

func FormatMovie(raw RawMovie) Movie {
	showings := make([]Showing, 0, len(raw.Showings))
	for _, s := range raw.Showings {
		showings = append(showings, FormatShowing(s))
	}
	return Movie{
		ID:           raw.MovieID,
		Name:         raw.MovieName,
		Description:  raw.Description,
		Duration:     raw.Duration,
		CategoryID:   raw.CategoryID,
		CategoryName: raw.CategoryName,
		ReleaseDate:  raw.ReleaseDate,
		Rating:       raw.Rating.Float64(),
		Showings:     showings,
	}
}

func FormatShowing(raw RawShowing) Showing {
	return Showing{
		ID:             raw.ShowingID,
		MovieID:        raw.MovieID,
		MovieName:      raw.MovieName,
		VenueID:        raw.VenueID,
		VenueName:      raw.VenueName,
		ShowTime:       raw.ShowTime,
		AvailableSeats: raw.AvailableSeats,
		TotalSeats:     raw.TotalSeats,
		Price:          raw.Price.Float64(),
	}
}

func FormatCategory(raw RawCategory) Category {
	return Category{
		ID:          raw.CategoryID,
		Name:        raw.CategoryName,
		Description: raw.Description,
		MovieCount:  raw.MovieCount,
	}
}

// SortShowingsByTime orders showings by ascending show time.
func SortShowingsByTime(showings []Showing) {
	sort.SliceStable(showings, func(i, j int) bool {
		return showings[i].ShowTime.Before(showings[j].ShowTime)
	})
}
