package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"citizen-card-cli/model"
)

type MovieService struct {
	client *Client
}

func NewMovieService(client *Client) *MovieService {
	return &MovieService{client: client}
}

// ListMovies returns one page of the catalogue.
func (s *MovieService) ListMovies(ctx context.Context, q model.MovieQuery) (model.MovieList, error) {
	var raw model.RawMovieList
	if err := s.client.getJSON(ctx, "/movies", movieQuery(q), &raw); err != nil {
		return model.MovieList{}, wrapErr("movie.list", "failed to load movies", err)
	}
	return formatMovieList(raw), nil
}

func (s *MovieService) SearchMovies(ctx context.Context, keyword string, q model.MovieQuery) (model.MovieList, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return s.ListMovies(ctx, q)
	}
	q.Keyword = keyword
	var raw model.RawMovieList
	if err := s.client.getJSON(ctx, "/movies/search", movieQuery(q), &raw); err != nil {
		return model.MovieList{}, wrapErr("movie.search", "movie search failed", err)
	}
	return formatMovieList(raw), nil
}

func (s *MovieService) GetMovie(ctx context.Context, id string) (model.Movie, error) {
	escaped, err := requireID(id)
	if err != nil {
		return model.Movie{}, err
	}
	var raw model.RawMovie
	if err := s.client.getJSON(ctx, "/movies/"+escaped, nil, &raw); err != nil {
		return model.Movie{}, wrapErr("movie.get", "failed to load movie", err)
	}
	movie := model.FormatMovie(raw)
	model.SortShowingsByTime(movie.Showings)
	return movie, nil
}

func (s *MovieService) ListCategories(ctx context.Context) ([]model.Category, error) {
	var raw []model.RawCategory
	if err := s.client.getJSON(ctx, "/movies/categories", nil, &raw); err != nil {
		return nil, wrapErr("movie.categories", "failed to load categories", err)
	}
	categories := make([]model.Category, 0, len(raw))
	for _, c := range raw {
		categories = append(categories, model.FormatCategory(c))
	}
	return categories, nil
}

// ListShowings returns the showings of a movie ordered by show time. A
// non-zero date restricts the result to that day.
func (s *MovieService) ListShowings(ctx context.Context, movieID string, date time.Time) (model.ShowingList, error) {
	escaped, err := requireID(movieID)
	if err != nil {
		return model.ShowingList{}, err
	}
	q := url.Values{}
	q.Set("_sort", "showTime")
	q.Set("_order", "asc")
	if !date.IsZero() {
		q.Set("date", date.Format(time.DateOnly))
	}

	var raw model.RawShowingList
	if err := s.client.getJSON(ctx, fmt.Sprintf("/movies/%s/showings", escaped), q, &raw); err != nil {
		return model.ShowingList{}, wrapErr("movie.showings", "failed to load showings", err)
	}
	out := model.ShowingList{Pagination: raw.Pagination}
	for _, sh := range raw.Showings {
		out.Showings = append(out.Showings, model.FormatShowing(sh))
	}
	if out.Pagination.Total == 0 {
		out.Pagination.Total = raw.Total
	}
	model.SortShowingsByTime(out.Showings)
	return out, nil
}

func (s *MovieService) GetShowing(ctx context.Context, showingID string) (model.Showing, error) {
	escaped, err := requireID(showingID)
	if err != nil {
		return model.Showing{}, err
	}
	var raw model.RawShowing
	if err := s.client.getJSON(ctx, "/showings/"+escaped, nil, &raw); err != nil {
		return model.Showing{}, wrapErr("movie.showing", "failed to load showing", err)
	}
	return model.FormatShowing(raw), nil
}

// GetSeatMap fetches the seat layout with per-seat status for a showing.
func (s *MovieService) GetSeatMap(ctx context.Context, showingID string) (model.SeatMap, error) {
	escaped, err := requireID(showingID)
	if err != nil {
		return model.SeatMap{}, err
	}
	var raw model.RawSeatMap
	if err := s.client.getJSON(ctx, fmt.Sprintf("/showings/%s/seats", escaped), nil, &raw); err != nil {
		return model.SeatMap{}, wrapErr("movie.seats", "failed to load seat map", err)
	}
	if raw.ShowingID == "" {
		raw.ShowingID = model.ID(showingID)
	}
	return model.FormatSeatMap(raw), nil
}

func movieQuery(q model.MovieQuery) url.Values {
	values := pageQuery(q.Page, q.Limit)
	if q.CategoryID != "" {
		values.Set("categoryId", q.CategoryID)
	}
	if q.Keyword != "" {
		values.Set("keyword", q.Keyword)
	}
	if q.SortBy != "" {
		values.Set("sortBy", q.SortBy)
	}
	if q.Order != "" {
		values.Set("order", q.Order)
	}
	return values
}

func formatMovieList(raw model.RawMovieList) model.MovieList {
	out := model.MovieList{Pagination: raw.Pagination}
	for _, m := range raw.Movies {
		out.Movies = append(out.Movies, model.FormatMovie(m))
	}
	if out.Pagination.Total == 0 {
		out.Pagination.Total = raw.Total
	}
	return out
}
