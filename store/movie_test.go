package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizen-card-cli/model"
)

func testMovies() []model.Movie {
	return []model.Movie{
		{ID: "m1", Name: "Dune", CategoryID: "c1", CategoryName: "Sci-Fi", ReleaseDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "m2", Name: "Anora", CategoryID: "c2", CategoryName: "Drama", ReleaseDate: time.Date(2024, 10, 18, 0, 0, 0, 0, time.UTC)},
		{ID: "m3", Name: "Alien: Romulus", CategoryID: "c1", CategoryName: "Sci-Fi", Description: "Space horror", ReleaseDate: time.Date(2024, 8, 16, 0, 0, 0, 0, time.UTC)},
	}
}

func movieNames(movies []model.Movie) []string {
	names := make([]string, 0, len(movies))
	for _, m := range movies {
		names = append(names, m.Name)
	}
	return names
}

func TestMovieStore_KeywordUsesSearchEndpoint(t *testing.T) {
	api := &stubMovieAPI{movies: testMovies()}
	movies := NewMovieStore(api, nil, nil)
	ctx := context.Background()

	require.NoError(t, movies.FetchMovies(ctx))
	assert.Empty(t, api.searches)
	assert.Len(t, movies.Movies(), 3)

	movies.SetFilters(MovieFilters{Keyword: "  dune "})
	require.NoError(t, movies.FetchMovies(ctx))
	assert.Equal(t, []string{"dune"}, api.searches)
	assert.Equal(t, []string{"Dune"}, movieNames(movies.Movies()))
	assert.Equal(t, 1, movies.Pagination().Total)
}

func TestMovieStore_SearchRewindsToFirstPage(t *testing.T) {
	api := &stubMovieAPI{movies: testMovies()}
	movies := NewMovieStore(api, nil, nil)
	ctx := context.Background()

	movies.SetPage(3)
	require.Equal(t, 3, movies.Pagination().Page)

	require.NoError(t, movies.Search(ctx, "  alien  "))
	assert.Equal(t, "alien", movies.Filters().Keyword)
	assert.Equal(t, 1, movies.Pagination().Page)
	require.NotEmpty(t, api.listQueries)
	assert.Equal(t, 1, api.listQueries[len(api.listQueries)-1].Page)
	assert.Equal(t, []string{"Alien: Romulus"}, movieNames(movies.Movies()))

	require.NoError(t, movies.Search(ctx, " "))
	assert.Empty(t, movies.Filters().Keyword)
	assert.Equal(t, []string{"alien"}, api.searches)
	assert.Len(t, movies.Movies(), 3)
}

func TestMovieStore_StaleFetchDoesNotCommit(t *testing.T) {
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	api := &stubMovieAPI{}
	api.list = func(q model.MovieQuery) (model.MovieList, error) {
		if q.CategoryID == "c1" {
			close(slowStarted)
			<-releaseSlow
			return model.MovieList{Movies: testMovies()[:1]}, nil
		}
		return model.MovieList{Movies: testMovies()[1:2]}, nil
	}
	movies := NewMovieStore(api, nil, nil)
	ctx := context.Background()

	movies.SetFilters(MovieFilters{CategoryID: "c1"})
	slowErr := make(chan error, 1)
	go func() {
		slowErr <- movies.FetchMovies(ctx)
	}()
	<-slowStarted

	movies.SetFilters(MovieFilters{CategoryID: "c2"})
	require.NoError(t, movies.FetchMovies(ctx))
	close(releaseSlow)

	require.ErrorIs(t, <-slowErr, ErrSuperseded)
	assert.Equal(t, []string{"Anora"}, movieNames(movies.Movies()))
}

func TestMovieStore_FilteredMovies(t *testing.T) {
	api := &stubMovieAPI{movies: testMovies()}
	movies := NewMovieStore(api, nil, nil)
	require.NoError(t, movies.FetchMovies(context.Background()))

	tests := []struct {
		name    string
		filters MovieFilters
		want    []string
	}{
		{name: "no filters keeps server order", want: []string{"Dune", "Anora", "Alien: Romulus"}},
		{name: "name asc", filters: MovieFilters{SortBy: SortByName, Order: OrderAsc}, want: []string{"Alien: Romulus", "Anora", "Dune"}},
		{name: "name desc", filters: MovieFilters{SortBy: SortByName, Order: OrderDesc}, want: []string{"Dune", "Anora", "Alien: Romulus"}},
		{name: "date asc", filters: MovieFilters{SortBy: SortByDate}, want: []string{"Dune", "Alien: Romulus", "Anora"}},
		{name: "date desc", filters: MovieFilters{SortBy: SortByDate, Order: OrderDesc}, want: []string{"Anora", "Alien: Romulus", "Dune"}},
		{name: "category", filters: MovieFilters{CategoryID: "c1"}, want: []string{"Dune", "Alien: Romulus"}},
		{name: "keyword matches description", filters: MovieFilters{Keyword: "HORROR"}, want: []string{"Alien: Romulus"}},
		{name: "category sort is stable", filters: MovieFilters{SortBy: SortByCategory}, want: []string{"Anora", "Dune", "Alien: Romulus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movies.SetFilters(tt.filters)
			assert.Equal(t, tt.want, movieNames(movies.FilteredMovies()))
		})
	}
	assert.Len(t, movies.Movies(), 3, "filtering must not touch the loaded page")
}

func TestMovieStore_AvailableSeatsIsAdvisory(t *testing.T) {
	api := &stubMovieAPI{
		movies:   []model.Movie{{ID: "m1", Name: "Dune", Showings: []model.Showing{{ID: "s9", AvailableSeats: 4}}}},
		showings: []model.Showing{{ID: "s1", AvailableSeats: 12}},
	}
	movies := NewMovieStore(api, nil, nil)
	ctx := context.Background()

	_, ok := movies.AvailableSeats("s1")
	assert.False(t, ok)

	require.NoError(t, movies.FetchShowings(ctx, "m1", time.Time{}))
	require.NoError(t, movies.FetchMovie(ctx, "m1"))

	seats, ok := movies.AvailableSeats("s1")
	require.True(t, ok)
	assert.Equal(t, 12, seats)

	seats, ok = movies.AvailableSeats("s9")
	require.True(t, ok)
	assert.Equal(t, 4, seats)

	bookings := NewBookingStore(&stubBookingAPI{}, stubShowingAPI{}, nil, nil)
	require.NoError(t, bookings.SelectShowing(ctx, "s1"))
	require.NoError(t, bookings.SelectSeats(ctx, []string{"A1", "A2"}))
	_, err := bookings.CreateBooking(ctx, model.BookingExtras{})
	require.NoError(t, err)

	seats, _ = movies.AvailableSeats("s1")
	assert.Equal(t, 12, seats, "a booking does not decrement the cached count")
}
