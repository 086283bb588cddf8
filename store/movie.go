package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"citizen-card-cli/model"
)

const (
	SortByName     = "name"
	SortByDate     = "date"
	SortByCategory = "category"

	OrderAsc  = "asc"
	OrderDesc = "desc"

	defaultPageLimit = 10
)

type MovieAPI interface {
	ListMovies(ctx context.Context, q model.MovieQuery) (model.MovieList, error)
	SearchMovies(ctx context.Context, keyword string, q model.MovieQuery) (model.MovieList, error)
	GetMovie(ctx context.Context, id string) (model.Movie, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListShowings(ctx context.Context, movieID string, date time.Time) (model.ShowingList, error)
	GetShowing(ctx context.Context, showingID string) (model.Showing, error)
	GetSeatMap(ctx context.Context, showingID string) (model.SeatMap, error)
}

type MovieFilters struct {
	CategoryID string `json:"categoryId,omitempty"`
	Keyword    string `json:"keyword,omitempty"`
	SortBy     string `json:"sortBy,omitempty"`
	Order      string `json:"order,omitempty"`
}

type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func defaultPage() Page {
	return Page{Page: 1, Limit: defaultPageLimit}
}

func (p Page) normalized() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}
	return p
}

type movieSnapshot struct {
	Filters    MovieFilters `json:"filters"`
	Pagination Page         `json:"pagination"`
}

type MovieStore struct {
	base
	api MovieAPI

	movies     []model.Movie
	current    *model.Movie
	categories []model.Category
	showings   []model.Showing
	seatMap    *model.SeatMap
	filters    MovieFilters
	pagination Page
}

func NewMovieStore(api MovieAPI, persist *Persister, logger logrus.FieldLogger) *MovieStore {
	return &MovieStore{
		base:       newBase(persist, logger),
		api:        api,
		pagination: defaultPage(),
	}
}

func (s *MovieStore) StoreID() string {
	return "movies"
}

func (s *MovieStore) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return movieSnapshot{Filters: s.filters, Pagination: s.pagination}
}

func (s *MovieStore) Restore(data []byte) error {
	var snap movieSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	s.filters = snap.Filters
	s.pagination = snap.Pagination.normalized()
	s.mu.Unlock()
	return nil
}

func (s *MovieStore) changed() {
	s.persist.Schedule(s.StoreID(), s.Snapshot)
}

// FetchMovies loads the current page using the active filters. A keyword
// switches to the search endpoint.
func (s *MovieStore) FetchMovies(ctx context.Context) error {
	s.mu.Lock()
	token := s.start("movies")
	filters := s.filters
	page := s.pagination
	s.mu.Unlock()

	q := model.MovieQuery{
		CategoryID: filters.CategoryID,
		SortBy:     filters.SortBy,
		Order:      filters.Order,
		Page:       page.Page,
		Limit:      page.Limit,
	}
	var (
		list model.MovieList
		err  error
	)
	if keyword := strings.TrimSpace(filters.Keyword); keyword != "" {
		list, err = s.api.SearchMovies(ctx, keyword, q)
	} else {
		list, err = s.api.ListMovies(ctx, q)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("movies", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.movies = list.Movies
	s.pagination.Total = list.Pagination.Total
	return nil
}

// Search sets the keyword filter, rewinds to the first page and fetches.
func (s *MovieStore) Search(ctx context.Context, keyword string) error {
	s.mu.Lock()
	s.filters.Keyword = strings.TrimSpace(keyword)
	s.pagination.Page = 1
	s.mu.Unlock()
	s.changed()
	return s.FetchMovies(ctx)
}

func (s *MovieStore) FetchMovie(ctx context.Context, id string) error {
	s.mu.Lock()
	token := s.start("current")
	s.mu.Unlock()

	movie, err := s.api.GetMovie(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("current", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.current = &movie
	return nil
}

func (s *MovieStore) FetchCategories(ctx context.Context) error {
	s.mu.Lock()
	token := s.start("categories")
	s.mu.Unlock()

	categories, err := s.api.ListCategories(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("categories", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.categories = categories
	return nil
}

// FetchShowings loads the showings of movieID, optionally narrowed to date.
func (s *MovieStore) FetchShowings(ctx context.Context, movieID string, date time.Time) error {
	s.mu.Lock()
	token := s.start("showings")
	s.mu.Unlock()

	list, err := s.api.ListShowings(ctx, movieID, date)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("showings", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.showings = list.Showings
	return nil
}

func (s *MovieStore) FetchSeatMap(ctx context.Context, showingID string) error {
	s.mu.Lock()
	token := s.start("seatMap")
	s.mu.Unlock()

	seatMap, err := s.api.GetSeatMap(ctx, showingID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("seatMap", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.seatMap = &seatMap
	return nil
}

func (s *MovieStore) Movies() []model.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Movie(nil), s.movies...)
}

func (s *MovieStore) CurrentMovie() (model.Movie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Movie{}, false
	}
	return *s.current, true
}

func (s *MovieStore) Categories() []model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Category(nil), s.categories...)
}

func (s *MovieStore) Showings() []model.Showing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Showing(nil), s.showings...)
}

func (s *MovieStore) SeatMap() (model.SeatMap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seatMap == nil {
		return model.SeatMap{}, false
	}
	return *s.seatMap, true
}

func (s *MovieStore) Filters() MovieFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

func (s *MovieStore) Pagination() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagination
}

func (s *MovieStore) SetFilters(filters MovieFilters) {
	s.mu.Lock()
	s.filters = filters
	s.pagination.Page = 1
	s.mu.Unlock()
	s.changed()
}

func (s *MovieStore) ResetFilters() {
	s.SetFilters(MovieFilters{})
}

func (s *MovieStore) SetPage(page int) {
	s.mu.Lock()
	s.pagination.Page = page
	s.pagination = s.pagination.normalized()
	s.mu.Unlock()
	s.changed()
}

// FilteredMovies applies the filters to the loaded page without a request.
func (s *MovieStore) FilteredMovies() []model.Movie {
	s.mu.Lock()
	filters := s.filters
	movies := append([]model.Movie(nil), s.movies...)
	s.mu.Unlock()

	keyword := strings.ToLower(strings.TrimSpace(filters.Keyword))
	filtered := movies[:0]
	for _, m := range movies {
		if filters.CategoryID != "" && m.CategoryID.String() != filters.CategoryID {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(m.Name), keyword) &&
			!strings.Contains(strings.ToLower(m.Description), keyword) {
			continue
		}
		filtered = append(filtered, m)
	}

	var less func(a, b model.Movie) bool
	switch filters.SortBy {
	case SortByName:
		less = func(a, b model.Movie) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortByDate:
		less = func(a, b model.Movie) bool { return a.ReleaseDate.Before(b.ReleaseDate) }
	case SortByCategory:
		less = func(a, b model.Movie) bool { return a.CategoryName < b.CategoryName }
	}
	if less != nil {
		desc := filters.Order == OrderDesc
		sort.SliceStable(filtered, func(i, j int) bool {
			if desc {
				return less(filtered[j], filtered[i])
			}
			return less(filtered[i], filtered[j])
		})
	}
	return filtered
}

// AvailableSeats reports the last known free seat count for a showing. The
// value is advisory; booking always re-checks with the server.
func (s *MovieStore) AvailableSeats(showingID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range s.showings {
		if sh.ID.String() == showingID {
			return sh.AvailableSeats, true
		}
	}
	if s.current != nil {
		for _, sh := range s.current.Showings {
			if sh.ID.String() == showingID {
				return sh.AvailableSeats, true
			}
		}
	}
	return 0, false
}

func superseded(err error) error {
	if err != nil {
		return err
	}
	return ErrSuperseded
}
