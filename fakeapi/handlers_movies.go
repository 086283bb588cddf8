package fakeapi

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"citizen-card-cli/model"
)

func (s *Server) listMovies(w http.ResponseWriter, r *http.Request) {
	s.writeMovies(w, r, r.URL.Query().Get("keyword"))
}

func (s *Server) searchMovies(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if strings.TrimSpace(keyword) == "" {
		s.writeError(w, http.StatusBadRequest, "KEYWORD_REQUIRED", "keyword is required", nil)
		return
	}
	s.writeMovies(w, r, keyword)
}

func (s *Server) writeMovies(w http.ResponseWriter, r *http.Request, keyword string) {
	q := r.URL.Query()
	category := q.Get("categoryId")
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	s.state.mu.Lock()
	var movies []model.RawMovie
	for _, m := range s.state.movies {
		if category != "" && m.CategoryID.String() != category {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(m.MovieName+" "+m.Description), keyword) {
			continue
		}
		movies = append(movies, m)
	}
	s.state.mu.Unlock()

	sortMovies(movies, q.Get("sortBy"), q.Get("order"))
	page, pagination := paginate(movies, r)
	if page == nil {
		page = []model.RawMovie{}
	}
	s.writeJSON(w, http.StatusOK, model.RawMovieList{Movies: page, Total: pagination.Total, Pagination: pagination})
}

func sortMovies(movies []model.RawMovie, sortBy string, order string) {
	less := func(a, b model.RawMovie) bool { return a.MovieName < b.MovieName }
	switch sortBy {
	case "date":
		less = func(a, b model.RawMovie) bool { return a.ReleaseDate.Before(b.ReleaseDate) }
	case "category":
		less = func(a, b model.RawMovie) bool { return a.CategoryName < b.CategoryName }
	}
	sort.SliceStable(movies, func(i, j int) bool {
		if order == "desc" {
			return less(movies[j], movies[i])
		}
		return less(movies[i], movies[j])
	})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	categories := append([]model.RawCategory{}, s.state.categories...)
	s.state.mu.Unlock()
	s.writeJSON(w, http.StatusOK, categories)
}

func (s *Server) getMovie(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "id"))
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for _, m := range s.state.movies {
		if m.MovieID == id {
			m.Showings = s.showingsOf(id, time.Time{})
			s.writeJSON(w, http.StatusOK, m)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "MOVIE_NOT_FOUND", "movie not found", nil)
}

// showingsOf returns the showings of a movie ordered by show time, limited
// to one day when day is set. Callers hold mu.
func (s *Server) showingsOf(movieID model.ID, day time.Time) []model.RawShowing {
	out := []model.RawShowing{}
	for _, sh := range s.state.showings {
		if sh.raw.MovieID != movieID {
			continue
		}
		if !day.IsZero() && sh.raw.ShowTime.Format(time.DateOnly) != day.Format(time.DateOnly) {
			continue
		}
		out = append(out, sh.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShowTime.Before(out[j].ShowTime) })
	return out
}

func (s *Server) listShowings(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "id"))
	var day time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD", nil)
			return
		}
		day = parsed
	}

	s.state.mu.Lock()
	found := false
	for _, m := range s.state.movies {
		if m.MovieID == id {
			found = true
			break
		}
	}
	var showings []model.RawShowing
	if found {
		showings = s.showingsOf(id, day)
	}
	s.state.mu.Unlock()

	if !found {
		s.writeError(w, http.StatusNotFound, "MOVIE_NOT_FOUND", "movie not found", nil)
		return
	}
	if r.URL.Query().Get("_order") == "desc" {
		sort.SliceStable(showings, func(i, j int) bool { return showings[i].ShowTime.After(showings[j].ShowTime) })
	}
	s.writeJSON(w, http.StatusOK, model.RawShowingList{
		Showings:   showings,
		Total:      len(showings),
		Pagination: model.Pagination{Page: 1, Limit: len(showings), Total: len(showings)},
	})
}

func (s *Server) getShowing(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	sh, ok := s.state.showings[model.ID(chi.URLParam(r, "id"))]
	var raw model.RawShowing
	if ok {
		raw = sh.snapshot()
	}
	s.state.mu.Unlock()
	if !ok {
		s.writeError(w, http.StatusNotFound, "SHOWING_NOT_FOUND", "showing not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, raw)
}

func (s *Server) getSeatMap(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	sh, ok := s.state.showings[model.ID(chi.URLParam(r, "id"))]
	var seats model.RawSeatMap
	if ok {
		seats = sh.seatMap()
	}
	s.state.mu.Unlock()
	if !ok {
		s.writeError(w, http.StatusNotFound, "SHOWING_NOT_FOUND", "showing not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, seats)
}

func (s *Server) checkSeats(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Seats     []string `json:"seats"`
		CheckTime string   `json:"checkTime"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.state.mu.Lock()
	sh, ok := s.state.showings[model.ID(chi.URLParam(r, "id"))]
	available := ok && len(body.Seats) > 0 && sh.seatsFree(body.Seats)
	s.state.mu.Unlock()
	if !ok {
		s.writeError(w, http.StatusNotFound, "SHOWING_NOT_FOUND", "showing not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}
