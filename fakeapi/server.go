// Package fakeapi is an in-memory twin of the citizen card backend used by
// the dev-server command and by end-to-end tests.
package fakeapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"citizen-card-cli/model"
)

const APIPrefix = "/api"

type Config struct {
	Secret   string
	TokenTTL time.Duration
	// Envelope wraps every response in {code, data, message} with HTTP 200.
	Envelope bool
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

type Server struct {
	cfg    Config
	seed   Seed
	state  *State
	jwt    *JWTManager
	faults *FaultRegistry
	logger logrus.FieldLogger
}

func New(seed Seed, cfg Config) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Server{
		cfg:    cfg,
		seed:   seed,
		state:  NewState(seed, cfg.Now),
		jwt:    NewJWTManager(cfg.Secret, cfg.TokenTTL, cfg.Now),
		faults: NewFaultRegistry(),
		logger: logger,
	}
}

func (s *Server) Faults() *FaultRegistry {
	return s.faults
}

// IssueToken signs a session token for the member with email, for tests and tooling.
func (s *Server) IssueToken(email string) (string, bool) {
	s.state.mu.Lock()
	id, ok := s.state.emails[strings.ToLower(email)]
	s.state.mu.Unlock()
	if !ok {
		return "", false
	}
	token, err := s.jwt.GenerateToken(id.String())
	return token, err == nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.Route(APIPrefix, s.Routes)
	r.Route("/_admin", func(r chi.Router) {
		r.Get("/faults", s.listFaults)
		r.Post("/faults", s.setFault)
		r.Delete("/faults", s.clearFaults)
		r.Post("/reset", s.reset)
	})
	return r
}

// Routes mounts the backend API.
func (s *Server) Routes(r chi.Router) {
	r.Use(s.injectFaults(APIPrefix))

	r.Post("/auth/register", s.register)
	r.Post("/auth/login", s.login)
	r.Post("/auth/logout", s.logout)
	r.Post("/auth/password/reset-request", s.requestPasswordReset)
	r.Post("/auth/password/reset", s.resetPassword)

	r.Get("/movies", s.listMovies)
	r.Get("/movies/search", s.searchMovies)
	r.Get("/movies/categories", s.listCategories)
	r.Get("/movies/{id}", s.getMovie)
	r.Get("/movies/{id}/showings", s.listShowings)
	r.Get("/showings/{id}", s.getShowing)
	r.Get("/showings/{id}/seats", s.getSeatMap)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/auth/profile", s.getProfile)
		r.Put("/auth/profile", s.updateProfile)
		r.Put("/auth/password", s.changePassword)
		r.Post("/auth/verify-email", s.verifyEmail)
		r.Post("/auth/verify-email/resend", s.resendVerification)
		r.Get("/members/card", s.getCard)

		r.Post("/showings/{id}/check-seats", s.checkSeats)
		r.Post("/bookings/calculate", s.calculateAmount)
		r.Post("/bookings", s.createBooking)
		r.Get("/bookings", s.listBookings)
		r.Get("/bookings/{id}", s.getBooking)
		r.Put("/bookings/{id}/cancel", s.cancelBooking)

		r.Get("/wallet/info", s.walletInfo)
		r.Post("/wallet/topup", s.topUp)
		r.Post("/wallet/pay", s.pay)
		r.Post("/wallet/refund", s.refund)
		r.Get("/wallet/transactions", s.listTransactions)
		r.Get("/wallet/transactions/{id}", s.getTransaction)
		r.Post("/wallet/check-balance", s.checkBalance)

		r.Get("/discounts", s.listDiscounts)
		r.Get("/discounts/member", s.memberDiscounts)
		r.Get("/discounts/usage-history", s.usageHistory)
		r.Get("/discounts/{id}", s.getDiscount)
		r.Get("/discounts/{id}/check", s.checkDiscount)
		r.Post("/discounts/{id}/use", s.useDiscount)
	})
}

type ctxKey struct{}

type session struct {
	memberID model.ID
	claims   *jwt.RegisteredClaims
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessionFrom(r)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func (s *Server) sessionFrom(r *http.Request) (session, bool) {
	auth := r.Header.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == auth || token == "" {
		return session{}, false
	}
	claims, err := s.jwt.Verify(token)
	if err != nil {
		s.logger.WithError(err).Debug("rejected token")
		return session{}, false
	}
	id := model.ID(claims.Subject)
	s.state.mu.Lock()
	_, exists := s.state.members[id]
	s.state.mu.Unlock()
	if !exists {
		return session{}, false
	}
	return session{memberID: id, claims: claims}, true
}

func currentSession(r *http.Request) session {
	sess, _ := r.Context().Value(ctxKey{}).(session)
	return sess
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.statusCode,
			"duration":   time.Since(start).String(),
			"request_id": r.Header.Get("X-Request-Id"),
		}).Debug("request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if s.cfg.Envelope {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": http.StatusOK, "data": data, "message": "ok"})
		return
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError reports failures as an HTTP status, or in envelope mode as a
// 200 response whose code carries the status.
func (s *Server) writeError(w http.ResponseWriter, status int, code string, message string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	if s.cfg.Envelope {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": status, "data": nil, "message": message})
		return
	}
	body := map[string]any{"message": message, "errorCode": code}
	if len(fields) > 0 {
		body["errors"] = fields
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return false
	}
	return true
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func paginate[T any](items []T, r *http.Request) ([]T, model.Pagination) {
	page, limit := pageParams(r)
	start := (page - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := min(start+limit, len(items))
	return items[start:end], model.Pagination{Page: page, Limit: limit, Total: len(items)}
}

type faultRequest struct {
	Path       string  `json:"path"`
	StatusCode int     `json:"statusCode"`
	Body       string  `json:"body,omitempty"`
	DelayMs    int     `json:"delayMs,omitempty"`
	Rate       float64 `json:"rate"`
}

func (s *Server) listFaults(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.faults.All())
}

func (s *Server) setFault(w http.ResponseWriter, r *http.Request) {
	var req faultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	s.faults.Set(req.Path, FaultConfig{
		StatusCode: req.StatusCode,
		Body:       req.Body,
		Delay:      time.Duration(req.DelayMs) * time.Millisecond,
		Rate:       req.Rate,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearFaults(w http.ResponseWriter, r *http.Request) {
	if path := r.URL.Query().Get("path"); path != "" {
		s.faults.Remove(path)
	} else {
		s.faults.Reset()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.state.Reset(s.seed)
	s.faults.Reset()
	w.WriteHeader(http.StatusNoContent)
}
