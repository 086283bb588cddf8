package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"citizen-card-cli/model"
)

var errStub = errors.New("stub failure")

type stubAuthAPI struct {
	mu          sync.Mutex
	loginResp   model.AuthResponse
	loginErr    error
	profile     model.User
	profileErr  error
	logoutCalls int
	profileHits int
}

func (s *stubAuthAPI) Register(ctx context.Context, reg model.Registration) (model.AuthResponse, error) {
	return s.loginResp, s.loginErr
}

func (s *stubAuthAPI) Login(ctx context.Context, creds model.Credentials) (model.AuthResponse, error) {
	return s.loginResp, s.loginErr
}

func (s *stubAuthAPI) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.logoutCalls++
	s.mu.Unlock()
	return nil
}

func (s *stubAuthAPI) GetProfile(ctx context.Context) (model.User, error) {
	s.mu.Lock()
	s.profileHits++
	s.mu.Unlock()
	return s.profile, s.profileErr
}

func (s *stubAuthAPI) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (model.User, error) {
	user := s.profile
	user.Phone = update.Phone
	return user, nil
}

func (s *stubAuthAPI) ChangePassword(ctx context.Context, current string, next string) error {
	return nil
}

func (s *stubAuthAPI) RequestPasswordReset(ctx context.Context, email string) error {
	return nil
}

func (s *stubAuthAPI) ResetPassword(ctx context.Context, token string, newPassword string) error {
	return nil
}

func (s *stubAuthAPI) VerifyEmail(ctx context.Context, token string) error {
	return nil
}

func (s *stubAuthAPI) ResendVerificationEmail(ctx context.Context) error {
	return nil
}

func (s *stubAuthAPI) GetCitizenCard(ctx context.Context) (model.CitizenCard, error) {
	return model.CitizenCard{CardNumber: "1111222233334444", CardType: "NORMAL"}, nil
}

type stubBookingAPI struct {
	mu         sync.Mutex
	available  func(seats []string) (bool, error)
	created    []model.BookingRequest
	cancelled  []time.Time
	bookings   []model.Booking
	listErr    error
	cancelErr  error
	listCalls  int
	checkCalls int
}

func (s *stubBookingAPI) CheckSeatsAvailability(ctx context.Context, showingID string, seats []string) (bool, error) {
	s.mu.Lock()
	s.checkCalls++
	fn := s.available
	s.mu.Unlock()
	if fn == nil {
		return true, nil
	}
	return fn(seats)
}

func (s *stubBookingAPI) CreateBooking(ctx context.Context, showingID string, seats []string, extras model.BookingExtras) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, model.BookingRequest{ShowingID: model.ID(showingID), Seats: seats, DiscountID: extras.DiscountID})
	return model.Booking{ID: "b1", ShowingID: model.ID(showingID), Seats: seats, Status: model.BookingPending}, nil
}

func (s *stubBookingAPI) ListBookings(ctx context.Context, q model.BookingQuery) (model.BookingList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return model.BookingList{}, s.listErr
	}
	return model.BookingList{Bookings: s.bookings, Pagination: model.Pagination{Total: len(s.bookings)}}, nil
}

func (s *stubBookingAPI) GetBooking(ctx context.Context, bookingID string) (model.Booking, error) {
	return model.Booking{ID: model.ID(bookingID)}, nil
}

func (s *stubBookingAPI) CancelBooking(ctx context.Context, bookingID string, showTime time.Time) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, showTime)
	if s.cancelErr != nil {
		return model.Booking{}, s.cancelErr
	}
	return model.Booking{ID: model.ID(bookingID), Status: model.BookingCancelled}, nil
}

func (s *stubBookingAPI) CalculateAmount(ctx context.Context, showingID string, seats []string, discountID model.ID) (model.BookingQuote, error) {
	amount := float64(len(seats)) * 180
	return model.BookingQuote{OriginalAmount: amount, FinalAmount: amount}, nil
}

type stubShowingAPI struct {
	err error
}

func (s stubShowingAPI) GetShowing(ctx context.Context, showingID string) (model.Showing, error) {
	if s.err != nil {
		return model.Showing{}, s.err
	}
	return model.Showing{ID: model.ID(showingID), MovieName: "Dune", Price: 180}, nil
}

type stubWalletAPI struct {
	mu        sync.Mutex
	balance   float64
	txs       []model.Transaction
	infoCalls int
	txCalls   int
	topUps    int
	payErr    error
}

func (s *stubWalletAPI) GetWalletInfo(ctx context.Context) (model.WalletInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infoCalls++
	return model.WalletInfo{WalletID: "w1", Balance: s.balance, CardNumber: "1111222233334444"}, nil
}

func (s *stubWalletAPI) TopUp(ctx context.Context, req model.TopUpRequest) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topUps++
	s.balance += req.Amount
	tx := model.Transaction{TransactionID: "t-new", Type: model.TxTopUp, Amount: req.Amount, Balance: s.balance}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *stubWalletAPI) Pay(ctx context.Context, req model.PaymentRequest) (model.Transaction, error) {
	if s.payErr != nil {
		return model.Transaction{}, s.payErr
	}
	return model.Transaction{Type: model.TxPayment, Amount: req.Amount}, nil
}

func (s *stubWalletAPI) Refund(ctx context.Context, req model.RefundRequest) (model.Transaction, error) {
	return model.Transaction{Type: model.TxRefund, Amount: req.Amount}, nil
}

func (s *stubWalletAPI) ListTransactions(ctx context.Context, q model.TransactionQuery) (model.TransactionList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCalls++
	return model.TransactionList{Transactions: append([]model.Transaction(nil), s.txs...)}, nil
}

func (s *stubWalletAPI) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	return model.Transaction{TransactionID: model.ID(id)}, nil
}

func (s *stubWalletAPI) CheckBalance(ctx context.Context, amount float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance >= amount, nil
}

type stubDiscountAPI struct {
	mu          sync.Mutex
	discounts   []model.Discount
	useErr      error
	listCalls   int
	memberCalls int
	getCalls    int
}

func (s *stubDiscountAPI) ListDiscounts(ctx context.Context, q model.DiscountQuery) (model.DiscountList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return model.DiscountList{Discounts: append([]model.Discount(nil), s.discounts...)}, nil
}

func (s *stubDiscountAPI) ListMemberDiscounts(ctx context.Context) ([]model.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberCalls++
	return append([]model.Discount(nil), s.discounts...), nil
}

func (s *stubDiscountAPI) GetDiscount(ctx context.Context, id string) (model.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	for _, d := range s.discounts {
		if d.ID.String() == id {
			return d, nil
		}
	}
	return model.Discount{}, errStub
}

func (s *stubDiscountAPI) UseDiscount(ctx context.Context, id string, req model.DiscountUseRequest) (model.DiscountUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.useErr != nil {
		return model.DiscountUsage{}, s.useErr
	}
	for i := range s.discounts {
		if s.discounts[i].ID.String() == id {
			s.discounts[i].UsageCount++
		}
	}
	return model.DiscountUsage{ID: "u1", DiscountID: model.ID(id)}, nil
}

func (s *stubDiscountAPI) CheckAvailability(ctx context.Context, id string) (model.DiscountCheck, error) {
	return model.DiscountCheck{IsAvailable: true}, nil
}

func (s *stubDiscountAPI) UsageHistory(ctx context.Context, page int, limit int) (model.DiscountUsageList, error) {
	return model.DiscountUsageList{Usages: []model.DiscountUsage{{ID: "u1"}}}, nil
}

// countingKV wraps a KV and counts writes per key.
type countingKV struct {
	KV
	mu     sync.Mutex
	writes map[string]int
}

func newCountingKV(inner KV) *countingKV {
	return &countingKV{KV: inner, writes: map[string]int{}}
}

func (c *countingKV) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.writes[key]++
	c.mu.Unlock()
	return c.KV.Set(ctx, key, value)
}

func (c *countingKV) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[key]
}

type stubMovieAPI struct {
	mu          sync.Mutex
	movies      []model.Movie
	showings    []model.Showing
	list        func(q model.MovieQuery) (model.MovieList, error)
	listQueries []model.MovieQuery
	searches    []string
}

func (s *stubMovieAPI) ListMovies(ctx context.Context, q model.MovieQuery) (model.MovieList, error) {
	s.mu.Lock()
	s.listQueries = append(s.listQueries, q)
	fn := s.list
	movies := append([]model.Movie(nil), s.movies...)
	s.mu.Unlock()
	if fn != nil {
		return fn(q)
	}
	return model.MovieList{Movies: movies, Pagination: model.Pagination{Total: len(movies)}}, nil
}

func (s *stubMovieAPI) SearchMovies(ctx context.Context, keyword string, q model.MovieQuery) (model.MovieList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = append(s.searches, keyword)
	s.listQueries = append(s.listQueries, q)
	var found []model.Movie
	for _, m := range s.movies {
		if strings.Contains(strings.ToLower(m.Name), strings.ToLower(keyword)) {
			found = append(found, m)
		}
	}
	return model.MovieList{Movies: found, Pagination: model.Pagination{Total: len(found)}}, nil
}

func (s *stubMovieAPI) GetMovie(ctx context.Context, id string) (model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.movies {
		if m.ID.String() == id {
			return m, nil
		}
	}
	return model.Movie{}, errStub
}

func (s *stubMovieAPI) ListCategories(ctx context.Context) ([]model.Category, error) {
	return []model.Category{{ID: "c1", Name: "Sci-Fi"}}, nil
}

func (s *stubMovieAPI) ListShowings(ctx context.Context, movieID string, date time.Time) (model.ShowingList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.ShowingList{Showings: append([]model.Showing(nil), s.showings...)}, nil
}

func (s *stubMovieAPI) GetShowing(ctx context.Context, showingID string) (model.Showing, error) {
	return model.Showing{ID: model.ID(showingID)}, nil
}

func (s *stubMovieAPI) GetSeatMap(ctx context.Context, showingID string) (model.SeatMap, error) {
	return model.SeatMap{}, nil
}
