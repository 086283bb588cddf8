package fakeapi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"citizen-card-cli/model"
)

type member struct {
	user       model.User
	password   string
	cardNumber string
	cardType   string
	walletID   model.ID
	balance    float64
	txs        []model.RawTransaction
	usages     []model.RawDiscountUsage
}

type showing struct {
	raw     model.RawShowing
	rows    int
	columns int
	// seats maps a label to its status; absent labels are available.
	seats map[string]string
}

type booking struct {
	raw      model.RawBooking
	memberID model.ID
}

// State is the in-memory backend data. All methods lock mu.
type State struct {
	mu  sync.Mutex
	now func() time.Time

	members      map[model.ID]*member
	emails       map[string]model.ID
	categories   []model.RawCategory
	movies       []model.RawMovie
	showings     map[model.ID]*showing
	bookings     map[model.ID]*booking
	discounts    map[model.ID]*model.RawDiscount
	resetTokens  map[string]model.ID
	verifyTokens map[string]model.ID
	nextMember   int
}

func NewState(seed Seed, now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	s := &State{now: now}
	s.load(seed)
	return s
}

func (s *State) load(seed Seed) {
	now := s.now().UTC().Truncate(time.Minute)
	s.members = map[model.ID]*member{}
	s.emails = map[string]model.ID{}
	s.showings = map[model.ID]*showing{}
	s.bookings = map[model.ID]*booking{}
	s.discounts = map[model.ID]*model.RawDiscount{}
	s.resetTokens = map[string]model.ID{}
	s.verifyTokens = map[string]model.ID{}
	s.categories = nil
	s.movies = nil
	s.nextMember = 0

	for _, m := range seed.Members {
		mem := s.addMember(model.Registration{
			Email:      m.Email,
			Password:   m.Password,
			Phone:      m.Phone,
			HolderName: m.HolderName,
			CardType:   m.CardType,
		}, now)
		mem.cardNumber = m.CardNumber
		mem.balance = m.Balance
		mem.user.IsVerified = m.Verified
		if m.Balance > 0 {
			mem.txs = append(mem.txs, model.RawTransaction{
				TransactionID: model.ID(uuid.NewString()),
				Type:          model.TxTopUp,
				Amount:        model.Number(m.Balance),
				Balance:       model.Number(m.Balance),
				Description:   "Opening balance",
				Status:        "COMPLETED",
				CreatedAt:     now.Add(-24 * time.Hour),
			})
		}
	}

	names := map[string]string{}
	for _, c := range seed.Categories {
		names[c.ID] = c.Name
		s.categories = append(s.categories, model.RawCategory{CategoryID: model.ID(c.ID), CategoryName: c.Name})
	}
	for _, m := range seed.Movies {
		movie := model.RawMovie{
			MovieID:      model.ID(m.ID),
			MovieName:    m.Name,
			Description:  m.Description,
			Duration:     m.Duration,
			CategoryID:   model.ID(m.CategoryID),
			CategoryName: names[m.CategoryID],
			ReleaseDate:  m.ReleaseDate,
			Rating:       model.Number(m.Rating),
		}
		for _, sh := range m.Showings {
			st := &showing{rows: sh.Rows, columns: sh.Columns, seats: map[string]string{}}
			for _, label := range sh.Taken {
				st.seats[label] = model.SeatOccupied
			}
			for _, label := range sh.Blocked {
				st.seats[label] = model.SeatBlocked
			}
			st.raw = model.RawShowing{
				ShowingID:  model.ID(sh.ID),
				MovieID:    movie.MovieID,
				MovieName:  movie.MovieName,
				VenueID:    model.ID(strings.ToLower(strings.ReplaceAll(sh.Venue, " ", "-"))),
				VenueName:  sh.Venue,
				ShowTime:   now.Add(sh.StartsIn),
				TotalSeats: sh.Rows * sh.Columns,
				Price:      model.Number(sh.Price),
			}
			s.showings[st.raw.ShowingID] = st
		}
		s.movies = append(s.movies, movie)
	}
	for i := range s.categories {
		for _, m := range s.movies {
			if m.CategoryID == s.categories[i].CategoryID {
				s.categories[i].MovieCount++
			}
		}
	}
	for _, d := range seed.Discounts {
		from := now.Add(d.ValidFrom)
		s.discounts[model.ID(d.ID)] = &model.RawDiscount{
			DiscountID:       model.ID(d.ID),
			DiscountName:     d.Name,
			Description:      d.Description,
			DiscountType:     d.Type,
			DiscountCategory: d.Category,
			DiscountValue:    model.Number(d.Value),
			MinPurchase:      model.Number(d.MinPurchase),
			ValidFrom:        from,
			ValidUntil:       from.Add(d.ValidFor),
			UsageLimit:       d.UsageLimit,
			UsageCount:       d.UsageCount,
		}
	}
}

// Reset reloads the state from seed.
func (s *State) Reset(seed Seed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(seed)
}

// addMember registers a member. Callers hold mu or are loading.
func (s *State) addMember(reg model.Registration, now time.Time) *member {
	s.nextMember++
	id := model.ID(fmt.Sprintf("%d", s.nextMember))
	cardType := reg.CardType
	if cardType == "" {
		cardType = "NORMAL"
	}
	mem := &member{
		user: model.User{
			ID:           id,
			Email:        reg.Email,
			Phone:        reg.Phone,
			HolderName:   reg.HolderName,
			CardType:     cardType,
			Role:         "MEMBER",
			IsActive:     true,
			RegisterDate: now,
		},
		password:   reg.Password,
		cardNumber: fmt.Sprintf("9000%012d", s.nextMember),
		cardType:   cardType,
		walletID:   model.ID(fmt.Sprintf("w%d", s.nextMember)),
	}
	s.members[id] = mem
	s.emails[strings.ToLower(reg.Email)] = id
	return mem
}

// seatStatus returns the status of label; callers hold mu.
func (sh *showing) seatStatus(label string) (string, bool) {
	if len(label) < 2 {
		return "", false
	}
	row := int(label[0]-'A') + 1
	var col int
	if _, err := fmt.Sscanf(label[1:], "%d", &col); err != nil {
		return "", false
	}
	if row < 1 || row > sh.rows || col < 1 || col > sh.columns {
		return "", false
	}
	if status, ok := sh.seats[label]; ok {
		return status, true
	}
	return model.SeatAvailable, true
}

func (sh *showing) available() int {
	taken := 0
	for _, status := range sh.seats {
		if status != model.SeatAvailable {
			taken++
		}
	}
	return sh.rows*sh.columns - taken
}

func (sh *showing) snapshot() model.RawShowing {
	raw := sh.raw
	raw.AvailableSeats = sh.available()
	return raw
}

func (sh *showing) seatMap() model.RawSeatMap {
	out := model.RawSeatMap{ShowingID: sh.raw.ShowingID, Rows: sh.rows, Columns: sh.columns}
	for r := 1; r <= sh.rows; r++ {
		for c := 1; c <= sh.columns; c++ {
			label := fmt.Sprintf("%c%d", 'A'+r-1, c)
			status, _ := sh.seatStatus(label)
			seatType := model.SeatTypeStandard
			if r == sh.rows && (c == 1 || c == sh.columns) {
				seatType = model.SeatTypeAccessible
			}
			out.Seats = append(out.Seats, model.RawSeat{SeatID: label, Row: r, Column: c, Status: status, Type: seatType})
		}
	}
	return out
}

// seatsFree reports whether every label exists and is available; callers hold mu.
func (sh *showing) seatsFree(labels []string) bool {
	for _, label := range labels {
		status, ok := sh.seatStatus(label)
		if !ok || status != model.SeatAvailable {
			return false
		}
	}
	return true
}

func (m *member) addTx(tx model.RawTransaction) model.RawTransaction {
	tx.TransactionID = model.ID(uuid.NewString())
	tx.Balance = model.Number(m.balance)
	tx.Status = "COMPLETED"
	m.txs = append(m.txs, tx)
	return tx
}

func (m *member) walletInfo(now time.Time) model.RawWalletInfo {
	return model.RawWalletInfo{
		WalletID:    m.walletID,
		MemberID:    m.user.ID,
		Balance:     model.Number(m.balance),
		CardNumber:  m.cardNumber,
		CardType:    m.cardType,
		LastUpdated: now,
		Status:      "ACTIVE",
		IsActive:    true,
	}
}

func sortedTxs(txs []model.RawTransaction) []model.RawTransaction {
	out := append([]model.RawTransaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
