package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"citizen-card-cli/model"
	"citizen-card-cli/service"
)

const (
	TxSortTime   = "time"
	TxSortAmount = "amount"

	recentTransactions = 5
)

type WalletAPI interface {
	GetWalletInfo(ctx context.Context) (model.WalletInfo, error)
	TopUp(ctx context.Context, req model.TopUpRequest) (model.Transaction, error)
	Pay(ctx context.Context, req model.PaymentRequest) (model.Transaction, error)
	Refund(ctx context.Context, req model.RefundRequest) (model.Transaction, error)
	ListTransactions(ctx context.Context, q model.TransactionQuery) (model.TransactionList, error)
	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	CheckBalance(ctx context.Context, amount float64) (bool, error)
}

// TransactionFilters narrow the transaction list. Type and dates go to the
// server; the amount range and sort are applied locally.
type TransactionFilters struct {
	Type      string    `json:"type,omitempty"`
	StartDate time.Time `json:"startDate,omitzero"`
	EndDate   time.Time `json:"endDate,omitzero"`
	MinAmount *float64  `json:"minAmount,omitempty"`
	MaxAmount *float64  `json:"maxAmount,omitempty"`
	SortBy    string    `json:"sortBy,omitempty"`
	Order     string    `json:"order,omitempty"`
}

type walletSnapshot struct {
	Filters    TransactionFilters `json:"filters"`
	Pagination Page               `json:"pagination"`
}

type CardInfo struct {
	CardNumber string
	CardType   string
	MemberID   model.ID
}

// WalletStore never adjusts balances locally: every mutation is followed by
// a refetch of the wallet and the transaction list.
type WalletStore struct {
	base
	api WalletAPI

	info         *model.WalletInfo
	transactions []model.Transaction
	current      *model.Transaction
	filters      TransactionFilters
	pagination   Page
}

func NewWalletStore(api WalletAPI, persist *Persister, logger logrus.FieldLogger) *WalletStore {
	return &WalletStore{
		base:       newBase(persist, logger),
		api:        api,
		pagination: defaultPage(),
	}
}

func (s *WalletStore) StoreID() string {
	return "wallet"
}

func (s *WalletStore) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return walletSnapshot{Filters: s.filters, Pagination: s.pagination}
}

func (s *WalletStore) Restore(data []byte) error {
	var snap walletSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	s.filters = snap.Filters
	s.pagination = snap.Pagination.normalized()
	s.mu.Unlock()
	return nil
}

func (s *WalletStore) changed() {
	s.persist.Schedule(s.StoreID(), s.Snapshot)
}

func (s *WalletStore) FetchWalletInfo(ctx context.Context) error {
	s.mu.Lock()
	token := s.start("info")
	s.mu.Unlock()

	info, err := s.api.GetWalletInfo(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("info", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.info = &info
	return nil
}

func (s *WalletStore) FetchTransactions(ctx context.Context) error {
	s.mu.Lock()
	token := s.start("transactions")
	q := model.TransactionQuery{
		Type:      s.filters.Type,
		StartDate: s.filters.StartDate,
		EndDate:   s.filters.EndDate,
		Page:      s.pagination.Page,
		Limit:     s.pagination.Limit,
	}
	s.mu.Unlock()

	list, err := s.api.ListTransactions(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("transactions", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.transactions = list.Transactions
	s.pagination.Total = list.Pagination.Total
	return nil
}

func (s *WalletStore) FetchTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	token := s.start("current")
	s.mu.Unlock()

	tx, err := s.api.GetTransaction(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("current", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.current = &tx
	return nil
}

func (s *WalletStore) TopUp(ctx context.Context, amount float64, method string) (model.Transaction, error) {
	if err := service.ValidateAmount(amount); err != nil {
		s.record(err)
		return model.Transaction{}, err
	}
	return s.mutate(ctx, func() (model.Transaction, error) {
		return s.api.TopUp(ctx, model.TopUpRequest{Amount: amount, PaymentMethod: method})
	})
}

// Pay charges the wallet. CheckBalance may be consulted first, but only the
// server's answer here is authoritative.
func (s *WalletStore) Pay(ctx context.Context, req model.PaymentRequest) (model.Transaction, error) {
	if err := service.ValidateAmount(req.Amount); err != nil {
		s.record(err)
		return model.Transaction{}, err
	}
	return s.mutate(ctx, func() (model.Transaction, error) {
		return s.api.Pay(ctx, req)
	})
}

func (s *WalletStore) Refund(ctx context.Context, req model.RefundRequest) (model.Transaction, error) {
	return s.mutate(ctx, func() (model.Transaction, error) {
		return s.api.Refund(ctx, req)
	})
}

// CheckBalance is advisory only.
func (s *WalletStore) CheckBalance(ctx context.Context, amount float64) (bool, error) {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	enough, err := s.api.CheckBalance(ctx, amount)

	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	s.fail(err)
	s.mu.Unlock()
	return enough, err
}

// mutate runs a money-moving call and then refetches authoritative state.
func (s *WalletStore) mutate(ctx context.Context, call func() (model.Transaction, error)) (model.Transaction, error) {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	tx, err := call()

	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	if err != nil {
		s.fail(err)
		s.mu.Unlock()
		return model.Transaction{}, err
	}
	s.err = ""
	s.mu.Unlock()

	return tx, s.Refresh(ctx)
}

// Refresh reloads the wallet info and the current transaction page.
func (s *WalletStore) Refresh(ctx context.Context) error {
	errInfo := s.FetchWalletInfo(ctx)
	errTx := s.FetchTransactions(ctx)
	if errors.Is(errInfo, ErrSuperseded) {
		errInfo = nil
	}
	if errors.Is(errTx, ErrSuperseded) {
		errTx = nil
	}
	return errors.Join(errInfo, errTx)
}

func (s *WalletStore) record(err error) {
	s.mu.Lock()
	s.fail(err)
	s.mu.Unlock()
}

// Reset clears everything tied to the signed-in member.
func (s *WalletStore) Reset() {
	s.mu.Lock()
	s.seq["info"]++
	s.seq["transactions"]++
	s.seq["current"]++
	s.info = nil
	s.transactions = nil
	s.current = nil
	s.pagination.Total = 0
	s.err = ""
	s.mu.Unlock()
}

func (s *WalletStore) SetFilters(filters TransactionFilters) {
	s.mu.Lock()
	s.filters = filters
	s.pagination.Page = 1
	s.mu.Unlock()
	s.changed()
}

func (s *WalletStore) ResetFilters() {
	s.SetFilters(TransactionFilters{})
}

func (s *WalletStore) SetPage(page int) {
	s.mu.Lock()
	s.pagination.Page = page
	s.pagination = s.pagination.normalized()
	s.mu.Unlock()
	s.changed()
}

// SetLimit changes the page size and rewinds to the first page.
func (s *WalletStore) SetLimit(limit int) {
	s.mu.Lock()
	s.pagination.Limit = limit
	s.pagination.Page = 1
	s.pagination = s.pagination.normalized()
	s.mu.Unlock()
	s.changed()
}

func (s *WalletStore) Info() (model.WalletInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return model.WalletInfo{}, false
	}
	return *s.info, true
}

func (s *WalletStore) CurrentBalance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return 0
	}
	return s.info.Balance
}

func (s *WalletStore) CardInfo() CardInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return CardInfo{}
	}
	return CardInfo{CardNumber: s.info.CardNumber, CardType: s.info.CardType, MemberID: s.info.MemberID}
}

func (s *WalletStore) Transactions() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Transaction(nil), s.transactions...)
}

func (s *WalletStore) CurrentTransaction() (model.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Transaction{}, false
	}
	return *s.current, true
}

func (s *WalletStore) Filters() TransactionFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

func (s *WalletStore) Pagination() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagination
}

// RecentTransactions returns the newest five loaded transactions.
func (s *WalletStore) RecentTransactions() []model.Transaction {
	txs := s.Transactions()
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	if len(txs) > recentTransactions {
		txs = txs[:recentTransactions]
	}
	return txs
}

func (s *WalletStore) TransactionsByType(txType string) []model.Transaction {
	var out []model.Transaction
	for _, tx := range s.Transactions() {
		if tx.Type == txType {
			out = append(out, tx)
		}
	}
	return out
}

// TotalIncome sums top-ups and refunds on the loaded page.
func (s *WalletStore) TotalIncome() float64 {
	var total float64
	for _, tx := range s.Transactions() {
		if tx.Type == model.TxTopUp || tx.Type == model.TxRefund {
			total += tx.Amount
		}
	}
	return total
}

func (s *WalletStore) TotalExpense() float64 {
	var total float64
	for _, tx := range s.TransactionsByType(model.TxPayment) {
		total += tx.Amount
	}
	return total
}

func (s *WalletStore) FilteredTransactions() []model.Transaction {
	s.mu.Lock()
	f := s.filters
	txs := append([]model.Transaction(nil), s.transactions...)
	s.mu.Unlock()

	filtered := txs[:0]
	for _, tx := range txs {
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		if !f.StartDate.IsZero() && tx.CreatedAt.Before(f.StartDate) {
			continue
		}
		if !f.EndDate.IsZero() && tx.CreatedAt.After(f.EndDate) {
			continue
		}
		if f.MinAmount != nil && tx.Amount < *f.MinAmount {
			continue
		}
		if f.MaxAmount != nil && tx.Amount > *f.MaxAmount {
			continue
		}
		filtered = append(filtered, tx)
	}

	asc := f.Order == OrderAsc
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if !asc {
			a, b = b, a
		}
		if f.SortBy == TxSortAmount {
			return a.Amount < b.Amount
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return filtered
}
