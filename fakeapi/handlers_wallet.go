package fakeapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"citizen-card-cli/model"
	"citizen-card-cli/service"
)

func (s *Server) walletInfo(w http.ResponseWriter, r *http.Request) {
	now := s.cfg.Now().UTC()
	s.state.mu.Lock()
	info := s.state.members[currentSession(r).memberID].walletInfo(now)
	s.state.mu.Unlock()
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) validAmount(w http.ResponseWriter, amount float64) bool {
	if err := service.ValidateAmount(amount); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error(), map[string]string{"amount": err.Error()})
		return false
	}
	return true
}

func (s *Server) topUp(w http.ResponseWriter, r *http.Request) {
	var req model.TopUpRequest
	if !s.decode(w, r, &req) || !s.validAmount(w, req.Amount) {
		return
	}
	now := s.cfg.Now().UTC()
	s.state.mu.Lock()
	mem := s.state.members[currentSession(r).memberID]
	mem.balance += req.Amount
	description := "Top-up"
	if req.PaymentMethod != "" {
		description += " via " + req.PaymentMethod
	}
	tx := mem.addTx(model.RawTransaction{
		Type:        model.TxTopUp,
		Amount:      model.Number(req.Amount),
		Description: description,
		CreatedAt:   now,
	})
	s.state.mu.Unlock()
	s.writeJSON(w, http.StatusOK, tx)
}

func (s *Server) pay(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentRequest
	if !s.decode(w, r, &req) || !s.validAmount(w, req.Amount) {
		return
	}
	if req.Purpose == "" || req.OrderID == "" {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "purpose and orderId are required", nil)
		return
	}
	now := s.cfg.Now().UTC()
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	mem := s.state.members[currentSession(r).memberID]
	if mem.balance < req.Amount {
		s.writeError(w, http.StatusConflict, "INSUFFICIENT_BALANCE", "insufficient wallet balance", nil)
		return
	}
	mem.balance -= req.Amount
	tx := mem.addTx(model.RawTransaction{
		Type:        model.TxPayment,
		Amount:      model.Number(req.Amount),
		Description: req.Purpose,
		OrderID:     req.OrderID,
		CreatedAt:   now,
	})
	if b, ok := s.state.bookings[model.ID(req.OrderID)]; ok && b.memberID == mem.user.ID && b.raw.Status == model.BookingPending {
		b.raw.Status = model.BookingCompleted
	}
	s.writeJSON(w, http.StatusOK, tx)
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var req model.RefundRequest
	if !s.decode(w, r, &req) || !s.validAmount(w, req.Amount) {
		return
	}
	now := s.cfg.Now().UTC()
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	mem := s.state.members[currentSession(r).memberID]

	var original *model.RawTransaction
	refunded := 0.0
	for i := range mem.txs {
		tx := &mem.txs[i]
		if tx.TransactionID.String() == req.TransactionID {
			original = tx
		}
		if tx.Type == model.TxRefund && tx.OrderID == req.TransactionID {
			refunded += tx.Amount.Float64()
		}
	}
	if original == nil || original.Type != model.TxPayment {
		s.writeError(w, http.StatusNotFound, "TRANSACTION_NOT_FOUND", "payment transaction not found", nil)
		return
	}
	if refunded+req.Amount > original.Amount.Float64() {
		s.writeError(w, http.StatusBadRequest, "REFUND_EXCEEDS_PAYMENT", "refund exceeds the original payment", nil)
		return
	}
	mem.balance += req.Amount
	tx := mem.addTx(model.RawTransaction{
		Type:        model.TxRefund,
		Amount:      model.Number(req.Amount),
		Description: req.Reason,
		OrderID:     req.TransactionID,
		CreatedAt:   now,
	})
	s.writeJSON(w, http.StatusOK, tx)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, _ := time.Parse(time.DateOnly, q.Get("startDate"))
	end, _ := time.Parse(time.DateOnly, q.Get("endDate"))

	s.state.mu.Lock()
	all := sortedTxs(s.state.members[currentSession(r).memberID].txs)
	s.state.mu.Unlock()

	var out []model.RawTransaction
	for _, tx := range all {
		if t := q.Get("type"); t != "" && tx.Type != t {
			continue
		}
		if !start.IsZero() && tx.CreatedAt.Before(start) {
			continue
		}
		if !end.IsZero() && !tx.CreatedAt.Before(end.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, tx)
	}
	page, pagination := paginate(out, r)
	if page == nil {
		page = []model.RawTransaction{}
	}
	s.writeJSON(w, http.StatusOK, model.RawTransactionList{Transactions: page, Total: pagination.Total, Pagination: pagination})
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for _, tx := range s.state.members[currentSession(r).memberID].txs {
		if tx.TransactionID.String() == id {
			s.writeJSON(w, http.StatusOK, tx)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "TRANSACTION_NOT_FOUND", "transaction not found", nil)
}

func (s *Server) checkBalance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount float64 `json:"amount"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.state.mu.Lock()
	enough := s.state.members[currentSession(r).memberID].balance >= body.Amount
	s.state.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]bool{"isEnough": enough})
}
