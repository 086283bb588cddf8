package service

import (
	"context"
	"strings"
	"time"

	"citizen-card-cli/model"
)

type WalletService struct {
	client *Client
}

func NewWalletService(client *Client) *WalletService {
	return &WalletService{client: client}
}

func (s *WalletService) GetWalletInfo(ctx context.Context) (model.WalletInfo, error) {
	var raw model.RawWalletInfo
	if err := s.client.getJSON(ctx, "/wallet/info", nil, &raw); err != nil {
		return model.WalletInfo{}, wrapErr("wallet.info", "failed to load wallet", err)
	}
	return model.FormatWalletInfo(raw), nil
}

// TopUp adds funds to the wallet. The amount is checked locally first.
func (s *WalletService) TopUp(ctx context.Context, req model.TopUpRequest) (model.Transaction, error) {
	if err := ValidateAmount(req.Amount); err != nil {
		return model.Transaction{}, err
	}
	var raw model.RawTransaction
	if err := s.client.postJSON(ctx, "/wallet/topup", req, &raw); err != nil {
		return model.Transaction{}, wrapErr("wallet.topup", "top-up failed", err)
	}
	return model.FormatTransaction(raw), nil
}

func (s *WalletService) Pay(ctx context.Context, req model.PaymentRequest) (model.Transaction, error) {
	if err := ValidateAmount(req.Amount); err != nil {
		return model.Transaction{}, err
	}
	req.Purpose = strings.TrimSpace(req.Purpose)
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.Purpose == "" {
		return model.Transaction{}, ErrPurposeRequired
	}
	if req.OrderID == "" {
		return model.Transaction{}, ErrOrderIDRequired
	}
	var raw model.RawTransaction
	if err := s.client.postJSON(ctx, "/wallet/pay", req, &raw); err != nil {
		return model.Transaction{}, wrapErr("wallet.pay", "payment failed", err)
	}
	return model.FormatTransaction(raw), nil
}

func (s *WalletService) Refund(ctx context.Context, req model.RefundRequest) (model.Transaction, error) {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.TransactionID == "" {
		return model.Transaction{}, ErrTransactionIDRequired
	}
	if err := ValidateAmount(req.Amount); err != nil {
		return model.Transaction{}, err
	}
	if req.Reason == "" {
		return model.Transaction{}, ErrReasonRequired
	}
	var raw model.RawTransaction
	if err := s.client.postJSON(ctx, "/wallet/refund", req, &raw); err != nil {
		return model.Transaction{}, wrapErr("wallet.refund", "refund failed", err)
	}
	return model.FormatTransaction(raw), nil
}

func (s *WalletService) ListTransactions(ctx context.Context, q model.TransactionQuery) (model.TransactionList, error) {
	values := pageQuery(q.Page, q.Limit)
	if q.Type != "" {
		values.Set("type", q.Type)
	}
	if !q.StartDate.IsZero() {
		values.Set("startDate", q.StartDate.Format(time.DateOnly))
	}
	if !q.EndDate.IsZero() {
		values.Set("endDate", q.EndDate.Format(time.DateOnly))
	}

	var raw model.RawTransactionList
	if err := s.client.getJSON(ctx, "/wallet/transactions", values, &raw); err != nil {
		return model.TransactionList{}, wrapErr("wallet.transactions", "failed to load transactions", err)
	}
	out := model.TransactionList{Pagination: raw.Pagination}
	for _, tx := range raw.Transactions {
		out.Transactions = append(out.Transactions, model.FormatTransaction(tx))
	}
	if out.Pagination.Total == 0 {
		out.Pagination.Total = raw.Total
	}
	return out, nil
}

func (s *WalletService) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	escaped, err := requireID(id)
	if err != nil {
		return model.Transaction{}, err
	}
	var raw model.RawTransaction
	if err := s.client.getJSON(ctx, "/wallet/transactions/"+escaped, nil, &raw); err != nil {
		return model.Transaction{}, wrapErr("wallet.transaction", "failed to load transaction", err)
	}
	return model.FormatTransaction(raw), nil
}

// CheckBalance reports whether the balance covers amount. Advisory only; the
// server re-checks when paying.
func (s *WalletService) CheckBalance(ctx context.Context, amount float64) (bool, error) {
	if err := ValidateAmount(amount); err != nil {
		return false, err
	}
	var resp struct {
		IsEnough bool `json:"isEnough"`
	}
	if err := s.client.postJSON(ctx, "/wallet/check-balance", map[string]float64{"amount": amount}, &resp); err != nil {
		return false, wrapErr("wallet.check_balance", "failed to check balance", err)
	}
	return resp.IsEnough, nil
}
