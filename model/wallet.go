package model

import "time"

const (
	TxTopUp   = "TOPUP"
	TxPayment = "PAYMENT"
	TxRefund  = "REFUND"
)

type RawWalletInfo struct {
	WalletID    ID        `json:"wallet_id"`
	MemberID    ID        `json:"member_id"`
	Balance     Number    `json:"balance"`
	CardNumber  string    `json:"card_number"`
	CardType    string    `json:"card_type"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
	Status      string    `json:"status"`
	IsActive    bool      `json:"is_active"`
}

type RawTransaction struct {
	TransactionID ID        `json:"transaction_id"`
	Type          string    `json:"type"`
	Amount        Number    `json:"amount"`
	Balance       Number    `json:"balance"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	OrderID       string    `json:"order_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

type RawTransactionList struct {
	Transactions []RawTransaction `json:"transactions"`
	Total        int              `json:"total"`
	Pagination   Pagination       `json:"pagination"`
}

type WalletInfo struct {
	WalletID    ID        `json:"walletId"`
	MemberID    ID        `json:"memberId"`
	Balance     float64   `json:"balance"`
	CardNumber  string    `json:"cardNumber"`
	CardType    string    `json:"cardType"`
	LastUpdated time.Time `json:"lastUpdated,omitzero"`
	Status      string    `json:"status"`
	IsActive    bool      `json:"isActive"`
}

type Transaction struct {
	TransactionID ID        `json:"transactionId"`
	Type          string    `json:"type"`
	Amount        float64   `json:"amount"`
	Balance       float64   `json:"balance"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	OrderID       string    `json:"orderId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt,omitzero"`
}

type TransactionList struct {
	Transactions []Transaction `json:"transactions"`
	Pagination   Pagination    `json:"pagination"`
}

type TopUpRequest struct {
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
}

type PaymentRequest struct {
	Amount  float64 `json:"amount"`
	Purpose string  `json:"purpose"`
	OrderID string  `json:"orderId"`
}

type RefundRequest struct {
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
}

type TransactionQuery struct {
	Type      string
	StartDate time.Time
	EndDate   time.Time
	Page      int
	Limit     int
}

func FormatWalletInfo(raw RawWalletInfo) WalletInfo {
	return WalletInfo{
		WalletID:    raw.WalletID,
		MemberID:    raw.MemberID,
		Balance:     raw.Balance.Float64(),
		CardNumber:  raw.CardNumber,
		CardType:    raw.CardType,
		LastUpdated: raw.LastUpdated,
		Status:      raw.Status,
		IsActive:    raw.IsActive,
	}
}

func FormatTransaction(raw RawTransaction) Transaction {
	return Transaction{
		TransactionID: raw.TransactionID,
		Type:          raw.Type,
		Amount:        raw.Amount.Float64(),
		Balance:       raw.Balance.Float64(),
		Description:   raw.Description,
		Status:        raw.Status,
		OrderID:       raw.OrderID,
		CreatedAt:     raw.CreatedAt,
		UpdatedAt:     raw.UpdatedAt,
	}
}
