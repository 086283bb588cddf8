package model

import "time"

const (
	DiscountUpcoming = "upcoming"
	DiscountActive   = "active"
	DiscountExpired  = "expired"
	DiscountDepleted = "depleted"
)

type RawDiscount struct {
	DiscountID       ID        `json:"DiscountID"`
	DiscountName     string    `json:"DiscountName"`
	Description      string    `json:"Description,omitempty"`
	DiscountType     string    `json:"DiscountType"`
	DiscountCategory string    `json:"DiscountCategory,omitempty"`
	DiscountValue    Number    `json:"DiscountValue"`
	MinPurchase      Number    `json:"MinPurchase,omitempty"`
	ValidFrom        time.Time `json:"ValidFrom"`
	ValidUntil       time.Time `json:"ValidUntil"`
	UsageLimit       int       `json:"UsageLimit,omitempty"`
	UsageCount       int       `json:"UsageCount"`
	Terms            string    `json:"Terms,omitempty"`
}

type RawDiscountList struct {
	Discounts  []RawDiscount `json:"discounts"`
	Total      int           `json:"total"`
	Pagination Pagination    `json:"pagination"`
}

type Discount struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	Category    string    `json:"category,omitempty"`
	Value       float64   `json:"value"`
	MinPurchase float64   `json:"minPurchase,omitempty"`
	ValidFrom   time.Time `json:"validFrom"`
	ValidUntil  time.Time `json:"validUntil"`
	// UsageLimit of zero means unlimited.
	UsageLimit int    `json:"usageLimit"`
	UsageCount int    `json:"usageCount"`
	Terms      string `json:"terms,omitempty"`
}

type DiscountUsage struct {
	ID           ID        `json:"id"`
	DiscountID   ID        `json:"discountId"`
	DiscountName string    `json:"discountName"`
	UsageTime    time.Time `json:"usageTime"`
	Amount       float64   `json:"amount"`
	Status       string    `json:"status"`
}

type RawDiscountUsage struct {
	UsageID      ID        `json:"UsageID"`
	DiscountID   ID        `json:"DiscountID"`
	DiscountName string    `json:"DiscountName"`
	UsageTime    time.Time `json:"UsageTime"`
	Amount       Number    `json:"Amount"`
	Status       string    `json:"Status"`
}

// DiscountCheck is the server verdict on whether a discount can be used now.
type DiscountCheck struct {
	IsAvailable   bool   `json:"isAvailable"`
	Reason        string `json:"reason,omitempty"`
	RemainingUses *int   `json:"remainingUses,omitempty"`
}

func FormatDiscount(raw RawDiscount) Discount {
	return Discount{
		ID:          raw.DiscountID,
		Name:        raw.DiscountName,
		Description: raw.Description,
		Type:        raw.DiscountType,
		Category:    raw.DiscountCategory,
		Value:       raw.DiscountValue.Float64(),
		MinPurchase: raw.MinPurchase.Float64(),
		ValidFrom:   raw.ValidFrom,
		ValidUntil:  raw.ValidUntil,
		UsageLimit:  raw.UsageLimit,
		UsageCount:  raw.UsageCount,
		Terms:       raw.Terms,
	}
}

func FormatDiscountUsage(raw RawDiscountUsage) DiscountUsage {
	return DiscountUsage{
		ID:           raw.UsageID,
		DiscountID:   raw.DiscountID,
		DiscountName: raw.DiscountName,
		UsageTime:    raw.UsageTime,
		Amount:       raw.Amount.Float64(),
		Status:       raw.Status,
	}
}

// IsDiscountActive reports whether now falls in [ValidFrom, ValidUntil) and
// the usage limit, if any, has not been reached.
func IsDiscountActive(d Discount, now time.Time) bool {
	if now.Before(d.ValidFrom) || !now.Before(d.ValidUntil) {
		return false
	}
	return d.UsageLimit <= 0 || d.UsageCount < d.UsageLimit
}

// RemainingUses returns the number of uses left. limited is false when the
// discount has no usage limit.
func RemainingUses(d Discount) (remaining int, limited bool) {
	if d.UsageLimit <= 0 {
		return 0, false
	}
	return max(0, d.UsageLimit-d.UsageCount), true
}

func DiscountStatus(d Discount, now time.Time) string {
	switch {
	case now.Before(d.ValidFrom):
		return DiscountUpcoming
	case now.After(d.ValidUntil):
		return DiscountExpired
	case d.UsageLimit > 0 && d.UsageCount >= d.UsageLimit:
		return DiscountDepleted
	default:
		return DiscountActive
	}
}

type DiscountList struct {
	Discounts  []Discount `json:"discounts"`
	Pagination Pagination `json:"pagination"`
}

type RawDiscountUsageList struct {
	Usages     []RawDiscountUsage `json:"usages"`
	Total      int                `json:"total"`
	Pagination Pagination         `json:"pagination"`
}

type DiscountUsageList struct {
	Usages     []DiscountUsage `json:"usages"`
	Pagination Pagination      `json:"pagination"`
}

type DiscountQuery struct {
	Type     string
	Category string
	Page     int
	Limit    int
}

// DiscountUseRequest describes what a discount is being redeemed against.
type DiscountUseRequest struct {
	BookingID ID      `json:"bookingId,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
}
