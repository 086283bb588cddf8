package service

import (
	"context"
	"fmt"

	"citizen-card-cli/model"
)

type DiscountService struct {
	client *Client
}

func NewDiscountService(client *Client) *DiscountService {
	return &DiscountService{client: client}
}

func (s *DiscountService) ListDiscounts(ctx context.Context, q model.DiscountQuery) (model.DiscountList, error) {
	values := pageQuery(q.Page, q.Limit)
	if q.Type != "" {
		values.Set("type", q.Type)
	}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	var raw model.RawDiscountList
	if err := s.client.getJSON(ctx, "/discounts", values, &raw); err != nil {
		return model.DiscountList{}, wrapErr("discount.list", "failed to load discounts", err)
	}
	out := model.DiscountList{Pagination: raw.Pagination}
	for _, d := range raw.Discounts {
		out.Discounts = append(out.Discounts, model.FormatDiscount(d))
	}
	if out.Pagination.Total == 0 {
		out.Pagination.Total = raw.Total
	}
	return out, nil
}

// ListMemberDiscounts returns the discounts the current member holds.
func (s *DiscountService) ListMemberDiscounts(ctx context.Context) ([]model.Discount, error) {
	var raw []model.RawDiscount
	if err := s.client.getJSON(ctx, "/discounts/member", nil, &raw); err != nil {
		return nil, wrapErr("discount.member", "failed to load member discounts", err)
	}
	out := make([]model.Discount, 0, len(raw))
	for _, d := range raw {
		out = append(out, model.FormatDiscount(d))
	}
	return out, nil
}

func (s *DiscountService) GetDiscount(ctx context.Context, id string) (model.Discount, error) {
	escaped, err := requireID(id)
	if err != nil {
		return model.Discount{}, err
	}
	var raw model.RawDiscount
	if err := s.client.getJSON(ctx, "/discounts/"+escaped, nil, &raw); err != nil {
		return model.Discount{}, wrapErr("discount.get", "failed to load discount", err)
	}
	return model.FormatDiscount(raw), nil
}

// UseDiscount redeems one use. The server decides eligibility.
func (s *DiscountService) UseDiscount(ctx context.Context, id string, req model.DiscountUseRequest) (model.DiscountUsage, error) {
	escaped, err := requireID(id)
	if err != nil {
		return model.DiscountUsage{}, err
	}
	var raw model.RawDiscountUsage
	if err := s.client.postJSON(ctx, fmt.Sprintf("/discounts/%s/use", escaped), req, &raw); err != nil {
		return model.DiscountUsage{}, wrapErr("discount.use", "failed to use discount", err)
	}
	return model.FormatDiscountUsage(raw), nil
}

func (s *DiscountService) CheckAvailability(ctx context.Context, id string) (model.DiscountCheck, error) {
	escaped, err := requireID(id)
	if err != nil {
		return model.DiscountCheck{}, err
	}
	var check model.DiscountCheck
	if err := s.client.getJSON(ctx, fmt.Sprintf("/discounts/%s/check", escaped), nil, &check); err != nil {
		return model.DiscountCheck{}, wrapErr("discount.check", "failed to check discount", err)
	}
	return check, nil
}

func (s *DiscountService) UsageHistory(ctx context.Context, page int, limit int) (model.DiscountUsageList, error) {
	var raw model.RawDiscountUsageList
	if err := s.client.getJSON(ctx, "/discounts/usage-history", pageQuery(page, limit), &raw); err != nil {
		return model.DiscountUsageList{}, wrapErr("discount.history", "failed to load discount usage history", err)
	}
	out := model.DiscountUsageList{Pagination: raw.Pagination}
	for _, u := range raw.Usages {
		out.Usages = append(out.Usages, model.FormatDiscountUsage(u))
	}
	if out.Pagination.Total == 0 {
		out.Pagination.Total = raw.Total
	}
	return out, nil
}
