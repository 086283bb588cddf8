package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"citizen-card-cli/model"
)

const (
	StatusFilterAll     = "all"
	StatusFilterActive  = "active"
	StatusFilterExpired = "expired"

	DiscountSortValidUntil = "validUntil"
	DiscountSortUsageCount = "usageCount"
	DiscountSortName       = "name"
)

type DiscountAPI interface {
	ListDiscounts(ctx context.Context, q model.DiscountQuery) (model.DiscountList, error)
	ListMemberDiscounts(ctx context.Context) ([]model.Discount, error)
	GetDiscount(ctx context.Context, id string) (model.Discount, error)
	UseDiscount(ctx context.Context, id string, req model.DiscountUseRequest) (model.DiscountUsage, error)
	CheckAvailability(ctx context.Context, id string) (model.DiscountCheck, error)
	UsageHistory(ctx context.Context, page int, limit int) (model.DiscountUsageList, error)
}

type DiscountFilters struct {
	Type     string `json:"type,omitempty"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status,omitempty"`
	SortBy   string `json:"sortBy,omitempty"`
	Order    string `json:"order,omitempty"`
}

type discountSnapshot struct {
	Filters    DiscountFilters `json:"filters"`
	Pagination Page            `json:"pagination"`
}

// DiscountStore derives status for display only; whether a discount can be
// redeemed is decided by the server on UseDiscount.
type DiscountStore struct {
	base
	api DiscountAPI
	now func() time.Time

	discounts  []model.Discount
	member     []model.Discount
	current    *model.Discount
	usage      []model.DiscountUsage
	filters    DiscountFilters
	pagination Page
}

func NewDiscountStore(api DiscountAPI, persist *Persister, logger logrus.FieldLogger) *DiscountStore {
	return &DiscountStore{
		base:       newBase(persist, logger),
		api:        api,
		now:        time.Now,
		filters:    DiscountFilters{Status: StatusFilterAll},
		pagination: defaultPage(),
	}
}

func (s *DiscountStore) StoreID() string {
	return "discounts"
}

func (s *DiscountStore) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return discountSnapshot{Filters: s.filters, Pagination: s.pagination}
}

func (s *DiscountStore) Restore(data []byte) error {
	var snap discountSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	s.filters = snap.Filters
	s.pagination = snap.Pagination.normalized()
	s.mu.Unlock()
	return nil
}

func (s *DiscountStore) changed() {
	s.persist.Schedule(s.StoreID(), s.Snapshot)
}

func (s *DiscountStore) FetchDiscounts(ctx context.Context) error {
	s.mu.Lock()
	token := s.start("discounts")
	q := model.DiscountQuery{
		Type:     s.filters.Type,
		Category: s.filters.Category,
		Page:     s.pagination.Page,
		Limit:    s.pagination.Limit,
	}
	s.mu.Unlock()

	list, err := s.api.ListDiscounts(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("discounts", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.discounts = list.Discounts
	s.pagination.Total = list.Pagination.Total
	return nil
}

func (s *DiscountStore) FetchMemberDiscounts(ctx context.Context) error {
	s.mu.Lock()
	token := s.start("member")
	s.mu.Unlock()

	discounts, err := s.api.ListMemberDiscounts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("member", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.member = discounts
	return nil
}

func (s *DiscountStore) FetchDiscount(ctx context.Context, id string) error {
	s.mu.Lock()
	token := s.start("current")
	s.mu.Unlock()

	discount, err := s.api.GetDiscount(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("current", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.current = &discount
	return nil
}

// UseDiscount redeems id and refetches the affected discounts instead of
// bumping the usage count locally.
func (s *DiscountStore) UseDiscount(ctx context.Context, id string, req model.DiscountUseRequest) (model.DiscountUsage, error) {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	usage, err := s.api.UseDiscount(ctx, id, req)

	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	if err != nil {
		s.fail(err)
		s.mu.Unlock()
		return model.DiscountUsage{}, err
	}
	s.err = ""
	refreshCurrent := s.current != nil && s.current.ID.String() == id
	s.mu.Unlock()

	var errs []error
	if refreshCurrent {
		errs = append(errs, s.FetchDiscount(ctx, id))
	}
	errs = append(errs, s.FetchMemberDiscounts(ctx), s.FetchDiscounts(ctx))
	for i, e := range errs {
		if errors.Is(e, ErrSuperseded) {
			errs[i] = nil
		}
	}
	return usage, errors.Join(errs...)
}

func (s *DiscountStore) CheckAvailability(ctx context.Context, id string) (model.DiscountCheck, error) {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	check, err := s.api.CheckAvailability(ctx, id)

	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	s.fail(err)
	s.mu.Unlock()
	return check, err
}

func (s *DiscountStore) FetchUsageHistory(ctx context.Context) error {
	s.mu.Lock()
	token := s.start("usage")
	page, limit := s.pagination.Page, s.pagination.Limit
	s.mu.Unlock()

	list, err := s.api.UsageHistory(ctx, page, limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("usage", token, err) {
		return superseded(err)
	}
	if err != nil {
		return err
	}
	s.usage = list.Usages
	return nil
}

// Reset clears member-specific data.
func (s *DiscountStore) Reset() {
	s.mu.Lock()
	s.seq["member"]++
	s.seq["usage"]++
	s.member = nil
	s.usage = nil
	s.err = ""
	s.mu.Unlock()
}

func (s *DiscountStore) SetFilters(filters DiscountFilters) {
	s.mu.Lock()
	s.filters = filters
	s.pagination.Page = 1
	s.mu.Unlock()
	s.changed()
}

func (s *DiscountStore) ResetFilters() {
	s.SetFilters(DiscountFilters{Status: StatusFilterAll})
}

func (s *DiscountStore) SetPage(page int) {
	s.mu.Lock()
	s.pagination.Page = page
	s.pagination = s.pagination.normalized()
	s.mu.Unlock()
	s.changed()
}

func (s *DiscountStore) Discounts() []model.Discount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Discount(nil), s.discounts...)
}

func (s *DiscountStore) MemberDiscounts() []model.Discount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Discount(nil), s.member...)
}

func (s *DiscountStore) CurrentDiscount() (model.Discount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Discount{}, false
	}
	return *s.current, true
}

func (s *DiscountStore) UsageHistory() []model.DiscountUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DiscountUsage(nil), s.usage...)
}

func (s *DiscountStore) Filters() DiscountFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

func (s *DiscountStore) Pagination() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagination
}

func (s *DiscountStore) ActiveDiscounts() []model.Discount {
	now := s.now()
	var out []model.Discount
	for _, d := range s.Discounts() {
		if model.IsDiscountActive(d, now) {
			out = append(out, d)
		}
	}
	return out
}

func (s *DiscountStore) ExpiredDiscounts() []model.Discount {
	now := s.now()
	var out []model.Discount
	for _, d := range s.Discounts() {
		if model.DiscountStatus(d, now) == model.DiscountExpired {
			out = append(out, d)
		}
	}
	return out
}

// CanUseDiscount is a display hint computed from the cached discount.
func (s *DiscountStore) CanUseDiscount(id string) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range [][]model.Discount{s.member, s.discounts} {
		for _, d := range list {
			if d.ID.String() == id {
				return model.IsDiscountActive(d, now)
			}
		}
	}
	if s.current != nil && s.current.ID.String() == id {
		return model.IsDiscountActive(*s.current, now)
	}
	return false
}

func (s *DiscountStore) FilteredDiscounts() []model.Discount {
	now := s.now()
	s.mu.Lock()
	f := s.filters
	discounts := append([]model.Discount(nil), s.discounts...)
	s.mu.Unlock()

	filtered := discounts[:0]
	for _, d := range discounts {
		if f.Type != "" && d.Type != f.Type {
			continue
		}
		if f.Category != "" && d.Category != f.Category {
			continue
		}
		switch f.Status {
		case StatusFilterActive:
			if !model.IsDiscountActive(d, now) {
				continue
			}
		case StatusFilterExpired:
			if model.DiscountStatus(d, now) != model.DiscountExpired {
				continue
			}
		}
		filtered = append(filtered, d)
	}

	var less func(a, b model.Discount) bool
	switch f.SortBy {
	case DiscountSortValidUntil:
		less = func(a, b model.Discount) bool { return a.ValidUntil.Before(b.ValidUntil) }
	case DiscountSortUsageCount:
		less = func(a, b model.Discount) bool { return a.UsageCount < b.UsageCount }
	case DiscountSortName:
		less = func(a, b model.Discount) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	}
	if less != nil {
		desc := f.Order == OrderDesc
		sort.SliceStable(filtered, func(i, j int) bool {
			if desc {
				return less(filtered[j], filtered[i])
			}
			return less(filtered[i], filtered[j])
		})
	}
	return filtered
}
