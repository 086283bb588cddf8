package fakeapi

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"citizen-card-cli/model"
)

// Categories reserved for one card type. Any other category is open to every member.
var cardBoundCategories = map[string]bool{"STUDENT": true, "SENIOR": true}

// eligibility reports whether mem may redeem d at now. Callers hold mu.
func eligibility(mem *member, d *model.RawDiscount, now time.Time) (bool, string) {
	if cardBoundCategories[d.DiscountCategory] && d.DiscountCategory != mem.cardType {
		return false, "discount is not available for your card type"
	}
	switch model.DiscountStatus(model.FormatDiscount(*d), now) {
	case model.DiscountUpcoming:
		return false, "discount is not active yet"
	case model.DiscountExpired:
		return false, "discount has expired"
	case model.DiscountDepleted:
		return false, "discount usage limit reached"
	}
	return true, ""
}

// discountAmount prices d against amount, rounded to cents and capped at amount.
func discountAmount(d *model.RawDiscount, amount float64) float64 {
	if amount < d.MinPurchase.Float64() {
		return 0
	}
	var off float64
	switch d.DiscountType {
	case "PERCENTAGE":
		off = amount * d.DiscountValue.Float64() / 100
	default:
		off = d.DiscountValue.Float64()
	}
	return math.Round(min(off, amount)*100) / 100
}

// redeem records one use of d by mem. Callers hold mu.
func (s *Server) redeem(mem *member, d *model.RawDiscount, amount float64, now time.Time) model.RawDiscountUsage {
	d.UsageCount++
	usage := model.RawDiscountUsage{
		UsageID:      model.ID(uuid.NewString()),
		DiscountID:   d.DiscountID,
		DiscountName: d.DiscountName,
		UsageTime:    now,
		Amount:       model.Number(amount),
		Status:       "USED",
	}
	mem.usages = append(mem.usages, usage)
	return usage
}

func (s *Server) sortedDiscounts() []model.RawDiscount {
	out := make([]model.RawDiscount, 0, len(s.state.discounts))
	for _, d := range s.state.discounts {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DiscountID < out[j].DiscountID })
	return out
}

func (s *Server) listDiscounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.state.mu.Lock()
	var list []model.RawDiscount
	for _, d := range s.sortedDiscounts() {
		if t := q.Get("type"); t != "" && d.DiscountType != t {
			continue
		}
		if c := q.Get("category"); c != "" && d.DiscountCategory != c {
			continue
		}
		list = append(list, d)
	}
	s.state.mu.Unlock()

	page, pagination := paginate(list, r)
	if page == nil {
		page = []model.RawDiscount{}
	}
	s.writeJSON(w, http.StatusOK, model.RawDiscountList{Discounts: page, Total: pagination.Total, Pagination: pagination})
}

func (s *Server) memberDiscounts(w http.ResponseWriter, r *http.Request) {
	now := s.cfg.Now()
	s.state.mu.Lock()
	mem := s.state.members[currentSession(r).memberID]
	out := []model.RawDiscount{}
	for _, d := range s.sortedDiscounts() {
		if ok, _ := eligibility(mem, &d, now); ok {
			out = append(out, d)
		}
	}
	s.state.mu.Unlock()
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getDiscount(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	d, ok := s.state.discounts[model.ID(chi.URLParam(r, "id"))]
	var raw model.RawDiscount
	if ok {
		raw = *d
	}
	s.state.mu.Unlock()
	if !ok {
		s.writeError(w, http.StatusNotFound, "DISCOUNT_NOT_FOUND", "discount not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, raw)
}

func (s *Server) checkDiscount(w http.ResponseWriter, r *http.Request) {
	now := s.cfg.Now()
	s.state.mu.Lock()
	d, ok := s.state.discounts[model.ID(chi.URLParam(r, "id"))]
	var check model.DiscountCheck
	if ok {
		check.IsAvailable, check.Reason = eligibility(s.state.members[currentSession(r).memberID], d, now)
		if remaining, limited := model.RemainingUses(model.FormatDiscount(*d)); limited {
			check.RemainingUses = &remaining
		}
	}
	s.state.mu.Unlock()
	if !ok {
		s.writeError(w, http.StatusNotFound, "DISCOUNT_NOT_FOUND", "discount not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, check)
}

func (s *Server) useDiscount(w http.ResponseWriter, r *http.Request) {
	var req model.DiscountUseRequest
	if !s.decode(w, r, &req) {
		return
	}
	now := s.cfg.Now().UTC()
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	d, ok := s.state.discounts[model.ID(chi.URLParam(r, "id"))]
	if !ok {
		s.writeError(w, http.StatusNotFound, "DISCOUNT_NOT_FOUND", "discount not found", nil)
		return
	}
	mem := s.state.members[currentSession(r).memberID]
	if eligible, reason := eligibility(mem, d, now); !eligible {
		s.writeError(w, http.StatusBadRequest, "DISCOUNT_UNAVAILABLE", reason, nil)
		return
	}
	amount := req.Amount
	if amount > 0 {
		amount = discountAmount(d, amount)
	}
	s.writeJSON(w, http.StatusOK, s.redeem(mem, d, amount, now))
}

func (s *Server) usageHistory(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	usages := append([]model.RawDiscountUsage{}, s.state.members[currentSession(r).memberID].usages...)
	s.state.mu.Unlock()
	sort.SliceStable(usages, func(i, j int) bool { return usages[i].UsageTime.After(usages[j].UsageTime) })

	page, pagination := paginate(usages, r)
	if page == nil {
		page = []model.RawDiscountUsage{}
	}
	s.writeJSON(w, http.StatusOK, model.RawDiscountUsageList{Usages: page, Total: pagination.Total, Pagination: pagination})
}
