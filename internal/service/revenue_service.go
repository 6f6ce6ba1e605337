package service

import (
	"context"
	"fmt"
	"time"

	"milkrun/internal/period"
	"milkrun/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type RevenueDataPoint struct {
	Period          string `json:"period"`
	Invoices        int64  `json:"invoices"`
	TotalBilled     string `json:"totalBilled"`
	DeliveryCharges string `json:"deliveryCharges"`
}

type RevenueFilter struct {
	GroupBy string // week, month, quarter, year
	From    string // YYYY-MM-DD
	To      string // YYYY-MM-DD
}

// --- Interface ---

type RevenueService interface {
	GetRevenueStatistics(ctx context.Context, actor Actor, filter RevenueFilter) ([]RevenueDataPoint, error)
}

type revenueService struct {
	repo repository.RevenueRepository
	loc  *time.Location
}

func NewRevenueService(repo repository.RevenueRepository, loc *time.Location) RevenueService {
	if loc == nil {
		loc = time.UTC
	}
	return &revenueService{repo: repo, loc: loc}
}

// --- Implementation ---

// GetRevenueStatistics reports billed totals per period bucket. Without a
// range it covers the current calendar year.
func (s *revenueService) GetRevenueStatistics(ctx context.Context, actor Actor, filter RevenueFilter) ([]RevenueDataPoint, error) {
	groupBy := filter.GroupBy
	switch groupBy {
	case "week", "month", "quarter", "year":
		// valid
	default:
		groupBy = "month" // default
	}

	var p period.Period
	var err error
	if filter.From == "" && filter.To == "" {
		now := time.Now().In(s.loc)
		p, err = period.Between(time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), now)
	} else {
		p, err = period.Resolve("", filter.From, filter.To)
	}
	if err != nil {
		return nil, err
	}

	scope := repository.DeliveryScope{From: p.Start, To: p.End}
	if actor.StoreID != "" {
		storeID, err := uuid.Parse(actor.StoreID)
		if err != nil {
			return nil, fmt.Errorf("invalid store in token: %w", err)
		}
		scope.StoreID = &storeID
	}

	rows, err := s.repo.GetRevenueStatistics(ctx, groupBy, scope)
	if err != nil {
		return nil, err
	}

	result := make([]RevenueDataPoint, 0, len(rows))
	for _, r := range rows {
		result = append(result, RevenueDataPoint{
			Period:          r.Period,
			Invoices:        r.Invoices,
			TotalBilled:     r.TotalBilled.StringFixed(2),
			DeliveryCharges: r.DeliveryCharges.StringFixed(2),
		})
	}

	return result, nil
}
