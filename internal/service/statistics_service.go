package service

import (
	"context"
	"fmt"
	"time"

	"milkrun/internal/model"
	"milkrun/internal/period"
	"milkrun/internal/repository"

	"github.com/google/uuid"
)

const topProductsLimit = 5

type StatisticsService interface {
	GetDeliveryStatistics(ctx context.Context, actor Actor, from, to, areaID string) (model.DeliveryStatistics, error)
}

type statisticsService struct {
	repo     repository.StatisticsRepository
	areaRepo repository.AreaRepository
	loc      *time.Location
}

func NewStatisticsService(repo repository.StatisticsRepository, areaRepo repository.AreaRepository, loc *time.Location) StatisticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &statisticsService{repo: repo, areaRepo: areaRepo, loc: loc}
}

// GetDeliveryStatistics aggregates delivered quantities over [from, to],
// defaulting to the current month. Users bound to a store only see it.
func (s *statisticsService) GetDeliveryStatistics(ctx context.Context, actor Actor, from, to, areaID string) (model.DeliveryStatistics, error) {
	var response model.DeliveryStatistics

	var p period.Period
	var err error
	if from == "" && to == "" {
		now := time.Now().In(s.loc)
		p = period.Month(now.Year(), now.Month())
	} else if p, err = period.Resolve("", from, to); err != nil {
		return response, err
	}

	scope := repository.DeliveryScope{From: p.Start, To: p.End}
	if actor.StoreID != "" {
		storeID, err := uuid.Parse(actor.StoreID)
		if err != nil {
			return response, fmt.Errorf("invalid store in token: %w", err)
		}
		scope.StoreID = &storeID
	}
	if areaID != "" {
		id, err := parseID("areaId", areaID)
		if err != nil {
			return response, err
		}
		if _, err := loadArea(ctx, s.areaRepo, actor, id); err != nil {
			return response, err
		}
		scope.AreaID = &id
	}

	totals, err := s.repo.GetDeliveryTotals(ctx, scope)
	if err != nil {
		return response, err
	}
	top, err := s.repo.GetTopProducts(ctx, scope, topProductsLimit)
	if err != nil {
		return response, err
	}
	invoiced, err := s.repo.GetInvoicedTotal(ctx, scope)
	if err != nil {
		return response, err
	}

	response.From = p.Start
	response.To = p.End
	response.AttendanceLogs = totals.Logs
	response.TotalQuantity = totals.TotalQuantity
	response.TotalValue = totals.TotalValue
	response.InvoicedTotal = invoiced
	response.TopProducts = top
	if response.TopProducts == nil {
		response.TopProducts = []model.ProductRanking{}
	}
	return response, nil
}
