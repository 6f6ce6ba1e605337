package service

import (
	"context"
	"testing"

	"milkrun/internal/apperr"
	"milkrun/internal/model"
	"milkrun/internal/period"
	"milkrun/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatistics struct {
	scope repository.DeliveryScope
	limit int
	top   []model.ProductRanking
}

func (f *fakeStatistics) GetDeliveryTotals(_ context.Context, scope repository.DeliveryScope) (repository.DeliveryTotals, error) {
	f.scope = scope
	return repository.DeliveryTotals{Logs: 3, TotalQuantity: dec("12"), TotalValue: dec("360")}, nil
}

func (f *fakeStatistics) GetTopProducts(_ context.Context, _ repository.DeliveryScope, limit int) ([]model.ProductRanking, error) {
	f.limit = limit
	return f.top, nil
}

func (f *fakeStatistics) GetInvoicedTotal(context.Context, repository.DeliveryScope) (decimal.Decimal, error) {
	return dec("300"), nil
}

func TestDeliveryStatistics(t *testing.T) {
	storeID, otherStore := uuid.New(), uuid.New()
	area := &model.Area{ID: uuid.New(), StoreID: storeID, Name: "North"}
	foreign := &model.Area{ID: uuid.New(), StoreID: otherStore, Name: "South"}
	areas := &fakeAreas{areas: map[uuid.UUID]*model.Area{area.ID: area, foreign.ID: foreign}}
	repo := &fakeStatistics{}
	svc := NewStatisticsService(repo, areas, nil)
	manager := Actor{Role: model.RoleManager, StoreID: storeID.String()}

	stats, err := svc.GetDeliveryStatistics(context.Background(), manager, "2025-11-01", "2025-11-30", area.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "2025-11-01", stats.From.Format(period.DateLayout))
	assert.Equal(t, "2025-11-30", stats.To.Format(period.DateLayout))
	assert.Equal(t, int64(3), stats.AttendanceLogs)
	assert.True(t, dec("360").Equal(stats.TotalValue))
	assert.True(t, dec("300").Equal(stats.InvoicedTotal))
	assert.NotNil(t, stats.TopProducts)
	assert.Empty(t, stats.TopProducts)
	assert.Equal(t, topProductsLimit, repo.limit)

	require.NotNil(t, repo.scope.StoreID)
	assert.Equal(t, storeID, *repo.scope.StoreID)
	require.NotNil(t, repo.scope.AreaID)
	assert.Equal(t, area.ID, *repo.scope.AreaID)

	var notFound *apperr.NotFoundError
	_, err = svc.GetDeliveryStatistics(context.Background(), manager, "2025-11-01", "2025-11-30", foreign.ID.String())
	assert.ErrorAs(t, err, &notFound)

	var verr *apperr.ValidationError
	_, err = svc.GetDeliveryStatistics(context.Background(), manager, "2025-11-01", "", "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "to", verr.Field)
}
