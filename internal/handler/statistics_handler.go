package handler

import (
	"net/http"

	"milkrun/internal/middleware"
	"milkrun/internal/model"
	"milkrun/internal/service"
	"milkrun/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	revenueService    service.RevenueService
}

func NewStatisticsHandler(statisticsService service.StatisticsService, revenueService service.RevenueService) *StatisticsHandler {
	return &StatisticsHandler{
		statisticsService: statisticsService,
		revenueService:    revenueService,
	}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	statsGroup := router.Group("/api/statistics")
	{
		statsGroup.GET("/deliveries", auth.RequireRole(model.RoleAdmin, model.RoleManager), h.GetDeliveryStatistics)
		statsGroup.GET("/revenue", auth.RequireRole(model.RoleAdmin, model.RoleManager), h.GetRevenueStatistics)
	}
}

// @Summary      Get Delivery Statistics
// @Description  Delivered quantity and value with the top products, bounded by date. Defaults to the current month.
// @Tags         Statistics
// @Produce      json
// @Param        from    query     string  false  "From date (YYYY-MM-DD)"
// @Param        to      query     string  false  "To date (YYYY-MM-DD)"
// @Param        areaId  query     string  false  "Limit to one area"
// @Success      200     {object}  response.Response{data=model.DeliveryStatistics}
// @Failure      400     {object}  response.Response "Invalid date format"
// @Failure      401     {object}  response.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /api/statistics/deliveries [get]
func (h *StatisticsHandler) GetDeliveryStatistics(c *gin.Context) {
	stats, err := h.statisticsService.GetDeliveryStatistics(c.Request.Context(), actorFrom(c), c.Query("from"), c.Query("to"), c.Query("areaId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// GetRevenueStatistics returns billed totals grouped by period
// @Summary      Get revenue statistics
// @Description  Invoice totals bucketed by the start of their billing period. Defaults to the current year by month.
// @Tags         Statistics
// @Security     BearerAuth
// @Produce      json
// @Param        groupBy  query     string  false  "Grouping: week, month, quarter, year (default month)"
// @Param        from     query     string  false  "From date (YYYY-MM-DD)"
// @Param        to       query     string  false  "To date (YYYY-MM-DD)"
// @Success      200      {object}  response.Response{data=[]service.RevenueDataPoint}
// @Failure      400      {object}  response.Response
// @Router       /api/statistics/revenue [get]
func (h *StatisticsHandler) GetRevenueStatistics(c *gin.Context) {
	filter := service.RevenueFilter{
		GroupBy: c.DefaultQuery("groupBy", "month"),
		From:    c.Query("from"),
		To:      c.Query("to"),
	}

	data, err := h.revenueService.GetRevenueStatistics(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, data))
}
