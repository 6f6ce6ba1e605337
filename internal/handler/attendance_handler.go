package handler

import (
	"fmt"
	"net/http"

	"milkrun/internal/middleware"
	"milkrun/internal/model"
	"milkrun/internal/report"
	"milkrun/internal/service"
	"milkrun/pkg/pagination"
	"milkrun/pkg/response"

	"github.com/gin-gonic/gin"
)

type AttendanceHandler struct {
	attendanceService service.AttendanceService
	invoiceService    service.InvoiceService
}

func NewAttendanceHandler(attendanceService service.AttendanceService, invoiceService service.InvoiceService) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService: attendanceService,
		invoiceService:    invoiceService,
	}
}

// SessionRequest names the attendance sheet to reopen.
type SessionRequest struct {
	Date   string `json:"date" binding:"required"`
	AreaID string `json:"areaId" binding:"required"`
}

func (h *AttendanceHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	attendance := router.Group("/api/attendance")
	attendance.Use(auth.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleStaff))
	{
		attendance.POST("", h.SubmitAttendance)
		attendance.GET("", h.GetAttendance)
		attendance.GET("/history", h.ListHistory)
		attendance.POST("/reconcile", h.Reconcile)
		attendance.GET("/session", h.GetSession)
		attendance.POST("/session/edit", h.BeginEdit)
		attendance.GET("/export", h.Export)
		attendance.GET("/customer/:customerId/rollup", h.CustomerRollup)
	}

	areas := router.Group("/api/areas")
	{
		areas.DELETE("/:areaId/attendance", auth.RequireRole(model.RoleAdmin), h.CleanupArea)
	}
}

// SubmitAttendance records the attendance of one area for one day
// @Summary      Submit attendance
// @Description  Saves the day's deliveries once dispatched = returned + delivered. A second submission for the same date and area is rejected unless isEditing is set.
// @Tags         attendance
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SubmitAttendanceRequest  true  "Attendance Payload"
// @Success      201      {object}  response.Response{data=service.SubmitAttendanceResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/attendance [post]
func (h *AttendanceHandler) SubmitAttendance(c *gin.Context) {
	var req service.SubmitAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.attendanceService.Submit(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// GetAttendance returns the submitted log of an area for a date
// @Summary      Get attendance
// @Tags         attendance
// @Security     BearerAuth
// @Produce      json
// @Param        date    query     string  true  "Business date (YYYY-MM-DD)"
// @Param        areaId  query     string  true  "Area ID"
// @Success      200     {object}  response.Response{data=model.AttendanceLog}
// @Failure      404     {object}  response.Response
// @Router       /api/attendance [get]
func (h *AttendanceHandler) GetAttendance(c *gin.Context) {
	log, err := h.attendanceService.Get(c.Request.Context(), actorFrom(c), c.Query("date"), c.Query("areaId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, log))
}

// ListHistory pages through the submitted logs of an area, newest first
// @Summary      Attendance history
// @Tags         attendance
// @Security     BearerAuth
// @Produce      json
// @Param        areaId  query     string  true   "Area ID"
// @Param        from    query     string  false  "From date (YYYY-MM-DD), default 30 days ago"
// @Param        to      query     string  false  "To date (YYYY-MM-DD), default today"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/attendance/history [get]
func (h *AttendanceHandler) ListHistory(c *gin.Context) {
	params := pagination.Parse(c)

	logs, total, err := h.attendanceService.History(c.Request.Context(), actorFrom(c), service.AttendanceHistoryFilter{
		AreaID: c.Query("areaId"),
		From:   c.Query("from"),
		To:     c.Query("to"),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.Wrap(logs, total)))
}

// Reconcile evaluates a sheet without saving it
// @Summary      Reconciliation preview
// @Tags         attendance
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ReconcileRequest  true  "Reconcile Payload"
// @Success      200      {object}  response.Response{data=service.ReconcileResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/attendance/reconcile [post]
func (h *AttendanceHandler) Reconcile(c *gin.Context) {
	var req service.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.attendanceService.Reconcile(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// GetSession resolves the sheet a client should show for an area and date
// @Summary      Attendance session
// @Description  Returns NO_DATA, DRAFT or SUBMITTED together with the roster and the sheet to display.
// @Tags         attendance
// @Security     BearerAuth
// @Produce      json
// @Param        date    query     string  true  "Business date (YYYY-MM-DD)"
// @Param        areaId  query     string  true  "Area ID"
// @Success      200     {object}  response.Response{data=draft.Session}
// @Router       /api/attendance/session [get]
func (h *AttendanceHandler) GetSession(c *gin.Context) {
	session, err := h.attendanceService.Session(c.Request.Context(), actorFrom(c), c.Query("date"), c.Query("areaId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, session))
}

// BeginEdit reopens a submitted sheet for editing
// @Summary      Edit submitted attendance
// @Tags         attendance
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      SessionRequest  true  "Session Key"
// @Success      200      {object}  response.Response{data=draft.Session}
// @Failure      409      {object}  response.Response
// @Router       /api/attendance/session/edit [post]
func (h *AttendanceHandler) BeginEdit(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.attendanceService.BeginEdit(c.Request.Context(), actorFrom(c), req.Date, req.AreaID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, session))
}

// Export downloads the attendance of an area as a spreadsheet
// @Summary      Export attendance
// @Tags         attendance
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        areaId  query     string  true   "Area ID"
// @Param        from    query     string  false  "From date (YYYY-MM-DD)"
// @Param        to      query     string  false  "To date (YYYY-MM-DD)"
// @Success      200     {file}    file
// @Router       /api/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	areaID := c.Query("areaId")
	data, err := h.attendanceService.Export(c.Request.Context(), actorFrom(c), areaID, c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance-%s.xlsx"`, areaID))
	c.Data(http.StatusOK, report.ContentType, data)
}

// CustomerRollup prices a customer's deliveries over a range without issuing an invoice
// @Summary      Invoice preview
// @Tags         attendance
// @Security     BearerAuth
// @Produce      json
// @Param        customerId  path      string  true  "Customer ID"
// @Param        from        query     string  true  "From date (YYYY-MM-DD)"
// @Param        to          query     string  true  "To date (YYYY-MM-DD)"
// @Success      200         {object}  response.Response{data=service.InvoicePreview}
// @Failure      404         {object}  response.Response
// @Router       /api/attendance/customer/{customerId}/rollup [get]
func (h *AttendanceHandler) CustomerRollup(c *gin.Context) {
	preview, err := h.invoiceService.Preview(c.Request.Context(), actorFrom(c), c.Param("customerId"), c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, preview))
}

// CleanupArea deletes every attendance log of an area
// @Summary      Delete area attendance
// @Tags         attendance
// @Security     BearerAuth
// @Produce      json
// @Param        areaId  path      string  true  "Area ID"
// @Success      200     {object}  response.Response{data=object}
// @Failure      404     {object}  response.Response
// @Router       /api/areas/{areaId}/attendance [delete]
func (h *AttendanceHandler) CleanupArea(c *gin.Context) {
	deleted, err := h.attendanceService.CleanupArea(c.Request.Context(), actorFrom(c), c.Param("areaId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"areaId":  c.Param("areaId"),
		"deleted": deleted,
	}))
}
