package handler

import (
	"net/http"

	"milkrun/internal/middleware"
	"milkrun/internal/model"
	"milkrun/internal/service"
	"milkrun/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	billing := router.Group("/api/billing")
	billing.Use(auth.RequireRole(model.RoleAdmin, model.RoleManager))
	{
		billing.POST("/generate-invoice", h.GenerateInvoice)
		billing.POST("/regenerate-invoice/:invoiceId", h.RegenerateInvoice)
		billing.DELETE("/invoice/:invoiceId", h.DeleteInvoice)
		billing.GET("/invoice/:invoiceId", h.GetInvoice)
		billing.GET("/customer/:customerId/invoices", h.ListCustomerInvoices)
	}
}

// GenerateInvoice builds, renders and stores the invoice of one customer for one period
// @Summary      Generate invoice
// @Description  Aggregates attendance for a month ("October 2025") or a from/to range and stores the PDF. Overlapping periods are rejected with the existing invoice in details.
// @Tags         billing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.GenerateInvoiceRequest  true  "Generate Invoice Payload"
// @Success      201      {object}  response.Response{data=service.InvoiceSummary}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/billing/generate-invoice [post]
func (h *InvoiceHandler) GenerateInvoice(c *gin.Context) {
	var req service.GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	invoice, err := h.invoiceService.Generate(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// RegenerateInvoice deletes an invoice and generates it again for the same period
// @Summary      Regenerate invoice
// @Tags         billing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        invoiceId  path      string                            true   "Invoice ID"
// @Param        payload    body      service.RegenerateInvoiceRequest  false  "Regenerate Invoice Payload"
// @Success      201        {object}  response.Response{data=service.InvoiceSummary}
// @Failure      404        {object}  response.Response
// @Router       /api/billing/regenerate-invoice/{invoiceId} [post]
func (h *InvoiceHandler) RegenerateInvoice(c *gin.Context) {
	var req service.RegenerateInvoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	invoice, err := h.invoiceService.Regenerate(c.Request.Context(), actorFrom(c), c.Param("invoiceId"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// DeleteInvoice removes an invoice and its stored PDF
// @Summary      Delete invoice
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        invoiceId  path      string  true  "Invoice ID"
// @Success      200        {object}  response.Response{data=service.DeleteInvoiceResponse}
// @Failure      404        {object}  response.Response
// @Router       /api/billing/invoice/{invoiceId} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	res, err := h.invoiceService.Delete(c.Request.Context(), actorFrom(c), c.Param("invoiceId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// GetInvoice returns the stored invoice with its lines
// @Summary      Get invoice
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        invoiceId  path      string  true  "Invoice ID"
// @Success      200        {object}  response.Response{data=model.Invoice}
// @Failure      404        {object}  response.Response
// @Router       /api/billing/invoice/{invoiceId} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.Get(c.Request.Context(), actorFrom(c), c.Param("invoiceId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// ListCustomerInvoices lists the invoices of a customer, newest first
// @Summary      List customer invoices
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        customerId  path      string  true  "Customer ID"
// @Success      200         {object}  response.Response{data=[]service.InvoiceSummary}
// @Failure      404         {object}  response.Response
// @Router       /api/billing/customer/{customerId}/invoices [get]
func (h *InvoiceHandler) ListCustomerInvoices(c *gin.Context) {
	invoices, err := h.invoiceService.ListByCustomer(c.Request.Context(), actorFrom(c), c.Param("customerId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}
