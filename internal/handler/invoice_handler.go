package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	authService    service.AuthService
}

func NewInvoiceHandler(invoiceService service.InvoiceService, authService service.AuthService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, authService: authService}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices", middleware.RequireAuth())
	{
		invoices.POST("", h.CreateInvoice)
		invoices.GET("", h.ListInvoices)
		invoices.POST("/:id/edit-request", h.RequestEdit)
		invoices.PUT("/:id/edit-request", h.ReviewEdit)
		invoices.PUT("/:id", h.ApplyEdit)
		invoices.GET("/:id/edit-records", h.ListEditRecords)
	}

	jobs := router.Group("/api/jobs", middleware.RequireAuth())
	{
		jobs.GET("/:id/invoice", h.GetInvoiceByJob)
	}
}

// CreateInvoice issues an invoice for a job, completing the job and
// setting its final cost in the same transaction
// @Summary      Create invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Invoice"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	actor, ok := currentActor(c, h.authService)
	if !ok {
		return
	}

	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices returns invoices, optionally filtered by edit request state
// @Summary      List invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        edit_request  query     string  false  "Filter by edit request state (none, requested, approved, rejected)"
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Items per page (default 20)"
// @Success      200           {object}  response.Response{data=object}
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	actor, ok := currentActor(c, h.authService)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), actor, c.Query("edit_request"), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// GetInvoiceByJob returns the invoice issued for a job, if any
// @Summary      Get invoice by job
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/jobs/{id}/invoice [get]
func (h *InvoiceHandler) GetInvoiceByJob(c *gin.Context) {
	actor, ok := currentActor(c, h.authService)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.GetInvoiceByJob(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// RequestEdit asks for permission to change an issued invoice
// @Summary      Request invoice edit
// @Description  Moves the invoice's edit request state to requested. Allowed only from none or rejected.
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/invoices/{id}/edit-request [post]
func (h *InvoiceHandler) RequestEdit(c *gin.Context) {
	actor, ok := currentActor(c, h.authService)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.RequestInvoiceEdit(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// ReviewEdit approves or rejects a pending edit request (admin only)
// @Summary      Review invoice edit request
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Invoice ID"
// @Param        payload  body      service.ReviewInvoiceEditRequest  true  "Decision (approved or rejected)"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      403      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoices/{id}/edit-request [put]
func (h *InvoiceHandler) ReviewEdit(c *gin.Context) {
	actor, ok := currentActor(c, h.authService)
	if !ok {
		return
	}

	var req service.ReviewInvoiceEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.ReviewInvoiceEdit(c.Request.Context(), actor, c.Param("id"), req.Decision)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// ApplyEdit writes the changed invoice, job, customer and vehicle fields.
// Admins edit unconditionally; employees need an approved edit request,
// which is consumed by the write.
// @Summary      Apply invoice edit
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Invoice ID"
// @Param        payload  body      service.ApplyInvoiceEditRequest  true  "Changed fields"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/invoices/{id} [put]
func (h *InvoiceHandler) ApplyEdit(c *gin.Context) {
	actor, ok := currentActor(c, h.authService)
	if !ok {
		return
	}

	var req service.ApplyInvoiceEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.ApplyInvoiceEdit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// ListEditRecords returns the audit history of an invoice's edit requests (admin only)
// @Summary      List invoice edit records
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=[]service.EditRecordResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/invoices/{id}/edit-records [get]
func (h *InvoiceHandler) ListEditRecords(c *gin.Context) {
	actor, ok := currentActor(c, h.authService)
	if !ok {
		return
	}

	records, err := h.invoiceService.ListEditRecords(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, records))
}
