package handler

import (
	"net/http"

	"tillpos/internal/apierror"
	"tillpos/internal/dto"
	"tillpos/internal/middleware"
	"tillpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TicketHandler struct{ svc service.TicketService }

func NewTicketHandler(svc service.TicketService) *TicketHandler { return &TicketHandler{svc: svc} }

// Create godoc
// @Summary Open a new ticket on an open register
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateTicketRequest true "Ticket data"
// @Success 201 {object} dto.TicketResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/tickets [post]
func (h *TicketHandler) Create(c *gin.Context) {
	var req dto.CreateTicketRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	cashierID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Create(c.Request.Context(), cashierID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get godoc
// @Summary Fetch one ticket with its lines
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Success 200 {object} dto.TicketResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/tickets/{id} [get]
func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddLine godoc
// @Summary Add a sale line to a pending ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Param body body dto.LineRequest true "Line data"
// @Success 200 {object} dto.TicketResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/tickets/{id}/lines [post]
func (h *TicketHandler) AddLine(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.LineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddLine(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RemoveLine godoc
// @Summary Remove a sale line from a pending ticket
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Param lineId path string true "Line ID"
// @Success 200 {object} dto.TicketResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/tickets/{id}/lines/{lineId} [delete]
func (h *TicketHandler) RemoveLine(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid line ID"))
		return
	}
	resp, err := h.svc.RemoveLine(c.Request.Context(), id, lineID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateLineQuantity godoc
// @Summary Change the quantity of a sale line
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Param lineId path string true "Line ID"
// @Param body body dto.UpdateLineQuantityRequest true "New quantity"
// @Success 200 {object} dto.TicketResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/tickets/{id}/lines/{lineId} [put]
func (h *TicketHandler) UpdateLineQuantity(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid line ID"))
		return
	}
	var req dto.UpdateLineQuantityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateLineQuantity(c.Request.Context(), id, lineID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ApplyDiscount godoc
// @Summary Apply a percentage discount to a pending ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Param body body dto.DiscountRequest true "Discount percentage"
// @Success 200 {object} dto.TicketResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/tickets/{id}/discount [post]
func (h *TicketHandler) ApplyDiscount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.DiscountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ApplyDiscount(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Pay godoc
// @Summary Mark a ticket paid and record the sale on its register
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Success 200 {object} dto.TicketResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/tickets/{id}/pay [post]
func (h *TicketHandler) Pay(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.MarkPaid(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Fail marks a pending ticket's payment attempt as failed.
func (h *TicketHandler) Fail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.MarkFailed(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel voids a pending ticket.
func (h *TicketHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Cancel(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refund godoc
// @Summary Refund a paid ticket, reversing its drawer movement
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Success 200 {object} dto.TicketResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/tickets/{id}/refund [post]
func (h *TicketHandler) Refund(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Refund(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
