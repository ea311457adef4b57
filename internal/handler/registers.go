package handler

import (
	"net/http"
	"strconv"

	"tillpos/internal/apierror"
	"tillpos/internal/dto"
	"tillpos/internal/middleware"
	"tillpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RegisterHandler struct {
	svc     service.RegisterService
	tickets service.TicketService
}

func NewRegisterHandler(svc service.RegisterService, tickets service.TicketService) *RegisterHandler {
	return &RegisterHandler{svc: svc, tickets: tickets}
}

// Create godoc
// @Summary Create a cash register
// @Tags registers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateRegisterRequest true "Register data"
// @Success 201 {object} dto.RegisterResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/registers [post]
func (h *RegisterHandler) Create(c *gin.Context) {
	var req dto.CreateRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary List all registers
// @Tags registers
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.RegisterResponse
// @Router /v1/registers [get]
func (h *RegisterHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete godoc
// @Summary Delete a closed register
// @Tags registers
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 204
// @Failure 409 {object} apierror.APIError
// @Router /v1/registers/{id} [delete]
func (h *RegisterHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Open godoc
// @Summary Open a register with an opening float
// @Tags registers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param body body dto.OpenRegisterRequest true "Opening data"
// @Success 200 {object} dto.RegisterResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/registers/{id}/open [post]
func (h *RegisterHandler) Open(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.OpenRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Open(c.Request.Context(), id, userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close godoc
// @Summary Close a register and reconcile its session
// @Tags registers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param body body dto.CloseRegisterRequest true "Closing notes"
// @Success 200 {object} dto.CloseReportResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/registers/{id}/close [post]
func (h *RegisterHandler) Close(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.CloseRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Close(c.Request.Context(), id, userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Suspend godoc
// @Summary Suspend an open register
// @Tags registers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.RegisterResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/registers/{id}/suspend [post]
func (h *RegisterHandler) Suspend(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Suspend(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Resume godoc
// @Summary Resume a suspended register
// @Tags registers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.RegisterResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/registers/{id}/resume [post]
func (h *RegisterHandler) Resume(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Resume(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Withdraw godoc
// @Summary Record a cash withdrawal from the drawer
// @Tags registers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Param body body dto.WithdrawalRequest true "Withdrawal data"
// @Success 200 {object} dto.RegisterResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/registers/{id}/withdrawals [post]
func (h *RegisterHandler) Withdraw(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.WithdrawalRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RecordWithdrawal(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report godoc
// @Summary Reconciliation report of the register's current or last session
// @Tags registers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.CloseReportResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/registers/{id}/report [get]
func (h *RegisterHandler) Report(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Tickets godoc
// @Summary Paginated tickets of one register
// @Tags registers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.TicketListResponse
// @Router /v1/registers/{id}/tickets [get]
func (h *RegisterHandler) Tickets(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	page, limit := pagination(c)
	resp, err := h.tickets.ListByRegister(c.Request.Context(), id, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// OpenByBranch returns the registers currently open or suspended in a branch.
func (h *RegisterHandler) OpenByBranch(c *gin.Context) {
	branchID, err := uuid.Parse(c.Query("branch_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid branch_id"))
		return
	}
	resp, err := h.svc.OpenByBranch(c.Request.Context(), branchID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Sessions returns a paginated list of archived (closed) sessions.
func (h *RegisterHandler) Sessions(c *gin.Context) {
	page, limit := pagination(c)
	items, total, err := h.svc.Sessions(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "total": total, "page": page, "limit": limit})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid ID"))
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
