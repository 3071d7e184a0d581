package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scolaris-app/biblio-api/internal/models"
	"github.com/scolaris-app/biblio-api/internal/service"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
	"github.com/scolaris-app/biblio-api/pkg/response"
)

// LoanHandler exposes loan lifecycle endpoints. Every mutation records the
// authenticated librarian as the processing actor.
type LoanHandler struct {
	loans   *service.LoanService
	metrics *service.MetricsService
}

// NewLoanHandler constructs LoanHandler.
func NewLoanHandler(loans *service.LoanService, metrics *service.MetricsService) *LoanHandler {
	return &LoanHandler{loans: loans, metrics: metrics}
}

// List godoc
// @Summary List loans
// @Tags Loans
// @Produce json
// @Param bookId query string false "Filter by book"
// @Param borrowerKind query string false "student or staff"
// @Param borrowerId query string false "Filter by borrower"
// @Param status query string false "active, returned or lost"
// @Param overdue query bool false "Only past-due active loans"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /loans [get]
func (h *LoanHandler) List(c *gin.Context) {
	var filter models.LoanFilter
	filter.BookID = c.Query("bookId")
	if kind := c.Query("borrowerKind"); kind != "" {
		k := models.BorrowerKind(kind)
		filter.BorrowerKind = &k
	}
	filter.BorrowerID = c.Query("borrowerId")
	if status := c.Query("status"); status != "" {
		s := models.LoanStatus(status)
		filter.Status = &s
	}
	filter.OverdueOnly = c.Query("overdue") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	loans, pagination, err := h.loans.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, pagination)
}

// Get godoc
// @Summary Get loan detail
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *gin.Context) {
	loan, err := h.loans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan, nil)
}

// Borrow godoc
// @Summary Lend a book to a borrower
// @Tags Loans
// @Accept json
// @Produce json
// @Param payload body service.BorrowRequest true "Borrow payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /loans [post]
func (h *LoanHandler) Borrow(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing credentials"))
		return
	}
	var req service.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Borrow(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordLoanEvent("borrow")
	response.Created(c, loan)
}

// Return godoc
// @Summary Return a borrowed book
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path string true "Loan ID"
// @Param payload body service.ReturnRequest true "Return payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /loans/{id}/return [post]
func (h *LoanHandler) Return(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing credentials"))
		return
	}
	var req service.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Return(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordLoanEvent("return")
	response.JSON(c, http.StatusOK, loan, nil)
}

// Extend godoc
// @Summary Move the due date of an active loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path string true "Loan ID"
// @Param payload body service.ExtendRequest true "Extend payload"
// @Success 200 {object} response.Envelope
// @Router /loans/{id}/extend [post]
func (h *LoanHandler) Extend(c *gin.Context) {
	var req service.ExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Extend(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordLoanEvent("extend")
	response.JSON(c, http.StatusOK, loan, nil)
}

// MarkLost godoc
// @Summary Flag an active loan as lost
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path string true "Loan ID"
// @Success 204
// @Router /loans/{id}/lost [post]
func (h *LoanHandler) MarkLost(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing credentials"))
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.loans.MarkLost(c.Request.Context(), c.Param("id"), claims.UserID, req.Notes); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordLoanEvent("lost")
	response.NoContent(c)
}
