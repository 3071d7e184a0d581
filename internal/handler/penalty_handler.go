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

// PenaltyHandler exposes penalty endpoints.
type PenaltyHandler struct {
	penalties *service.PenaltyService
}

// NewPenaltyHandler constructs PenaltyHandler.
func NewPenaltyHandler(penalties *service.PenaltyService) *PenaltyHandler {
	return &PenaltyHandler{penalties: penalties}
}

// List godoc
// @Summary List penalties
// @Tags Penalties
// @Produce json
// @Param loanId query string false "Filter by loan"
// @Param borrowerKind query string false "student or staff"
// @Param borrowerId query string false "Filter by borrower"
// @Param status query string false "unpaid or paid"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /penalties [get]
func (h *PenaltyHandler) List(c *gin.Context) {
	var filter models.PenaltyFilter
	filter.LoanID = c.Query("loanId")
	if kind := c.Query("borrowerKind"); kind != "" {
		k := models.BorrowerKind(kind)
		filter.BorrowerKind = &k
	}
	filter.BorrowerID = c.Query("borrowerId")
	if status := c.Query("status"); status != "" {
		s := models.PenaltyStatus(status)
		filter.Status = &s
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	penalties, pagination, err := h.penalties.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, penalties, pagination)
}

// Get godoc
// @Summary Get penalty detail
// @Tags Penalties
// @Produce json
// @Param id path string true "Penalty ID"
// @Success 200 {object} response.Envelope
// @Router /penalties/{id} [get]
func (h *PenaltyHandler) Get(c *gin.Context) {
	penalty, err := h.penalties.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, penalty, nil)
}

// MarkPaid godoc
// @Summary Settle an unpaid penalty
// @Tags Penalties
// @Produce json
// @Param id path string true "Penalty ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /penalties/{id}/pay [post]
func (h *PenaltyHandler) MarkPaid(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing credentials"))
		return
	}
	penalty, err := h.penalties.MarkPaid(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, penalty, nil)
}

// Outstanding godoc
// @Summary Outstanding penalty total for a borrower
// @Tags Penalties
// @Produce json
// @Param kind path string true "student or staff"
// @Param id path string true "Borrower ID"
// @Success 200 {object} response.Envelope
// @Router /penalties/outstanding/{kind}/{id} [get]
func (h *PenaltyHandler) Outstanding(c *gin.Context) {
	borrower := models.Borrower{Kind: models.BorrowerKind(c.Param("kind")), ID: c.Param("id")}
	if !borrower.Kind.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown borrower kind"))
		return
	}
	total, err := h.penalties.Outstanding(c.Request.Context(), borrower)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"borrower": borrower.String(), "outstanding": total}, nil)
}
