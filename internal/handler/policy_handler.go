package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scolaris-app/biblio-api/internal/service"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
	"github.com/scolaris-app/biblio-api/pkg/response"
)

// PolicyHandler exposes the lending policy endpoints.
type PolicyHandler struct {
	policy *service.PolicyService
}

// NewPolicyHandler constructs PolicyHandler.
func NewPolicyHandler(policy *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policy: policy}
}

// Get godoc
// @Summary Current lending policy
// @Tags Policy
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /policy [get]
func (h *PolicyHandler) Get(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.policy.Current(c.Request.Context()), nil)
}

// Update godoc
// @Summary Update lending policy parameters
// @Tags Policy
// @Accept json
// @Produce json
// @Param payload body service.UpdatePolicyRequest true "Policy payload"
// @Success 200 {object} response.Envelope
// @Router /policy [put]
func (h *PolicyHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing credentials"))
		return
	}
	var req service.UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	policy, err := h.policy.Update(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}
