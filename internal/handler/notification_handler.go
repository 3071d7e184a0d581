package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scolaris-app/biblio-api/internal/service"
	"github.com/scolaris-app/biblio-api/pkg/response"
)

// NotificationHandler exposes the SMS outbox and manual reminder triggers.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// Outbox godoc
// @Summary Recent SMS outbox entries
// @Tags Notifications
// @Produce json
// @Param limit query int false "Max entries, defaults to 50"
// @Success 200 {object} response.Envelope
// @Router /notifications/outbox [get]
func (h *NotificationHandler) Outbox(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	messages, err := h.notifications.Outbox(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil, map[string]interface{}{
		"dispatch_backlog": h.notifications.QueueDepth(),
	})
}

// SendOverdueReminders godoc
// @Summary Queue overdue reminders immediately
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/overdue-reminders [post]
func (h *NotificationHandler) SendOverdueReminders(c *gin.Context) {
	queued, err := h.notifications.QueueOverdueReminders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"queued": queued}, nil)
}
