package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentesla/mobile-backend/internal/middleware"
	"github.com/rentesla/mobile-backend/internal/services"
)

type NotificationHandler struct {
	feed services.NotificationFeed
}

func NewNotificationHandler(feed services.NotificationFeed) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

func (nh *NotificationHandler) List(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid limit"))
			return
		}
		limit = parsed
	}
	notifications, err := nh.feed.List(c.Request.Context(), userID, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"notifications": notifications})
}

func (nh *NotificationHandler) MarkRead(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid notification id"))
		return
	}
	if err := nh.feed.MarkRead(c.Request.Context(), notificationID, userID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"read": true})
}
