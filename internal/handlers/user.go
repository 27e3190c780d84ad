package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentesla/mobile-backend/internal/middleware"
	"github.com/rentesla/mobile-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (uh *UserHandler) GetMe(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	me, err := uh.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"me": me})
}

func (uh *UserHandler) UpdatePushToken(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	var body struct {
		PushToken string `json:"pushToken"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if err := uh.userService.UpdatePushToken(c.Request.Context(), userID, body.PushToken); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}
