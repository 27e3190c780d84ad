package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentesla/mobile-backend/internal/middleware"
	"github.com/rentesla/mobile-backend/internal/sse"
	"github.com/rentesla/mobile-backend/internal/types"
)

type SSEHandler struct {
	hub *sse.SSEHub
}

func NewSSEHandler(hub *sse.SSEHub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

func (sh *SSEHandler) Stream(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	role, _ := c.Get(middleware.ContextRoleKey)
	admin := role == string(types.UserRoleAdmin)

	client := sh.hub.NewSSEClient(userID, admin)
	defer sh.hub.RemoveClient(client)
	sh.hub.ServeHTTP(c.Writer, c.Request, client)
}
