package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentesla/mobile-backend/internal/middleware"
	"github.com/rentesla/mobile-backend/internal/services"
	"github.com/rentesla/mobile-backend/internal/types"
)

type ConsentHandler struct {
	consents services.ConsentService
}

func NewConsentHandler(consents services.ConsentService) *ConsentHandler {
	return &ConsentHandler{consents: consents}
}

type consentItemRequest struct {
	Type  string `json:"type"`
	Given bool   `json:"given"`
	Text  string `json:"text,omitempty"`
}

type submitConsentsRequest struct {
	Consents []consentItemRequest `json:"consents"`
}

func (ch *ConsentHandler) Submit(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	var req submitConsentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid request body"))
		return
	}
	inputs := make([]services.ConsentInput, 0, len(req.Consents))
	for _, item := range req.Consents {
		inputs = append(inputs, services.ConsentInput{
			Type:  types.ConsentType(item.Type),
			Given: item.Given,
			Text:  item.Text,
		})
	}
	err := ch.consents.Submit(c.Request.Context(), userID, inputs, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "Consents submitted successfully"})
}

func (ch *ConsentHandler) List(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	consents, err := ch.consents.List(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"consents": consents})
}

func (ch *ConsentHandler) ListActive(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	consents, err := ch.consents.ListActive(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"consents": consents})
}

func (ch *ConsentHandler) Status(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	status, err := ch.consents.Status(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, status)
}

type revokeConsentRequest struct {
	Type string `json:"type"`
}

func (ch *ConsentHandler) Revoke(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	var req revokeConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid request body"))
		return
	}
	if err := ch.consents.Revoke(c.Request.Context(), userID, types.ConsentType(req.Type)); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "Consent revoked successfully"})
}

func (ch *ConsentHandler) Statistics(c *gin.Context) {
	stats, err := ch.consents.Statistics(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, stats)
}
