package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentesla/mobile-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Signup(c *gin.Context) {
	var input services.SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	user, token, err := ah.authService.Signup(c.Request.Context(), input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	user, token, err := ah.authService.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", err)
		return
	}
	RespondOK(c, gin.H{"user": user, "token": token})
}
