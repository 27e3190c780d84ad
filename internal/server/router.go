package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rentesla/mobile-backend/internal/handlers"
	"github.com/rentesla/mobile-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler         *handlers.AuthHandler
	AuthMiddleware      *middleware.AuthMiddleware
	UserHandler         *handlers.UserHandler
	DocumentHandler     *handlers.DocumentHandler
	ConsentHandler      *handlers.ConsentHandler
	NotificationHandler *handlers.NotificationHandler
	SSEHandler          *handlers.SSEHandler
	AllowOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:8081"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/auth/signup", cfg.AuthHandler.Signup)
		api.POST("/auth/login", cfg.AuthHandler.Login)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// User
	protected.GET("/users/me", cfg.UserHandler.GetMe)
	protected.PUT("/users/me/push-token", cfg.UserHandler.UpdatePushToken)
	// Documents
	protected.POST("/documents/upload", cfg.DocumentHandler.Upload)
	protected.POST("/documents/upload-base64", cfg.DocumentHandler.UploadBase64)
	protected.GET("/documents", cfg.DocumentHandler.List)
	protected.GET("/documents/verification-status", cfg.DocumentHandler.VerificationStatus)
	protected.GET("/documents/:id", cfg.DocumentHandler.Get)
	protected.DELETE("/documents/:id", cfg.DocumentHandler.Delete)
	// Consents
	protected.POST("/consents/submit", cfg.ConsentHandler.Submit)
	protected.GET("/consents", cfg.ConsentHandler.List)
	protected.GET("/consents/active", cfg.ConsentHandler.ListActive)
	protected.GET("/consents/status", cfg.ConsentHandler.Status)
	protected.POST("/consents/revoke", cfg.ConsentHandler.Revoke)
	// Notifications
	protected.GET("/notifications", cfg.NotificationHandler.List)
	protected.PUT("/notifications/:id/read", cfg.NotificationHandler.MarkRead)
	// SSE
	protected.GET("/sse/stream", cfg.SSEHandler.Stream)

	// ===============
	// || Admin     ||
	// ===============
	admin := protected.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireAdmin())
	admin.GET("/documents/pending-review", cfg.DocumentHandler.PendingReview)
	admin.GET("/documents/low-confidence", cfg.DocumentHandler.LowConfidence)
	admin.GET("/documents/statistics", cfg.DocumentHandler.Statistics)
	admin.GET("/documents/:id/verification-details", cfg.DocumentHandler.VerificationDetails)
	admin.POST("/documents/:id/review", cfg.DocumentHandler.Review)
	admin.POST("/documents/bulk-review", cfg.DocumentHandler.BulkReview)
	admin.GET("/users/:id/documents", cfg.DocumentHandler.UserDocuments)
	admin.GET("/users/:id/verification-status", cfg.DocumentHandler.UserVerificationStatus)
	admin.GET("/consents/statistics", cfg.ConsentHandler.Statistics)

	return router
}
