package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/justyntemme/aladinkr/internal/auth"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// NewRouter wires the handlers into a gin engine. A nil issuer leaves the
// API unauthenticated.
func NewRouter(h *Handler, issuer *auth.Issuer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(h.logger))

	// Enable CORS for browser clients
	r.Use(corsMiddleware())

	r.GET("/health", h.HealthCheck)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("", h.APIInfo)
		if issuer != nil {
			apiGroup.POST("/auth/refresh", refreshToken(issuer))
		}

		protected := apiGroup.Group("")
		protected.Use(auth.Middleware(issuer))
		{
			protected.GET("/identify", h.Identify)
			protected.GET("/cover", h.Cover)
			protected.GET("/books/:id/url", h.BookURL)
		}
	}

	return r
}

// refreshToken exchanges a valid token for a new one with a fresh expiry
func refreshToken(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		token, err := issuer.RefreshToken(req.Token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
			"client", auth.GetClient(c),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
