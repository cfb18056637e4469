package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kurspanel/kurspanel-server/internal/auth"
	"github.com/kurspanel/kurspanel-server/internal/config"
	"github.com/kurspanel/kurspanel-server/internal/core"
)

// NewServer builds the HTTP server: REST API plus websocket push channels.
func NewServer(store core.RecordStore, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	handlers := NewHandlers(store, authService, logger)
	ws := NewWSHandler(store, authService, logger)

	router.GET("/health", healthHandler)

	api := router.Group("/api")
	{
		api.POST("/login", handlers.Login)
		api.GET("/schools", handlers.ListSchools)

		protected := api.Group("")
		protected.Use(AuthMiddleware(authService, logger))
		{
			protected.PUT("/schools/:id/candidates", handlers.WriteCandidates)
			protected.POST("/messages", handlers.AppendMessage)
		}
	}

	router.GET("/ws/schools", ws.Schools)
	router.GET("/ws/messages", ws.Messages)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
