// Package router provides mhire service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/internal/mhire/handler"
)

// Register mounts the API under basePath and, for clients of the
// unversioned API, at the root. /healthz and /metrics are only mounted at the root.
func Register(engine *gin.Engine, basePath string, h *handler.Handler) {
	logger.Info("Registering mhire routes...")

	engine.GET("/healthz", h.Health)
	engine.GET("/metrics", h.Metrics)

	routes := func(g *gin.RouterGroup) {
		g.POST("/chat", h.Chat)
		g.POST("/chat/stream", h.ChatStream)
		g.POST("/resume", h.Resume)
		g.POST("/face-verification", h.FaceVerification)
		g.POST("/face-verification/reference", h.EnrollReference)
		g.POST("/face-verification/duplicate", h.DuplicateCheck)
		g.POST("/nid-verification", h.NIDVerification)
		g.GET("/verification/:user_id", h.VerificationHistory)
		g.GET("/stats", h.Stats)
	}

	routes(&engine.RouterGroup)
	if basePath != "" && basePath != "/" {
		routes(engine.Group(basePath))
	}

	logger.Infow("HTTP routes registered", "base_path", basePath)
}
