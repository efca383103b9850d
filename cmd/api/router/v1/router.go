package v1

import (
	"github.com/gin-gonic/gin"

	msghttp "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/presentation/http"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, d msghttp.Deps) {
	v1 := r.Group("/api/v1")
	// Pass the shared infrastructure down to the HTTP layer
	msghttp.RegisterRoutes(v1, d)
}
