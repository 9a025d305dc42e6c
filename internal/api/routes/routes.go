package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lingualab/oralis/internal/api/handlers"
	"github.com/lingualab/oralis/internal/api/middleware"
)

type Deps struct {
	Interview *handlers.InterviewHandler
	WS        *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/interview/start", d.Interview.Start)
	auth.GET("/interview/:session_id", d.Interview.Get)
	auth.POST("/interview/:session_id/end", d.Interview.End)
	auth.GET("/interview/:session_id/report", d.Interview.Report)
	auth.GET("/interview/:session_id/recording", d.Interview.Recording)

	// WebSocket
	auth.GET("/ws/interview/:session_id", d.WS.InterviewWS)
}
