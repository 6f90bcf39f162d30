package http

import "github.com/gin-gonic/gin"

func RegisterEventRoutes(r *gin.Engine, handler *EventHandler) {
	r.POST("/ingest/:service", handler.Ingest)
	r.GET("/events", handler.ListEvents)
}
