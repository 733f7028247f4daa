package http

import (
	"github.com/gin-gonic/gin"

	"github.com/flarexio/qarelay"
)

func AddRouters(r *gin.Engine, endpoints qarelay.EndpointSet) {
	// Inbound chat webhook
	r.POST("/webhook", AskHandler(endpoints.Ask))

	// Operator routes
	api := r.Group("/api")
	{
		api.POST("/qa/reload", ReloadHandler(endpoints.Reload))
		api.GET("/qa/count", CountHandler(endpoints.Count))
	}
}
