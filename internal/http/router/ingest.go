package router

import (
	"github.com/gin-gonic/gin"

	"minicrm.app/pipeline/internal/http/handler"
)

func IngestRouter(router *gin.RouterGroup, handler *handler.IngestHandler) {
	router.POST("/customers/ingest", handler.Customers)
	router.POST("/orders/ingest", handler.Orders)
}
