package router

import (
	"github.com/gin-gonic/gin"

	"minicrm.app/pipeline/internal/http/handler"
)

func VendorRouter(router *gin.RouterGroup, handler *handler.ReceiptHandler) {
	router.POST("/receipt", handler.Receive)
}
