package router

import (
	"github.com/gin-gonic/gin"

	"minicrm.app/pipeline/internal/http/handler"
)

func CampaignRouter(router *gin.RouterGroup, handler *handler.CampaignHandler) {
	router.POST("/dispatch", handler.Dispatch)
	router.GET("/:id", handler.Get)
}
