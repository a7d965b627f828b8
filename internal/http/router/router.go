package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"minicrm.app/pipeline/internal/http/handler"
	"minicrm.app/pipeline/internal/http/middleware"
	"minicrm.app/pipeline/internal/service"
)

type RouterConfig struct {
	// MetricsHandler serves /metrics. Nil leaves the route out.
	MetricsHandler http.Handler
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	v1 := router.Group("/api/v1")
	{
		ingestHandler := handler.NewIngestHandler(services.Ingest())
		IngestRouter(v1.Group("", middleware.RequireOwner()), ingestHandler)

		campaignHandler := handler.NewCampaignHandler(services.Campaigns())
		CampaignRouter(v1.Group("/campaigns", middleware.RequireOwner()), campaignHandler)

		receiptHandler := handler.NewReceiptHandler(services.Receipts())
		VendorRouter(v1.Group("/vendor"), receiptHandler)
	}
}
