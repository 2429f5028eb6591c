package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/lumenhq/dam/docs"
	"github.com/lumenhq/dam/internal/config"
	"github.com/lumenhq/dam/internal/middleware"
	"github.com/lumenhq/dam/internal/modules/handler"
	"github.com/lumenhq/dam/internal/modules/serializer"
	"github.com/lumenhq/dam/internal/telemetry"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	Config       *config.Config
	Log          *zap.Logger
	Users        middleware.ActorLookup
	AssetHandler *handler.AssetHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	serializer.SetLogger(d.Log)

	r := gin.New()
	r.Use(middleware.Recovery(d.Log))

	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(telemetry.GinMiddleware(d.Config.App.Name))
		r.Use(telemetry.TraceIDMiddleware())
	}

	r.Use(middleware.ZapLogger(d.Log, "/health"))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	// swagger
	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		v1.Use(middleware.ActorAuth(d.Config, d.Users))

		v1.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "pong"}) })

		assets := v1.Group("/assets")
		{
			assets.POST("", middleware.BodyLimit(d.Config.MaxUploadBytes(), 1<<20), d.AssetHandler.UploadAsset)
			assets.GET("/:asset_id", d.AssetHandler.GetAsset)
			assets.GET("/:asset_id/view", d.AssetHandler.ViewAsset)
			assets.GET("/:asset_id/download", d.AssetHandler.DownloadAsset)
		}
	}
	return r
}
