package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docqa/internal/bootstrap"
	"docqa/internal/logging"
	mysqlClient "docqa/internal/platform/mysql"
	rabbitmqClient "docqa/internal/platform/rabbitmq"
	redisClient "docqa/internal/platform/redis"
	"docqa/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(logging.GinMiddleware(app.Logger), gin.Recovery())
	// multipart parts beyond this spill to temp files
	router.MaxMultipartMemory = 8 << 20

	healthHandler := handler.NewHealthHandler(
		app.Config.App.Name,
		app.Config.App.Env,
		app.StartedAt,
		app.Engine.Index.Count,
		dependencyChecks(app)...,
	)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	fileHandler := handler.NewFileHandler(app.Files, app.Config.App.MaxUploadMB)
	ragHandler := handler.NewRAGHandler(app.Engine.RAG)
	chatHandler := handler.NewChatHandler(app.Engine.Chat)

	api := router.Group("/api")

	files := api.Group("/files")
	files.GET("", fileHandler.List)
	files.POST("/upload", fileHandler.Upload)
	files.GET("/:id/text", fileHandler.Text)
	files.DELETE("/:id", fileHandler.Delete)

	rag := api.Group("/rag")
	rag.POST("/ask", ragHandler.Ask)
	rag.GET("/chunks", ragHandler.Chunks)

	chat := api.Group("/chat")
	chat.POST("/messages", chatHandler.SendMessage)
	chat.POST("/messages/stream", chatHandler.StreamMessage)

	return router
}

func dependencyChecks(app *bootstrap.App) []handler.DependencyCheck {
	checks := []handler.DependencyCheck{{
		Name:  "mysql",
		Check: func(ctx context.Context) error { return mysqlClient.Ping(ctx, app.MySQL) },
	}}
	if app.Redis != nil {
		checks = append(checks, handler.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx, app.Redis) },
		})
	}
	if app.Config.Ingest.Async {
		checks = append(checks, handler.DependencyCheck{
			Name: "rabbitmq",
			Check: func(context.Context) error {
				if app.MQConn == nil {
					return errors.New("not connected")
				}
				return rabbitmqClient.Ping(app.MQConn)
			},
		})
	}
	return checks
}
