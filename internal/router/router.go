package router

import (
	"github.com/ashwinyue/qa-grader/internal/handler"
	"github.com/ashwinyue/qa-grader/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, jwtSecret string, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.CORSMiddleware())

	// 健康检查
	r.GET("/health", h.System.Health)

	if h.Artifact != nil && h.Artifact.Route() != "" {
		r.GET(h.Artifact.Route(), h.Artifact.Download)
	}

	v1 := r.Group("/v1")
	{
		v1.GET("/generate_question", h.Inference.GenerateQuestion)
		v1.POST("/classify_answer", h.Inference.ClassifyAnswer)

		v1.POST("/review_questions", middleware.RequireAuth(jwtSecret), h.Review.SubmitReviews)
		v1.GET("/review_questions", h.Review.ListReviews)

		v1.GET("/checkpoints/latest", h.Checkpoint.Latest)
	}

	return r
}
