package app

import (
	"school_quiz_backend/docs"
	"school_quiz_backend/internal/config"
	"school_quiz_backend/internal/middleware"
	"school_quiz_backend/internal/model"
	"school_quiz_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	// 测验浏览（学生视角自动剥掉答案）
	rg.GET("/quizzes/:quizId", c.quiz.GetQuiz)
	rg.GET("/classes/:classId/quizzes", c.quiz.ListClassQuizzes)

	// 答题会话
	rg.POST("/quizzes/:quizId/attempts", c.attempt.StartAttempt)
	rg.GET("/quizzes/:quizId/resume", c.attempt.ResumeAttempt)
	rg.GET("/quizzes/:quizId/completion", c.attempt.CheckCompletion)
	rg.GET("/quizzes/:quizId/in-progress", c.attempt.CheckInProgress)
	rg.PUT("/attempts/:sessionId/progress", c.attempt.SaveProgress)
	rg.POST("/attempts/:sessionId/submit", c.attempt.SubmitAttempt)

	// 成绩
	rg.GET("/results", c.result.ListMyResults)
	rg.GET("/results/:id", c.result.GetResult)

	// 通知
	rg.GET("/notifications", c.notification.ListNotifications)
	rg.POST("/notifications/:id/read", c.notification.MarkRead)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/quizzes", c.quiz.CreateQuiz)
		teacher.GET("/quizzes", c.quiz.ListSchoolQuizzes)
		teacher.PUT("/quizzes/:quizId", c.quiz.UpdateQuiz)
		teacher.DELETE("/quizzes/:quizId", c.quiz.DeleteQuiz)
		teacher.POST("/quizzes/:quizId/publish", c.quiz.PublishQuiz)
		teacher.POST("/quizzes/:quizId/assets", c.asset.UploadAsset)

		teacher.GET("/quizzes/:quizId/results", c.result.ListQuizResults)
		teacher.POST("/results/:id/grade", c.result.GradeQuestion)

		teacher.POST("/quizzes/:quizId/students/:studentId/reset", c.attempt.ResetAttempt)
	}
}
