package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"school_quiz_backend/internal/config"
	"school_quiz_backend/internal/controller"
	"school_quiz_backend/internal/repository"
	"school_quiz_backend/internal/service"
	"school_quiz_backend/pkg/database"
	"school_quiz_backend/pkg/logger"
	"school_quiz_backend/pkg/monitoring"
	"school_quiz_backend/pkg/security"
	"school_quiz_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	configCallbacks []func(*config.Config)
}

type repositories struct {
	quiz         repository.QuizRepository
	attempt      repository.AttemptRepository
	result       repository.ResultRepository
	notification repository.NotificationRepository
}

type services struct {
	cache    service.Cache
	notifier service.Notifier
	storage  service.StorageProvider
	quiz     *service.QuizService
	attempt  *service.AttemptService
	grading  *service.GradingService
}

type controllers struct {
	quiz         *controller.QuizController
	attempt      *controller.AttemptController
	result       *controller.ResultController
	asset        *controller.AssetController
	notification *controller.NotificationController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新入口，由 configwatcher 触发
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config = cfg
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
	logger.Log.Info("Configuration reloaded")
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		quiz:         repository.NewQuizRepository(db),
		attempt:      repository.NewAttemptRepository(db),
		result:       repository.NewResultRepository(db),
		notification: repository.NewNotificationRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	s.cache = service.NewRedisCache(rdb)
	s.notifier = service.NewNotifierService(repos.notification)

	storage, err := service.NewStorageProvider(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	ttls := service.TTLsFromConfig(&cfg.Cache)
	s.quiz = service.NewQuizService(repos.quiz, s.cache, s.notifier, ttls)
	s.attempt = service.NewAttemptService(repos.quiz, repos.attempt, repos.result, s.cache, s.notifier, logger.Log, cfg.Attempt.Grace())
	s.grading = service.NewGradingService(repos.result, repos.quiz, s.cache, s.notifier, ttls)

	return s, nil
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		quiz:         controller.NewQuizController(s.quiz),
		attempt:      controller.NewAttemptController(s.attempt),
		result:       controller.NewResultController(s.grading),
		asset:        controller.NewAssetController(s.storage),
		notification: controller.NewNotificationController(repos.notification),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	controllers := app.initControllers(services, repos, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("school-quiz-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
