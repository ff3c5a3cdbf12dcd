package app

import (
	"codepath_backend/internal/config"
	"codepath_backend/internal/controller"
	"codepath_backend/internal/repository"
	"codepath_backend/internal/service"
	"codepath_backend/internal/worker"
	"codepath_backend/pkg/configwatcher"
	"codepath_backend/pkg/database"
	"codepath_backend/pkg/logger"
	"codepath_backend/pkg/monitoring"
	"codepath_backend/pkg/queue"
	"codepath_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
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
	Queue           *queue.Queue
	services        *services
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	lesson     *repository.LessonRepository
	submission *repository.SubmissionRepository
	profile    *repository.ProfileRepository
	action     *repository.ActionRepository
	content    *repository.ContentRepository
}

type services struct {
	auth       *service.AuthService
	lesson     *service.LessonService
	submission *service.SubmissionService
	executor   *service.ExecutorService
	generation *service.GenerationService
	policy     *service.DecisionPolicy
	analysis   *service.AnalysisService
	action     *service.ActionService
}

type controllers struct {
	auth   *controller.AuthController
	lesson *controller.LessonController
	action *controller.ActionController
	health *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		lesson:     repository.NewLessonRepository(db),
		submission: repository.NewSubmissionRepository(db),
		profile:    repository.NewProfileRepository(db),
		action:     repository.NewActionRepository(db),
		content:    repository.NewContentRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, q *queue.Queue) *services {
	executor := service.NewExecutorService(cfg.Executor)
	generation := service.NewGenerationService(cfg.AI, repos.content)
	policy := service.NewDecisionPolicy(generation, repos.action)

	return &services{
		auth:       service.NewAuthService(repos.user, cfg),
		lesson:     service.NewLessonService(repos.lesson),
		submission: service.NewSubmissionService(repos.lesson, repos.submission, executor, q),
		executor:   executor,
		generation: generation,
		policy:     policy,
		analysis:   service.NewAnalysisService(repos.lesson, repos.submission, repos.profile, policy),
		action:     service.NewActionService(repos.action, repos.content, executor),
	}
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:   controller.NewAuthController(s.auth),
		lesson: controller.NewLessonController(s.lesson, s.submission),
		action: controller.NewActionController(s.action),
		health: controller.NewHealthController(a.DB, a.Redis),
	}
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	// release 模式默认跳过迁移，-migrate / -migrate-only 强制执行
	migrate := cfg.Server.Mode != "release" || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, migrate)
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
		Queue:  queue.New(rdb, cfg.Queue.Name),
	}

	repos := app.initRepositories(db)
	svcs := app.initServices(repos, cfg, app.Queue)
	app.services = svcs

	monitoring.Init()

	if cfg.Tracing.Enabled {
		serviceName := "codepath-backend"
		if cfg.WorkerMode {
			serviceName = "codepath-worker"
		}
		if _, err := tracing.InitTracer(serviceName, cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	if !cfg.WorkerMode {
		ctrls := app.initControllers(svcs)

		if cfg.Server.Mode == "release" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.Default()
		app.Router = router

		app.setupMiddlewares(router, cfg)
		app.registerRoutes(router, ctrls, cfg)
	}

	return app
}

// Run 启动 HTTP 服务并优雅退出
func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 配置热更新
	go configwatcher.WatchConfig("configs/config.yaml", a.Config, func(newCfg interface{}) {
		cfg, ok := newCfg.(*config.Config)
		if !ok {
			return
		}
		logger.Log.Info("Configuration reloaded")
		a.Config = cfg
		for _, callback := range a.configCallbacks {
			callback(cfg)
		}
	})

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

// RunWorker 以队列消费者模式运行，收到终止信号后停止拉取并退出
func (a *App) RunWorker() {
	w := worker.New(a.Queue, &a.Config.Queue, a.services.analysis)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		logger.Log.Fatal("Worker exited with error", zap.Error(err))
	}

	log.Println("Worker exiting")
}
