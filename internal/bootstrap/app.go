package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "peer-rendezvous/internal/handler/http"
	wsHandler "peer-rendezvous/internal/handler/websocket"
	"peer-rendezvous/internal/hub"
	gormpersistence "peer-rendezvous/internal/infra/persistence/gorm"
	"peer-rendezvous/internal/infra/setup"
	"peer-rendezvous/internal/middleware"
	"peer-rendezvous/internal/notify"
	"peer-rendezvous/internal/service"
	"peer-rendezvous/internal/tasks"
	"peer-rendezvous/internal/worker"
)

// Config 存储从环境变量或 .env 文件加载的配置
type Config struct {
	DBUser          string
	DBPassword      string
	DBHost          string
	DBPort          string
	DBName          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	AdminJWTSecret  string
	ServerPort      string
	LogLevel        string
	AppEnv          string
	RateLimitMax    int
	RateLimitWindow time.Duration
	ReapInterval    time.Duration
	SweepSchedule   string // asynq scheduler 表达式，如 "@every 1m"
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件（如果存在），忽略错误允许只用环境变量
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         os.Getenv("DB_PORT"),
		DBName:         os.Getenv("DB_NAME"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		ServerPort:     os.Getenv("SERVER_PORT"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		AppEnv:         os.Getenv("APP_ENV"),
		SweepSchedule:  os.Getenv("PENDING_SWEEP_SCHEDULE"),
		// 默认值
		RateLimitMax:    100,
		RateLimitWindow: 1 * time.Second,
		ReapInterval:    60 * time.Second,
	}

	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB"))

	if seconds, err := strconv.Atoi(os.Getenv("REAPER_INTERVAL_SECONDS")); err == nil && seconds > 0 {
		cfg.ReapInterval = time.Duration(seconds) * time.Second
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 1m"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.AdminJWTSecret == "" {
		return nil, fmt.Errorf("environment variable ADMIN_JWT_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App 包含应用的所有组件和配置
type App struct {
	Config         *Config
	Log            *logrus.Logger
	DB             *gorm.DB
	RedisClient    *redis.Client
	AsynqClient    *asynq.Client
	AsynqServer    *worker.WorkerServer
	Hub            *hub.Hub
	HTTPServer     *http.Server
	redisClientOpt asynq.RedisClientOpt
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Info("Configuration loaded successfully")

	// 基础设施
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Infrastructure initialized successfully")

	// Repository 与 Service
	pairingRepo := gormpersistence.NewGormPairingRepository(db)
	pairingService := service.NewPairingService(pairingRepo, asynqClient)
	log.Info("Services initialized")

	// 实时汇合核心
	hubInstance := hub.NewHub(cfg.ReapInterval)
	log.Info("Hub initialized")

	// Handlers
	pairingHandler := httpHandler.NewPairingHandler(pairingService)
	websocketHandler := wsHandler.NewWebSocketHandler(hubInstance)

	// Worker Server（周期清理 + 推送投递）
	notifier := notify.NewLogNotifier()
	workerServer := worker.NewWorkerServer(redisClientOpt, pairingService, notifier, log)
	log.Info("Worker server initialized")

	// Gin 路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(middleware.RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api")
	pairing := api.Group("/pairing")
	{
		pairing.POST("/pending", pairingHandler.CreatePending)
		pairing.POST("/accept", pairingHandler.AcceptPending)
		pairing.POST("/check", pairingHandler.CheckPending)
		pairing.DELETE("/pending", pairingHandler.DeletePending)
		pairing.GET("/room", pairingHandler.GetRoom)
		pairing.DELETE("/room", pairingHandler.DeleteRoom)
		// 隐私清除是运维动作，单独加 admin 门禁
		pairing.POST("/purge", middleware.AdminAuth(cfg.AdminJWTSecret), pairingHandler.PurgeByIdentity)
	}
	router.GET("/ws", websocketHandler.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HTTPServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

// Start 启动所有后台 goroutine 和 HTTP 服务器
func (a *App) Start() {
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HTTPServer.Addr)
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// registerPeriodicTasks 注册周期性的过期邀请清理任务
func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	payload, err := tasks.NewPendingSweepTask()
	if err != nil {
		a.Log.Errorf("Failed to create pending sweep task payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypePendingSweep, payload)

	entryID, err := scheduler.Register(a.Config.SweepSchedule, task, asynq.Queue("default"))
	if err != nil {
		a.Log.Errorf("Could not register periodic pending sweep task: %v", err)
	} else {
		a.Log.Infof("Periodic pending sweep registered with schedule '%s' (EntryID: %s)", a.Config.SweepSchedule, entryID)
	}

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil {
			if !errors.Is(err, asynq.ErrServerClosed) {
				a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			} else {
				a.Log.Info("Asynq scheduler stopped.")
			}
		}
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.Hub != nil {
		a.Hub.Stop()
	}

	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个记录请求日志的 Gin 中间件
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		switch {
		case errorMessage != "":
			entry.Error(errorMessage)
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
