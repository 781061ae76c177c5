package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"musichelper/cache"
	"musichelper/config"
	"musichelper/core/chords"
	"musichelper/core/processing"
	"musichelper/db"
	"musichelper/logger"
	"musichelper/model"
	"musichelper/repository"
	"musichelper/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(os.Getenv("LOG_LEVEL")),
		OutputPath: "logs/musichelper.log",
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	defer logger.Sync()

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 初始化 MinIO 客户端
	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("Failed to initialize MinIO", logger.ErrorField(err))
	}

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	// Connect to Redis
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()
	cache.Init(db.RedisClient)
	logger.Info("Successfully connected to Redis")

	// Initialize database schema. Users first: the uploads table carries a
	// foreign key onto users(id).
	if err := db.AutoMigrateModels(&model.User{}); err != nil {
		logger.Fatal("Failed to migrate user schema", logger.ErrorField(err))
	}
	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	// Create necessary directories if they don't exist
	ensureDirExists(cfg.UploadDir)    // Raw uploaded audio
	ensureDirExists(cfg.ProcessedDir) // Per-upload stems + chord timelines

	uploadRepo := repository.NewMySQLUploadRepository()
	userRepo := repository.NewGormUserRepository(db.GormDB)

	if err := userRepo.EnsureDefaultAdmin(); err != nil {
		logger.Fatal("Failed to ensure admin account", logger.ErrorField(err))
	}

	analyzer := processing.NewPythonAnalyzer(
		cfg.PythonPath,
		cfg.ProcessScript,
		cfg.RegenerateScript,
		cfg.ProcessTimeout,
		cfg.RegenerateTimeout,
	)
	pipeline := processing.NewPipeline(uploadRepo, analyzer, cfg.UploadDir, cfg.ProcessedDir)
	coordinator := chords.NewCoordinator(uploadRepo, analyzer, cfg.ProcessedDir)

	// 监听 processed 目录，外部重写 chords.json 时让缓存失效
	watcher, err := chords.NewWatcher(cfg.ProcessedDir)
	if err != nil {
		logger.Warn("Chord artifact watcher unavailable", logger.ErrorField(err))
	} else {
		defer watcher.Close()
	}

	// 初始化处理器
	apiHandler := NewAPIHandler(uploadRepo, userRepo, pipeline, coordinator, cfg)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)

	// 上传相关的API端点
	router.HandleFunc("/api/upload", apiHandler.AuthMiddleware(apiHandler.UploadHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/uploads", apiHandler.AuthMiddleware(apiHandler.MyUploadsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/uploads/{upload_id}", apiHandler.AuthMiddleware(apiHandler.UpdateUploadHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/uploads/{upload_id}", apiHandler.AuthMiddleware(apiHandler.DeleteUploadHandler)).Methods(http.MethodDelete)

	// 和弦时间轴相关的API端点
	router.HandleFunc("/api/chords/{upload_id}", apiHandler.AuthMiddleware(apiHandler.GetChordsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/chords/{upload_id}/regenerate", apiHandler.AuthMiddleware(apiHandler.RegenerateHandler)).Methods(http.MethodPost)

	// 和弦同步 WebSocket（token 通过查询参数传递）
	router.HandleFunc("/ws/chords/{upload_id}", apiHandler.WSAuthMiddleware(apiHandler.ChordSyncHandler)).Methods(http.MethodGet)

	// Static file serving for processed artifacts (stems, waveforms, chords.json)
	processedFileServer := http.FileServer(http.Dir(cfg.ProcessedDir))
	router.PathPrefix("/processed/").Handler(http.StripPrefix("/processed/", processedFileServer))

	server.Handler = router

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	// 等待中断信号
	<-stop
	logger.Info("Shutting down server...")

	// 优雅关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("Creating directory", logger.String("path", path))
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal("Failed to create directory", logger.String("path", path), logger.ErrorField(err))
		}
	} else if err != nil {
		logger.Fatal("Failed to check directory", logger.String("path", path), logger.ErrorField(err))
	}
}
