package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jhilmilyatra/content-vault-sub004/internal/auth"
	"github.com/jhilmilyatra/content-vault-sub004/internal/conf"
	"github.com/jhilmilyatra/content-vault-sub004/internal/data"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/logger"
	"github.com/jhilmilyatra/content-vault-sub004/internal/server"
	uploadbiz "github.com/jhilmilyatra/content-vault-sub004/internal/upload/biz"
	uploaddata "github.com/jhilmilyatra/content-vault-sub004/internal/upload/data"
	uploadqueue "github.com/jhilmilyatra/content-vault-sub004/internal/upload/queue"
	uploadservice "github.com/jhilmilyatra/content-vault-sub004/internal/upload/service"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize global logger
	if err := logger.InitGlobal(logConfig); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Initialize repositories
	sessionRepo := uploaddata.NewSessionRepo(d.DB)
	chunkRepo := uploaddata.NewChunkRepo(d.DB, d.TxManager)
	fileRepo := uploaddata.NewFileRepo(d.DB)

	// Initialize use cases
	recorderUseCase := uploadbiz.NewRecorderUseCase(chunkRepo, log)
	sessionUseCase := uploadbiz.NewSessionUseCase(
		sessionRepo,
		recorderUseCase,
		config.Upload.ChunkSizeBytes,
		config.Upload.SessionTTL,
		log,
	)
	transferUseCase := uploadbiz.NewTransferUseCase(
		sessionUseCase,
		recorderUseCase,
		d.NodeClient,
		config.Upload.ChunkSizeBytes,
		log,
	)

	// Initialize cleanup worker
	cleanupWorker := uploadqueue.NewWorker(
		d.RedisClient,
		sessionRepo,
		recorderUseCase,
		d.NodeClient,
		log.Logger,
		config.Upload.CleanupWorkers,
		config.Upload.SweepInterval,
	)

	finalizeUseCase := uploadbiz.NewFinalizeUseCase(
		sessionUseCase,
		recorderUseCase,
		d.NodeClient,
		fileRepo,
		cleanupWorker,
		log,
	)

	// Start worker
	if err := cleanupWorker.Start(context.Background()); err != nil {
		log.Fatal("failed to start cleanup worker", zap.Error(err))
	}
	defer cleanupWorker.Stop()

	// Initialize services
	jwtManager := auth.NewJWTManager(config.Auth.JWTSecret, config.Auth.JWTIssuer)
	uploadService := uploadservice.NewUploadService(
		sessionUseCase,
		transferUseCase,
		finalizeUseCase,
		cleanupWorker,
		log,
	)

	// Initialize server
	httpServer := server.NewHTTPServer(config, log, jwtManager, uploadService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
