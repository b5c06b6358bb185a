package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crucible/internal/common/cache"
	"crucible/internal/common/db"
	commonmw "crucible/internal/common/http/middleware"
	"crucible/internal/common/mq"
	execctl "crucible/internal/exec/controller"

	"crucible/internal/exec/adhoc"
	"crucible/internal/exec/probe"
	"crucible/internal/exec/remote"
	"crucible/internal/exec/runner"
	execsvc "crucible/internal/exec/service"
	judgectl "crucible/internal/judge/controller"
	"crucible/internal/judge/repository"
	judgesvc "crucible/internal/judge/service"
	"crucible/pkg/utils/logger"
)

const defaultConfigPath = "configs/exec_api.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka.toMQConfig())
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	mode, err := runner.ParseMode(appCfg.Exec.Mode)
	if err != nil {
		logger.Error(context.Background(), "invalid execution mode", zap.Error(err))
		return
	}
	hostProbe := probe.NewHostProbe(appCfg.Probe)
	runnerSvc := execsvc.NewRunnerService(mode, hostProbe, runner.NewProcessRunner(), nil)

	var provider *remote.Client
	if appCfg.Remote.BaseURL != "" {
		provider, err = remote.NewClient(appCfg.Remote)
		if err != nil {
			logger.Error(context.Background(), "init remote provider failed", zap.Error(err))
			return
		}
	}
	adhocSvc := adhoc.NewService(appCfg.Adhoc, runnerSvc, provider)

	statusCache := repository.NewStatusCache(redisCache)
	publisher := repository.NewJobPublisher(mqClient, statusCache, appCfg.Kafka.EnqueueDeadline)
	submissionSvc := judgesvc.NewSubmissionService(
		repository.NewSubmissionRepository(mysqlDB),
		repository.NewRunRepository(mysqlDB),
		statusCache,
		publisher,
		appCfg.Exec.MaxCodeBytes,
	)

	httpServer := buildHTTPServer(appCfg, adhocSvc, submissionSvc)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "exec api started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg *AppConfig, adhocSvc *adhoc.Service, submissionSvc *judgesvc.SubmissionService) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.RequestContextMiddleware())
	router.Use(requestLogger())

	execController := execctl.NewExecController(adhocSvc)
	judgeController := judgectl.NewJudgeController(submissionSvc)

	api := router.Group("/api/v1")
	api.POST("/exec/execute", execController.Execute)
	api.POST("/judge/submissions", judgeController.Submit)
	api.GET("/judge/submissions/:id", judgeController.GetStatus)
	api.GET("/judge/submissions/:id/run", judgeController.GetLatestRun)

	admin := api.Group("/admin", commonmw.AdminAuthMiddleware(cfg.Admin.JWTSecret))
	admin.POST("/judge/submissions/:id/retry", judgeController.Retry)
	admin.PUT("/judge/enabled", judgeController.SetJudgingEnabled)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
