package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"crucible/internal/common/cache"
	"crucible/internal/common/db"
	"crucible/internal/common/mq"
	"crucible/internal/common/storage"
	"crucible/internal/exec/probe"
	"crucible/internal/exec/runner"
	execsvc "crucible/internal/exec/service"
	"crucible/internal/judge/repository"
	"crucible/internal/judge/scoring"
	judgesvc "crucible/internal/judge/service"
	"crucible/internal/judge/worker"
	"crucible/pkg/utils/logger"
)

const defaultConfigPath = "configs/judge_worker.yaml"

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

	var objStorage storage.ObjectStorage
	if appCfg.MinIO.Endpoint != "" {
		minioStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			logger.Error(context.Background(), "init minio failed", zap.Error(err))
			return
		}
		objStorage = minioStorage
	}

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

	var containerRunner runner.Runner
	if mode != runner.ModeLocal {
		cr, err := runner.NewContainerRunner()
		if err != nil {
			logger.Warn(context.Background(), "container runner unavailable, process backend only", zap.Error(err))
		} else {
			containerRunner = cr
			defer func() {
				_ = cr.Close()
			}()
		}
	}
	runnerSvc := execsvc.NewRunnerService(mode, hostProbe, runner.NewProcessRunner(), containerRunner)

	challenges := repository.NewChallengeStore(mysqlDB, objStorage, appCfg.MinIO.Bucket)
	judgeSvc := judgesvc.NewJudgeService(challenges, runnerSvc, appCfg.Limits)
	statusCache := repository.NewStatusCache(redisCache)
	engine := scoring.NewHTTPEngine(appCfg.Scoring)

	w := worker.New(
		mqClient,
		repository.NewSubmissionRepository(mysqlDB),
		repository.NewRunRepository(mysqlDB),
		statusCache,
		judgeSvc,
		engine,
	)
	if err := w.Start(context.Background()); err != nil {
		logger.Error(context.Background(), "start worker failed", zap.Error(err))
		return
	}
	logger.Info(context.Background(), "judge worker started",
		zap.String("mode", string(mode)),
		zap.Strings("brokers", appCfg.Kafka.Brokers))

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	logger.Info(context.Background(), "shutdown signal received, draining")
	if err := w.Stop(); err != nil {
		logger.Error(context.Background(), "worker stop failed", zap.Error(err))
	}
}
