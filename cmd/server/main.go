package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Howters/ArisanOnChain-sub000/internal/chain"
	"github.com/Howters/ArisanOnChain-sub000/internal/config"
	"github.com/Howters/ArisanOnChain-sub000/internal/handler"
	"github.com/Howters/ArisanOnChain-sub000/internal/ledger"
	"github.com/Howters/ArisanOnChain-sub000/internal/logger"
	"github.com/Howters/ArisanOnChain-sub000/internal/metrics"
	"github.com/Howters/ArisanOnChain-sub000/internal/monitor"
	"github.com/Howters/ArisanOnChain-sub000/internal/processor"
	"github.com/Howters/ArisanOnChain-sub000/internal/query"
	"github.com/Howters/ArisanOnChain-sub000/internal/reconcile"
	"github.com/Howters/ArisanOnChain-sub000/internal/repository"
	"github.com/Howters/ArisanOnChain-sub000/internal/router"
	"github.com/Howters/ArisanOnChain-sub000/internal/scheduler"
	"github.com/Howters/ArisanOnChain-sub000/internal/source"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// 初始化派生存储
	store, err := repository.Open(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// 只有同步或链上回退需要节点连接
	var (
		chainManager *chain.Manager
		src          *source.Source
	)
	if cfg.Indexer.Enabled || cfg.Query.FallbackEnabled {
		chainManager, err = chain.NewManager(ctx, cfg.Chain)
		if err != nil {
			logger.Fatal("Failed to initialize chain manager: %v", err)
		}
		defer chainManager.Close()

		src = source.New(chainManager.GetClient(), chainManager.Registry, source.Options{
			Confirmations: cfg.Chain.Confirmations,
			RPCTimeout:    cfg.Indexer.RPCTimeout,
			MaxRetries:    cfg.Indexer.MaxRetries,
			Concurrency:   cfg.Indexer.FetchConcurrency,
			OnRetry:       m.RPCRetry,
		})
	}

	// 查询路径
	var primary, fallback query.ReadModel
	if cfg.Query.StoreEnabled {
		primary = query.NewFacade(store)
	}
	if cfg.Query.FallbackEnabled {
		reader, err := ledger.NewContractReader(chainManager.Registry, chainManager.GetClient(), src, ledger.CallOptions{
			Timeout:    cfg.Indexer.RPCTimeout,
			MaxRetries: cfg.Query.MaxRetries,
			OnRetry:    m.RPCRetry,
		})
		if err != nil {
			logger.Fatal("Failed to initialize ledger reader: %v", err)
		}
		reconstructor, err := ledger.NewReconstructor(reader, cfg.Query.Fanout)
		if err != nil {
			logger.Fatal("Failed to initialize ledger reconstructor: %v", err)
		}
		defer reconstructor.Release()
		fallback = reconstructor
	}
	reads, err := reconcile.NewPolicy(primary, fallback, m)
	if err != nil {
		logger.Fatal("Failed to initialize query policy: %v", err)
	}

	// 启动事件同步
	deps := router.Dependencies{Reads: reads, Metrics: m.Handler()}
	if chainManager != nil {
		deps.Chain = chainManager
	}
	var jobs *scheduler.Manager
	if cfg.Indexer.Enabled {
		startBlock := cfg.Indexer.StartBlock
		if startBlock == 0 {
			startBlock = chainManager.StartBlock()
		}
		indexer := monitor.NewIndexer(src, store, processor.NewProcessorManager(m), m, monitor.Options{
			ChainId:    cfg.Chain.ChainId,
			StartBlock: startBlock,
			BatchSize:  cfg.Indexer.BatchSize,
		})
		deps.Status = handler.StatusProvider(indexer)

		jobs, err = scheduler.NewManager()
		if err != nil {
			logger.Fatal("Failed to create task manager: %v", err)
		}
		for _, job := range []scheduler.Job{
			scheduler.NewIndexerSyncJob(indexer, cfg.Indexer.PollInterval),
			scheduler.NewHeadLagJob(indexer, cfg.Indexer.PollInterval),
		} {
			if err := jobs.Register(job); err != nil {
				logger.Fatal("%v", err)
			}
		}
		jobs.Start()
	} else {
		logger.Info("Indexer disabled, serving queries only")
	}

	// 设置Gin模式
	switch cfg.Server.Mode {
	case gin.ReleaseMode, gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Setup(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	// 先停止同步：当前区块写完并保存检查点后返回
	if jobs != nil {
		_ = jobs.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server: %v", err)
	}
	logger.Info("Server exited")
}
