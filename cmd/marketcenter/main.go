package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/bitvex/marketcenter/internal/market/application"
	"github.com/bitvex/marketcenter/internal/market/domain"
	"github.com/bitvex/marketcenter/internal/market/infrastructure/client"
	"github.com/bitvex/marketcenter/internal/market/infrastructure/messaging"
	mongorepo "github.com/bitvex/marketcenter/internal/market/infrastructure/persistence/mongo"
	mysqlrepo "github.com/bitvex/marketcenter/internal/market/infrastructure/persistence/mysql"
	redisrepo "github.com/bitvex/marketcenter/internal/market/infrastructure/persistence/redis"
	"github.com/bitvex/marketcenter/internal/market/interfaces/consumer"
	"github.com/bitvex/marketcenter/internal/market/interfaces/gateway"
	"github.com/bitvex/marketcenter/internal/market/interfaces/ws"
	"github.com/bitvex/marketcenter/pkg/cache"
	"github.com/bitvex/marketcenter/pkg/config"
	"github.com/bitvex/marketcenter/pkg/db"
	"github.com/bitvex/marketcenter/pkg/logger"
	"github.com/bitvex/marketcenter/pkg/metrics"
	"github.com/bitvex/marketcenter/pkg/mq"
)

var configPath = flag.String("config", "configs/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	log := logger.Get()
	ctx := context.Background()

	// 3. Metrics
	metricsImpl := metrics.New(cfg.ServiceName)
	if err := metricsImpl.Register(); err != nil {
		logger.Fatal(ctx, "failed to register metrics", "error", err)
	}
	if cfg.Metrics.Enabled {
		metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 4. Infrastructure
	mongoCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Mongo.ConnTimeout)*time.Second)
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	cancel()
	if err != nil {
		logger.Fatal(ctx, "failed to connect mongodb", "error", err)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	mongoDB := mongoClient.Database(cfg.Mongo.Database)

	mysqlDB, err := db.Init(db.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to connect mysql", "error", err)
	}

	redisCache, err := cache.New(cache.Config{
		Host:        cfg.Redis.Host,
		Port:        cfg.Redis.Port,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		MaxPoolSize: cfg.Redis.MaxPoolSize,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to connect redis", "error", err)
	}

	kafkaCfg := mq.Config{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
	}
	producer := mq.NewProducer(kafkaCfg)
	defer func() { _ = producer.Close() }()

	// 5. Repository & Client
	marketRepo := mongorepo.NewMarketRepository(mongoDB)
	orderRepo := mongorepo.NewOrderRepository(mongoDB)
	coinRepo := mysqlrepo.NewCoinRepository(mysqlDB)
	thumbCache := redisrepo.NewThumbCache(redisCache)

	engineClient := client.NewEngineClient(cfg.Engine.BaseURL, time.Duration(cfg.Engine.RequestTimeout)*time.Second)
	rateClient := client.NewRateClient(cfg.Rate.BaseURL,
		time.Duration(cfg.Rate.RequestTimeout)*time.Second,
		time.Duration(cfg.Rate.RefreshInterval)*time.Second, log)
	notifier := messaging.NewCompletionNotifier(producer, cfg.Kafka.OrderCompletedTopic)

	// 6. Push channels & scheduler
	hub := ws.NewHub()
	gatewaySrv := gateway.NewServer(cfg.Gateway.Addr, cfg.Gateway.MaxFrameSize)

	scheduler := application.NewPushScheduler(application.SchedulerConfig{
		TradeInterval: time.Duration(cfg.Push.TradeInterval) * time.Millisecond,
		PlateInterval: time.Duration(cfg.Push.PlateInterval) * time.Millisecond,
		ThumbInterval: time.Duration(cfg.Push.ThumbInterval) * time.Millisecond,
		ShallowDepth:  cfg.Push.ShallowDepth,
		DeepDepth:     cfg.Push.DeepDepth,
	}, hub, gatewaySrv, metricsImpl, log)

	// 处理链顺序：先落库，再浏览器推送，最后网关推送
	handlers := []domain.MarketHandler{
		application.NewStorageMarketHandler(marketRepo, thumbCache, log),
		application.NewWebsocketMarketHandler(scheduler, hub),
		application.NewGatewayMarketHandler(scheduler),
	}

	periods, err := domain.ParsePeriods(cfg.KLine.Periods)
	if err != nil {
		logger.Fatal(ctx, "failed to parse kline periods", "error", err)
	}

	// 7. Processor bootstrap：按目录建好处理器，但在委托重放完成前不放行成交
	factory := application.NewProcessorFactory()
	builder := application.NewProcessorBuilder(periods, marketRepo, rateClient, handlers, metricsImpl, log)

	coins, err := coinRepo.FindAllEnabled(ctx)
	if err != nil {
		logger.Fatal(ctx, "failed to load exchange coin catalog", "error", err)
	}
	for _, coin := range coins {
		factory.Put(coin.Symbol, builder.Build(ctx, coin))
	}
	metricsImpl.ProcessorsActive.Set(float64(factory.Size()))
	logger.Info(ctx, "processors bootstrapped from catalog", "count", factory.Size())

	// 8. 启动前重放未完成委托，重放结束后各处理器才标记就绪
	replayer := application.NewOrderReplayer(factory, orderRepo, engineClient, notifier, log)
	replayer.Replay(ctx)

	// 9. Run
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	rateClient.Start(gctx)
	scheduler.Start(gctx)

	reconciler := application.NewEngineReconciler(factory, engineClient, coinRepo, builder,
		time.Duration(cfg.Engine.ReconcileInterval)*time.Second, metricsImpl, log)
	reconciler.Start(gctx)

	tradeConsumer := consumer.NewTradeConsumer(factory, notifier, metricsImpl)
	tradeReader := mq.NewConsumer(kafkaCfg, cfg.Kafka.TradeTopic)
	tradeReader.Start(gctx, tradeConsumer.Handle)

	plateConsumer := consumer.NewPlateConsumer(factory, metricsImpl)
	plateReader := mq.NewConsumer(kafkaCfg, cfg.Kafka.PlateTopic)
	plateReader.Start(gctx, plateConsumer.Handle)

	if err := gatewaySrv.Start(gctx); err != nil {
		logger.Fatal(ctx, "failed to start gateway server", "error", err)
	}

	wsMux := http.NewServeMux()
	wsMux.HandleFunc(cfg.WebSocket.Path, hub.ServeWS)
	wsSrv := &http.Server{Addr: cfg.WebSocket.Addr, Handler: wsMux}

	g.Go(func() error {
		logger.Info(gctx, "websocket push server listening", "addr", cfg.WebSocket.Addr, "path", cfg.WebSocket.Path)
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "shutting down market center...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := wsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "failed to shutdown websocket server", "error", err)
		}
		_ = tradeReader.Close()
		_ = plateReader.Close()
		tradeConsumer.Stop()
		return nil
	})

	logger.Info(ctx, "market center started",
		"symbols", factory.Size(),
		"ws_addr", cfg.WebSocket.Addr,
		"gateway_addr", cfg.Gateway.Addr,
	)

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "service exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "market center stopped")
}
