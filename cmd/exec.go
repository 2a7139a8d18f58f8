package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"
	"go.uber.org/zap"

	"waitlist-system/config"
	"waitlist-system/handlers"
	_ "waitlist-system/migrations"
	"waitlist-system/monitoring"
	"waitlist-system/realtime"
	"waitlist-system/services"
	"waitlist-system/store"
	"waitlist-system/utils"
)

func Start() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		return err
	}
	defer logger.Sync()

	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUserID))
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey
	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire services
	repo := store.NewPocketBaseRepository(app)
	transport := realtime.NewPubNubTransport(pn, logger)
	monitor := monitoring.NewMonitor()
	router := services.NewRoomRouter(transport, logger)
	dispatcher := services.NewDispatcher(transport, router, monitor, logger)
	codes := services.NewCodeIssuer(repo, cfg.CodeLength)
	tracker := services.NewPositionTracker(repo, redisClient, transport, monitor, logger, cfg.PositionSnapshotTTL)
	entries := services.NewEntryService(repo, tracker, dispatcher, codes, monitor, logger, cfg.NotificationInterval, cfg.MaxRepeats)
	acks := services.NewAckCoordinator(entries, logger)

	// Inbound acknowledgments over the live channel
	listener := realtime.NewListener(pn, cfg.PubNubAckChannel, logger)
	acks.Bind(listener)

	// Wire handlers
	queueHandler := handlers.NewQueueHandler(entries, acks, tracker, router)
	merchantHandler := handlers.NewMerchantHandler(entries, redisClient)
	realtimeHandler := handlers.NewRealtimeHandler(entries, router)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	go handleShutdown(cancel, logger)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		listener.Start(ctx)

		go entries.RestoreTimers(ctx)
		go tracker.ReconcileLoop(ctx, cfg.ReconcileInterval, entries.LockQueue)

		if cfg.EnableMetrics {
			go serveMetrics(cfg.MetricsPort, logger)
		}

		// Customer endpoints
		e.Router.POST("/api/v1/queues/{queueId}/join", queueHandler.Join)
		e.Router.GET("/api/v1/entries/{entryId}", queueHandler.GetEntry)
		e.Router.POST("/api/v1/entries/{entryId}/acknowledge", queueHandler.Acknowledge)
		e.Router.POST("/api/v1/entries/{entryId}/withdraw", queueHandler.Withdraw)
		e.Router.POST("/api/v1/entries/{entryId}/cancel", queueHandler.Cancel)

		// Merchant endpoints
		e.Router.POST("/api/v1/queues/{queueId}/call-next", merchantHandler.CallNext)
		e.Router.GET("/api/v1/queues/{queueId}/dashboard", merchantHandler.Dashboard)
		e.Router.POST("/api/v1/entries/{entryId}/call", merchantHandler.Call)
		e.Router.POST("/api/v1/entries/{entryId}/seat", merchantHandler.Seat)
		e.Router.POST("/api/v1/entries/{entryId}/complete", merchantHandler.Complete)
		e.Router.POST("/api/v1/entries/{entryId}/no-show", merchantHandler.NoShow)

		// Realtime room membership
		e.Router.POST("/api/v1/realtime/connect", realtimeHandler.Connect)
		e.Router.POST("/api/v1/realtime/disconnect", realtimeHandler.Disconnect)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		logger.Info("server routes registered", zap.String("port", cfg.Port))

		return e.Next()
	})

	return app.Start()
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serveMetrics(port string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("metrics server listening", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

func handleShutdown(cancel context.CancelFunc, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("shutdown signal received, cleaning up")
	cancel()
}
