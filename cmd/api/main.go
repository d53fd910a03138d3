package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/bugtally/notify-engine/internal/channel"
	"github.com/bugtally/notify-engine/internal/clock"
	"github.com/bugtally/notify-engine/internal/config"
	"github.com/bugtally/notify-engine/internal/handler"
	eventHandler "github.com/bugtally/notify-engine/internal/handler/event"
	filterHandler "github.com/bugtally/notify-engine/internal/handler/filter"
	healthHandler "github.com/bugtally/notify-engine/internal/handler/health"
	historyHandler "github.com/bugtally/notify-engine/internal/handler/history"
	preferenceHandler "github.com/bugtally/notify-engine/internal/handler/preference"
	pushHandler "github.com/bugtally/notify-engine/internal/handler/push"
	"github.com/bugtally/notify-engine/internal/middleware"
	"github.com/bugtally/notify-engine/internal/repository"
	"github.com/bugtally/notify-engine/internal/repository/postgres"
	"github.com/bugtally/notify-engine/internal/router"
	"github.com/bugtally/notify-engine/internal/service/dispatcher"
	filterService "github.com/bugtally/notify-engine/internal/service/filter"
	historyService "github.com/bugtally/notify-engine/internal/service/history"
	preferenceService "github.com/bugtally/notify-engine/internal/service/preference"
	"github.com/bugtally/notify-engine/pkg/logger"
	"github.com/bugtally/notify-engine/pkg/messaging"
	redisBroker "github.com/bugtally/notify-engine/pkg/messaging/redis"
	"github.com/bugtally/notify-engine/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logg := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logg.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &logg.ZL)
		if err != nil {
			logg.Fatal(err, "failed to connect to Redis")
		}
		defer broker.Close()
	}

	m := metrics.New("notify_engine")
	clk := clock.New()

	base := postgres.NewBaseRepository(db)
	queueRepo := postgres.NewQueueRepository(base)
	filterRepo := postgres.NewFilterRepository(base)
	historyRepo := postgres.NewHistoryRepository(base)
	auditRepo := postgres.NewChannelAuditRepository(base)
	prefRepo := postgres.NewPreferenceRepository(base)
	digestRepo := postgres.NewDigestPreferenceRepository(base)
	directoryRepo := postgres.NewDirectoryRepository(base)
	subsRepo := postgres.NewPushSubscriptionRepository(base)

	evaluator := preferenceService.NewEvaluator(prefRepo, logg)
	filterEngine := filterService.NewEngine(filterRepo, logg)
	filterSvc := filterService.NewService(filterRepo, clk)
	historySvc := historyService.NewService(historyRepo, auditRepo, clk, logg)
	prefSvc := preferenceService.NewService(prefRepo, digestRepo, subsRepo, evaluator, clk)

	senders := buildSenders(cfg, subsRepo, broker, logg, m)

	disp := dispatcher.New(
		dispatcher.Config{
			Channels:     cfg.Dispatch.Channels,
			EventTimeout: cfg.EventTimeout(),
			BaseURL:      cfg.Dispatch.BaseURL,
		},
		directoryRepo,
		queueRepo,
		historyRepo,
		auditRepo,
		evaluator,
		filterEngine,
		senders,
		clk,
		logg,
		m,
	)

	h := handler.NewHandler()
	r := router.NewRouter(
		eventHandler.NewHandler(disp),
		filterHandler.NewHandler(filterSvc),
		historyHandler.NewHandler(historySvc),
		preferenceHandler.NewHandler(prefSvc),
		pushHandler.NewHandler(prefSvc),
		healthHandler.NewHandler(historySvc),
		h,
		router.RouterConfig{
			RateLimit:  rate.Limit(100),
			RateBurst:  200,
			Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.Fatal(err, "server forced to shutdown")
	}

	// Let in-flight dispatches write their history and audit rows.
	disp.Wait()
	logg.Info("server exited properly")
}

func buildSenders(
	cfg *config.Config,
	subsRepo repository.PushSubscriptionRepository,
	broker messaging.Broker,
	logg *logger.Logger,
	m *metrics.Metrics,
) []channel.Sender {
	chatSender := channel.NewChatSender(channel.ChatConfig{
		Enabled:        cfg.Chat.Enabled,
		WebhookURL:     cfg.Chat.WebhookURL,
		APIURL:         cfg.Chat.APIURL,
		APIToken:       cfg.Chat.APIToken,
		DefaultRoom:    cfg.Chat.DefaultRoom,
		Rooms:          cfg.Chat.Rooms,
		MaxRetries:     cfg.Chat.MaxRetries,
		RetryBaseDelay: cfg.ChatRetryBaseDelay(),
		RequestsPerSec: cfg.Chat.RequestsPerSec,
		Burst:          cfg.Chat.Burst,
	}, nil, logg, m)

	emailSender := channel.NewEmailSender(channel.EmailConfig{
		Enabled:  cfg.Email.Enabled,
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	}, logg)

	pushTransport := channel.NewHTTPPushTransport(channel.PushTransportConfig{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subscriber:      cfg.Push.Subscriber,
	}, nil)
	pushSender := channel.NewPushSender(pushTransport, subsRepo, logg)

	webhookSender := channel.NewWebhookSender(channel.WebhookConfig{
		Enabled: cfg.Webhook.Enabled,
		URL:     cfg.Webhook.URL,
		Secret:  cfg.Webhook.Secret,
	}, nil, logg)

	inAppSender := channel.NewInAppSender(broker, logg)

	return []channel.Sender{chatSender, emailSender, pushSender, webhookSender, inAppSender}
}
