package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bugtally/notify-engine/internal/channel"
	"github.com/bugtally/notify-engine/internal/clock"
	"github.com/bugtally/notify-engine/internal/config"
	"github.com/bugtally/notify-engine/internal/repository"
	"github.com/bugtally/notify-engine/internal/repository/postgres"
	"github.com/bugtally/notify-engine/internal/service/digest"
	"github.com/bugtally/notify-engine/internal/worker"
	"github.com/bugtally/notify-engine/pkg/logger"
	"github.com/bugtally/notify-engine/pkg/messaging"
	redisBroker "github.com/bugtally/notify-engine/pkg/messaging/redis"
	"github.com/bugtally/notify-engine/pkg/metrics"
)

func setupHealthCheck(logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			logg.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logg := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logg.Fatal(err, "Failed to connect to database")
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
			logg.Fatal(err, "Failed to connect to Redis")
		}
		defer broker.Close()
	}

	m := metrics.New("notify_worker")
	clk := clock.New()

	base := postgres.NewBaseRepository(db)
	queueRepo := postgres.NewQueueRepository(base)
	digestRepo := postgres.NewDigestPreferenceRepository(base)
	historyRepo := postgres.NewHistoryRepository(base)
	directoryRepo := postgres.NewDirectoryRepository(base)
	subsRepo := postgres.NewPushSubscriptionRepository(base)

	senders := buildSenders(cfg, subsRepo, broker, logg, m)

	scheduler := digest.NewScheduler(
		queueRepo,
		digestRepo,
		directoryRepo,
		historyRepo,
		senders,
		clk,
		logg,
		m,
	)

	processor := worker.NewDigestProcessor(scheduler, worker.DigestProcessorConfig{
		PollInterval: cfg.DigestPollInterval(),
	}, logg)

	cleanup := worker.NewQueueCleanupWorker(
		queueRepo,
		clk,
		cfg.Digest.RetentionDays,
		time.Duration(cfg.Digest.CleanupIntervalHours)*time.Hour,
		logg,
	)

	setupHealthCheck(logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logg.Info("Shutting down")
		cancel()
	}()

	go cleanup.Start(ctx)
	processor.Start(ctx)
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
