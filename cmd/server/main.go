package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/auth-gateway/internal/api"
	"github.com/honeynil/auth-gateway/internal/config"
	"github.com/honeynil/auth-gateway/internal/handler"
	"github.com/honeynil/auth-gateway/internal/infrastructure/auth"
	"github.com/honeynil/auth-gateway/internal/infrastructure/httpclient"
	"github.com/honeynil/auth-gateway/internal/infrastructure/kafka"
	infraobs "github.com/honeynil/auth-gateway/internal/infrastructure/observability"
	"github.com/honeynil/auth-gateway/internal/infrastructure/redis"
	"github.com/honeynil/auth-gateway/internal/observability"
	"github.com/honeynil/auth-gateway/internal/repository"
	"github.com/honeynil/auth-gateway/internal/repository/postgres"
	redisrepo "github.com/honeynil/auth-gateway/internal/repository/redis"
	service "github.com/honeynil/auth-gateway/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		slog.Error("auth gateway stopped", "error", err)
		os.Exit(1)
	}
}

// bootstrap installs the JSON logger before configuration is read.
func bootstrap(w io.Writer) (*config.Config, error) {
	slog.SetDefault(infraobs.NewLogger(w))
	return config.Load()
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Загружаем конфигурацию
	cfg, err := bootstrap(os.Stdout)
	if err != nil {
		return err
	}

	// Инициализируем логи, метрики, трейсы
	shutdownTracing, metrics := observability.Setup(ctx, cfg.ServiceName)
	defer shutdownTracing(context.Background())

	redisClient, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()

	codec, err := auth.NewCodec(auth.CodecConfig{
		Secret:          cfg.SecretKey,
		Algorithm:       cfg.Algorithm,
		AccessLifetime:  cfg.AccessTokenLifetime,
		RefreshLifetime: cfg.RefreshTokenLifetime,
	})
	if err != nil {
		return err
	}

	var tokenOpts []service.TokenServiceOption
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.AuthEventsTopic)
		defer producer.Close()
		tokenOpts = append(tokenOpts, service.WithEventPublisher(producer))
	}
	tokens := service.NewTokenService(codec, redisrepo.NewSessionRepository(redisClient), tokenOpts...)

	accountClient := httpclient.NewClient("account", cfg.CollaboratorTimeout, nil)
	notificationClient := httpclient.NewClient("notification", cfg.CollaboratorTimeout, nil)
	gateway := service.NewGatewayService(
		tokens,
		httpclient.NewAccountClient(accountClient, cfg.AccountRegisterURL, cfg.AccountLoginURL),
		httpclient.NewNotificationClient(notificationClient, cfg.NotificationRegisterURL, cfg.NotificationResetPasswordURL),
	)

	// Аудит событий сессий в Postgres (опционально)
	var audit repository.AuditRepository
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		auditRepo := postgres.NewAuditRepository(db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			return err
		}
		audit = auditRepo
	}

	// Настраиваем Kafka-консьюмер
	if len(cfg.KafkaBrokers) > 0 {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName, kafka.Topics{
			AuthEvents:         cfg.AuthEventsTopic,
			SessionRevocations: cfg.SessionRevocationsTopic,
		}, audit, tokens)
		go consumer.Consume(ctx)
		defer consumer.Close()
	}

	router := api.SetupRouter(
		handler.NewHandler(gateway, redisClient),
		auth.NewGate(codec, cfg.AuthScheme),
		metrics,
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
