package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	HTTPAddr    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
	SecretKey            string
	Algorithm            string
	AuthScheme           string

	AccountRegisterURL           string
	AccountLoginURL              string
	NotificationRegisterURL      string
	NotificationResetPasswordURL string
	CollaboratorTimeout          time.Duration

	PostgresDSN             string
	KafkaBrokers            []string
	AuthEventsTopic         string
	SessionRevocationsTopic string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment", "error", err)
	}

	var errs []error
	cfg := &Config{
		ServiceName:   envOr("SERVICE_NAME", "auth-gateway"),
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		SecretKey:     os.Getenv("SECRET_KEY"),
		Algorithm:     strings.ToUpper(envOr("ALGORITHM", "HS256")),
		AuthScheme:    envOr("AUTH_SCHEME", "Token"),

		AccountRegisterURL:           os.Getenv("ACCOUNT_REGISTER_URL"),
		AccountLoginURL:              os.Getenv("ACCOUNT_LOGIN_URL"),
		NotificationRegisterURL:      os.Getenv("NOTIFICATION_REGISTER_URL"),
		NotificationResetPasswordURL: os.Getenv("NOTIFICATION_RESET_PASSWORD_URL"),

		PostgresDSN:             os.Getenv("POSTGRES_DSN"),
		AuthEventsTopic:         envOr("AUTH_EVENTS_TOPIC", "auth-events"),
		SessionRevocationsTopic: envOr("SESSION_REVOCATIONS_TOPIC", "session-revocations"),
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DATABASE_NUMBER", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.AccessTokenLifetime, err = secondsEnv("ACCESS_TOKEN_LIFETIME", 5*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.RefreshTokenLifetime, err = secondsEnv("REFRESH_TOKEN_LIFETIME", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.CollaboratorTimeout, err = secondsEnv("COLLABORATOR_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKER")); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"algorithm", cfg.Algorithm,
		"access_lifetime", cfg.AccessTokenLifetime,
		"refresh_lifetime", cfg.RefreshTokenLifetime,
		"kafka_brokers", cfg.KafkaBrokers,
		"audit_enabled", cfg.PostgresDSN != "")
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is required"))
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("ALGORITHM %q is not supported", c.Algorithm))
	}
	if c.AccessTokenLifetime <= 0 || c.RefreshTokenLifetime <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	} else if c.AccessTokenLifetime >= c.RefreshTokenLifetime {
		errs = append(errs, errors.New("ACCESS_TOKEN_LIFETIME must be shorter than REFRESH_TOKEN_LIFETIME"))
	}
	if c.CollaboratorTimeout <= 0 {
		errs = append(errs, errors.New("COLLABORATOR_TIMEOUT must be positive"))
	}
	if strings.ContainsAny(c.AuthScheme, " \t") || c.AuthScheme == "" {
		errs = append(errs, errors.New("AUTH_SCHEME must be a single word"))
	}
	for name, v := range map[string]string{
		"ACCOUNT_REGISTER_URL":      c.AccountRegisterURL,
		"ACCOUNT_LOGIN_URL":         c.AccountLoginURL,
		"NOTIFICATION_REGISTER_URL": c.NotificationRegisterURL,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	return errors.Join(errs...)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func secondsEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s must be a number of seconds: %w", key, err)
	}
	return time.Duration(n) * time.Second, nil
}
