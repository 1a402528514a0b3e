package config

import (
	"errors"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

// Config настройки процесса; значения берутся из флагов или переменных окружения
type Config struct {
	HTTPAddr        string
	Env             string
	ServiceName     string
	ShutdownTimeout time.Duration

	MongoURI          string
	MongoDB           string
	MongoTransactions bool
	RedisAddr         string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret string
	JWTTTL    time.Duration

	SMTP SMTP

	PublicBaseURL   string
	ConfirmationTTL time.Duration

	OTLPEndpoint string

	// Seed загрузить демо-каталог при старте serve
	Seed bool
}

// SMTP параметры почтового сервера; пустой Host включает лог-нотификатор
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Flags общие флаги для всех команд
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "http-addr", EnvVars: []string{"HTTP_ADDR"}, Value: ":9091", Usage: "HTTP listen address"},
		&cli.StringFlag{Name: "env", EnvVars: []string{"ENV"}, Value: "dev"},
		&cli.StringFlag{Name: "service-name", EnvVars: []string{"SERVICE_NAME"}, Value: "storefront"},
		&cli.DurationFlag{Name: "shutdown-timeout", EnvVars: []string{"SHUTDOWN_TIMEOUT"}, Value: 5 * time.Second},

		&cli.StringFlag{Name: "mongo-uri", EnvVars: []string{"MONGO_URI"}, Usage: "MongoDB URI; empty runs on the in-memory store"},
		&cli.StringFlag{Name: "mongo-db", EnvVars: []string{"MONGO_DB"}, Value: "storefront"},
		&cli.BoolFlag{Name: "mongo-transactions", EnvVars: []string{"MONGO_TRANSACTIONS"}, Usage: "use multi-document transactions (replica set required)"},
		&cli.StringFlag{Name: "redis-addr", EnvVars: []string{"REDIS_ADDR"}, Usage: "Redis address for the order number sequence"},

		&cli.StringSliceFlag{Name: "kafka-brokers", EnvVars: []string{"KAFKA_BROKERS"}, Usage: "comma separated broker list; empty disables events"},
		&cli.StringFlag{Name: "kafka-topic", EnvVars: []string{"KAFKA_TOPIC"}, Value: "order-events"},

		&cli.StringFlag{Name: "jwt-secret", EnvVars: []string{"JWT_SECRET"}},
		&cli.DurationFlag{Name: "jwt-ttl", EnvVars: []string{"JWT_TTL"}, Value: 24 * time.Hour},

		&cli.StringFlag{Name: "smtp-host", EnvVars: []string{"SMTP_HOST"}},
		&cli.IntFlag{Name: "smtp-port", EnvVars: []string{"SMTP_PORT"}, Value: 587},
		&cli.StringFlag{Name: "smtp-username", EnvVars: []string{"SMTP_USERNAME"}},
		&cli.StringFlag{Name: "smtp-password", EnvVars: []string{"SMTP_PASSWORD"}},
		&cli.StringFlag{Name: "smtp-from", EnvVars: []string{"SMTP_FROM"}, Value: "no-reply@storefront.local"},

		&cli.StringFlag{Name: "public-base-url", EnvVars: []string{"PUBLIC_BASE_URL"}, Value: "http://localhost:9091"},
		&cli.DurationFlag{Name: "confirmation-ttl", EnvVars: []string{"CONFIRMATION_TTL"}, Value: 24 * time.Hour},

		&cli.StringFlag{Name: "otlp-endpoint", EnvVars: []string{"OTEL_EXPORTER_OTLP_ENDPOINT"}, Usage: "OTLP/HTTP endpoint; empty disables tracing"},
		&cli.BoolFlag{Name: "seed", EnvVars: []string{"SEED"}, Usage: "load the sample catalog and demo user before serving"},
	}
}

// FromContext собирает Config из разобранных флагов
func FromContext(c *cli.Context) Config {
	brokers := make([]string, 0)
	for _, b := range c.StringSlice("kafka-brokers") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return Config{
		HTTPAddr:          c.String("http-addr"),
		Env:               c.String("env"),
		ServiceName:       c.String("service-name"),
		ShutdownTimeout:   c.Duration("shutdown-timeout"),
		MongoURI:          c.String("mongo-uri"),
		MongoDB:           c.String("mongo-db"),
		MongoTransactions: c.Bool("mongo-transactions"),
		RedisAddr:         c.String("redis-addr"),
		KafkaBrokers:      brokers,
		KafkaTopic:        c.String("kafka-topic"),
		JWTSecret:         c.String("jwt-secret"),
		JWTTTL:            c.Duration("jwt-ttl"),
		SMTP: SMTP{
			Host:     c.String("smtp-host"),
			Port:     c.Int("smtp-port"),
			Username: c.String("smtp-username"),
			Password: c.String("smtp-password"),
			From:     c.String("smtp-from"),
		},
		PublicBaseURL:   strings.TrimRight(c.String("public-base-url"), "/"),
		ConfirmationTTL: c.Duration("confirmation-ttl"),
		OTLPEndpoint:    c.String("otlp-endpoint"),
		Seed:            c.Bool("seed"),
	}
}

var (
	ErrMissingJWTSecret = errors.New("jwt secret is required")
	ErrBadDuration      = errors.New("ttl and timeout values must be positive")
)

// Validate проверяет настройки, без которых сервер не стартует
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.JWTTTL <= 0 || c.ConfirmationTTL <= 0 || c.ShutdownTimeout <= 0 {
		return ErrBadDuration
	}
	return nil
}
