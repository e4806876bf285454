package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	BrokerNone     = "none"
	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
)

type Config struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	CORSAllowOrigins []string

	StoreBackend  string
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	EventsBroker string
	RabbitMQURL  string
	KafkaBrokers []string

	DeliveryFee       float64
	Tax               float64
	ShippingAddress   string
	OrderHistoryLimit int

	EnforceStock    bool
	CartConcurrency string
	CartMaxRetries  int
}

func Load() Config {
	return Config{
		Port:            getenv("PORT", "8080"),
		RequestTimeout:  parseDuration(getenv("REQUEST_TIMEOUT", "3s"), 3*time.Second),
		ShutdownTimeout: parseDuration(getenv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),

		CORSAllowOrigins: splitCSV(getenv("CORS_ALLOW_ORIGINS", "*")),

		StoreBackend:  strings.ToLower(getenv("STORE_BACKEND", BackendMemory)),
		DatabaseDSN:   getenv("DATABASE_DSN", ""),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt(getenv("REDIS_DB", "0"), 0),
		RedisPrefix:   getenv("REDIS_PREFIX", "littlecarts:"),

		EventsBroker: strings.ToLower(getenv("EVENTS_BROKER", BrokerNone)),
		RabbitMQURL:  getenv("RABBITMQ_URL", ""),
		KafkaBrokers: splitCSV(getenv("KAFKA_BROKERS", "")),

		DeliveryFee:       parseFloat(getenv("DELIVERY_FEE", "10000"), 10000),
		Tax:               parseFloat(getenv("TAX", "1000"), 1000),
		ShippingAddress:   getenv("SHIPPING_ADDRESS", "Default Address"),
		OrderHistoryLimit: parseInt(getenv("ORDER_HISTORY_LIMIT", "5"), 5),

		EnforceStock:    parseBool(getenv("ENFORCE_STOCK", "false"), false),
		CartConcurrency: strings.ToLower(getenv("CART_CONCURRENCY", "cas")),
		CartMaxRetries:  parseInt(getenv("CART_MAX_RETRIES", "10"), 10),
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.EventsBroker {
	case BrokerNone:
	case BrokerRabbitMQ:
		if c.RabbitMQURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required for the rabbitmq broker"))
		}
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka broker"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_BROKER %q", c.EventsBroker))
	}

	switch c.CartConcurrency {
	case "cas", "last-writer-wins":
	default:
		errs = append(errs, fmt.Errorf("unknown CART_CONCURRENCY %q", c.CartConcurrency))
	}

	if c.DeliveryFee < 0 || c.Tax < 0 {
		errs = append(errs, errors.New("DELIVERY_FEE and TAX must not be negative"))
	}

	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseFloat(v string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func parseInt(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func parseBool(v string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
