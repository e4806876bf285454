package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andreasstove999/littlecarts/internal/config"
	"github.com/andreasstove999/littlecarts/internal/db"
	"github.com/andreasstove999/littlecarts/internal/events"
	"github.com/andreasstove999/littlecarts/internal/sequence"
	"github.com/andreasstove999/littlecarts/internal/store"
	"github.com/andreasstove999/littlecarts/internal/store/memory"
	"github.com/andreasstove999/littlecarts/internal/store/postgres"
	"github.com/andreasstove999/littlecarts/internal/store/redisstore"
)

type backend struct {
	store     store.Store
	sequencer events.Sequencer
	close     func()
}

func openBackend(ctx context.Context, cfg config.Config, logger *log.Logger) (backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			return backend{}, fmt.Errorf("db migrate: %w", err)
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return backend{}, fmt.Errorf("db connect: %w", err)
		}
		return backend{
			store:     postgres.New(pool, postgres.PoolListener{Pool: pool}),
			sequencer: sequence.NewRepository(pool),
			close:     pool.Close,
		}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return backend{}, fmt.Errorf("redis connect: %w", err)
		}
		s := redisstore.New(client, cfg.RedisPrefix)
		return backend{
			store:     s,
			sequencer: s,
			close:     func() { _ = client.Close() },
		}, nil

	default:
		logger.Printf("using in-memory store; data is lost on restart")
		s := memory.New()
		return backend{store: s, sequencer: s, close: func() {}}, nil
	}
}

// closingSender closes the broker connection after the sender.
type closingSender struct {
	events.Sender
	closeFn func() error
}

func (c *closingSender) Close() error {
	return errors.Join(c.Sender.Close(), c.closeFn())
}

func openPublisher(cfg config.Config, seq events.Sequencer, logger *log.Logger) (*events.Publisher, error) {
	var sender events.Sender
	switch cfg.EventsBroker {
	case config.BrokerRabbitMQ:
		conn, err := events.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, err
		}
		rs, err := events.NewRabbitSender(conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		sender = &closingSender{Sender: rs, closeFn: conn.Close}
	case config.BrokerKafka:
		sender = events.NewKafkaSender(cfg.KafkaBrokers)
	default:
		sender = events.NewLogSender(logger)
	}
	return events.NewPublisher(sender, seq, events.PublisherOptions{}), nil
}

// newHTTPServer derives request contexts from ctx, so open cart streams end when the process is stopping
// instead of holding Shutdown until its timeout.
func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}
