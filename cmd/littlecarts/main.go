package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/littlecarts/internal/cart"
	"github.com/andreasstove999/littlecarts/internal/catalog"
	"github.com/andreasstove999/littlecarts/internal/config"
	"github.com/andreasstove999/littlecarts/internal/httpapi"
	"github.com/andreasstove999/littlecarts/internal/identity"
	"github.com/andreasstove999/littlecarts/internal/order"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[littlecarts] ", log.LstdFlags|log.Lmicroseconds)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- store ---
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	defer backend.close()

	// --- events ---
	publisher, err := openPublisher(cfg, backend.sequencer, logger)
	if err != nil {
		logger.Fatalf("events: %v", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Printf("close publisher: %v", err)
		}
	}()

	// --- services ---
	products := catalog.NewRepository(backend.store, logger)
	carts := cart.NewService(backend.store, products, cart.Options{
		Mode:         cart.Mode(cfg.CartConcurrency),
		MaxRetries:   cfg.CartMaxRetries,
		EnforceStock: cfg.EnforceStock,
	}, logger)
	orders := order.NewService(backend.store, carts, publisher, order.Options{
		DeliveryFee:     cfg.DeliveryFee,
		Tax:             cfg.Tax,
		ShippingAddress: cfg.ShippingAddress,
		HistoryLimit:    cfg.OrderHistoryLimit,
	}, logger)

	// --- HTTP ---
	httpServer := newHTTPServer(ctx, ":"+cfg.Port, httpapi.NewRouter(httpapi.Deps{
		Logger:         logger,
		Catalog:        products,
		Carts:          carts,
		Orders:         orders,
		Identity:       identity.ContextProvider{},
		RequestTimeout: cfg.RequestTimeout,

		CORSAllowOrigins: cfg.CORSAllowOrigins,
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("http listening on %s (store=%s, events=%s)", httpServer.Addr, cfg.StoreBackend, cfg.EventsBroker)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("server error: %v", err)
	}
	logger.Printf("shutdown complete")
}
