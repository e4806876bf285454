package cart

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/andreasstove999/littlecarts/internal/catalog"
	"github.com/andreasstove999/littlecarts/internal/store"
)

// Mode selects how concurrent mutations of one cart are reconciled.
type Mode string

const (
	// ModeCAS writes conditionally on the version that was read and re-runs the mutation on conflict.
	ModeCAS Mode = "cas"
	// ModeLastWriterWins writes unconditionally. Concurrent mutations may overwrite each other.
	ModeLastWriterWins Mode = "last-writer-wins"
)

const DefaultMaxRetries = 10

type ProductLookup interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

type Options struct {
	Mode       Mode
	MaxRetries int
	// EnforceStock rejects adds that would put more units in the cart than the product has in stock.
	EnforceStock bool
}

type Service struct {
	store    store.Store
	products ProductLookup
	opts     Options
	logger   *log.Logger
}

func NewService(s store.Store, products ProductLookup, opts Options, logger *log.Logger) *Service {
	if opts.Mode == "" {
		opts.Mode = ModeCAS
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Service{store: s, products: products, opts: opts, logger: logger}
}

// Get returns the user's cart. A user without a cart document gets an empty cart.
func (s *Service) Get(ctx context.Context, userID string) (Cart, error) {
	doc, err := s.store.Get(ctx, Collection, userID)
	if errors.Is(err, store.ErrNotFound) {
		return newCart(userID, nil, 0), nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	return s.decode(doc), nil
}

func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) (Cart, error) {
	if quantity < 1 || quantity > MaxQuantity {
		return Cart{}, ErrInvalidQuantity
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	if !product.IsActive {
		return Cart{}, ErrProductUnavailable
	}

	return s.mutate(ctx, userID, func(items []LineItem) ([]LineItem, error) {
		next, err := ApplyAdd(items, product, quantity)
		if err != nil {
			return nil, err
		}
		if s.opts.EnforceStock {
			for _, it := range next {
				if it.ProductID == product.ID && it.Quantity > product.Stock {
					return nil, fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, it.Quantity, product.Stock)
				}
			}
		}
		return next, nil
	})
}

func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) (Cart, error) {
	return s.mutate(ctx, userID, func(items []LineItem) ([]LineItem, error) {
		return ApplySetQuantity(items, productID, quantity)
	})
}

func (s *Service) Remove(ctx context.Context, userID, productID string) (Cart, error) {
	return s.mutate(ctx, userID, func(items []LineItem) ([]LineItem, error) {
		return ApplyRemove(items, productID), nil
	})
}

// Clear empties the cart, which deletes its document.
func (s *Service) Clear(ctx context.Context, userID string) (Cart, error) {
	return s.mutate(ctx, userID, func([]LineItem) ([]LineItem, error) {
		return ApplyClear(), nil
	})
}

func (s *Service) Total(ctx context.Context, userID string) (float64, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return c.Total, nil
}

func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return c.ItemCount, nil
}

// Watch streams the user's cart, starting with its current state. The channel is closed when ctx ends.
// Snapshots that fail to load are logged and skipped.
func (s *Service) Watch(ctx context.Context, userID string) (<-chan Cart, error) {
	snaps, err := s.store.Subscribe(ctx, Collection, userID)
	if err != nil {
		return nil, fmt.Errorf("watch cart: %w", err)
	}

	out := make(chan Cart, 1)
	go func() {
		defer close(out)
		for snap := range snaps {
			if snap.Err != nil {
				s.logger.Printf("watch cart %s: %v", userID, snap.Err)
				continue
			}
			c := newCart(userID, nil, 0)
			if snap.Exists {
				c = s.decode(snap.Document)
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// mutate runs one read-modify-write cycle. In CAS mode a version conflict re-runs the cycle until
// MaxRetries attempts have been made. The returned cart carries no version.
func (s *Service) mutate(ctx context.Context, userID string, apply func([]LineItem) ([]LineItem, error)) (Cart, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.Get(ctx, userID)
		if err != nil {
			return Cart{}, err
		}

		items, err := apply(current.Items)
		if err != nil {
			return Cart{}, err
		}

		err = s.save(ctx, userID, current.Version, items)
		if err == nil {
			return newCart(userID, items, 0), nil
		}
		if !errors.Is(err, store.ErrConflict) || s.opts.Mode != ModeCAS {
			return Cart{}, fmt.Errorf("save cart: %w", err)
		}
		if attempt >= s.opts.MaxRetries {
			return Cart{}, fmt.Errorf("save cart: gave up after %d attempts: %w", attempt, err)
		}
		s.logger.Printf("cart %s changed concurrently, retrying (attempt %d)", userID, attempt)
	}
}

func (s *Service) save(ctx context.Context, userID string, version int64, items []LineItem) error {
	if s.opts.Mode == ModeLastWriterWins {
		if len(items) == 0 {
			return s.store.Delete(ctx, Collection, userID)
		}
		return s.store.Set(ctx, Collection, userID, Encode(userID, items))
	}

	if len(items) == 0 {
		if version == 0 {
			return nil
		}
		return s.store.Commit(ctx, store.RemoveIf(Collection, userID, version))
	}
	return s.store.Commit(ctx, store.PutIf(Collection, userID, Encode(userID, items), version))
}

func (s *Service) decode(doc store.Document) Cart {
	c, issues := Decode(doc)
	for _, issue := range issues {
		s.logger.Printf("cart %s: coerced %s", doc.Key, issue)
	}
	return c
}
