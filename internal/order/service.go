package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/andreasstove999/littlecarts/internal/cart"
	"github.com/andreasstove999/littlecarts/internal/store"
)

const (
	DefaultDeliveryFee  = 10000
	DefaultTax          = 1000
	DefaultHistoryLimit = 5
	defaultMaxRetries   = 10
)

// Publisher announces completed checkouts to other systems.
type Publisher interface {
	PublishCartCheckedOut(ctx context.Context, o Order) error
}

type CartReader interface {
	Get(ctx context.Context, userID string) (cart.Cart, error)
}

type Options struct {
	DeliveryFee     float64
	Tax             float64
	ShippingAddress string
	HistoryLimit    int
	MaxRetries      int
}

func DefaultOptions() Options {
	return Options{
		DeliveryFee:     DefaultDeliveryFee,
		Tax:             DefaultTax,
		ShippingAddress: DefaultShippingAddress,
		HistoryLimit:    DefaultHistoryLimit,
		MaxRetries:      defaultMaxRetries,
	}
}

type Service struct {
	store     store.Store
	carts     CartReader
	publisher Publisher
	opts      Options
	logger    *log.Logger
}

// NewService builds the checkout service. publisher may be nil.
func NewService(s store.Store, carts CartReader, publisher Publisher, opts Options, logger *log.Logger) *Service {
	if opts.ShippingAddress == "" {
		opts.ShippingAddress = DefaultShippingAddress
	}
	if opts.HistoryLimit < 1 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = defaultMaxRetries
	}
	return &Service{store: s, carts: carts, publisher: publisher, opts: opts, logger: logger}
}

// Checkout creates the order and deletes the cart in one atomic commit. The commit only succeeds if the
// cart is unchanged since it was read; otherwise the checkout starts over from the current cart.
func (s *Service) Checkout(ctx context.Context, userID string) (Order, error) {
	var o Order
	for attempt := 1; ; attempt++ {
		c, err := s.carts.Get(ctx, userID)
		if err != nil {
			return Order{}, err
		}
		if c.Empty() {
			return Order{}, ErrEmptyCart
		}

		o = FinalizeOrder(c, s.opts.DeliveryFee, s.opts.Tax)
		o.ShippingAddress = s.opts.ShippingAddress

		err = s.store.Commit(ctx,
			store.PutIf(Collection, o.ID, Encode(o), 0),
			store.RemoveIf(cart.Collection, userID, c.Version),
		)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return Order{}, fmt.Errorf("commit order: %w", err)
		}
		if attempt >= s.opts.MaxRetries {
			return Order{}, fmt.Errorf("commit order: gave up after %d attempts: %w", attempt, err)
		}
		s.logger.Printf("cart %s changed during checkout, retrying (attempt %d)", userID, attempt)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishCartCheckedOut(ctx, o); err != nil {
			s.logger.Printf("order %s created but CartCheckedOut was not published: %v", o.ID, err)
		}
	}
	return o, nil
}

// Get returns an order owned by userID.
func (s *Service) Get(ctx context.Context, userID, orderID string) (Order, error) {
	doc, err := s.store.Get(ctx, Collection, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("load order: %w", err)
	}

	o := s.decode(doc)
	if o.UserID != userID {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// History returns the user's most recent orders, newest first. A limit below one uses the configured default.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Order, error) {
	if limit < 1 {
		limit = s.opts.HistoryLimit
	}

	docs, err := s.store.List(ctx, Collection, store.Match{Field: "userId", Value: userID})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, s.decode(doc))
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Service) decode(doc store.Document) Order {
	o, issues := Decode(doc)
	for _, issue := range issues {
		s.logger.Printf("order %s: coerced %s", doc.Key, issue)
	}
	return o
}
