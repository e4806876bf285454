package cart

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/littlecarts/internal/catalog"
	"github.com/andreasstove999/littlecarts/internal/store"
	"github.com/andreasstove999/littlecarts/internal/store/memory"
)

type fakeProducts map[string]catalog.Product

func (f fakeProducts) Get(_ context.Context, id string) (catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

var testProducts = fakeProducts{
	"p1":  p1,
	"p2":  p2,
	"off": {ID: "off", Name: "Retired", Price: 1, IsActive: false},
}

// faultyStore wraps a store and lets tests intercept reads and commits.
type faultyStore struct {
	store.Store
	getFn    func(ctx context.Context, collection, key string) (store.Document, error)
	commitFn func(ctx context.Context, writes ...store.Write) error
}

func (f *faultyStore) Get(ctx context.Context, collection, key string) (store.Document, error) {
	if f.getFn != nil {
		return f.getFn(ctx, collection, key)
	}
	return f.Store.Get(ctx, collection, key)
}

func (f *faultyStore) Commit(ctx context.Context, writes ...store.Write) error {
	if f.commitFn != nil {
		return f.commitFn(ctx, writes...)
	}
	return f.Store.Commit(ctx, writes...)
}

// barrierStore holds the first n reads until all of them have happened, so n mutations work on the
// same snapshot.
type barrierStore struct {
	store.Store
	n       int32
	calls   atomic.Int32
	arrived sync.WaitGroup
}

func newBarrierStore(s store.Store, n int) *barrierStore {
	b := &barrierStore{Store: s, n: int32(n)}
	b.arrived.Add(n)
	return b
}

func (b *barrierStore) Get(ctx context.Context, collection, key string) (store.Document, error) {
	doc, err := b.Store.Get(ctx, collection, key)
	if b.calls.Add(1) <= b.n {
		b.arrived.Done()
		b.arrived.Wait()
	}
	return doc, err
}

func newTestService(s store.Store, opts Options) *Service {
	return NewService(s, testProducts, opts, log.New(io.Discard, "", 0))
}

func TestServiceGetEmpty(t *testing.T) {
	svc := newTestService(memory.New(), Options{})

	c, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0.0, c.Total)
}

func TestServiceScenarios(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newTestService(s, Options{})

	c, err := svc.Add(ctx, "u1", "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, c.Total)

	c, err = svc.Add(ctx, "u1", "p1", 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, 30000.0, c.Total)

	c, err = svc.SetQuantity(ctx, "u1", "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, c.Total)

	total, err := svc.Total(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10000.0, total)

	c, err = svc.SetQuantity(ctx, "u1", "p1", 0)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0.0, c.Total)

	_, err = s.Get(ctx, Collection, "u1")
	require.ErrorIs(t, err, store.ErrNotFound, "an empty cart is deleted, not stored")
}

func TestServiceRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newTestService(s, Options{})

	_, err := svc.Add(ctx, "u1", "p1", 2)
	require.NoError(t, err)
	_, err = svc.Add(ctx, "u1", "p2", 1)
	require.NoError(t, err)

	count, err := svc.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	c, err := svc.Remove(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 5000.0, c.Total)

	c, err = svc.Remove(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)

	c, err = svc.Clear(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	_, err = s.Get(ctx, Collection, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Clear(ctx, "u1")
	require.NoError(t, err, "clearing a missing cart is a no-op")
}

func TestServiceAddRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    Options
		setup   func(t *testing.T, svc *Service)
		product string
		qty     int
		want    error
	}{
		{name: "zero quantity", product: "p1", qty: 0, want: ErrInvalidQuantity},
		{name: "quantity above maximum", product: "p1", qty: math.MaxInt, want: ErrInvalidQuantity},
		{name: "unknown product", product: "nope", qty: 1, want: catalog.ErrNotFound},
		{name: "inactive product", product: "off", qty: 1, want: ErrProductUnavailable},
		{
			name:    "stock enforced on merged quantity",
			opts:    Options{EnforceStock: true},
			product: "p1",
			qty:     2,
			want:    ErrInsufficientStock,
			setup: func(t *testing.T, svc *Service) {
				_, err := svc.Add(ctx, "u1", "p1", 4)
				require.NoError(t, err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(memory.New(), tt.opts)
			if tt.setup != nil {
				tt.setup(t, svc)
			}
			_, err := svc.Add(ctx, "u1", tt.product, tt.qty)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestServiceOversizedQuantityKeepsCart(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.New(), Options{})

	_, err := svc.Add(ctx, "u1", "p1", 2)
	require.NoError(t, err)

	_, err = svc.Add(ctx, "u1", "p1", math.MaxInt)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.SetQuantity(ctx, "u1", "p1", MaxQuantity+1)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	c, err := svc.Add(ctx, "u1", "p1", 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)

	stored, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Items[0].Quantity)
	assert.Equal(t, 30000.0, stored.Total)
}

func TestServiceStockNotEnforcedByDefault(t *testing.T) {
	svc := newTestService(memory.New(), Options{})

	c, err := svc.Add(context.Background(), "u1", "p1", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, c.Items[0].Quantity)
}

func TestServiceStoreFailurePreservesState(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	_, err := newTestService(mem, Options{}).Add(ctx, "u1", "p1", 1)
	require.NoError(t, err)

	boom := errors.New("boom")
	svc := newTestService(&faultyStore{
		Store:    mem,
		commitFn: func(context.Context, ...store.Write) error { return boom },
	}, Options{})

	_, err = svc.Add(ctx, "u1", "p1", 1)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "save cart")

	c, err := newTestService(mem, Options{}).Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)

	failing := newTestService(&faultyStore{
		Store: mem,
		getFn: func(context.Context, string, string) (store.Document, error) { return store.Document{}, boom },
	}, Options{})
	_, err = failing.Remove(ctx, "u1", "p1")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "load cart")
}

func TestServiceGivesUpAfterMaxRetries(t *testing.T) {
	var commits atomic.Int32
	svc := newTestService(&faultyStore{
		Store: memory.New(),
		commitFn: func(context.Context, ...store.Write) error {
			commits.Add(1)
			return store.ErrConflict
		},
	}, Options{MaxRetries: 3})

	_, err := svc.Add(context.Background(), "u1", "p1", 1)
	require.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, int32(3), commits.Load())
}

func TestServiceConcurrentAddsCAS(t *testing.T) {
	const n = 20
	ctx := context.Background()
	svc := newTestService(memory.New(), Options{Mode: ModeCAS, MaxRetries: n + 1})

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := svc.Add(ctx, "u1", "p1", 1)
			return err
		})
	}
	require.NoError(t, g.Wait())

	c, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, n, c.Items[0].Quantity)
}

func TestServiceRacingAddsOnOneSnapshot(t *testing.T) {
	tests := []struct {
		mode Mode
		want int
	}{
		{ModeCAS, 2},
		// Both writers read the empty cart and the second write overwrites the first.
		{ModeLastWriterWins, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			ctx := context.Background()
			mem := memory.New()
			svc := newTestService(newBarrierStore(mem, 2), Options{Mode: tt.mode})

			var g errgroup.Group
			for i := 0; i < 2; i++ {
				g.Go(func() error {
					_, err := svc.Add(ctx, "u1", "p1", 1)
					return err
				})
			}
			require.NoError(t, g.Wait())

			c, err := newTestService(mem, Options{}).Get(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, c.Items, 1)
			assert.Equal(t, tt.want, c.Items[0].Quantity)
		})
	}
}

func TestServiceWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newTestService(memory.New(), Options{})

	carts, err := svc.Watch(ctx, "u1")
	require.NoError(t, err)

	first := receive(t, carts)
	assert.Empty(t, first.Items)

	_, err = svc.Add(ctx, "u1", "p1", 2)
	require.NoError(t, err)

	for {
		c := receive(t, carts)
		if c.ItemCount == 2 {
			assert.Equal(t, 20000.0, c.Total)
			break
		}
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-carts:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func receive(t *testing.T, carts <-chan Cart) Cart {
	t.Helper()
	select {
	case c, ok := <-carts:
		require.True(t, ok, "watch channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cart")
		return Cart{}
	}
}
