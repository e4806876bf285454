package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/littlecarts/internal/cart"
	"github.com/andreasstove999/littlecarts/internal/catalog"
	"github.com/andreasstove999/littlecarts/internal/events"
	"github.com/andreasstove999/littlecarts/internal/identity"
	"github.com/andreasstove999/littlecarts/internal/order"
	"github.com/andreasstove999/littlecarts/internal/store/memory"
)

type recordingPublisher struct {
	correlationIDs []string
}

func (p *recordingPublisher) PublishCartCheckedOut(ctx context.Context, _ order.Order) error {
	p.correlationIDs = append(p.correlationIDs, events.CorrelationIDFrom(ctx))
	return nil
}

type testAPI struct {
	handler   http.Handler
	catalog   *catalog.Repository
	publisher *recordingPublisher
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	s := memory.New()
	products := catalog.NewRepository(s, logger)
	carts := cart.NewService(s, products, cart.Options{}, logger)
	pub := &recordingPublisher{}
	orders := order.NewService(s, carts, pub, order.DefaultOptions(), logger)

	return &testAPI{
		handler: NewRouter(Deps{
			Logger:  logger,
			Catalog: products,
			Carts:   carts,
			Orders:  orders,
		}),
		catalog:   products,
		publisher: pub,
	}
}

func (a *testAPI) product(t *testing.T, name, price string) catalog.Product {
	t.Helper()
	p, err := a.catalog.Upload(context.Background(), catalog.UploadRequest{Name: name, Price: price, Category: "Snacks", Stock: "10"})
	require.NoError(t, err)
	return p
}

func (a *testAPI) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set(identity.HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	w := newTestAPI(t).do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestCartFlow(t *testing.T) {
	api := newTestAPI(t)
	p1 := api.product(t, "Potato Chips", "10000")
	p2 := api.product(t, "Cola", "5000")

	w := api.do(t, http.MethodPost, "/api/cart/items", "u1", `{"productId":"`+p1.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := decode[cart.Cart](t, w)
	assert.Equal(t, 10000.0, c.Total)

	w = api.do(t, http.MethodPost, "/api/cart/items", "u1", `{"productId":"`+p1.ID+`","quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	c = decode[cart.Cart](t, w)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, 30000.0, c.Total)

	w = api.do(t, http.MethodPut, "/api/cart/items/"+p1.ID, "u1", `{"quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, "/api/cart/items", "u1", `{"productId":"`+p2.ID+`","quantity":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/cart", "u1", "")
	c = decode[cart.Cart](t, w)
	assert.Equal(t, 25000.0, c.Total)
	assert.Equal(t, 3, c.ItemCount)

	w = api.do(t, http.MethodGet, "/api/cart", "u2", "")
	assert.Empty(t, decode[cart.Cart](t, w).Items, "carts are per user")

	w = api.do(t, http.MethodPost, "/api/checkout", "u1", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o := decode[order.Order](t, w)
	assert.Equal(t, 36000.0, o.TotalAmount)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, "/api/orders/"+o.ID, w.Header().Get("Location"))

	w = api.do(t, http.MethodGet, "/api/cart", "u1", "")
	assert.Empty(t, decode[cart.Cart](t, w).Items)

	w = api.do(t, http.MethodGet, "/api/orders/"+o.ID, "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, o.ID, decode[order.Order](t, w).ID)

	w = api.do(t, http.MethodGet, "/api/orders/"+o.ID, "u2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/api/orders?limit=1", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]order.Order](t, w), 1)

	require.Len(t, api.publisher.correlationIDs, 1)
	assert.NotEmpty(t, api.publisher.correlationIDs[0])
}

func TestRemoveAndClear(t *testing.T) {
	api := newTestAPI(t)
	p1 := api.product(t, "Potato Chips", "10000")
	p2 := api.product(t, "Cola", "5000")
	api.do(t, http.MethodPost, "/api/cart/items", "u1", `{"productId":"`+p1.ID+`"}`)
	api.do(t, http.MethodPost, "/api/cart/items", "u1", `{"productId":"`+p2.ID+`"}`)

	w := api.do(t, http.MethodDelete, "/api/cart/items/"+p1.ID, "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5000.0, decode[cart.Cart](t, w).Total)

	w = api.do(t, http.MethodDelete, "/api/cart", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[cart.Cart](t, w).Items)
}

func TestAnonymousUserOwnsACart(t *testing.T) {
	api := newTestAPI(t)
	p1 := api.product(t, "Potato Chips", "10000")

	w := api.do(t, http.MethodPost, "/api/cart/items", "", `{"productId":"`+p1.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, identity.Anonymous, decode[cart.Cart](t, w).UserID)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	p1 := api.product(t, "Potato Chips", "10000")
	off := api.product(t, "Retired", "1")
	_, err := api.catalog.SetActive(context.Background(), off.ID, false)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		field  string
	}{
		{"invalid json", http.MethodPost, "/api/cart/items", `{`, http.StatusBadRequest, ""},
		{"missing product id", http.MethodPost, "/api/cart/items", `{}`, http.StatusBadRequest, "productId"},
		{"zero quantity", http.MethodPost, "/api/cart/items", `{"productId":"` + p1.ID + `","quantity":0}`, http.StatusBadRequest, "quantity"},
		{"unknown product", http.MethodPost, "/api/cart/items", `{"productId":"nope"}`, http.StatusNotFound, ""},
		{"inactive product", http.MethodPost, "/api/cart/items", `{"productId":"` + off.ID + `"}`, http.StatusConflict, ""},
		{"missing quantity", http.MethodPut, "/api/cart/items/" + p1.ID, `{}`, http.StatusBadRequest, ""},
		{"empty checkout", http.MethodPost, "/api/checkout", "", http.StatusConflict, ""},
		{"bad limit", http.MethodGet, "/api/orders?limit=zero", "", http.StatusBadRequest, ""},
		{"missing order", http.MethodGet, "/api/orders/nope", "", http.StatusNotFound, ""},
		{"missing product", http.MethodGet, "/api/products/nope", "", http.StatusNotFound, ""},
		{"upload validation", http.MethodPost, "/api/products", `{"name":"","price":"x"}`, http.StatusBadRequest, "price"},
		{"patch without flag", http.MethodPatch, "/api/products/" + p1.ID, `{}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.method, tt.path, "u1", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			resp := decode[errorResponse](t, w)
			assert.NotEmpty(t, resp.Error)
			if tt.field != "" {
				assert.Contains(t, resp.Fields, tt.field)
			}
		})
	}
}

func TestProducts(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/products", "", `{"name":"Cola","price":5000,"category":"beverages","stock":"12"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cola := decode[catalog.Product](t, w)
	assert.Equal(t, "Beverages", cola.Category)
	assert.Equal(t, 5000.0, cola.Price)
	assert.True(t, cola.IsActive)

	api.product(t, "Potato Chips", "10000")

	w = api.do(t, http.MethodGet, "/api/products?category=Beverages", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]catalog.Product](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, cola.ID, list[0].ID)

	w = api.do(t, http.MethodGet, "/api/products?q=chip", "", "")
	assert.Len(t, decode[[]catalog.Product](t, w), 1)

	w = api.do(t, http.MethodPatch, "/api/products/"+cola.ID, "", `{"isActive":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[catalog.Product](t, w).IsActive)

	w = api.do(t, http.MethodGet, "/api/products/"+cola.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[catalog.Product](t, w).IsActive)
}

func TestCorrelationIDHeader(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(events.HeaderCorrelationID, "corr-1")
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)
	assert.Equal(t, "corr-1", w.Header().Get(events.HeaderCorrelationID))

	w = api.do(t, http.MethodGet, "/health", "", "")
	assert.NotEmpty(t, w.Header().Get(events.HeaderCorrelationID))
}

func TestStreamCart(t *testing.T) {
	api := newTestAPI(t)
	p1 := api.product(t, "Potato Chips", "10000")
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/cart/stream", nil)
	require.NoError(t, err)
	req.Header.Set(identity.HeaderUserID, "u1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	carts := make(chan cart.Cart)
	go func() {
		defer close(carts)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var c cart.Cart
			if json.Unmarshal([]byte(data), &c) == nil {
				select {
				case carts <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	first := <-carts
	assert.Empty(t, first.Items)

	w := api.do(t, http.MethodPost, "/api/cart/items", "u1", `{"productId":"`+p1.ID+`","quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	for c := range carts {
		if c.ItemCount == 2 {
			assert.Equal(t, 20000.0, c.Total)
			return
		}
	}
	t.Fatal("stream ended before the update arrived")
}

func TestCORS(t *testing.T) {
	h := NewRouter(Deps{Logger: log.New(io.Discard, "", 0), CORSAllowOrigins: []string{"https://shop.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
