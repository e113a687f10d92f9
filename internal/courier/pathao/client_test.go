package pathao

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorseWayne/retail_admin/internal/cache"
	"github.com/MorseWayne/retail_admin/internal/domain"
)

type fakePathao struct {
	tokenCalls  atomic.Int32
	orderCalls  atomic.Int32
	tokenStatus int
	expiresIn   int64
	orderStatus int

	mu        sync.Mutex
	lastOrder map[string]any
	lastAuth  string
}

func (f *fakePathao) last() (map[string]any, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOrder, f.lastAuth
}

func newFakePathao(t *testing.T) (*fakePathao, *httptest.Server) {
	t.Helper()
	f := &fakePathao{tokenStatus: http.StatusOK, expiresIn: 3600, orderStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/aladdin/api/v1/issue-token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["grant_type"] != "password" {
			http.Error(w, `{"message":"bad grant"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(f.tokenStatus)
		if f.tokenStatus == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"token_type":   "Bearer",
				"expires_in":   f.expiresIn,
				"access_token": "tok-1",
			})
			return
		}
		_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
	})
	mux.HandleFunc("/aladdin/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		f.orderCalls.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastOrder, f.lastAuth = body, r.Header.Get("Authorization")
		f.mu.Unlock()
		w.WriteHeader(f.orderStatus)
		if f.orderStatus != http.StatusOK {
			_, _ = w.Write([]byte(`{"message":"store not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"Order Created Successfully","type":"success","code":200,
			"data":{"consignment_id":"DL121224VS8TTJ","merchant_order_id":"ORD-0001","order_status":"Pending","delivery_fee":60}}`))
	})
	mux.HandleFunc("/aladdin/api/v1/orders/DL121224VS8TTJ/info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Order info","type":"success","code":200,
			"data":{"consignment_id":"DL121224VS8TTJ","merchant_order_id":"ORD-0001","order_status":"Delivered",
			"order_status_slug":"Delivered","updated_at":"2024-11-20 15:46:02"}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func testCreds(baseURL string) Credentials {
	return Credentials{
		Brand:        "Go Baby",
		BaseURL:      baseURL,
		ClientID:     "id",
		ClientSecret: "secret",
		Username:     "ops@gobaby.test",
		Password:     "pw",
		StoreID:      77,
	}
}

func testShipment() Shipment {
	return Shipment{
		OrderNumber:    "ORD-0001",
		RecipientName:  "Rahim",
		RecipientPhone: "01700000000",
		Address:        domain.StructuredAddress("12 Lake Rd", "Dhaka", "", ""),
		Items:          []ShipmentItem{{Title: "Baby Lotion", Quantity: 2}, {Title: "Diaper", Quantity: 1}},
		TotalAmount:    decimal.NewFromInt(220),
		DueAmount:      decimal.NewFromInt(70),
	}
}

func TestAccessToken_CachedUntilSafetyMargin(t *testing.T) {
	f, srv := newFakePathao(t)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewClient(testCreds(srv.URL), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	tok, err := c.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// 3600s 有效期扣除 300s 余量后，3299s 内复用
	now = now.Add(3299 * time.Second)
	_, err = c.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.tokenCalls.Load())

	now = now.Add(time.Second)
	_, err = c.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.tokenCalls.Load())
}

func TestAccessToken_SharedThroughCacheStore(t *testing.T) {
	f, srv := newFakePathao(t)
	store := NewCacheTokenStore(cache.NewMemoryCache())

	a := NewClient(testCreds(srv.URL), WithTokenStore(store))
	b := NewClient(testCreds(srv.URL), WithTokenStore(store))

	_, err := a.AccessToken(context.Background())
	require.NoError(t, err)
	_, err = b.AccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestAccessToken_AuthenticationError(t *testing.T) {
	f, srv := newFakePathao(t)
	f.tokenStatus = http.StatusUnauthorized
	c := NewClient(testCreds(srv.URL))

	_, err := c.AccessToken(context.Background())

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Contains(t, authErr.Body, "invalid credentials")
}

func TestCreateOrder_Payload(t *testing.T) {
	f, srv := newFakePathao(t)
	c := NewClient(testCreds(srv.URL))

	res, err := c.CreateOrder(context.Background(), testShipment())
	require.NoError(t, err)
	assert.Equal(t, "DL121224VS8TTJ", res.ConsignmentID)
	assert.Equal(t, "Pending", res.OrderStatus)

	sent, auth := f.last()
	assert.Equal(t, "Bearer tok-1", auth)
	assert.EqualValues(t, 77, sent["store_id"])
	assert.Equal(t, "12 Lake Rd, Dhaka", sent["recipient_address"])
	assert.EqualValues(t, 3, sent["item_quantity"])
	assert.EqualValues(t, 0.5, sent["item_weight"])
	assert.EqualValues(t, 220, sent["amount_to_collect"])
	assert.EqualValues(t, 48, sent["delivery_type"])
	assert.EqualValues(t, 2, sent["item_type"])
	assert.Equal(t, "Baby Lotion × 2, Diaper × 1", sent["item_description"])
}

func TestCreateOrder_ShortAddressRejectedBeforeNetwork(t *testing.T) {
	f, srv := newFakePathao(t)
	c := NewClient(testCreds(srv.URL))

	s := testShipment()
	s.Address = domain.TextAddress("  Dhaka  ")
	_, err := c.CreateOrder(context.Background(), s)

	_, ok := domain.AsValidation(err)
	assert.True(t, ok, "expected validation error, got %v", err)
	assert.Zero(t, f.tokenCalls.Load())
	assert.Zero(t, f.orderCalls.Load())
}

func TestCreateOrder_MissingStoreID(t *testing.T) {
	f, srv := newFakePathao(t)
	creds := testCreds(srv.URL)
	creds.StoreID = 0
	c := NewClient(creds)

	_, err := c.CreateOrder(context.Background(), testShipment())

	_, ok := domain.AsValidation(err)
	assert.True(t, ok)
	assert.Zero(t, f.tokenCalls.Load())
}

func TestCreateOrder_UpstreamErrorNoRetry(t *testing.T) {
	f, srv := newFakePathao(t)
	f.orderStatus = http.StatusUnprocessableEntity
	c := NewClient(testCreds(srv.URL))

	_, err := c.CreateOrder(context.Background(), testShipment())

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusUnprocessableEntity, upErr.Status)
	assert.Contains(t, upErr.Body, "store not found")
	assert.Equal(t, int32(1), f.orderCalls.Load())
}

func TestOrderStatus(t *testing.T) {
	_, srv := newFakePathao(t)
	c := NewClient(testCreds(srv.URL))

	info, err := c.OrderStatus(context.Background(), "DL121224VS8TTJ")
	require.NoError(t, err)
	assert.Equal(t, "Delivered", info.OrderStatus)
	assert.Equal(t, "2024-11-20 15:46:02", info.UpdatedAt)
}

func TestBuildCreateOrderRequest(t *testing.T) {
	t.Run("nothing due collects zero", func(t *testing.T) {
		s := testShipment()
		s.DueAmount = decimal.Zero
		req, err := BuildCreateOrderRequest(1, s)
		require.NoError(t, err)
		assert.True(t, req.AmountToCollect.IsZero())
	})

	t.Run("empty items still ship one unit", func(t *testing.T) {
		s := testShipment()
		s.Items = nil
		req, err := BuildCreateOrderRequest(1, s)
		require.NoError(t, err)
		assert.Equal(t, 1, req.ItemQuantity)
		assert.Equal(t, "", req.ItemDescription)
	})

	t.Run("plain text address passes through", func(t *testing.T) {
		s := testShipment()
		s.Address = domain.TextAddress("House 5, Road 3, Dhanmondi")
		req, err := BuildCreateOrderRequest(1, s)
		require.NoError(t, err)
		assert.Equal(t, "House 5, Road 3, Dhanmondi", req.RecipientAddress)
	})

	t.Run("description truncated to 200 characters", func(t *testing.T) {
		s := testShipment()
		s.Items = nil
		for i := 0; i < 40; i++ {
			s.Items = append(s.Items, ShipmentItem{Title: "Feeding Bottle", Quantity: 1})
		}
		req, err := BuildCreateOrderRequest(1, s)
		require.NoError(t, err)
		assert.Equal(t, 200, len([]rune(req.ItemDescription)))
		assert.True(t, strings.HasPrefix(req.ItemDescription, "Feeding Bottle × 1, "))
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry([]Credentials{
		{Brand: "Go Baby", ClientID: "a", BaseURL: "http://x"},
		{Brand: "DCC Bazar"},
	})

	c, err := r.Client("Go Baby")
	require.NoError(t, err)
	assert.Equal(t, "Go Baby", c.Brand())

	_, err = r.Client("DCC Bazar")
	_, ok := domain.AsValidation(err)
	assert.True(t, ok)
	assert.Equal(t, []string{"Go Baby"}, r.Brands())
}
