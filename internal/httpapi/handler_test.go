package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fyongquan/new-top-binfa/internal/coupon"
	"github.com/Fyongquan/new-top-binfa/internal/gate"
	"github.com/Fyongquan/new-top-binfa/internal/id"
	"github.com/Fyongquan/new-top-binfa/internal/mq"
	"github.com/Fyongquan/new-top-binfa/internal/order"
	"github.com/Fyongquan/new-top-binfa/internal/seckill"
)

type nopProducer struct{}

func (nopProducer) PublishOrder(ctx context.Context, msg mq.OrderMessage) error { return nil }
func (nopProducer) PublishRetry(ctx context.Context, msg mq.OrderMessage, delay time.Duration) error {
	return nil
}
func (nopProducer) PublishDead(ctx context.Context, msg mq.OrderMessage) error { return nil }

type stubCoupons struct {
	coupon.Repository
	coupon   *coupon.Coupon
	inserted []coupon.Coupon
}

func (s *stubCoupons) GetByID(ctx context.Context, id int64) (*coupon.Coupon, error) {
	return s.coupon, nil
}

func (s *stubCoupons) Insert(ctx context.Context, c *coupon.Coupon) error {
	s.inserted = append(s.inserted, *c)
	return nil
}

type env struct {
	gate    *gate.MemoryStore
	orders  *order.MemoryStore
	handler http.Handler
}

func newEnv(t *testing.T, coupons coupon.Repository) *env {
	t.Helper()

	g := gate.NewMemoryStore()
	orders := order.NewMemoryStore()
	gen, err := id.NewGenerator(1)
	require.NoError(t, err)

	svc := seckill.NewService(g, nopProducer{}, gen, 5*time.Minute, zerolog.Nop())
	h := NewHandler(svc, coupons, orders, 1, zerolog.Nop())
	return &env{gate: g, orders: orders, handler: NewRouter(h)}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func TestPurchaseSuccess(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, e.gate.InitStock(context.Background(), 3, 5))

	rr := e.do(t, http.MethodPost, "/api/seckill", `{"userId":7,"voucherId":3}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp purchaseResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, int(seckill.OutcomeSuccess), resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.Positive(t, resp.OrderID)
}

func TestPurchaseStockExhausted(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, e.gate.InitStock(context.Background(), 3, 0))

	rr := e.do(t, http.MethodPost, "/api/seckill", `{"userId":7,"voucherId":3}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp purchaseResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, int(seckill.OutcomeStockExhausted), resp.Code)
	assert.Zero(t, resp.OrderID)
}

func TestPurchaseLimitExceeded(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, e.gate.InitStock(context.Background(), 3, 5))

	first := e.do(t, http.MethodPost, "/api/seckill", `{"userId":7,"voucherId":3}`)
	require.Equal(t, http.StatusOK, first.Code)

	second := e.do(t, http.MethodPost, "/api/seckill", `{"userId":7,"voucherId":3}`)
	require.Equal(t, http.StatusOK, second.Code)

	var resp purchaseResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&resp))
	assert.Equal(t, int(seckill.OutcomeLimitExceeded), resp.Code)
}

func TestPurchaseBadRequest(t *testing.T) {
	e := newEnv(t, nil)

	rr := e.do(t, http.MethodPost, "/api/seckill", `{"userId":0}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/seckill", `not json`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPurchaseCouponNotFound(t *testing.T) {
	e := newEnv(t, &stubCoupons{})

	rr := e.do(t, http.MethodPost, "/api/seckill", `{"userId":7,"voucherId":3}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPurchaseOutsideSaleWindow(t *testing.T) {
	coupons := &stubCoupons{coupon: &coupon.Coupon{
		ID:        3,
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	}}
	e := newEnv(t, coupons)

	rr := e.do(t, http.MethodPost, "/api/seckill", `{"userId":7,"voucherId":3}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestOrderStatusFromMarker(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, e.gate.SetOrderStatus(ctx, 100, gate.StatusSuccess, time.Minute))

	rr := e.do(t, http.MethodGet, "/api/seckill/status/100", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp statusResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, gate.StatusSuccess, resp.Status)
	assert.Equal(t, "success", resp.Message)
}

func TestOrderStatusFallsBackToStore(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	created, err := e.orders.CreateIfAbsent(ctx, &order.Order{ID: 100, UserID: 7, VoucherID: 3})
	require.NoError(t, err)
	_, err = e.orders.Transition(ctx, created.ID, order.StatusProcessing, order.StatusFailed)
	require.NoError(t, err)

	rr := e.do(t, http.MethodGet, "/api/seckill/status/100", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp statusResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, gate.StatusFailed, resp.Status)
}

func TestOrderStatusNotFound(t *testing.T) {
	e := newEnv(t, nil)

	rr := e.do(t, http.MethodGet, "/api/seckill/status/999", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestInitActivity(t *testing.T) {
	coupons := &stubCoupons{}
	e := newEnv(t, coupons)

	rr := e.do(t, http.MethodPost, "/api/seckill/init",
		`{"voucherId":3,"name":"launch","stock":100,"startTime":"2024-06-01T00:00:00Z","endTime":"2024-06-01T23:59:59Z"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	require.Len(t, coupons.inserted, 1)
	assert.Equal(t, 100, coupons.inserted[0].TotalStock)

	stock, err := e.gate.Stock(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 100, stock)
}

func TestStockAndBought(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, e.gate.InitStock(ctx, 3, 5))
	_, err := e.gate.TryAdmit(ctx, 3, 7, 1)
	require.NoError(t, err)

	rr := e.do(t, http.MethodGet, "/api/seckill/stock/3", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var stockResp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&stockResp))
	assert.EqualValues(t, 4, stockResp["stock"])

	rr = e.do(t, http.MethodGet, "/api/seckill/bought?voucherId=3&userId=7", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var boughtResp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&boughtResp))
	assert.EqualValues(t, 1, boughtResp["count"])
}

func TestGetOrderAndList(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := e.orders.CreateIfAbsent(ctx, &order.Order{ID: 100, UserID: 7, VoucherID: 3})
	require.NoError(t, err)

	rr := e.do(t, http.MethodGet, "/api/orders/100", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var stored order.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&stored))
	assert.Equal(t, int64(7), stored.UserID)

	rr = e.do(t, http.MethodGet, "/api/orders/999", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/users/7/orders", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var list []order.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list, 1)
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil)

	rr := e.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
}
