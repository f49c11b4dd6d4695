package binanceclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

func newTestClient(t *testing.T) (*Client, *mockLogger) {
	t.Helper()
	logger := &mockLogger{}
	c, err := New(Config{Logger: logger})
	require.NoError(t, err)
	return c, logger
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	c, _ := newTestClient(t)
	assert.Equal(t, "USDT", c.quoteAsset)
}

func TestClient_RequiresInitialize(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Ping(ctx), ports.ErrNotConnected)
	_, err := c.AccountInfo(ctx)
	assert.ErrorIs(t, err, ports.ErrNotConnected)
	_, err = c.Bars(ctx, "BTCUSDT", 5*time.Minute, 10)
	assert.ErrorIs(t, err, ports.ErrNotConnected)
	_, err = c.OpenPositions(ctx)
	assert.ErrorIs(t, err, ports.ErrNotConnected)
	assert.NoError(t, c.Shutdown(ctx))
}

func TestInterval(t *testing.T) {
	iv, err := Interval(5 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "5m", iv)

	iv, err = Interval(4 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "4h", iv)

	_, err = Interval(7 * time.Minute)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestClientOrderID(t *testing.T) {
	tag := int64(1<<62 - 1)
	id := clientOrderID(tag, kindEntry, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	assert.LessOrEqual(t, len(id), 36)

	gotTag, kind, ok := parseClientOrderID(id)
	require.True(t, ok)
	assert.Equal(t, tag, gotTag)
	assert.Equal(t, byte(kindEntry), kind)

	for _, foreign := range []string{"", "web_abc123", "lsb-", "lsb-zz", "lsb-!!-e1", "lsb-0-e1"} {
		_, _, ok := parseClientOrderID(foreign)
		assert.False(t, ok, foreign)
	}
}

func TestFillModes(t *testing.T) {
	modes := fillModes([]futures.TimeInForceType{futures.TimeInForceTypeGTC, futures.TimeInForceTypeIOC})
	assert.Equal(t, domain.FillIOC|domain.FillReturn, modes)
	assert.Equal(t, domain.FillMode(0), fillModes(nil))

	assert.Equal(t, futures.TimeInForceTypeIOC, timeInForce(domain.FillIOC))
	assert.Equal(t, futures.TimeInForceTypeFOK, timeInForce(domain.FillFOK))
	assert.Equal(t, futures.TimeInForceTypeGTC, timeInForce(domain.FillReturn))
}

func TestTranslateKline(t *testing.T) {
	bar, err := translateKline(&futures.Kline{
		OpenTime:  1709546700000,
		Open:      "62000.1",
		High:      "62100.5",
		Low:       "61950",
		Close:     "62050.2",
		Volume:    "123.45",
		CloseTime: 1709546999999,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC), bar.Time)
	assert.Equal(t, 62100.5, bar.High)
	assert.Equal(t, 123.45, bar.Volume)

	_, err = translateKline(&futures.Kline{Open: "x"})
	assert.Error(t, err)
	_, err = translateKline(nil)
	assert.Error(t, err)
}

func TestAggregateDeal(t *testing.T) {
	open := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	pos := domain.Position{Ticket: 100, Symbol: "BTCUSDT", OpenTime: open, Volume: 0.3}

	trades := []*futures.AccountTrade{
		{OrderID: 100, Side: futures.SideTypeBuy, Price: "60000", Quantity: "0.3", Time: open.UnixMilli()},
		{OrderID: 99, Side: futures.SideTypeSell, Price: "1", Quantity: "5", Time: open.Add(-time.Hour).UnixMilli()},
		{OrderID: 101, Side: futures.SideTypeSell, Price: "61000", Quantity: "0.1", RealizedPnl: "100", Commission: "0.5", Time: open.Add(time.Hour).UnixMilli()},
		{OrderID: 101, Side: futures.SideTypeSell, Price: "61300", Quantity: "0.2", RealizedPnl: "260", Commission: "1", Time: open.Add(61 * time.Minute).UnixMilli()},
	}

	deal, err := aggregateDeal(trades, pos)
	require.NoError(t, err)
	assert.Equal(t, int64(101), deal.Ticket)
	assert.InDelta(t, 61200, deal.Price, 1e-6)
	assert.InDelta(t, 0.3, deal.Volume, 1e-12)
	assert.InDelta(t, 360, deal.Profit, 1e-9)
	assert.InDelta(t, 1.5, deal.Commission, 1e-9)
	assert.Equal(t, open.Add(61*time.Minute), deal.Time)

	_, err = aggregateDeal(trades[:2], pos)
	assert.ErrorIs(t, err, ports.ErrDealNotFound)
}

func TestHandleError(t *testing.T) {
	c, logger := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"margin insufficient", &common.APIError{Code: -2019, Message: "Margin is insufficient."}, ports.ErrInsufficientFunds},
		{"rate limited", &common.APIError{Code: -1003, Message: "Too many requests"}, ports.ErrRateLimited},
		{"bad signature", &common.APIError{Code: -1022, Message: "Signature invalid"}, ports.ErrAuthenticationFailed},
		{"unmapped code", &common.APIError{Code: -9999, Message: "?"}, ports.ErrUnknown},
		{"deadline", context.DeadlineExceeded, ports.ErrTimeout},
		{"reset", errors.New("read tcp: connection reset by peer"), ports.ErrConnectionFailed},
		{"already classified", ports.ErrDealNotFound, ports.ErrDealNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.handleError(ctx, tt.err, "Op")
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.Len(t, logger.errorMsgs, len(tests))
	assert.NoError(t, c.handleError(ctx, nil, "Op"))
}

func TestRejection(t *testing.T) {
	c, _ := newTestClient(t)

	res, err := c.rejection(context.Background(), &common.APIError{Code: -2019, Message: "Margin is insufficient."}, "SendOrder")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, -2019, res.Code)

	res, err = c.rejection(context.Background(), errors.New("connection refused"), "SendOrder")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ports.ErrConnectionFailed)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "0.123", formatQuantity(0.12345, 0.001))
	assert.Equal(t, "2", formatQuantity(2.9, 1))
	assert.Equal(t, "0.3", formatQuantity(0.30000000000000004, 0.1))
	assert.Equal(t, "62000.10", formatPrice(62000.1, 2))
	assert.Equal(t, int32(3), stepPlaces(0.001))
	assert.Equal(t, int32(0), stepPlaces(1))
}

func TestAttributePosition(t *testing.T) {
	tagA, tagB := int64(111111), int64(222222)
	entry := func(id, at int64, tag int64, qty, price string) *futures.Order {
		return &futures.Order{
			OrderID:          id,
			Side:             futures.SideTypeBuy,
			Status:           futures.OrderStatusTypeFilled,
			ClientOrderID:    clientOrderID(tag, kindEntry, at),
			ExecutedQuantity: qty,
			AvgPrice:         price,
			UpdateTime:       at,
		}
	}
	sell := func(id, at int64, tag int64, kind byte, qty string) *futures.Order {
		return &futures.Order{
			OrderID:          id,
			Side:             futures.SideTypeSell,
			Status:           futures.OrderStatusTypeFilled,
			ClientOrderID:    clientOrderID(tag, kind, at),
			ExecutedQuantity: qty,
			UpdateTime:       at,
		}
	}
	net := domain.BrokerPosition{Symbol: "BTCUSDT", Volume: 0.02, EntryPrice: 62050}

	tests := []struct {
		name    string
		net     domain.BrokerPosition
		orders  []*futures.Order
		tickets []int64
		tags    []int64
		volumes []float64
	}{
		{
			name: "two tags share the net position",
			net:  net,
			orders: []*futures.Order{
				entry(200, 1709546800000, tagB, "0.01", "62100"),
				entry(100, 1709546700000, tagA, "0.01", "62000"),
			},
			tickets: []int64{100, 200},
			tags:    []int64{tagA, tagB},
			volumes: []float64{0.01, 0.01},
		},
		{
			name: "stop leg flattened the earlier owner",
			net:  domain.BrokerPosition{Symbol: "BTCUSDT", Volume: 0.01, EntryPrice: 62100},
			orders: []*futures.Order{
				entry(100, 1709546700000, tagA, "0.02", "62000"),
				sell(101, 1709546750000, tagA, kindStop, "0.02"),
				entry(200, 1709546800000, tagB, "0.01", "62100"),
			},
			tickets: []int64{200},
			tags:    []int64{tagB},
			volumes: []float64{0.01},
		},
		{
			name: "reduce-only exit shrinks its own tag",
			net:  net,
			orders: []*futures.Order{
				entry(100, 1709546700000, tagA, "0.015", "62000"),
				sell(101, 1709546710000, tagA, kindExit, "0.005"),
				entry(200, 1709546800000, tagB, "0.01", "62100"),
			},
			tickets: []int64{100, 200},
			tags:    []int64{tagA, tagB},
			volumes: []float64{0.01, 0.01},
		},
		{
			name: "manual quantity reported untagged",
			net:  domain.BrokerPosition{Symbol: "BTCUSDT", Volume: 0.03, EntryPrice: 62050},
			orders: []*futures.Order{
				entry(100, 1709546700000, tagA, "0.01", "62000"),
				{OrderID: 300, Side: futures.SideTypeBuy, ClientOrderID: "web_abc", ExecutedQuantity: "0.02", UpdateTime: 1709546900000},
			},
			tickets: []int64{100, 0},
			tags:    []int64{tagA, 0},
			volumes: []float64{0.01, 0.02},
		},
		{
			name:    "no bot orders",
			net:     net,
			tickets: []int64{0},
			tags:    []int64{0},
			volumes: []float64{0.02},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := attributePosition(tt.net, tt.orders)
			require.Len(t, got, len(tt.tickets))
			for i, p := range got {
				assert.Equal(t, tt.tickets[i], p.Ticket)
				assert.Equal(t, tt.tags[i], p.Tag)
				assert.InDelta(t, tt.volumes[i], p.Volume, 1e-9)
				assert.Equal(t, "BTCUSDT", p.Symbol)
			}
		})
	}
}

func TestAttachProtection(t *testing.T) {
	tagA, tagB := int64(111111), int64(222222)
	positions := []domain.BrokerPosition{{Ticket: 100, Tag: tagA}, {Ticket: 200, Tag: tagB}, {Ticket: 0}}
	open := []*futures.Order{
		{ClientOrderID: clientOrderID(tagA, kindStop, 1), StopPrice: "61500"},
		{ClientOrderID: clientOrderID(tagA, kindTake, 1), StopPrice: "63000"},
		{ClientOrderID: clientOrderID(tagB, kindStop, 2), StopPrice: "61800"},
		{ClientOrderID: "web_manual", StopPrice: "60000"},
	}

	attachProtection(positions, open)

	assert.Equal(t, 61500.0, positions[0].StopLoss)
	assert.Equal(t, 63000.0, positions[0].TakeProfit)
	assert.Equal(t, 61800.0, positions[1].StopLoss)
	assert.Zero(t, positions[1].TakeProfit)
	assert.Zero(t, positions[2].StopLoss)
}
