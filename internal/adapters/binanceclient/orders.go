package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const (
	codeUnfilled          = -1 // Entry expired without a fill
	codeProtectionFailed  = -2 // Stop or target could not be placed
	recentOrdersLookback  = 100
	dealQuantityTolerance = 1e-9
)

// OpenPositions lists non-zero positions. USDⓈ-M one-way mode nets a symbol into a single
// position, so the quantity is split back per tag by replaying this bot's recent fills; any
// remainder is reported untagged. SL/TP come from each tag's open protective orders.
func (c *Client) OpenPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	op := "OpenPositions"
	client, err := c.api()
	if err != nil {
		return nil, err
	}
	risks, err := client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	var out []domain.BrokerPosition
	for _, r := range risks {
		amt, err := parseFloat(r.PositionAmt, "position amount")
		if err != nil || amt == 0 {
			continue
		}
		entry, _ := parseFloat(r.EntryPrice, "entry price")
		net := domain.BrokerPosition{
			Symbol:     r.Symbol,
			Volume:     math.Abs(amt),
			EntryPrice: entry,
		}
		if amt < 0 {
			out = append(out, net)
			continue
		}

		orders, err := client.NewListOrdersService().Symbol(r.Symbol).Limit(recentOrdersLookback).Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		positions := attributePosition(net, orders)
		if hasTagged(positions) {
			open, err := client.NewListOpenOrdersService().Symbol(r.Symbol).Do(ctx)
			if err != nil {
				return nil, c.handleError(ctx, err, op)
			}
			attachProtection(positions, open)
		}
		out = append(out, positions...)
	}
	return out, nil
}

type lot struct {
	tag      int64
	ticket   int64
	price    float64
	qty      decimal.Decimal
	openTime time.Time
}

// attributePosition splits a long net position between the tags whose entries built it.
// Entries add to their tag, reduce-only exits subtract from it and a closePosition stop or
// target flattens every tag. Lots are filled oldest first up to the net volume.
func attributePosition(net domain.BrokerPosition, orders []*futures.Order) []domain.BrokerPosition {
	ordered := append([]*futures.Order(nil), orders...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].UpdateTime < ordered[j].UpdateTime
	})

	var lots []*lot
	find := func(tag int64) *lot {
		for _, l := range lots {
			if l.tag == tag {
				return l
			}
		}
		return nil
	}
	for _, o := range ordered {
		tag, kind, ok := parseClientOrderID(o.ClientOrderID)
		if !ok {
			continue
		}
		executed, err := decimal.NewFromString(o.ExecutedQuantity)
		if err != nil || !executed.IsPositive() {
			continue
		}
		switch {
		case o.Side == futures.SideTypeBuy && kind == kindEntry:
			l := find(tag)
			if l == nil {
				avg, _ := parseFloat(o.AvgPrice, "average price")
				l = &lot{tag: tag, ticket: o.OrderID, price: avg, openTime: unixMilli(o.UpdateTime)}
				lots = append(lots, l)
			}
			l.qty = l.qty.Add(executed)
		case o.Side == futures.SideTypeSell && (kind == kindStop || kind == kindTake):
			lots = nil
		case o.Side == futures.SideTypeSell && kind == kindExit:
			if l := find(tag); l != nil {
				l.qty = l.qty.Sub(executed)
			}
		}
	}

	remaining := decimal.NewFromFloat(net.Volume)
	tolerance := decimal.NewFromFloat(dealQuantityTolerance)
	var out []domain.BrokerPosition
	for _, l := range lots {
		if !l.qty.GreaterThan(tolerance) || !remaining.GreaterThan(tolerance) {
			continue
		}
		qty := decimal.Min(l.qty, remaining)
		remaining = remaining.Sub(qty)
		volume, _ := qty.Float64()
		price := l.price
		if price <= 0 {
			price = net.EntryPrice
		}
		out = append(out, domain.BrokerPosition{
			Ticket:     l.ticket,
			Symbol:     net.Symbol,
			Tag:        l.tag,
			Volume:     volume,
			EntryPrice: price,
			OpenTime:   l.openTime,
		})
	}
	if remaining.GreaterThan(tolerance) {
		rest := net
		rest.Volume, _ = remaining.Float64()
		out = append(out, rest)
	}
	return out
}

func hasTagged(positions []domain.BrokerPosition) bool {
	for _, p := range positions {
		if p.Tag != 0 {
			return true
		}
	}
	return false
}

// attachProtection copies the stop and target prices of each tag's open trigger orders.
func attachProtection(positions []domain.BrokerPosition, open []*futures.Order) {
	for i := range positions {
		pos := &positions[i]
		if pos.Tag == 0 {
			continue
		}
		for _, o := range open {
			tag, kind, ok := parseClientOrderID(o.ClientOrderID)
			if !ok || tag != pos.Tag {
				continue
			}
			stop, _ := parseFloat(o.StopPrice, "stop price")
			switch kind {
			case kindStop:
				pos.StopLoss = stop
			case kindTake:
				pos.TakeProfit = stop
			}
		}
	}
}

// SendOrder places a marketable limit BUY at the request price, then the stop-loss and
// take-profit as closePosition trigger orders. Exchange rejections come back as a
// non-accepted result carrying the Binance error code.
func (c *Client) SendOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	op := "SendOrder"
	client, err := c.api()
	if err != nil {
		return nil, err
	}
	if req.Side != domain.Buy {
		return nil, fmt.Errorf("%s: only BUY entries are supported: %w", op, ports.ErrInvalidRequest)
	}
	info, err := c.SymbolInfo(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	qty := formatQuantity(req.Volume, info.VolumeStep)
	nonce := time.Now().UnixNano()
	order, err := client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideTypeBuy).
		Type(futures.OrderTypeLimit).
		TimeInForce(timeInForce(req.FillMode)).
		Quantity(qty).
		Price(formatPrice(req.Price, info.Digits)).
		NewClientOrderID(clientOrderID(req.Tag, kindEntry, nonce)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)
	if err != nil {
		return c.rejection(ctx, err, op)
	}

	filled, _ := parseFloat(order.ExecutedQuantity, "executed quantity")
	if filled <= 0 {
		c.logger.Warn(ctx, "Entry order not filled", map[string]interface{}{
			"symbol":  req.Symbol,
			"orderID": order.OrderID,
			"status":  string(order.Status),
		})
		return &domain.OrderResult{Accepted: false, Code: codeUnfilled, Message: fmt.Sprintf("order %s without fill", order.Status)}, nil
	}
	avg, _ := parseFloat(order.AvgPrice, "average price")

	if err := c.protect(ctx, client, req, info, nonce); err != nil {
		c.logger.Error(ctx, err, "Protective orders failed, flattening position", map[string]interface{}{
			"symbol":  req.Symbol,
			"orderID": order.OrderID,
		})
		if ferr := c.flatten(ctx, client, req, formatQuantity(filled, info.VolumeStep), nonce); ferr != nil {
			// The fill is still open on the exchange; report it so it gets tracked.
			return &domain.OrderResult{
				Accepted:    true,
				Ticket:      order.OrderID,
				Price:       avg,
				Volume:      filled,
				Code:        codeProtectionFailed,
				Message:     fmt.Sprintf("protective orders failed (%v) and flatten failed (%v)", err, ferr),
				Unprotected: true,
			}, nil
		}
		return &domain.OrderResult{Accepted: false, Code: codeProtectionFailed, Message: err.Error()}, nil
	}

	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":   req.Symbol,
		"orderID":  order.OrderID,
		"avgPrice": avg,
		"quantity": filled,
	})
	return &domain.OrderResult{
		Accepted: true,
		Ticket:   order.OrderID,
		Price:    avg,
		Volume:   filled,
	}, nil
}

func (c *Client) protect(ctx context.Context, client *futures.Client, req domain.OrderRequest, info *domain.SymbolInfo, nonce int64) error {
	legs := []struct {
		kind  byte
		typ   futures.OrderType
		price float64
	}{
		{kindStop, futures.OrderTypeStopMarket, req.StopLoss},
		{kindTake, futures.OrderTypeTakeProfitMarket, req.TakeProfit},
	}
	for _, leg := range legs {
		if leg.price <= 0 {
			continue
		}
		_, err := client.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(futures.SideTypeSell).
			Type(leg.typ).
			StopPrice(formatPrice(leg.price, info.Digits)).
			ClosePosition(true).
			NewClientOrderID(clientOrderID(req.Tag, leg.kind, nonce)).
			Do(ctx)
		if err != nil {
			return c.handleError(ctx, err, "Place"+string(leg.typ))
		}
	}
	return nil
}

func (c *Client) flatten(ctx context.Context, client *futures.Client, req domain.OrderRequest, qty string, nonce int64) error {
	_, err := client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideTypeSell).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		ReduceOnly(true).
		NewClientOrderID(clientOrderID(req.Tag, kindExit, nonce)).
		Do(ctx)
	if err != nil {
		// Leave any placed leg in place; it still protects the open fill.
		return c.handleError(ctx, err, "FlattenPosition")
	}
	c.cancelTagged(ctx, client, req.Symbol, req.Tag)
	return nil
}

func (c *Client) rejection(ctx context.Context, err error, op string) (*domain.OrderResult, error) {
	wrapped := c.handleError(ctx, err, op)
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && !errors.Is(wrapped, ports.ErrRateLimited) && !errors.Is(wrapped, ports.ErrTimeout) {
		return &domain.OrderResult{Accepted: false, Code: int(apiErr.Code), Message: apiErr.Message}, nil
	}
	return nil, wrapped
}

// ClosingDeal aggregates the SELL fills on the position's symbol since it opened.
// Leftover protective orders of the position are cancelled once the deal is found.
func (c *Client) ClosingDeal(ctx context.Context, pos domain.Position) (*domain.Deal, error) {
	op := "ClosingDeal"
	client, err := c.api()
	if err != nil {
		return nil, err
	}
	trades, err := client.NewListAccountTradeService().
		Symbol(pos.Symbol).
		StartTime(pos.OpenTime.UnixMilli()).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	deal, err := aggregateDeal(trades, pos)
	if err != nil {
		return nil, err
	}
	c.cancelTagged(ctx, client, pos.Symbol, pos.Tag)
	return deal, nil
}

func aggregateDeal(trades []*futures.AccountTrade, pos domain.Position) (*domain.Deal, error) {
	qty, notional := decimal.Zero, decimal.Zero
	profit, commission := decimal.Zero, decimal.Zero
	var last int64
	var ticket int64
	for _, t := range trades {
		if t.Side != futures.SideTypeSell || t.OrderID == pos.Ticket || t.Time < pos.OpenTime.UnixMilli() {
			continue
		}
		q, err := decimal.NewFromString(t.Quantity)
		if err != nil {
			return nil, fmt.Errorf("parsing trade quantity '%s': %w", t.Quantity, err)
		}
		p, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, fmt.Errorf("parsing trade price '%s': %w", t.Price, err)
		}
		qty = qty.Add(q)
		notional = notional.Add(q.Mul(p))
		if pnl, err := decimal.NewFromString(t.RealizedPnl); err == nil {
			profit = profit.Add(pnl)
		}
		if fee, err := decimal.NewFromString(t.Commission); err == nil {
			commission = commission.Add(fee)
		}
		if t.Time >= last {
			last = t.Time
			ticket = t.OrderID
		}
	}
	if qty.LessThanOrEqual(decimal.NewFromFloat(dealQuantityTolerance)) {
		return nil, fmt.Errorf("no closing fill for ticket %d on %s: %w", pos.Ticket, pos.Symbol, ports.ErrDealNotFound)
	}

	price, _ := notional.Div(qty).Float64()
	volume, _ := qty.Float64()
	pnl, _ := profit.Float64()
	fee, _ := commission.Float64()
	return &domain.Deal{
		Ticket:     ticket,
		Price:      price,
		Volume:     volume,
		Profit:     pnl,
		Commission: fee,
		Time:       unixMilli(last),
	}, nil
}

func (c *Client) cancelTagged(ctx context.Context, client *futures.Client, symbol string, tag int64) {
	open, err := client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		_ = c.handleError(ctx, err, "ListOpenOrders")
		return
	}
	for _, o := range open {
		if t, _, ok := parseClientOrderID(o.ClientOrderID); !ok || t != tag {
			continue
		}
		if _, err := client.NewCancelOrderService().Symbol(symbol).OrderID(o.OrderID).Do(ctx); err != nil {
			_ = c.handleError(ctx, err, "CancelOrder")
			continue
		}
		c.logger.Debug(ctx, "Cancelled leftover order", map[string]interface{}{"symbol": symbol, "orderID": o.OrderID})
	}
}

func formatQuantity(v, step float64) string {
	d := decimal.NewFromFloat(v).Round(8)
	if step > 0 {
		s := decimal.NewFromFloat(step)
		d = d.Div(s).Floor().Mul(s)
		return d.StringFixed(stepPlaces(step))
	}
	return d.String()
}

func formatPrice(v float64, digits int) string {
	return decimal.NewFromFloat(v).StringFixed(int32(digits))
}

// stepPlaces counts the decimals of a step such as 0.001.
func stepPlaces(step float64) int32 {
	s := decimal.NewFromFloat(step).String()
	if _, frac, ok := strings.Cut(s, "."); ok {
		return int32(len(frac))
	}
	return 0
}
