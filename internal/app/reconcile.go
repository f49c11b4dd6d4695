package app

import (
	"context"
	"errors"
	"fmt"
	"math"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"

	"github.com/shopspring/decimal"
)

// ClassifyClose names why a long position closed at closePrice. Prices within tolerance of a
// level, or beyond it, match that level; the stop is checked first.
func ClassifyClose(pos domain.Position, closePrice, tolerance float64) domain.CloseReason {
	if pos.StopLoss > 0 && (math.Abs(closePrice-pos.StopLoss) <= tolerance || closePrice < pos.StopLoss) {
		return domain.CloseReasonStopLoss
	}
	if pos.TakeProfit > 0 && (math.Abs(closePrice-pos.TakeProfit) <= tolerance || closePrice > pos.TakeProfit) {
		return domain.CloseReasonTakeProfit
	}
	return domain.CloseReasonManual
}

// GrossPnL is the long P&L of a position closed at closePrice.
func GrossPnL(entry, closePrice, volume, contractSize float64) float64 {
	if contractSize <= 0 {
		contractSize = 1
	}
	pnl, _ := decimal.NewFromFloat(closePrice).
		Sub(decimal.NewFromFloat(entry)).
		Mul(decimal.NewFromFloat(volume)).
		Mul(decimal.NewFromFloat(contractSize)).
		Round(2).
		Float64()
	return pnl
}

// Recover tracks the broker positions carrying one of our tags, restoring their levels from the
// repository when known. Stored open positions missing from the broker are tracked too so the
// next reconciliation records how they closed.
func (o *Orchestrator) Recover(ctx context.Context) error {
	op := "Recover"
	live, err := o.deps.Terminal.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("%s: list open positions: %w", op, err)
	}

	onBroker := make(map[int64]bool, len(live))
	for _, bp := range live {
		onBroker[bp.Ticket] = true
		slot, ok := o.byTag[bp.Tag]
		if !ok {
			continue
		}
		if _, known := o.positions[bp.Ticket]; known {
			continue
		}

		pos := domain.Position{
			Ticket:     bp.Ticket,
			ConfigName: slot.config.Name,
			Symbol:     bp.Symbol,
			Direction:  domain.Long,
			EntryPrice: bp.EntryPrice,
			StopLoss:   bp.StopLoss,
			TakeProfit: bp.TakeProfit,
			Volume:     bp.Volume,
			OpenTime:   bp.OpenTime,
			Tag:        bp.Tag,
			Status:     domain.StatusOpen,
		}
		source := "broker"
		if stored := o.storedPosition(ctx, bp.Ticket); stored != nil {
			source = "repository"
			pos.StopLoss = stored.StopLoss
			pos.TakeProfit = stored.TakeProfit
			pos.OpenTime = stored.OpenTime
			if pos.EntryPrice == 0 {
				pos.EntryPrice = stored.EntryPrice
			}
		} else if o.deps.Positions != nil {
			if err := o.deps.Positions.Save(ctx, &pos); err != nil {
				o.logger.Warn(ctx, op+": Failed to persist recovered position", map[string]interface{}{"ticket": pos.Ticket, "error": err.Error()})
			}
		}

		o.positions[pos.Ticket] = &tracked{position: pos, entryCommission: o.commission.Charge(pos.Volume)}
		o.logger.Info(ctx, op+": Position recovered", map[string]interface{}{"config": pos.ConfigName, "ticket": pos.Ticket, "source": source})
		o.emit(ctx, ports.EventPositionRecovered, pos.ConfigName, pos.Symbol, map[string]interface{}{
			"ticket":      pos.Ticket,
			"entry_price": pos.EntryPrice,
			"stop_loss":   pos.StopLoss,
			"take_profit": pos.TakeProfit,
			"volume":      pos.Volume,
			"open_time":   pos.OpenTime.UTC().Format("2006-01-02T15:04:05Z"),
			"source":      source,
		})
	}

	if o.deps.Positions == nil {
		return nil
	}
	stored, err := o.deps.Positions.FindOpen(ctx)
	if err != nil {
		return fmt.Errorf("%s: load stored positions: %w", op, err)
	}
	for _, p := range stored {
		if onBroker[p.Ticket] {
			continue
		}
		if _, known := o.positions[p.Ticket]; known {
			continue
		}
		if _, ours := o.byTag[p.Tag]; !ours {
			continue
		}
		o.positions[p.Ticket] = &tracked{position: *p, entryCommission: o.commission.Charge(p.Volume)}
		o.logger.Info(ctx, op+": Stored position closed while offline", map[string]interface{}{"config": p.ConfigName, "ticket": p.Ticket})
	}
	return nil
}

func (o *Orchestrator) storedPosition(ctx context.Context, ticket int64) *domain.Position {
	if o.deps.Positions == nil {
		return nil
	}
	stored, err := o.deps.Positions.FindByTicket(ctx, ticket)
	if err != nil {
		o.logger.Warn(ctx, "Failed to load stored position", map[string]interface{}{"ticket": ticket, "error": err.Error()})
		return nil
	}
	return stored
}

// reconcile closes every tracked position whose ticket left the broker's open set.
func (o *Orchestrator) reconcile(ctx context.Context) error {
	if len(o.positions) == 0 {
		return nil
	}
	live, err := o.deps.Terminal.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	open := make(map[int64]bool, len(live))
	for _, p := range live {
		open[p.Ticket] = true
	}

	for _, ticket := range o.trackedTickets() {
		if open[ticket] {
			continue
		}
		t := o.positions[ticket]
		deal, err := o.deps.Terminal.ClosingDeal(ctx, t.position)
		if err != nil {
			t.dealMisses++
			if t.dealMisses < max(o.settings.DealMissLimit, 1) {
				o.logger.Warn(ctx, "Closing deal not available yet", map[string]interface{}{
					"ticket":   ticket,
					"attempts": t.dealMisses,
					"error":    err.Error(),
				})
				continue
			}
			deal = nil
		}
		o.closeTracked(ctx, t, deal)
	}
	return nil
}

// closeTracked records the closed trade, emits TRADE_CLOSED and stops tracking the ticket.
func (o *Orchestrator) closeTracked(ctx context.Context, t *tracked, deal *domain.Deal) {
	pos := t.position
	info, infoErr := o.deps.Terminal.SymbolInfo(ctx, pos.Symbol)

	trade := &domain.ClosedTrade{
		Ticket:     pos.Ticket,
		ConfigName: pos.ConfigName,
		Symbol:     pos.Symbol,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
		Volume:     pos.Volume,
		OpenTime:   pos.OpenTime,
	}

	dealMissing := deal == nil
	if dealMissing {
		trade.ClosePrice = o.lastBid(ctx, pos)
		trade.CloseTime = o.now().UTC()
		trade.Reason = domain.CloseReasonManual
	} else {
		trade.ClosePrice = deal.Price
		trade.CloseTime = deal.Time.UTC()
		if trade.CloseTime.IsZero() {
			trade.CloseTime = o.now().UTC()
		}
		tolerance := 0.0
		if infoErr == nil {
			tolerance = o.settings.TolerancePips * info.PipSize()
		}
		trade.Reason = ClassifyClose(pos, trade.ClosePrice, tolerance)
	}

	contract := 1.0
	if infoErr == nil && info.ContractSize > 0 {
		contract = info.ContractSize
	}
	if deal != nil && deal.Profit != 0 {
		trade.GrossPnL = deal.Profit
	} else {
		trade.GrossPnL = GrossPnL(pos.EntryPrice, trade.ClosePrice, pos.Volume, contract)
	}

	estimated := 0.0
	if deal != nil && deal.Commission != 0 {
		trade.Commission = math.Abs(deal.Commission)
	} else {
		var exitCharge float64
		o.commission, exitCharge = o.commission.Add(pos.Volume)
		estimated = t.entryCommission + exitCharge
		trade.Commission = estimated
	}
	net, _ := decimal.NewFromFloat(trade.GrossPnL).Sub(decimal.NewFromFloat(trade.Commission)).Round(2).Float64()
	trade.NetPnL = net

	delete(o.positions, pos.Ticket)

	duplicate := false
	if o.deps.Trades != nil {
		if _, err := o.deps.Trades.CreateTrade(ctx, trade); err != nil {
			if errors.Is(err, ports.ErrDuplicateEntry) {
				duplicate = true
			} else {
				o.logger.Error(ctx, err, "Failed to persist closed trade", map[string]interface{}{"ticket": pos.Ticket})
			}
		}
	}
	if o.deps.Positions != nil {
		if err := o.deps.Positions.MarkClosed(ctx, pos.Ticket); err != nil && !errors.Is(err, ports.ErrNotFound) {
			o.logger.Error(ctx, err, "Failed to mark position closed", map[string]interface{}{"ticket": pos.Ticket})
		}
	}
	if duplicate {
		o.logger.Warn(ctx, "Closed trade already recorded", map[string]interface{}{"ticket": pos.Ticket})
		return
	}

	o.stats.closed(pos.ConfigName, trade.NetPnL, estimated)
	o.logger.Info(ctx, "Trade closed", map[string]interface{}{
		"config": pos.ConfigName,
		"ticket": pos.Ticket,
		"reason": string(trade.Reason),
		"netPnL": trade.NetPnL,
	})

	fields := map[string]interface{}{
		"ticket":           pos.Ticket,
		"direction":        string(pos.Direction),
		"entry_price":      trade.EntryPrice,
		"close_price":      trade.ClosePrice,
		"stop_loss":        trade.StopLoss,
		"take_profit":      trade.TakeProfit,
		"volume":           trade.Volume,
		"exit_reason":      string(trade.Reason),
		"gross_pnl":        trade.GrossPnL,
		"commission":       trade.Commission,
		"net_pnl":          trade.NetPnL,
		"open_time":        trade.OpenTime.UTC().Format("2006-01-02T15:04:05Z"),
		"close_time":       trade.CloseTime.Format("2006-01-02T15:04:05Z"),
		"duration_minutes": trade.Duration().Minutes(),
	}
	if dealMissing {
		fields["deal_missing"] = true
	}
	o.emit(ctx, ports.EventTradeClosed, pos.ConfigName, pos.Symbol, fields)
}

// lastBid is the close price estimate used when no closing deal could be found.
func (o *Orchestrator) lastBid(ctx context.Context, pos domain.Position) float64 {
	tick, err := o.deps.Terminal.Tick(ctx, pos.Symbol)
	if err != nil || tick == nil || tick.Bid <= 0 {
		return pos.EntryPrice
	}
	return tick.Bid
}
