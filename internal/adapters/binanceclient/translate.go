package binanceclient

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"liveSignalBot/internal/domain"

	"github.com/adshao/go-binance/v2/futures"
)

func parseFloat(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s '%s': %w", what, s, err)
	}
	return v, nil
}

func translateKline(bk *futures.Kline) (domain.Bar, error) {
	if bk == nil {
		return domain.Bar{}, errors.New("received nil kline")
	}
	open, err := parseFloat(bk.Open, "open price")
	if err != nil {
		return domain.Bar{}, err
	}
	high, err := parseFloat(bk.High, "high price")
	if err != nil {
		return domain.Bar{}, err
	}
	low, err := parseFloat(bk.Low, "low price")
	if err != nil {
		return domain.Bar{}, err
	}
	cls, err := parseFloat(bk.Close, "close price")
	if err != nil {
		return domain.Bar{}, err
	}
	vol, err := parseFloat(bk.Volume, "volume")
	if err != nil {
		return domain.Bar{}, err
	}

	return domain.Bar{
		Time:   unixMilli(bk.OpenTime),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  cls,
		Volume: vol,
	}, nil
}

func translateSymbol(s *futures.Symbol) (*domain.SymbolInfo, error) {
	lot := s.LotSizeFilter()
	price := s.PriceFilter()
	if lot == nil || price == nil {
		return nil, errors.New("missing LOT_SIZE or PRICE_FILTER")
	}
	minQty, err := parseFloat(lot.MinQuantity, "min quantity")
	if err != nil {
		return nil, err
	}
	maxQty, err := parseFloat(lot.MaxQuantity, "max quantity")
	if err != nil {
		return nil, err
	}
	step, err := parseFloat(lot.StepSize, "step size")
	if err != nil {
		return nil, err
	}
	tick, err := parseFloat(price.TickSize, "tick size")
	if err != nil {
		return nil, err
	}

	return &domain.SymbolInfo{
		Name:         strings.ToUpper(s.Symbol),
		Digits:       s.PricePrecision,
		Point:        tick,
		VolumeMin:    minQty,
		VolumeMax:    maxQty,
		VolumeStep:   step,
		ContractSize: 1,
		FillModes:    fillModes(s.TimeInForce),
	}, nil
}

// fillModes maps the time-in-force values a symbol accepts onto fill mode flags.
// GTC limit orders leave the remainder on the book, which is the RETURN behaviour.
func fillModes(tifs []futures.TimeInForceType) domain.FillMode {
	var modes domain.FillMode
	for _, tif := range tifs {
		switch tif {
		case futures.TimeInForceTypeFOK:
			modes |= domain.FillFOK
		case futures.TimeInForceTypeIOC:
			modes |= domain.FillIOC
		case futures.TimeInForceTypeGTC:
			modes |= domain.FillReturn
		}
	}
	return modes
}

func timeInForce(mode domain.FillMode) futures.TimeInForceType {
	switch mode {
	case domain.FillIOC:
		return futures.TimeInForceTypeIOC
	case domain.FillReturn:
		return futures.TimeInForceTypeGTC
	default:
		return futures.TimeInForceTypeFOK
	}
}

// Order kinds encoded in client order IDs.
const (
	kindEntry = 'e'
	kindStop  = 's'
	kindTake  = 't'
	kindExit  = 'x'
)

const clientIDPrefix = "lsb-"

// clientOrderID encodes the tag and order kind: lsb-<tag base36>-<kind><nonce base36>.
// Binance limits client order IDs to 36 characters.
func clientOrderID(tag int64, kind byte, nonce int64) string {
	return clientIDPrefix + strconv.FormatInt(tag, 36) + "-" + string(kind) + strconv.FormatInt(nonce, 36)
}

// parseClientOrderID reverses clientOrderID. ok is false for orders not placed by this bot.
func parseClientOrderID(id string) (tag int64, kind byte, ok bool) {
	rest, found := strings.CutPrefix(id, clientIDPrefix)
	if !found {
		return 0, 0, false
	}
	tagPart, suffix, found := strings.Cut(rest, "-")
	if !found || suffix == "" {
		return 0, 0, false
	}
	tag, err := strconv.ParseInt(tagPart, 36, 64)
	if err != nil || tag <= 0 {
		return 0, 0, false
	}
	return tag, suffix[0], true
}
