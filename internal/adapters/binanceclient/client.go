package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Client implements ports.Terminal on top of the USDⓈ-M futures REST API.
// Binance has no session object; Initialize builds an authenticated client and
// Shutdown drops it.
type Client struct {
	logger     ports.Logger
	quoteAsset string

	mu            sync.RWMutex
	futuresClient *futures.Client
	testnet       bool
	apiKey        string
	symbols       map[string]*domain.SymbolInfo
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	Logger     ports.Logger
	QuoteAsset string // Margin asset reported as account balance, "USDT" by default
}

// New creates a new Binance client adapter. No network call is made until Initialize.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	quote := strings.ToUpper(cfg.QuoteAsset)
	if quote == "" {
		quote = "USDT"
	}
	return &Client{
		logger:     cfg.Logger,
		quoteAsset: quote,
	}, nil
}

// Initialize builds the authenticated client, checks connectivity and syncs the server clock.
func (c *Client) Initialize(ctx context.Context, creds domain.Credentials) error {
	op := "Initialize"
	client := futures.NewClient(creds.APIKey, creds.SecretKey)

	// Set BaseURL directly instead of using global futures.UseTestnet
	if creds.Testnet() {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}

	if err := client.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	if _, err := client.NewSetServerTimeService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}

	c.mu.Lock()
	c.futuresClient = client
	c.testnet = creds.Testnet()
	c.apiKey = creds.APIKey
	c.symbols = nil
	c.mu.Unlock()

	c.logger.Info(ctx, "Binance client initialized", map[string]interface{}{
		"baseURL": client.BaseURL,
		"testnet": creds.Testnet(),
	})
	return nil
}

// Shutdown drops the authenticated client. Safe to call repeatedly.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.futuresClient = nil
	c.symbols = nil
	return nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	client, err := c.api()
	if err != nil {
		return err
	}
	if err := client.NewPingService().Do(ctx); err != nil {
		// Ping failure likely indicates connection or availability issues
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	return nil
}

// AccountInfo reads the futures wallet of the quote asset.
func (c *Client) AccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	op := "AccountInfo"
	client, err := c.api()
	if err != nil {
		return nil, err
	}
	account, err := client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	c.mu.RLock()
	testnet, apiKey := c.testnet, c.apiKey
	c.mu.RUnlock()

	info := &domain.AccountInfo{
		Login:    maskKey(apiKey),
		Server:   baseURLProduction,
		Currency: c.quoteAsset,
		Mode:     domain.AccountReal,
	}
	if testnet {
		info.Server = baseURLTestnet
		info.Mode = domain.AccountDemo
	}

	for _, bal := range account.Assets {
		if bal.Asset != c.quoteAsset {
			continue
		}
		if info.Balance, err = parseFloat(bal.WalletBalance, "wallet balance"); err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if info.Equity, err = parseFloat(bal.MarginBalance, "margin balance"); err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		return info, nil
	}

	// Asset not found in the account details
	return nil, c.handleError(ctx, fmt.Errorf("asset %s not found in account balance: %w", c.quoteAsset, ports.ErrNotFound), op)
}

func (c *Client) api() (*futures.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.futuresClient == nil {
		return nil, ports.ErrNotConnected
	}
	return c.futuresClient, nil
}

func maskKey(key string) string {
	if len(key) <= 6 {
		return "***"
	}
	return key[:6] + "***"
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mapAPIError(apiErr.Code), err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case isConnectionError(err):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, ports.ErrInvalidRequest), errors.Is(err, ports.ErrDealNotFound):
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	default:
		// Default for other errors (e.g., parsing errors within the adapter)
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout")
}

// mapAPIError maps Binance error codes to the standard errors.
func mapAPIError(code int64) error {
	switch code {
	case -1003: // Too many requests
		return ports.ErrRateLimited
	case -1021: // Timestamp for this request is outside of the recvWindow
		return ports.ErrTimeout
	case -1022: // Signature for this request is not valid
		return ports.ErrAuthenticationFailed
	case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130: // Parameter/Request format errors
		return ports.ErrInvalidRequest
	case -2010, -2022: // New order rejected, ReduceOnly rejected
		return ports.ErrOrderPlacementFailed
	case -2011: // Cancel order rejected
		return ports.ErrOrderCancelFailed
	case -2013: // Order does not exist
		return ports.ErrOrderNotFound
	case -2014, -2015: // API-key format invalid, or invalid key/IP/permissions
		return ports.ErrInvalidAPIKeys
	case -2019, -3005, -4047: // Margin/balance insufficient, position limit at leverage
		return ports.ErrInsufficientFunds
	case -4003, -4014, -4015, -4164: // Qty, price, leverage or notional out of range
		return ports.ErrInvalidRequest
	case -4044: // Position not found
		return ports.ErrPositionNotFound
	default:
		return ports.ErrUnknown
	}
}

// marketClient is used by tools that need public market data without credentials.
func (c *Client) marketClient() *futures.Client {
	if client, err := c.api(); err == nil {
		return client
	}
	client := futures.NewClient("", "")
	client.BaseURL = baseURLProduction
	return client
}

func unixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
