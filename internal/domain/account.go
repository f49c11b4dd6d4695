package domain

import "strings"

// AccountMode distinguishes paper accounts from live-money accounts.
type AccountMode string

const (
	AccountDemo AccountMode = "DEMO"
	AccountReal AccountMode = "REAL"
)

// AccountInfo is the authenticated account identity cached by the connection manager.
type AccountInfo struct {
	Login    string
	Server   string
	Balance  float64
	Equity   float64
	Currency string
	Mode     AccountMode
}

// IsDemo reports whether the account trades paper money.
func (a *AccountInfo) IsDemo() bool {
	return a != nil && a.Mode == AccountDemo
}

// ConnectionState is the connection flag plus the cached account.
type ConnectionState struct {
	Connected bool
	Account   *AccountInfo
}

// Credentials hold the terminal login details.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	Server    string `json:"server"` // "testnet" or "production"
}

var templatePlaceholders = []string{"YOUR_API_KEY", "YOUR_SECRET_KEY", "CHANGE_ME", "<"}

// IsTemplate reports whether the credentials are missing or still hold placeholder values.
func (c Credentials) IsTemplate() bool {
	if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return true
	}
	for _, p := range templatePlaceholders {
		if strings.Contains(strings.ToUpper(c.APIKey), strings.ToUpper(p)) ||
			strings.Contains(strings.ToUpper(c.SecretKey), strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

// Testnet reports whether the credentials target the paper-trading endpoint.
func (c Credentials) Testnet() bool {
	return !strings.EqualFold(c.Server, "production")
}
