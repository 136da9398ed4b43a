// Package companion talks to the platform's server-side endpoints:
// order/fee bookkeeping, the fee schedule and runtime configuration.
package companion

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betdesk/gotrader/internal/fees"
	"github.com/betdesk/gotrader/pkg/rest"
)

const (
	recordOrderEndpoint   = "/api/orders/record"
	recordFeeEndpoint     = "/api/fees/record"
	feeConfigEndpoint     = "/api/fees/configuration"
	runtimeConfigEndpoint = "/api/config"
)

// Client wraps the companion REST surface.
type Client struct {
	http *rest.Client
}

func NewClient(host string) *Client {
	return &Client{http: rest.NewClient(host)}
}

// OrderRecord mirrors one placed order to the platform.
type OrderRecord struct {
	OrderID       string    `json:"orderId"`
	WalletAddress string    `json:"walletAddress"`
	TokenID       string    `json:"tokenId"`
	Side          string    `json:"side"`
	Price         float64   `json:"price"`
	Shares        float64   `json:"shares"`
	Amount        float64   `json:"amount"`
	Fee           string    `json:"fee"`
	TimeInForce   string    `json:"timeInForce"`
	PlacedAt      time.Time `json:"placedAt"`
}

// RecordOrder reports a placed order.
func (c *Client) RecordOrder(ctx context.Context, rec OrderRecord) error {
	resp, err := c.http.DoRequest(ctx, http.MethodPost, recordOrderEndpoint, &rest.RequestOptions{Data: rec}, nil)
	if err := rest.CheckResponse(resp, err); err != nil {
		return fmt.Errorf("record order: %w", err)
	}
	return nil
}

type feeRecordPayload struct {
	ID            string `json:"id"`
	WalletAddress string `json:"walletAddress"`
	OrderID       string `json:"orderId"`
	TokenID       string `json:"tokenId"`
	Side          string `json:"side"`
	Amount        string `json:"amount"`
	Percentage    string `json:"percentage"`
	Status        string `json:"status"`
	TxHash        string `json:"txHash,omitempty"`
}

// RecordFee reports a fee record; satisfies fees.Recorder.
func (c *Client) RecordFee(ctx context.Context, r fees.Record) error {
	payload := feeRecordPayload{
		ID:            r.ID,
		WalletAddress: r.WalletAddress,
		OrderID:       r.OrderID,
		TokenID:       r.TokenID,
		Side:          r.Side,
		Amount:        r.Amount.String(),
		Percentage:    r.Percentage.String(),
		Status:        string(r.Status),
		TxHash:        r.TxHash,
	}
	resp, err := c.http.DoRequest(ctx, http.MethodPost, recordFeeEndpoint, &rest.RequestOptions{Data: payload}, nil)
	if err := rest.CheckResponse(resp, err); err != nil {
		return fmt.Errorf("record fee: %w", err)
	}
	return nil
}

type feeConfigResponse struct {
	Percentage string `json:"percentage"`
	Treasury   string `json:"treasury"`
}

// FeeConfig fetches the active fee schedule.
func (c *Client) FeeConfig(ctx context.Context) (fees.Config, error) {
	var out feeConfigResponse
	resp, err := c.http.DoRequest(ctx, http.MethodGet, feeConfigEndpoint, nil, &out)
	if err := rest.CheckResponse(resp, err); err != nil {
		return fees.Config{}, fmt.Errorf("fetch fee configuration: %w", err)
	}

	pct, err := decimal.NewFromString(out.Percentage)
	if err != nil {
		return fees.Config{}, fmt.Errorf("invalid fee percentage %q: %w", out.Percentage, err)
	}
	return fees.Config{Percentage: pct, Treasury: out.Treasury}, nil
}

// RuntimeConfig looks up one server-managed configuration value.
func (c *Client) RuntimeConfig(ctx context.Context, key string) (string, error) {
	var out struct {
		Value string `json:"value"`
	}
	resp, err := c.http.DoRequest(ctx, http.MethodGet, runtimeConfigEndpoint, &rest.RequestOptions{
		Params: map[string]string{"key": key},
	}, &out)
	if err := rest.CheckResponse(resp, err); err != nil {
		return "", fmt.Errorf("fetch runtime config %q: %w", key, err)
	}
	return out.Value, nil
}
