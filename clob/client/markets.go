package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/betdesk/gotrader/clob/types"
)

// GetOrderBook fetches the book for one token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error) {
	if err := c.rateLimiter.Wait(ctx, "clob:book:get"); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.get(EndpointGetOrderBook, nil, map[string]string{"token_id": tokenID})
	if err != nil {
		return nil, fmt.Errorf("get order book: %w", err)
	}

	var book types.OrderBookSummary
	if err := parseResponse(resp, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// GetMidpoint fetches the live midpoint for one token.
func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (float64, error) {
	if err := c.rateLimiter.Wait(ctx, "clob:price:get"); err != nil {
		return 0, err
	}

	resp, err := c.httpClient.get(EndpointGetMidpoint, nil, map[string]string{"token_id": tokenID})
	if err != nil {
		return 0, fmt.Errorf("get midpoint: %w", err)
	}

	var mid types.MidpointResponse
	if err := parseResponse(resp, &mid); err != nil {
		return 0, err
	}

	v, err := strconv.ParseFloat(mid.Mid, 64)
	if err != nil {
		return 0, fmt.Errorf("parse midpoint %q: %w", mid.Mid, err)
	}
	return v, nil
}

// GetPrice fetches the last trade price for one token.
func (c *Client) GetPrice(ctx context.Context, tokenID string) (*types.MarketPrice, error) {
	if err := c.rateLimiter.Wait(ctx, "clob:price:get"); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.get(EndpointGetPrice, nil, map[string]string{"token_id": tokenID})
	if err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}

	var price types.MarketPrice
	if err := parseResponse(resp, &price); err != nil {
		return nil, err
	}
	return &price, nil
}

// GetBalanceAllowance reads the exchange's view of funding-address balance
// and allowance for the authenticated account.
func (c *Client) GetBalanceAllowance(ctx context.Context, params *types.BalanceAllowanceParams) (*types.BalanceAllowanceResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}

	queryParams := map[string]string{
		"asset_type": string(params.AssetType),
	}
	if params.TokenID != nil {
		queryParams["token_id"] = *params.TokenID
	}
	if params.SignatureType != nil {
		queryParams["signature_type"] = fmt.Sprintf("%d", int(*params.SignatureType))
	}

	headerMap, err := c.l2HeaderMap("GET", EndpointGetBalanceAllowance, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.get(EndpointGetBalanceAllowance, headerMap, queryParams)
	if err != nil {
		return nil, fmt.Errorf("get balance allowance: %w", err)
	}

	var balance types.BalanceAllowanceResponse
	if err := parseResponse(resp, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}
