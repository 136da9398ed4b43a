package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/pkg/logger"
)

// PostOrder submits a signed order with its time-in-force.
func (c *Client) PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType) (*types.OrderResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, "clob:order:post"); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	payload := types.NewOrder{
		Order:     *order,
		Owner:     c.creds.Key,
		OrderType: orderType,
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order payload: %w", err)
	}
	bodyStr := string(bodyBytes)

	headerMap, err := c.l2HeaderMap("POST", EndpointPostOrder, &bodyStr)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.post(EndpointPostOrder, headerMap, payload)
	if err != nil {
		return nil, fmt.Errorf("post order: %w", err)
	}

	var orderResp types.OrderResponse
	if err := parseResponse(resp, &orderResp); err != nil {
		return nil, fmt.Errorf("parse order response: %w", err)
	}

	logger.Debugf("[clob] order posted: success=%v id=%s status=%s", orderResp.Success, orderResp.OrderID, orderResp.Status)
	return &orderResp, nil
}

// CancelOrder cancels one resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*types.OrderResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, "clob:order:delete"); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body := fmt.Sprintf(`{"orderID":%q}`, orderID)
	headerMap, err := c.l2HeaderMap("DELETE", EndpointCancelOrder, &body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.delete(EndpointCancelOrder, headerMap, map[string]string{"orderID": orderID})
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	var orderResp types.OrderResponse
	if err := parseResponse(resp, &orderResp); err != nil {
		return nil, fmt.Errorf("parse cancel response: %w", err)
	}
	return &orderResp, nil
}

// GetOpenOrders lists resting orders, optionally filtered.
func (c *Client) GetOpenOrders(ctx context.Context, params *types.OpenOrderParams) (types.OpenOrdersResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, "clob:orders:get"); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	queryParams := make(map[string]string)
	if params != nil {
		if params.ID != nil {
			queryParams["id"] = *params.ID
		}
		if params.Market != nil {
			queryParams["market"] = *params.Market
		}
		if params.AssetID != nil {
			queryParams["asset_id"] = *params.AssetID
		}
	}

	headerMap, err := c.l2HeaderMap("GET", EndpointGetOpenOrders, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.get(EndpointGetOpenOrders, headerMap, queryParams)
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}

	var orders types.OpenOrdersResponse
	if err := parseResponse(resp, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder fetches one order by id, nil if the exchange no longer tracks
// it.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error) {
	id := orderID
	orders, err := c.GetOpenOrders(ctx, &types.OpenOrderParams{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}
