package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/betdesk/gotrader/clob/signing"
	"github.com/betdesk/gotrader/clob/types"
)

// CreateOrDeriveAPIKey derives existing API credentials bound to the
// signer, creating a new set only when none exist. Repeated calls with the
// same wallet return the same credentials, so session resets do not
// proliferate keys.
func (c *Client) CreateOrDeriveAPIKey(ctx context.Context, nonce *int64) (*types.ApiKeyCreds, error) {
	if err := c.CanL1Auth(); err != nil {
		return nil, err
	}

	var n int64
	if nonce != nil {
		n = *nonce
	}

	headers, err := signing.CreateL1Headers(ctx, c.signer, c.chainID, &n, nil)
	if err != nil {
		return nil, fmt.Errorf("create L1 headers: %w", err)
	}

	headerMap := map[string]string{
		"POLY_ADDRESS":   headers.PolyAddress,
		"POLY_SIGNATURE": headers.PolySignature,
		"POLY_TIMESTAMP": headers.PolyTimestamp,
		"POLY_NONCE":     headers.PolyNonce,
	}

	// Derive first: 200 means credentials already exist for this signature.
	resp, err := c.httpClient.get(EndpointDeriveAPIKey, headerMap, nil)
	if err == nil && resp != nil {
		switch resp.StatusCode {
		case http.StatusOK:
			var raw types.ApiKeyRaw
			if err := parseResponse(resp, &raw); err != nil {
				return nil, fmt.Errorf("parse derive response: %w", err)
			}
			return &types.ApiKeyCreds{
				Key:        raw.ApiKey,
				Secret:     raw.Secret,
				Passphrase: raw.Passphrase,
			}, nil
		case http.StatusBadRequest:
			// No credentials yet; fall through to create.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		default:
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("derive api key: http %d: %s", resp.StatusCode, string(b))
		}
	}

	resp, err = c.httpClient.post(EndpointCreateAPIKey, headerMap, map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	var raw types.ApiKeyRaw
	if err := parseResponse(resp, &raw); err != nil {
		return nil, fmt.Errorf("parse create response: %w", err)
	}

	return &types.ApiKeyCreds{
		Key:        raw.ApiKey,
		Secret:     raw.Secret,
		Passphrase: raw.Passphrase,
	}, nil
}

// DeriveAPIKey retrieves existing credentials for a nonce.
func (c *Client) DeriveAPIKey(ctx context.Context, nonce int64) (*types.ApiKeyCreds, error) {
	return c.CreateOrDeriveAPIKey(ctx, &nonce)
}

// CreateAPIKey creates credentials with the default nonce.
func (c *Client) CreateAPIKey(ctx context.Context) (*types.ApiKeyCreds, error) {
	return c.CreateOrDeriveAPIKey(ctx, nil)
}

// l2HeaderMap builds the header map for an L2-authenticated request.
func (c *Client) l2HeaderMap(method, path string, body *string) (map[string]string, error) {
	args := &types.L2HeaderArgs{
		Method:      method,
		RequestPath: path,
		Body:        body,
	}
	headers, err := signing.CreateL2Headers(c.signer.Address(), c.creds, args, nil)
	if err != nil {
		return nil, fmt.Errorf("create L2 headers: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":    headers.PolyAddress,
		"POLY_SIGNATURE":  headers.PolySignature,
		"POLY_TIMESTAMP":  headers.PolyTimestamp,
		"POLY_API_KEY":    headers.PolyAPIKey,
		"POLY_PASSPHRASE": headers.PolyPassphrase,
	}, nil
}
