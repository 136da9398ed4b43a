// Package client implements the CLOB exchange REST client: credential
// derivation, order signing and submission, book and balance queries.
package client

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betdesk/gotrader/clob/signing"
	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/pkg/ratelimit"
)

// Client talks to one CLOB host on behalf of one wallet. It is an
// explicitly-owned object: construct it, pass it by reference, never hold
// it in a package-level singleton.
type Client struct {
	host        string
	chainID     types.Chain
	signer      signing.TypedDataSigner
	creds       *types.ApiKeyCreds
	httpClient  *httpClient
	tickSizes   types.TickSizes
	negRisk     types.NegRisk
	rateLimiter *ratelimit.RateLimitManager
}

// NewClient creates a client. creds may be nil until credentials are
// derived; L2-authenticated calls fail until SetCreds.
func NewClient(host string, chainID types.Chain, signer signing.TypedDataSigner, creds *types.ApiKeyCreds) *Client {
	return &Client{
		host:        host,
		chainID:     chainID,
		signer:      signer,
		creds:       creds,
		httpClient:  newHTTPClient(host),
		tickSizes:   make(types.TickSizes),
		negRisk:     make(types.NegRisk),
		rateLimiter: ratelimit.NewRateLimitManager(),
	}
}

func (c *Client) GetHost() string {
	return c.host
}

func (c *Client) GetChainID() types.Chain {
	return c.chainID
}

// SetCreds binds derived API credentials to this client.
func (c *Client) SetCreds(creds *types.ApiKeyCreds) {
	c.creds = creds
}

// Creds returns the bound credentials, nil if none.
func (c *Client) Creds() *types.ApiKeyCreds {
	return c.creds
}

// CanL1Auth reports whether wallet-signature auth is possible.
func (c *Client) CanL1Auth() error {
	if c.signer == nil {
		return fmt.Errorf("L1 auth unavailable: no signer configured")
	}
	return nil
}

// CanL2Auth reports whether API-key auth is possible.
func (c *Client) CanL2Auth() error {
	if c.creds == nil {
		return fmt.Errorf("L2 auth unavailable: API credentials not configured")
	}
	return nil
}

// GetAddress returns the signer address.
func (c *Client) GetAddress() (common.Address, error) {
	if c.signer == nil {
		return common.Address{}, fmt.Errorf("no signer configured")
	}
	return c.signer.Address(), nil
}
