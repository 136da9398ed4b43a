// Package relay submits fee-sponsored Safe transactions through the
// relayer, so non-custodial users approve and deposit without paying gas.
package relay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betdesk/gotrader/clob/signing"
	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/internal/wallet"
	"github.com/betdesk/gotrader/pkg/rest"
)

// DefaultHost is the production relayer endpoint.
const DefaultHost = "https://relayer-v2.polymarket.com"

// BuilderCreds authenticates this integration with the relayer.
type BuilderCreds struct {
	Key        string
	Secret     string
	Passphrase string
}

// Client talks to the relayer on behalf of one Safe owner.
type Client struct {
	http     *rest.Client
	chainID  types.Chain
	signer   signing.TypedDataSigner
	safeAddr common.Address
	creds    *BuilderCreds
}

// NewClient builds a relayer client. The signer is the Safe owner; every
// wallet backend satisfies it.
func NewClient(host string, chainID types.Chain, signer signing.TypedDataSigner, safeAddr common.Address, creds *BuilderCreds) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		http:     rest.NewClient(host),
		chainID:  chainID,
		signer:   signer,
		safeAddr: safeAddr,
		creds:    creds,
	}
}

// Response is the relayer's submission result.
type Response struct {
	ID              string `json:"id"`
	TransactionHash string `json:"transactionHash"`
	State           string `json:"state"`
	Error           string `json:"error,omitempty"`
}

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

type submitRequest struct {
	Type            string           `json:"type"`
	From            string           `json:"from"`
	To              string           `json:"to"`
	ProxyWallet     string           `json:"proxyWallet,omitempty"`
	Data            string           `json:"data"`
	Nonce           string           `json:"nonce,omitempty"`
	Signature       string           `json:"signature"`
	SignatureParams *signatureParams `json:"signatureParams"`
	Metadata        string           `json:"metadata,omitempty"`
}

type signatureParams struct {
	GasPrice   string `json:"gasPrice"`
	SafeTxnGas string `json:"safeTxnGas"`
	BaseGas    string `json:"baseGas"`
}

// builderHeaders signs one request with the builder HMAC scheme: the
// secret keys timestamp+method+path+body.
func (c *Client) builderHeaders(method, path, body string) (map[string]string, error) {
	if c.creds == nil {
		return nil, fmt.Errorf("relayer builder credentials are not configured")
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := timestamp + method + path + body

	secret, err := base64.URLEncoding.DecodeString(c.creds.Secret)
	if err != nil {
		secret, err = base64.StdEncoding.DecodeString(c.creds.Secret)
		if err != nil {
			return nil, fmt.Errorf("decode builder secret: %w", err)
		}
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))

	return map[string]string{
		"POLY_BUILDER_API_KEY":    c.creds.Key,
		"POLY_BUILDER_PASSPHRASE": c.creds.Passphrase,
		"POLY_BUILDER_SIGNATURE":  base64.URLEncoding.EncodeToString(mac.Sum(nil)),
		"POLY_BUILDER_TIMESTAMP":  timestamp,
	}, nil
}

// Nonce fetches the owner's current Safe nonce.
func (c *Client) Nonce(ctx context.Context) (*big.Int, error) {
	path := "/nonce?address=" + c.signer.Address().Hex() + "&type=SAFE"
	headers, err := c.builderHeaders(http.MethodGet, path, "")
	if err != nil {
		return nil, err
	}

	var out nonceResponse
	resp, err := c.http.DoRequest(ctx, http.MethodGet, path, &rest.RequestOptions{Headers: headers}, &out)
	if err := rest.CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("fetch safe nonce: %w", err)
	}

	nonce, ok := new(big.Int).SetString(out.Nonce, 10)
	if !ok {
		return nil, fmt.Errorf("invalid safe nonce %q", out.Nonce)
	}
	return nonce, nil
}

// ProxyDeployed reports whether the owner's Safe exists on chain. The
// funding resolver uses it as a best-effort check.
func (c *Client) ProxyDeployed(ctx context.Context, owner common.Address) (bool, error) {
	safe := wallet.DeriveSafeAddress(owner)
	path := "/deployed?address=" + safe.Hex() + "&type=SAFE"
	headers, err := c.builderHeaders(http.MethodGet, path, "")
	if err != nil {
		return false, err
	}

	var out struct {
		Deployed bool `json:"deployed"`
	}
	resp, err := c.http.DoRequest(ctx, http.MethodGet, path, &rest.RequestOptions{Headers: headers}, &out)
	if err := rest.CheckResponse(resp, err); err != nil {
		return false, fmt.Errorf("check safe deployment: %w", err)
	}
	return out.Deployed, nil
}

// Execute signs a transaction batch as one SafeTx and submits it. The
// relayer pays gas. Blocks on the wallet for the SafeTx signature.
func (c *Client) Execute(ctx context.Context, txns []SafeTransaction, metadata string) (*Response, error) {
	if len(txns) == 0 {
		return nil, fmt.Errorf("no transactions to execute")
	}

	nonce, err := c.Nonce(ctx)
	if err != nil {
		return nil, err
	}

	to, data, operation, err := EncodeBatch(txns)
	if err != nil {
		return nil, err
	}

	td := BuildSafeTxTypedData(c.chainID, c.safeAddr, to, data, operation, nonce)
	signature, err := c.signer.SignTypedData(ctx, td)
	if err != nil {
		return nil, fmt.Errorf("sign safe transaction: %w", err)
	}

	req := submitRequest{
		Type:        "SAFE",
		From:        c.signer.Address().Hex(),
		To:          to.Hex(),
		ProxyWallet: c.safeAddr.Hex(),
		Data:        "0x" + hex.EncodeToString(data),
		Nonce:       nonce.String(),
		Signature:   signature,
		SignatureParams: &signatureParams{
			GasPrice:   "0",
			SafeTxnGas: "0",
			BaseGas:    "0",
		},
		Metadata: metadata,
	}

	// The HMAC covers the exact bytes on the wire, so marshal once and
	// send the string as-is.
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal submit request: %w", err)
	}

	path := "/submit"
	headers, err := c.builderHeaders(http.MethodPost, path, string(body))
	if err != nil {
		return nil, err
	}

	var out Response
	resp, err := c.http.DoRequest(ctx, http.MethodPost, path, &rest.RequestOptions{
		Headers: headers,
		Data:    string(body),
	}, &out)
	if err := rest.CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("submit to relayer: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("relayer rejected transaction: %s", out.Error)
	}
	return &out, nil
}
