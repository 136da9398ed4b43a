package types

import "github.com/polymarket/go-order-utils/pkg/model"

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// WireSide returns the numeric side used in EIP-712 order payloads.
func (s Side) WireSide() int {
	if s == SideBuy {
		return int(model.BUY)
	}
	return int(model.SELL)
}

// OrderType is the exchange time-in-force.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // rests until cancelled
	OrderTypeFOK OrderType = "FOK" // fills completely or not at all
	OrderTypeGTD OrderType = "GTD" // rests until a deadline
	OrderTypeFAK OrderType = "FAK" // fills what it can, cancels the rest
)

// Chain is the blockchain network id.
type Chain int

const (
	ChainPolygon Chain = 137
	ChainAmoy    Chain = 80002
)

// SignatureType selects how the exchange verifies an order signature.
// Values follow the exchange's order-utils definitions.
type SignatureType int

const (
	SignatureTypeEOA        = SignatureType(model.EOA)
	SignatureTypeProxy      = SignatureType(model.POLY_PROXY)
	SignatureTypeGnosisSafe = SignatureType(model.POLY_GNOSIS_SAFE)
)

// AssetType distinguishes collateral from conditional tokens.
type AssetType string

const (
	AssetTypeCollateral  AssetType = "COLLATERAL"
	AssetTypeConditional AssetType = "CONDITIONAL"
)

// TickSize is the market price precision.
type TickSize string

const (
	TickSize01    TickSize = "0.1"
	TickSize001   TickSize = "0.01"
	TickSize0001  TickSize = "0.001"
	TickSize00001 TickSize = "0.0001"
)

// ApiKeyCreds are the exchange API credentials bound to a wallet.
type ApiKeyCreds struct {
	Key        string `json:"key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// ApiKeyRaw is the raw create/derive response shape.
type ApiKeyRaw struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// TickSizes caches per-token tick size.
type TickSizes map[string]TickSize

// NegRisk caches per-token neg-risk flags.
type NegRisk map[string]bool
