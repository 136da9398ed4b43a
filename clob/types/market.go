package types

// MarketPrice is one price point.
type MarketPrice struct {
	Timestamp int64   `json:"t"`
	Price     float64 `json:"p"`
}

// MidpointResponse is the /midpoint reply.
type MidpointResponse struct {
	Mid string `json:"mid"`
}

// OrderBookSummary is the /book reply. The exchange serves bids ascending
// and asks descending; callers must still re-sort before picking a best
// level.
type OrderBookSummary struct {
	Market       string         `json:"market"`
	AssetID      string         `json:"asset_id"`
	Timestamp    string         `json:"timestamp"`
	Bids         []OrderSummary `json:"bids"`
	Asks         []OrderSummary `json:"asks"`
	MinOrderSize string         `json:"min_order_size"`
	TickSize     string         `json:"tick_size"`
	NegRisk      bool           `json:"neg_risk"`
	Hash         string         `json:"hash"`
}

// OrderSummary is one price level.
type OrderSummary struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BalanceAllowanceParams queries exchange-tracked balance/allowance for the
// authenticated account.
type BalanceAllowanceParams struct {
	AssetType     AssetType
	TokenID       *string
	SignatureType *SignatureType
}

// BalanceAllowanceResponse reports funding-address balance and allowances
// as the exchange sees them.
type BalanceAllowanceResponse struct {
	Balance             string            `json:"balance"`
	Allowance           string            `json:"allowance"`
	CollateralBalance   string            `json:"collateralBalance,omitempty"`
	CollateralAllowance string            `json:"collateralAllowance,omitempty"`
	Allowances          map[string]string `json:"allowances,omitempty"`
}
