package types

// UserOrder is the caller-facing limit order request.
type UserOrder struct {
	TokenID string

	Price float64

	// Size is in outcome-share units.
	Size float64

	Side Side

	// FeeRateBps is optional; nil means the exchange default.
	FeeRateBps *int

	// Nonce is the on-chain cancel nonce, optional.
	Nonce *int

	// Expiration is a unix timestamp in seconds, optional. Required for GTD.
	Expiration *int64

	// Taker restricts the order to one counterparty; nil/zero address means
	// open to all.
	Taker *string
}

// SignedOrder is the wire form submitted to the exchange.
type SignedOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          Side   `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// NewOrder wraps a signed order with its time-in-force for submission.
type NewOrder struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType OrderType   `json:"orderType"`
}

// OrderResponse is the exchange's submission result. Success with an empty
// OrderID is a valid terminal state (status "pending") that needs separate
// reconciliation.
type OrderResponse struct {
	Success           bool     `json:"success"`
	ErrorMsg          string   `json:"errorMsg"`
	OrderID           string   `json:"orderID"`
	TransactionHashes []string `json:"transactionsHashes"`
	Status            string   `json:"status"`
	TakingAmount      string   `json:"takingAmount"`
	MakingAmount      string   `json:"makingAmount"`
}

// OpenOrder is one resting order as reported by the exchange.
type OpenOrder struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	Owner           string   `json:"owner"`
	MakerAddress    string   `json:"maker_address"`
	Market          string   `json:"market"`
	AssetID         string   `json:"asset_id"`
	Side            string   `json:"side"`
	OriginalSize    string   `json:"original_size"`
	SizeMatched     string   `json:"size_matched"`
	Price           string   `json:"price"`
	AssociateTrades []string `json:"associate_trades"`
	Outcome         string   `json:"outcome"`
	CreatedAt       int64    `json:"created_at"`
	Expiration      string   `json:"expiration"`
	OrderType       string   `json:"order_type"`
}

// OpenOrdersResponse is the open orders listing.
type OpenOrdersResponse []OpenOrder

// OpenOrderParams filters the open orders query.
type OpenOrderParams struct {
	ID      *string
	Market  *string
	AssetID *string
}

// CreateOrderOptions carries per-market signing context.
type CreateOrderOptions struct {
	TickSize TickSize
	NegRisk  *bool
}
