package engine

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/betdesk/gotrader/clob/client"
	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/internal/approval"
	"github.com/betdesk/gotrader/internal/companion"
	"github.com/betdesk/gotrader/internal/fees"
	"github.com/betdesk/gotrader/internal/session"
	"github.com/betdesk/gotrader/internal/wallet"
	"github.com/betdesk/gotrader/pkg/cache"
	"github.com/betdesk/gotrader/pkg/logger"
)

// TimeInForce selects how long an order may rest on the book.
type TimeInForce string

const (
	ImmediateOrCancel TimeInForce = "immediateOrCancel"
	GoodTilCancelled  TimeInForce = "goodTilCancelled"
	GoodTilDate       TimeInForce = "goodTilDate"
)

func (t TimeInForce) orderType() types.OrderType {
	switch t {
	case ImmediateOrCancel:
		return types.OrderTypeFAK
	case GoodTilDate:
		return types.OrderTypeGTD
	default:
		return types.OrderTypeGTC
	}
}

func (t TimeInForce) resting() bool {
	return t != ImmediateOrCancel
}

const (
	minPrice = 0.01
	maxPrice = 0.99

	// priceNudge makes a fallback limit one tick more aggressive than
	// the best visible quote so the order actually trades.
	priceNudge = 0.01

	defaultBookTTL = 5 * time.Second
)

// Exchange is the order-facing slice of the CLOB client.
type Exchange interface {
	GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error)
	GetMidpoint(ctx context.Context, tokenID string) (float64, error)
	CreateOrderWithFunder(ctx context.Context, req *types.UserOrder, options *types.CreateOrderOptions, funderAddress string, signatureType types.SignatureType) (*types.SignedOrder, error)
	PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType) (*types.OrderResponse, error)
}

// SessionSource exposes the active trading session. *session.Manager
// satisfies it.
type SessionSource interface {
	Session() *session.TradingSession
	IsReady() bool
	Invalidate()
}

// BalanceReader is the on-chain read slice the engine needs for its
// balance precondition and allowance cross-check. *chain.Client
// satisfies it.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// FeeBook records and collects platform fees. *fees.Collector
// satisfies it.
type FeeBook interface {
	Config() fees.Config
	Collect(ctx context.Context, walletAddress, orderID, tokenID, side string, amount decimal.Decimal) (fees.Record, error)
	DeferUntilFill(ctx context.Context, walletAddress, orderID, tokenID, side string, amount decimal.Decimal) (fees.Record, error)
}

// OrderRecorder mirrors placed orders to the companion service.
// *companion.Client satisfies it.
type OrderRecorder interface {
	RecordOrder(ctx context.Context, rec companion.OrderRecord) error
}

// Options wires an Engine.
type Options struct {
	Sessions  SessionSource
	Exchange  Exchange
	Chain     BalanceReader
	Fees      FeeBook
	Recorder  OrderRecorder // optional
	Positions *PositionStore
	Contracts *client.ContractConfig
	BookTTL   time.Duration
}

// Engine turns buy/sell intents into signed, fee-accounted exchange
// orders. One logical flow of control per action; the book cache is
// the only state shared with background refreshers.
type Engine struct {
	opts  Options
	books *cache.InMemoryCache[string, *types.OrderBookSummary]
}

func New(opts Options) *Engine {
	ttl := opts.BookTTL
	if ttl <= 0 {
		ttl = defaultBookTTL
	}
	return &Engine{
		opts:  opts,
		books: cache.NewInMemoryCache[string, *types.OrderBookSummary](ttl),
	}
}

// BuyRequest spends Amount of quote currency on an outcome token.
type BuyRequest struct {
	TokenID     string
	Amount      float64
	Price       *float64 // explicit limit; nil derives one from the book
	TimeInForce TimeInForce
	Expiry      int64 // unix seconds, required for GoodTilDate
	NegRisk     bool
	TickSize    types.TickSize
}

// SellRequest unwinds part of an existing position. The position is
// passed in so over-selling is rejected without a network round trip.
type SellRequest struct {
	Position    Position
	Shares      float64
	Price       *float64
	TimeInForce TimeInForce
	Expiry      int64
	NegRisk     bool
	TickSize    types.TickSize
}

// OrderResult reports a placed order with its fee accounting.
type OrderResult struct {
	OrderID string
	Status  string

	Price  float64
	Shares float64

	Fee             decimal.Decimal
	TotalCost       decimal.Decimal
	PotentialPayout decimal.Decimal
	PotentialProfit decimal.Decimal

	FeeStatus fees.Status
}

// UpdateBook feeds a fresh order book snapshot into the advisory cache.
// Called by the market stream; pricing falls back to a live fetch when
// the cache misses.
func (e *Engine) UpdateBook(book *types.OrderBookSummary) {
	if book == nil || book.AssetID == "" {
		return
	}
	e.books.Set(book.AssetID, book, 0)
}

// PlaceBuy validates, prices, signs and submits a buy order, then
// settles the platform fee per the order's time in force.
func (e *Engine) PlaceBuy(ctx context.Context, req BuyRequest) (*OrderResult, error) {
	sess, err := e.readySession()
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, newError(KindInvalidAmount, "buy amount must be positive, got %v", req.Amount)
	}
	if err := validateExpiry(req.TimeInForce, req.Expiry); err != nil {
		return nil, err
	}

	price, err := e.buyPrice(ctx, req)
	if err != nil {
		return nil, err
	}
	shares := req.Amount / price

	amount := decimal.NewFromFloat(req.Amount)
	cfg := e.opts.Fees.Config()
	fee := cfg.Compute(amount)
	totalCost := amount.Add(fee)

	if err := e.checkFundingBalance(ctx, sess, totalCost); err != nil {
		return nil, err
	}

	order := &types.UserOrder{
		TokenID: req.TokenID,
		Price:   price,
		Size:    shares,
		Side:    types.SideBuy,
	}
	if req.TimeInForce == GoodTilDate {
		exp := req.Expiry
		order.Expiration = &exp
	}

	resp, err := e.signAndSubmit(ctx, sess, order, orderOptions(req.TickSize, req.NegRisk), req.TimeInForce)
	if err != nil {
		return nil, err
	}

	payout := decimal.NewFromFloat(shares)
	result := &OrderResult{
		OrderID:         resp.OrderID,
		Status:          resp.Status,
		Price:           price,
		Shares:          shares,
		Fee:             fee,
		TotalCost:       totalCost,
		PotentialPayout: payout,
		PotentialProfit: payout.Sub(totalCost),
	}
	result.FeeStatus = e.settleFee(ctx, sess, resp.OrderID, req.TokenID, string(types.SideBuy), amount, req.TimeInForce)

	e.afterOrder(ctx, sess, resp, order, req.TimeInForce, fee)
	if e.opts.Positions != nil {
		e.opts.Positions.Invalidate()
	}
	return result, nil
}

// PlaceSell validates, prices, signs and submits a sell order against
// an existing position.
func (e *Engine) PlaceSell(ctx context.Context, req SellRequest) (*OrderResult, error) {
	sess, err := e.readySession()
	if err != nil {
		return nil, err
	}
	if req.Shares <= 0 {
		return nil, newError(KindInvalidAmount, "share count must be positive, got %v", req.Shares)
	}
	if req.Shares > req.Position.Size {
		return nil, newError(KindInvalidAmount, "cannot sell %v shares against a position of %v", req.Shares, req.Position.Size)
	}
	if err := validateExpiry(req.TimeInForce, req.Expiry); err != nil {
		return nil, err
	}

	tokenID := req.Position.TokenID
	price, err := e.sellPrice(ctx, req)
	if err != nil {
		return nil, err
	}

	proceeds := decimal.NewFromFloat(req.Shares * price)
	cfg := e.opts.Fees.Config()
	fee := cfg.Compute(proceeds)

	order := &types.UserOrder{
		TokenID: tokenID,
		Price:   price,
		Size:    req.Shares,
		Side:    types.SideSell,
	}
	if req.TimeInForce == GoodTilDate {
		exp := req.Expiry
		order.Expiration = &exp
	}

	resp, err := e.signAndSubmit(ctx, sess, order, orderOptions(req.TickSize, req.NegRisk), req.TimeInForce)
	if err != nil {
		return nil, err
	}

	result := &OrderResult{
		OrderID:         resp.OrderID,
		Status:          resp.Status,
		Price:           price,
		Shares:          req.Shares,
		Fee:             fee,
		TotalCost:       proceeds.Sub(fee),
		PotentialPayout: proceeds,
		PotentialProfit: proceeds.Sub(fee),
	}
	result.FeeStatus = e.settleFee(ctx, sess, resp.OrderID, tokenID, string(types.SideSell), proceeds, req.TimeInForce)

	e.afterOrder(ctx, sess, resp, order, req.TimeInForce, fee)
	if e.opts.Positions != nil {
		e.opts.Positions.Reduce(tokenID, req.Shares)
	}
	return result, nil
}

func (e *Engine) readySession() (*session.TradingSession, error) {
	if !e.opts.Sessions.IsReady() {
		return nil, newError(KindSessionIncomplete, "trading session not initialized")
	}
	return e.opts.Sessions.Session(), nil
}

func validateExpiry(tif TimeInForce, expiry int64) error {
	if tif != GoodTilDate {
		return nil
	}
	if expiry <= time.Now().Unix() {
		return newError(KindInvalidAmount, "goodTilDate order needs a future expiry, got %d", expiry)
	}
	return nil
}

func orderOptions(tick types.TickSize, negRisk bool) *types.CreateOrderOptions {
	if tick == "" {
		tick = types.TickSize001
	}
	nr := negRisk
	return &types.CreateOrderOptions{TickSize: tick, NegRisk: &nr}
}

// buyPrice resolves the effective price for a buy: immediate orders take
// the live midpoint (best ask when no midpoint is served); resting
// orders take the caller's limit, or join one tick above the best bid.
func (e *Engine) buyPrice(ctx context.Context, req BuyRequest) (float64, error) {
	if req.TimeInForce == ImmediateOrCancel {
		if mid, err := e.opts.Exchange.GetMidpoint(ctx, req.TokenID); err == nil && mid > 0 {
			return clampPrice(mid), nil
		}
		book, err := e.orderBook(ctx, req.TokenID)
		if err != nil {
			return 0, wrapError(KindExchangeRejected, err, "no price source for token %s", req.TokenID)
		}
		ask, ok := bestAsk(book)
		if !ok {
			return 0, newError(KindExchangeRejected, "empty ask side for token %s", req.TokenID)
		}
		return clampPrice(ask), nil
	}

	if req.Price != nil {
		return clampPrice(*req.Price), nil
	}
	book, err := e.orderBook(ctx, req.TokenID)
	if err != nil {
		return 0, wrapError(KindExchangeRejected, err, "no price source for token %s", req.TokenID)
	}
	bid, ok := bestBid(book)
	if !ok {
		return 0, newError(KindExchangeRejected, "empty bid side for token %s", req.TokenID)
	}
	return clampPrice(roundCents(bid + priceNudge)), nil
}

// sellPrice mirrors buyPrice on the sell side: midpoint or best bid for
// immediate orders, caller's limit or one tick below the best ask for
// resting ones.
func (e *Engine) sellPrice(ctx context.Context, req SellRequest) (float64, error) {
	tokenID := req.Position.TokenID
	if req.TimeInForce == ImmediateOrCancel {
		if mid, err := e.opts.Exchange.GetMidpoint(ctx, tokenID); err == nil && mid > 0 {
			return clampPrice(mid), nil
		}
		book, err := e.orderBook(ctx, tokenID)
		if err != nil {
			return 0, wrapError(KindExchangeRejected, err, "no price source for token %s", tokenID)
		}
		bid, ok := bestBid(book)
		if !ok {
			return 0, newError(KindExchangeRejected, "empty bid side for token %s", tokenID)
		}
		return clampPrice(bid), nil
	}

	if req.Price != nil {
		return clampPrice(*req.Price), nil
	}
	book, err := e.orderBook(ctx, tokenID)
	if err != nil {
		return 0, wrapError(KindExchangeRejected, err, "no price source for token %s", tokenID)
	}
	ask, ok := bestAsk(book)
	if !ok {
		return 0, newError(KindExchangeRejected, "empty ask side for token %s", tokenID)
	}
	return clampPrice(roundCents(ask - priceNudge)), nil
}

func (e *Engine) orderBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error) {
	if book, ok := e.books.Get(tokenID); ok {
		return book, nil
	}
	book, err := e.opts.Exchange.GetOrderBook(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	e.books.Set(tokenID, book, 0)
	return book, nil
}

// checkFundingBalance enforces the balance precondition against the
// funding address, not the signing wallet.
func (e *Engine) checkFundingBalance(ctx context.Context, sess *session.TradingSession, totalCost decimal.Decimal) error {
	balance, err := e.opts.Chain.BalanceOf(ctx,
		common.HexToAddress(e.opts.Contracts.Collateral),
		common.HexToAddress(sess.FundingAddr))
	if err != nil {
		return wrapError(KindExchangeRejected, err, "read funding balance")
	}
	need := totalCost.Shift(6).BigInt()
	if balance.Cmp(need) < 0 {
		return newError(KindInsufficientBalance,
			"funding address holds %s raw units, order needs %s", balance, need)
	}
	return nil
}

func (e *Engine) signAndSubmit(ctx context.Context, sess *session.TradingSession, order *types.UserOrder, options *types.CreateOrderOptions, tif TimeInForce) (*types.OrderResponse, error) {
	signed, err := e.opts.Exchange.CreateOrderWithFunder(ctx, order, options, sess.FundingAddr, sess.SignatureType)
	if err != nil {
		return nil, classifySigningError(err)
	}

	resp, err := e.opts.Exchange.PostOrder(ctx, signed, tif.orderType())
	if err != nil {
		return nil, e.classifySubmitFailure(ctx, sess, err.Error(), err)
	}
	if !resp.Success {
		return nil, e.classifySubmitFailure(ctx, sess, resp.ErrorMsg, nil)
	}
	return resp, nil
}

func classifySigningError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrSigningRejected):
		return wrapError(KindSigningRejected, err, "wallet declined the order signature")
	case errors.Is(err, wallet.ErrDisconnected):
		return wrapError(KindWalletNotConnected, err, "wallet disconnected during signing")
	case errors.Is(err, wallet.ErrNetworkSwitch):
		return wrapError(KindNetworkMismatch, err, "wallet is on the wrong network")
	case errors.Is(err, context.DeadlineExceeded):
		return wrapError(KindSigningTimeout, err, "order signature still pending")
	default:
		return wrapError(KindExchangeRejected, err, "build order")
	}
}

// classifySubmitFailure resolves a rejected submission into an error
// kind. Message text alone cannot distinguish an allowance gap from a
// balance gap, so it is cross-checked against a fresh on-chain
// allowance read before routing the user back to the approval flow.
func (e *Engine) classifySubmitFailure(ctx context.Context, sess *session.TradingSession, message string, cause error) error {
	if credentialRejection(message) {
		e.opts.Sessions.Invalidate()
		return &Error{Kind: KindCredentialDerivationFailed,
			Msg: "exchange rejected stale credentials, session invalidated: " + message, Err: cause}
	}
	kind := classifyRejection(message, e.allowancesSatisfied(ctx, sess))
	return &Error{Kind: kind, Msg: "order rejected: " + message, Err: cause}
}

// allowancesSatisfied reads the four collateral allowances fresh. A
// read failure counts as satisfied so a flaky RPC cannot bounce an
// already-approved user back into the approval flow.
func (e *Engine) allowancesSatisfied(ctx context.Context, sess *session.TradingSession) bool {
	collateral := common.HexToAddress(e.opts.Contracts.Collateral)
	owner := common.HexToAddress(sess.FundingAddr)
	spenders := []string{
		e.opts.Contracts.Exchange,
		e.opts.Contracts.NegRiskExchange,
		e.opts.Contracts.NegRiskAdapter,
		e.opts.Contracts.ConditionalTokens,
	}
	for _, spender := range spenders {
		allowance, err := e.opts.Chain.Allowance(ctx, collateral, owner, common.HexToAddress(spender))
		if err != nil {
			logger.Warnf("engine: allowance read failed for %s: %v", spender, err)
			continue
		}
		if allowance.Cmp(approval.AllowanceThreshold) < 0 {
			return false
		}
	}
	return true
}

// settleFee collects immediately for orders that just traded and defers
// to the reconciler for resting ones. A failed transfer is logged and
// recorded, never surfaced as an order failure.
func (e *Engine) settleFee(ctx context.Context, sess *session.TradingSession, orderID, tokenID, side string, quoteAmount decimal.Decimal, tif TimeInForce) fees.Status {
	if tif.resting() {
		rec, err := e.opts.Fees.DeferUntilFill(ctx, sess.OwnerAddress, orderID, tokenID, side, quoteAmount)
		if err != nil {
			logger.Errorf("engine: defer fee for order %s: %v", orderID, err)
		}
		return rec.Status
	}
	rec, err := e.opts.Fees.Collect(ctx, sess.OwnerAddress, orderID, tokenID, side, quoteAmount)
	if err != nil {
		logger.Warnf("engine: fee collection for order %s: %v", orderID, err)
	}
	return rec.Status
}

func (e *Engine) afterOrder(ctx context.Context, sess *session.TradingSession, resp *types.OrderResponse, order *types.UserOrder, tif TimeInForce, fee decimal.Decimal) {
	e.books.Delete(order.TokenID)
	if e.opts.Recorder == nil {
		return
	}
	rec := companion.OrderRecord{
		OrderID:       resp.OrderID,
		WalletAddress: sess.OwnerAddress,
		TokenID:       order.TokenID,
		Side:          string(order.Side),
		Price:         order.Price,
		Shares:        order.Size,
		Amount:        order.Price * order.Size,
		Fee:           fee.String(),
		TimeInForce:   string(tif.orderType()),
		PlacedAt:      time.Now(),
	}
	if err := e.opts.Recorder.RecordOrder(ctx, rec); err != nil {
		logger.Warnf("engine: record order %s: %v", resp.OrderID, err)
	}
}

func roundCents(p float64) float64 {
	return math.Round(p*100) / 100
}

func clampPrice(p float64) float64 {
	if p < minPrice {
		return minPrice
	}
	if p > maxPrice {
		return maxPrice
	}
	return p
}

// The exchange serves bids ascending and asks descending; re-sort
// before picking a best level rather than trusting the wire order.
func bestBid(book *types.OrderBookSummary) (float64, bool) {
	return bestLevel(book.Bids, func(a, b float64) bool { return a > b })
}

func bestAsk(book *types.OrderBookSummary) (float64, bool) {
	return bestLevel(book.Asks, func(a, b float64) bool { return a < b })
}

func bestLevel(levels []types.OrderSummary, better func(a, b float64) bool) (float64, bool) {
	prices := make([]float64, 0, len(levels))
	for _, l := range levels {
		p, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			continue
		}
		prices = append(prices, p)
	}
	if len(prices) == 0 {
		return 0, false
	}
	sort.Slice(prices, func(i, j int) bool { return better(prices[i], prices[j]) })
	return prices[0], true
}
