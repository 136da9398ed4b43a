package client

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/betdesk/gotrader/clob/signing"
	"github.com/betdesk/gotrader/clob/types"
)

// RoundConfig sets decimal places per tick size.
type RoundConfig struct {
	Price  int
	Size   int
	Amount int
}

// RoundingConfig maps tick size to rounding rules.
var RoundingConfig = map[types.TickSize]RoundConfig{
	types.TickSize01:    {Price: 1, Size: 2, Amount: 3},
	types.TickSize001:   {Price: 2, Size: 2, Amount: 4},
	types.TickSize0001:  {Price: 3, Size: 2, Amount: 5},
	types.TickSize00001: {Price: 4, Size: 2, Amount: 6},
}

// OrderBuilder signs orders for one funding address.
type OrderBuilder struct {
	client        *Client
	signatureType types.SignatureType
	funderAddress string
}

// NewOrderBuilder creates a builder. funderAddress may be empty, in which
// case the signer address is the maker.
func NewOrderBuilder(client *Client, signatureType types.SignatureType, funderAddress string) *OrderBuilder {
	return &OrderBuilder{
		client:        client,
		signatureType: signatureType,
		funderAddress: funderAddress,
	}
}

// BuildOrder computes amounts, rounds per tick size and signs.
func (ob *OrderBuilder) BuildOrder(ctx context.Context, userOrder *types.UserOrder, options *types.CreateOrderOptions) (*types.SignedOrder, error) {
	contractConfig, err := GetContractConfig(ob.client.GetChainID())
	if err != nil {
		return nil, fmt.Errorf("contract config: %w", err)
	}

	roundConfig, ok := RoundingConfig[options.TickSize]
	if !ok {
		return nil, fmt.Errorf("unsupported tick size: %s", options.TickSize)
	}

	signerAddress := ob.client.signer.Address()

	maker := signerAddress.Hex()
	if ob.funderAddress != "" {
		maker = ob.funderAddress
	}

	rawMakerAmt, rawTakerAmt := getOrderRawAmounts(userOrder.Side, userOrder.Size, userOrder.Price, roundConfig)

	makerAmount := parseUnits(rawMakerAmt, CollateralTokenDecimals)
	takerAmount := parseUnits(rawTakerAmt, CollateralTokenDecimals)

	taker := "0x0000000000000000000000000000000000000000"
	if userOrder.Taker != nil && *userOrder.Taker != "" {
		taker = *userOrder.Taker
	}

	feeRateBps := big.NewInt(0)
	if userOrder.FeeRateBps != nil {
		feeRateBps = big.NewInt(int64(*userOrder.FeeRateBps))
	}

	nonce := big.NewInt(0)
	if userOrder.Nonce != nil {
		nonce = big.NewInt(int64(*userOrder.Nonce))
	}

	expiration := big.NewInt(0)
	if userOrder.Expiration != nil {
		expiration = big.NewInt(*userOrder.Expiration)
	}

	salt := time.Now().UnixNano()

	tokenID, ok := new(big.Int).SetString(userOrder.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid tokenID: %s", userOrder.TokenID)
	}

	exchangeAddress := contractConfig.Exchange
	if options.NegRisk != nil && *options.NegRisk {
		exchangeAddress = contractConfig.NegRiskExchange
	}

	orderData := &signing.OrderData{
		Salt:          salt,
		Maker:         maker,
		Signer:        signerAddress.Hex(),
		Taker:         taker,
		TokenID:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    expiration,
		Nonce:         nonce,
		FeeRateBps:    feeRateBps,
		Side:          userOrder.Side,
		SignatureType: ob.signatureType,
	}

	signature, err := signing.BuildOrderSignature(ctx, ob.client.signer, ob.client.GetChainID(), exchangeAddress, orderData)
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}

	return &types.SignedOrder{
		Salt:          salt,
		Maker:         maker,
		Signer:        signerAddress.Hex(),
		Taker:         taker,
		TokenID:       userOrder.TokenID,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		Expiration:    expiration.String(),
		Nonce:         nonce.String(),
		FeeRateBps:    feeRateBps.String(),
		Side:          userOrder.Side,
		SignatureType: int(ob.signatureType),
		Signature:     signature,
	}, nil
}

// CreateOrderWithFunder builds and signs an order funded by the given
// address.
func (c *Client) CreateOrderWithFunder(ctx context.Context, req *types.UserOrder, options *types.CreateOrderOptions, funderAddress string, signatureType types.SignatureType) (*types.SignedOrder, error) {
	builder := NewOrderBuilder(c, signatureType, funderAddress)
	return builder.BuildOrder(ctx, req, options)
}

func decimalPlaces(num float64) int {
	if num == math.Trunc(num) {
		return 0
	}
	str := strconv.FormatFloat(num, 'f', -1, 64)
	parts := strings.Split(str, ".")
	if len(parts) < 2 {
		return 0
	}
	return len(parts[1])
}

func roundNormal(num float64, decimals int) float64 {
	if decimalPlaces(num) <= decimals {
		return num
	}
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(num*multiplier) / multiplier
}

func roundDown(num float64, decimals int) float64 {
	if decimalPlaces(num) <= decimals {
		return num
	}
	multiplier := math.Pow(10, float64(decimals))
	return math.Floor(num*multiplier) / multiplier
}

func roundUp(num float64, decimals int) float64 {
	if decimalPlaces(num) <= decimals {
		return num
	}
	multiplier := math.Pow(10, float64(decimals))
	return math.Ceil(num*multiplier) / multiplier
}

// getOrderRawAmounts computes maker/taker amounts with side-specific
// precision rules: token amounts carry at most 2 decimals, USDC amounts at
// most the tick's amount precision.
func getOrderRawAmounts(side types.Side, size float64, price float64, roundConfig RoundConfig) (rawMakerAmt float64, rawTakerAmt float64) {
	rawPrice := roundNormal(price, roundConfig.Price)

	if side == types.SideBuy {
		rawTakerAmt = roundDown(size, roundConfig.Size)
		rawMakerAmt = rawTakerAmt * rawPrice
		if decimalPlaces(rawMakerAmt) > roundConfig.Amount {
			rawMakerAmt = roundUp(rawMakerAmt, roundConfig.Amount+4)
			if decimalPlaces(rawMakerAmt) > roundConfig.Amount {
				rawMakerAmt = roundDown(rawMakerAmt, roundConfig.Amount)
			}
		}
		return rawMakerAmt, rawTakerAmt
	}

	rawMakerAmt = roundDown(size, roundConfig.Size)
	rawTakerAmt = rawMakerAmt * rawPrice
	if decimalPlaces(rawTakerAmt) > 4 {
		rawTakerAmt = roundDown(rawTakerAmt, 4)
	}
	if decimalPlaces(rawMakerAmt) > 2 {
		rawMakerAmt = roundDown(rawMakerAmt, 2)
		rawTakerAmt = rawMakerAmt * rawPrice
		if decimalPlaces(rawTakerAmt) > 4 {
			rawTakerAmt = roundDown(rawTakerAmt, 4)
		}
	}
	return rawMakerAmt, rawTakerAmt
}

// parseUnits scales a float into integer token units.
func parseUnits(value float64, decimals int) *big.Int {
	multiplier := new(big.Float).SetFloat64(math.Pow(10, float64(decimals)))
	valueBig := new(big.Float).SetFloat64(value)
	result, _ := new(big.Float).Mul(valueBig, multiplier).Int(nil)
	return result
}
