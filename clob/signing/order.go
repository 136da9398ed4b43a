package signing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betdesk/gotrader/clob/types"
)

// OrderData is the unsigned order in signing form.
type OrderData struct {
	Salt          int64
	Maker         string
	Signer        string
	Taker         string
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          types.Side
	SignatureType types.SignatureType
}

// BuildOrderTypedData builds the EIP-712 payload for one order against the
// given exchange contract.
func BuildOrderTypedData(chainID types.Chain, exchangeAddress string, order *OrderData) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              ExchangeDomainName,
			Version:           ExchangeVersion,
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: exchangeAddress,
		},
		Message: map[string]interface{}{
			"salt":          big.NewInt(order.Salt),
			"maker":         common.HexToAddress(order.Maker).Hex(),
			"signer":        common.HexToAddress(order.Signer).Hex(),
			"taker":         common.HexToAddress(order.Taker).Hex(),
			"tokenId":       order.TokenID,
			"makerAmount":   order.MakerAmount,
			"takerAmount":   order.TakerAmount,
			"expiration":    order.Expiration,
			"nonce":         order.Nonce,
			"feeRateBps":    order.FeeRateBps,
			"side":          big.NewInt(int64(order.Side.WireSide())),
			"signatureType": big.NewInt(int64(order.SignatureType)),
		},
	}
}

// BuildOrderSignature signs one order with the given signer. For proxy
// funding the maker differs from the signer; the exchange verifies against
// SignatureType.
func BuildOrderSignature(ctx context.Context, signer TypedDataSigner, chainID types.Chain, exchangeAddress string, order *OrderData) (string, error) {
	td := BuildOrderTypedData(chainID, exchangeAddress, order)
	sig, err := signer.SignTypedData(ctx, td)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	return sig, nil
}
