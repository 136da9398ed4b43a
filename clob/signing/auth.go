package signing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betdesk/gotrader/clob/types"
)

// BuildClobAuthTypedData builds the wallet-attestation payload the exchange
// verifies when deriving or creating API credentials.
func BuildClobAuthTypedData(address string, chainID types.Chain, timestamp int64, nonce int64) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    ClobDomainName,
			Version: ClobVersion,
			ChainId: math.NewHexOrDecimal256(int64(chainID)),
		},
		Message: map[string]interface{}{
			"address":   address,
			"timestamp": fmt.Sprintf("%d", timestamp),
			"nonce":     big.NewInt(nonce),
			"message":   MsgToSign,
		},
	}
}

// BuildClobAuthSignature signs the attestation payload with the given
// signer.
func BuildClobAuthSignature(ctx context.Context, signer TypedDataSigner, chainID types.Chain, timestamp int64, nonce int64) (string, error) {
	td := BuildClobAuthTypedData(signer.Address().Hex(), chainID, timestamp, nonce)
	sig, err := signer.SignTypedData(ctx, td)
	if err != nil {
		return "", fmt.Errorf("sign clob auth: %w", err)
	}
	return sig, nil
}
