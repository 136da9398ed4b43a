package signing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betdesk/gotrader/clob/types"
)

// CreateL1Headers builds the EIP-712 attestation headers for credential
// derivation. nil timestamp means now; nil nonce means 0.
func CreateL1Headers(ctx context.Context, signer TypedDataSigner, chainID types.Chain, nonce *int64, timestamp *int64) (*types.L1PolyHeader, error) {
	ts := time.Now().Unix()
	if timestamp != nil {
		ts = *timestamp
	}
	n := int64(0)
	if nonce != nil {
		n = *nonce
	}

	sig, err := BuildClobAuthSignature(ctx, signer, chainID, ts, n)
	if err != nil {
		return nil, fmt.Errorf("build auth signature: %w", err)
	}

	return &types.L1PolyHeader{
		PolyAddress:   signer.Address().Hex(),
		PolySignature: sig,
		PolyTimestamp: strconv.FormatInt(ts, 10),
		PolyNonce:     strconv.FormatInt(n, 10),
	}, nil
}

// CreateL2Headers builds the API-key HMAC headers for an authenticated
// request.
func CreateL2Headers(address common.Address, creds *types.ApiKeyCreds, args *types.L2HeaderArgs, timestamp *int64) (*types.L2PolyHeader, error) {
	ts := time.Now().Unix()
	if timestamp != nil {
		ts = *timestamp
	}

	sig, err := BuildHmacSignature(creds.Secret, ts, args.Method, args.RequestPath, args.Body)
	if err != nil {
		return nil, fmt.Errorf("build hmac signature: %w", err)
	}

	return &types.L2PolyHeader{
		PolyAddress:    address.Hex(),
		PolySignature:  sig,
		PolyTimestamp:  strconv.FormatInt(ts, 10),
		PolyAPIKey:     creds.Key,
		PolyPassphrase: creds.Passphrase,
	}, nil
}
