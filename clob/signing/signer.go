package signing

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// TypedDataSigner produces EIP-712 signatures on behalf of one address.
// Wallet backends implement it; signing may block on a human inside an
// external wallet application, so every call takes a context.
type TypedDataSigner interface {
	Address() common.Address
	SignTypedData(ctx context.Context, td apitypes.TypedData) (string, error)
}

// MessageSigner produces EIP-191 personal-sign signatures.
type MessageSigner interface {
	Address() common.Address
	SignMessage(ctx context.Context, msg []byte) (string, error)
}

// LocalSigner signs with an in-process private key.
type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

func NewLocalSigner(privateKey *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// NewLocalSignerFromHex parses a hex private key, with or without the 0x
// prefix.
func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	if len(hexKey) > 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewLocalSigner(pk), nil
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

// PrivateKey exposes the raw key for on-chain transaction signing.
func (s *LocalSigner) PrivateKey() *ecdsa.PrivateKey {
	return s.privateKey
}

func (s *LocalSigner) SignTypedData(_ context.Context, td apitypes.TypedData) (string, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return "", fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign typed data: %w", err)
	}
	// Recovery id to Ethereum convention.
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

func (s *LocalSigner) SignMessage(_ context.Context, msg []byte) (string, error) {
	hash := accounts.TextHash(msg)
	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}
