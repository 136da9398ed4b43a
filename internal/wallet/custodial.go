package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"

	"github.com/betdesk/gotrader/clob/signing"
	"github.com/betdesk/gotrader/clob/types"
)

// DefaultDerivationPath is the standard first Ethereum account.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// Custodial is the local-key backend. The key never leaves the process,
// so signing never waits on a human and the network is whatever the
// configured RPC endpoint serves.
type Custodial struct {
	signer *signing.LocalSigner
	chain  types.Chain
}

// NewCustodialFromHex builds a custodial wallet from a raw private key.
func NewCustodialFromHex(hexKey string, chain types.Chain) (*Custodial, error) {
	signer, err := signing.NewLocalSignerFromHex(hexKey)
	if err != nil {
		return nil, err
	}
	return &Custodial{signer: signer, chain: chain}, nil
}

// NewCustodialFromMnemonic derives the key from a BIP-39 mnemonic at the
// given path, defaulting to the first Ethereum account.
func NewCustodialFromMnemonic(mnemonic, derivationPath string, chain types.Chain) (*Custodial, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, fmt.Errorf("mnemonic is required")
	}
	if derivationPath == "" {
		derivationPath = DefaultDerivationPath
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path: %w", err)
	}

	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("derive account: %w", err)
	}

	pk, err := w.PrivateKey(acct)
	if err != nil {
		return nil, fmt.Errorf("extract private key: %w", err)
	}

	return &Custodial{signer: signing.NewLocalSigner(pk), chain: chain}, nil
}

func (c *Custodial) Address() common.Address {
	return c.signer.Address()
}

func (c *Custodial) Kind() Kind {
	return KindCustodial
}

func (c *Custodial) Network(_ context.Context) (types.Chain, error) {
	return c.chain, nil
}

// EnsureNetwork retargets the local wallet. A local key signs for any
// chain, so this never fails.
func (c *Custodial) EnsureNetwork(_ context.Context, target types.Chain) error {
	c.chain = target
	return nil
}

func (c *Custodial) SignMessage(ctx context.Context, message []byte) (string, error) {
	return c.signer.SignMessage(ctx, message)
}

func (c *Custodial) SignTypedData(ctx context.Context, td apitypes.TypedData) (string, error) {
	return c.signer.SignTypedData(ctx, td)
}

// OnAccountsChanged is a no-op; custodial accounts cannot change under us.
func (c *Custodial) OnAccountsChanged(func(accounts []common.Address)) {}

// OnDisconnect is a no-op; there is no external session to lose.
func (c *Custodial) OnDisconnect(func()) {}

// Signer exposes the underlying signer for exchange-client construction.
func (c *Custodial) Signer() *signing.LocalSigner {
	return c.signer
}

// PrivateKey exposes the raw key for on-chain transaction signing.
func (c *Custodial) PrivateKey() *ecdsa.PrivateKey {
	return c.signer.PrivateKey()
}
