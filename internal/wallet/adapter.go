package wallet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betdesk/gotrader/clob/types"
)

// Kind identifies a wallet backend.
type Kind string

const (
	KindCustodial Kind = "custodial"
	KindExtension Kind = "extension"
	KindRelay     Kind = "relay"
	KindMobile    Kind = "mobile"
)

// IsCustodial reports whether the backend holds its key locally.
func (k Kind) IsCustodial() bool {
	return k == KindCustodial
}

// SignatureScheme returns the order signature type for this backend.
// Custodial wallets sign as plain EOAs; every remote backend trades
// through a Gnosis Safe proxy.
func (k Kind) SignatureScheme() types.SignatureType {
	if k.IsCustodial() {
		return types.SignatureTypeEOA
	}
	return types.SignatureTypeGnosisSafe
}

// ParseKind validates a backend name from configuration.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCustodial, KindExtension, KindRelay, KindMobile:
		return Kind(s), nil
	}
	return "", errors.New("unknown wallet backend: " + s)
}

var (
	// ErrNetworkSwitch means the wallet rejected or cannot perform a
	// network switch.
	ErrNetworkSwitch = errors.New("wallet refused network switch")

	// ErrSigningRejected means the user declined the signature request.
	ErrSigningRejected = errors.New("signature request rejected")

	// ErrDisconnected means the wallet has no active account.
	ErrDisconnected = errors.New("wallet disconnected")
)

// Adapter is the uniform capability surface over all wallet backends.
// Signing calls may block indefinitely on user action inside an external
// wallet application; callers pass a context and apply their own timeout
// or guidance policy.
type Adapter interface {
	// Address returns the currently connected account.
	Address() common.Address

	Kind() Kind

	// Network returns the chain the wallet is currently on.
	Network(ctx context.Context) (types.Chain, error)

	// EnsureNetwork switches the wallet to the target chain, adding it
	// if needed. Returns ErrNetworkSwitch when the wallet refuses.
	EnsureNetwork(ctx context.Context, target types.Chain) error

	SignMessage(ctx context.Context, message []byte) (string, error)

	SignTypedData(ctx context.Context, td apitypes.TypedData) (string, error)

	// OnAccountsChanged registers a callback for account switches. The
	// new address list may be empty on lockout.
	OnAccountsChanged(cb func(accounts []common.Address))

	// OnDisconnect registers a callback for session loss.
	OnDisconnect(cb func())
}
