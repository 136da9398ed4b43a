package wallet

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/pkg/logger"
)

// Provider is the transport to an external wallet application (browser
// extension, relay session or mobile wallet). Implementations own the
// actual connection; calls block until the remote side answers.
type Provider interface {
	ChainID(ctx context.Context) (types.Chain, error)
	SwitchChain(ctx context.Context, target types.Chain) error
	PersonalSign(ctx context.Context, address common.Address, message []byte) (string, error)
	SignTypedData(ctx context.Context, address common.Address, td apitypes.TypedData) (string, error)
}

// signWarnAfter is the soft threshold before surfacing signing guidance.
// The request keeps waiting; an already-submitted signature request
// cannot be retracted from the external wallet.
const signWarnAfter = 5 * time.Second

// Remote adapts one external wallet session. Every signature request is
// stamped with the session generation at the time it started; a
// completion whose generation no longer matches (account switch,
// disconnect, user-perceived cancel) is discarded instead of being acted
// on.
type Remote struct {
	kind     Kind
	provider Provider

	mu      sync.RWMutex
	address common.Address

	generation atomic.Uint64

	accountsCbs []func([]common.Address)
	disconnects []func()
}

// NewRemote builds an adapter over an already-connected provider session.
func NewRemote(kind Kind, provider Provider, address common.Address) (*Remote, error) {
	if kind.IsCustodial() {
		return nil, fmt.Errorf("remote adapter cannot wrap a custodial backend")
	}
	r := &Remote{kind: kind, provider: provider}
	r.address = address
	r.generation.Store(1)
	return r, nil
}

func (r *Remote) Address() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.address
}

func (r *Remote) Kind() Kind {
	return r.kind
}

func (r *Remote) Network(ctx context.Context) (types.Chain, error) {
	return r.provider.ChainID(ctx)
}

func (r *Remote) EnsureNetwork(ctx context.Context, target types.Chain) error {
	current, err := r.provider.ChainID(ctx)
	if err == nil && current == target {
		return nil
	}
	if err := r.provider.SwitchChain(ctx, target); err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkSwitch, err)
	}
	return nil
}

func (r *Remote) SignMessage(ctx context.Context, message []byte) (string, error) {
	addr := r.Address()
	return r.awaitSignature(ctx, "message", func(ctx context.Context) (string, error) {
		return r.provider.PersonalSign(ctx, addr, message)
	})
}

func (r *Remote) SignTypedData(ctx context.Context, td apitypes.TypedData) (string, error) {
	addr := r.Address()
	return r.awaitSignature(ctx, "typed-data", func(ctx context.Context) (string, error) {
		return r.provider.SignTypedData(ctx, addr, td)
	})
}

type signResult struct {
	sig string
	err error
}

// awaitSignature runs one signing request against the external wallet.
// The caller's context only stops the wait; the wallet-side prompt stays
// open. If the session generation moved on before the wallet answered,
// the answer is logged and dropped.
func (r *Remote) awaitSignature(ctx context.Context, what string, sign func(context.Context) (string, error)) (string, error) {
	gen := r.generation.Load()

	done := make(chan signResult, 1)
	go func() {
		sig, err := sign(context.WithoutCancel(ctx))
		if r.generation.Load() != gen {
			logger.Warnf("wallet: discarding stale %s signature from %s session", what, r.kind)
			return
		}
		done <- signResult{sig: sig, err: err}
	}()

	warn := time.NewTimer(signWarnAfter)
	defer warn.Stop()

	for {
		select {
		case res := <-done:
			if res.err != nil {
				return "", fmt.Errorf("%w: %v", ErrSigningRejected, res.err)
			}
			return res.sig, nil
		case <-warn.C:
			logger.Warnf("wallet: %s signature pending for %s, check your %s wallet", what, signWarnAfter, r.kind)
		case <-ctx.Done():
			// Invalidate so a late completion cannot be acted on.
			r.generation.Add(1)
			return "", ctx.Err()
		}
	}
}

func (r *Remote) OnAccountsChanged(cb func(accounts []common.Address)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accountsCbs = append(r.accountsCbs, cb)
}

func (r *Remote) OnDisconnect(cb func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects = append(r.disconnects, cb)
}

// HandleAccountsChanged is called by provider plumbing when the external
// wallet switches accounts. In-flight signature requests become stale.
func (r *Remote) HandleAccountsChanged(accounts []common.Address) {
	r.generation.Add(1)

	r.mu.Lock()
	if len(accounts) > 0 {
		r.address = accounts[0]
	} else {
		r.address = common.Address{}
	}
	cbs := append([]func([]common.Address){}, r.accountsCbs...)
	r.mu.Unlock()

	for _, cb := range cbs {
		cb(accounts)
	}
}

// HandleDisconnect is called by provider plumbing on session loss.
func (r *Remote) HandleDisconnect() {
	r.generation.Add(1)

	r.mu.Lock()
	r.address = common.Address{}
	cbs := append([]func(){}, r.disconnects...)
	r.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}
