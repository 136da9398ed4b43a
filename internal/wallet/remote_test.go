package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betdesk/gotrader/clob/types"
)

type stubProvider struct {
	chain   types.Chain
	release chan struct{}
	signed  chan string
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		chain:   types.ChainPolygon,
		release: make(chan struct{}),
		signed:  make(chan string, 4),
	}
}

func (p *stubProvider) ChainID(context.Context) (types.Chain, error) { return p.chain, nil }

func (p *stubProvider) SwitchChain(_ context.Context, target types.Chain) error {
	p.chain = target
	return nil
}

func (p *stubProvider) PersonalSign(ctx context.Context, _ common.Address, _ []byte) (string, error) {
	select {
	case <-p.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	sig := "0xsigned"
	p.signed <- sig
	return sig, nil
}

func (p *stubProvider) SignTypedData(ctx context.Context, addr common.Address, _ apitypes.TypedData) (string, error) {
	return p.PersonalSign(ctx, addr, nil)
}

func TestNewRemoteRejectsCustodial(t *testing.T) {
	if _, err := NewRemote(KindCustodial, newStubProvider(), common.Address{}); err == nil {
		t.Fatalf("expected error wrapping custodial backend")
	}
}

func TestRemoteSignMessage(t *testing.T) {
	p := newStubProvider()
	r, err := NewRemote(KindExtension, p, common.HexToAddress("0xabc0000000000000000000000000000000000000"))
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	close(p.release)
	sig, err := r.SignMessage(context.Background(), []byte("hello"))
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	if sig != "0xsigned" {
		t.Fatalf("unexpected signature %q", sig)
	}
}

func TestRemoteSignCancelledBeforeCompletion(t *testing.T) {
	p := newStubProvider()
	r, err := NewRemote(KindMobile, p, common.HexToAddress("0xabc0000000000000000000000000000000000000"))
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := r.SignMessage(ctx, []byte("hello")); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The orphaned wallet-side request may still complete; it must be
	// dropped rather than surfaced to anyone.
	close(p.release)
	select {
	case <-p.signed:
	case <-time.After(time.Second):
		t.Fatalf("provider never completed the orphaned request")
	}
}

func TestRemoteAccountsChanged(t *testing.T) {
	p := newStubProvider()
	r, err := NewRemote(KindRelay, p, common.HexToAddress("0x0001000000000000000000000000000000000000"))
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	var notified []common.Address
	r.OnAccountsChanged(func(accounts []common.Address) { notified = accounts })

	next := common.HexToAddress("0x0002000000000000000000000000000000000000")
	r.HandleAccountsChanged([]common.Address{next})

	if r.Address() != next {
		t.Fatalf("address not updated after account switch")
	}
	if len(notified) != 1 || notified[0] != next {
		t.Fatalf("callback not invoked with new accounts")
	}
}

func TestRemoteDisconnectClearsAddress(t *testing.T) {
	p := newStubProvider()
	r, err := NewRemote(KindExtension, p, common.HexToAddress("0x0001000000000000000000000000000000000000"))
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	fired := false
	r.OnDisconnect(func() { fired = true })
	r.HandleDisconnect()

	if !fired {
		t.Fatalf("disconnect callback not invoked")
	}
	if (r.Address() != common.Address{}) {
		t.Fatalf("address not cleared on disconnect")
	}
}

func TestRemoteEnsureNetwork(t *testing.T) {
	p := newStubProvider()
	r, err := NewRemote(KindExtension, p, common.Address{})
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	if err := r.EnsureNetwork(context.Background(), types.ChainAmoy); err != nil {
		t.Fatalf("EnsureNetwork: %v", err)
	}
	if p.chain != types.ChainAmoy {
		t.Fatalf("provider chain = %d, want %d", p.chain, types.ChainAmoy)
	}
}
