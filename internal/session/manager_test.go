package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/internal/wallet"
	"github.com/betdesk/gotrader/pkg/persistence"
)

type fakeWallet struct {
	address common.Address
	kind    wallet.Kind
}

func (f *fakeWallet) Address() common.Address { return f.address }
func (f *fakeWallet) Kind() wallet.Kind       { return f.kind }

func (f *fakeWallet) Network(context.Context) (types.Chain, error) {
	return types.ChainPolygon, nil
}

func (f *fakeWallet) EnsureNetwork(context.Context, types.Chain) error { return nil }

func (f *fakeWallet) SignMessage(context.Context, []byte) (string, error) {
	return "0xsig", nil
}

func (f *fakeWallet) SignTypedData(context.Context, apitypes.TypedData) (string, error) {
	return "0xsig", nil
}

func (f *fakeWallet) OnAccountsChanged(func([]common.Address)) {}
func (f *fakeWallet) OnDisconnect(func())                      {}

type countingCreds struct {
	calls int
}

func (c *countingCreds) CreateOrDeriveAPIKey(context.Context, *int64) (*types.ApiKeyCreds, error) {
	c.calls++
	return &types.ApiKeyCreds{
		Key:        fmt.Sprintf("key-%d", c.calls),
		Secret:     "c2VjcmV0",
		Passphrase: "pass",
	}, nil
}

func newTestManager(t *testing.T) (*Manager, *countingCreds) {
	t.Helper()
	creds := &countingCreds{}
	m := NewManager(Options{
		Store:       persistence.NewJSONFileService(t.TempDir()),
		ClobHost:    "https://clob.example.com",
		ChainID:     types.ChainPolygon,
		Credentials: creds,
	})
	return m, creds
}

func TestInitializeIdempotent(t *testing.T) {
	m, creds := newTestManager(t)
	w := &fakeWallet{
		address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		kind:    wallet.KindExtension,
	}

	first, err := m.Initialize(context.Background(), w)
	if err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	second, err := m.Initialize(context.Background(), w)
	if err != nil {
		t.Fatalf("second Initialize: %v", err)
	}

	if first.Creds.Key != second.Creds.Key {
		t.Fatalf("credentials changed across initializations: %s vs %s", first.Creds.Key, second.Creds.Key)
	}
	if first.FundingAddr != second.FundingAddr {
		t.Fatalf("funding address changed across initializations")
	}
	if creds.calls != 1 {
		t.Fatalf("credential derivation ran %d times, want 1", creds.calls)
	}
	if !m.IsReady() {
		t.Fatalf("manager not ready after Initialize")
	}
}

func TestInitializeCustodialUsesOwnerFunding(t *testing.T) {
	m, _ := newTestManager(t)
	w := &fakeWallet{
		address: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		kind:    wallet.KindCustodial,
	}

	sess, err := m.Initialize(context.Background(), w)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if sess.FundingAddr != normalizeAddress(w.address.Hex()) {
		t.Fatalf("custodial funding = %s, want owner", sess.FundingAddr)
	}
	if !sess.ProxyDeployed {
		t.Fatalf("custodial session must report deployed")
	}
	if sess.SignatureType != types.SignatureTypeEOA {
		t.Fatalf("custodial session must sign as EOA")
	}
}

func TestInitializeDiscardsOwnerMismatch(t *testing.T) {
	m, creds := newTestManager(t)
	w := &fakeWallet{
		address: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		kind:    wallet.KindRelay,
	}
	owner := normalizeAddress(w.address.Hex())

	// A record persisted under this owner's key but claiming another owner
	// must not be trusted.
	stale := TradingSession{
		SchemaVersion: schemaVersion,
		OwnerAddress:  "0x00000000000000000000000000000000000000aa",
		Backend:       wallet.KindRelay,
		Creds:         &types.ApiKeyCreds{Key: "stale"},
		CreatedAt:     time.Now(),
	}
	if err := m.opts.Store.NewStore(sessionStorePrefix, owner).Save(&stale); err != nil {
		t.Fatalf("seed stale session: %v", err)
	}

	sess, err := m.Initialize(context.Background(), w)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if sess.Creds.Key == "stale" {
		t.Fatalf("stale credentials were reused")
	}
	if creds.calls != 1 {
		t.Fatalf("expected fresh credential derivation")
	}
}

func TestInitializeDiscardsBackendSwitch(t *testing.T) {
	m, creds := newTestManager(t)
	addr := common.HexToAddress("0x4444444444444444444444444444444444444444")

	if _, err := m.Initialize(context.Background(), &fakeWallet{address: addr, kind: wallet.KindExtension}); err != nil {
		t.Fatalf("Initialize extension: %v", err)
	}

	sess, err := m.Initialize(context.Background(), &fakeWallet{address: addr, kind: wallet.KindCustodial})
	if err != nil {
		t.Fatalf("Initialize custodial: %v", err)
	}
	if sess.Backend != wallet.KindCustodial {
		t.Fatalf("session backend = %s, want custodial", sess.Backend)
	}
	if sess.FundingAddr != normalizeAddress(addr.Hex()) {
		t.Fatalf("funding address not re-resolved after backend switch")
	}
	if creds.calls != 2 {
		t.Fatalf("backend switch must re-derive credentials, got %d calls", creds.calls)
	}
}

func TestInvalidateForcesRederivation(t *testing.T) {
	m, creds := newTestManager(t)
	w := &fakeWallet{
		address: common.HexToAddress("0x5555555555555555555555555555555555555555"),
		kind:    wallet.KindMobile,
	}

	if _, err := m.Initialize(context.Background(), w); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	m.Invalidate()

	if m.IsReady() {
		t.Fatalf("manager still ready after Invalidate")
	}
	if m.Client() != nil {
		t.Fatalf("client handle survived Invalidate")
	}

	if _, err := m.Initialize(context.Background(), w); err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
	if creds.calls != 2 {
		t.Fatalf("Invalidate must force re-derivation, got %d calls", creds.calls)
	}
}

func TestInitializeDisconnectedWallet(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Initialize(context.Background(), &fakeWallet{kind: wallet.KindExtension}); err == nil {
		t.Fatalf("expected error for disconnected wallet")
	}
}
