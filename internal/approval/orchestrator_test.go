package approval

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	clobclient "github.com/betdesk/gotrader/clob/client"
	"github.com/betdesk/gotrader/internal/chain"
)

type fakeChain struct {
	allowances   map[common.Address]*big.Int
	operators    map[common.Address]bool
	balances     map[common.Address]*big.Int
	approveCalls int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		allowances: make(map[common.Address]*big.Int),
		operators:  make(map[common.Address]bool),
		balances:   make(map[common.Address]*big.Int),
	}
}

func (f *fakeChain) BalanceOf(_ context.Context, _, account common.Address) (*big.Int, error) {
	if b, ok := f.balances[account]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) Allowance(_ context.Context, _, _, spender common.Address) (*big.Int, error) {
	if a, ok := f.allowances[spender]; ok {
		return a, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) IsApprovedForAll(_ context.Context, _, _, operator common.Address) (bool, error) {
	return f.operators[operator], nil
}

func (f *fakeChain) Approve(_ context.Context, _, spender common.Address, amount *big.Int) (common.Hash, error) {
	f.approveCalls++
	f.allowances[spender] = amount
	return common.HexToHash("0x01"), nil
}

func (f *fakeChain) SetApprovalForAll(_ context.Context, _, operator common.Address, approved bool) (common.Hash, error) {
	f.operators[operator] = approved
	return common.HexToHash("0x02"), nil
}

func (f *fakeChain) Transfer(_ context.Context, _, to common.Address, amount *big.Int) (common.Hash, error) {
	f.balances[to] = amount
	return common.HexToHash("0x03"), nil
}

func (f *fakeChain) WaitMined(context.Context, common.Hash) (*ethtypes.Receipt, error) {
	return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful}, nil
}

var (
	testOwner   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testFunding = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func testContracts(t *testing.T) *clobclient.ContractConfig {
	t.Helper()
	cfg, err := clobclient.GetContractConfig(137)
	if err != nil {
		t.Fatalf("GetContractConfig: %v", err)
	}
	return cfg
}

func newTestOrchestrator(t *testing.T, fc *fakeChain) *Orchestrator {
	t.Helper()
	return NewOrchestrator(fc, nil, testContracts(t), testOwner, testFunding)
}

func grantAllUsdc(fc *fakeChain, o *Orchestrator) {
	for _, gate := range UsdcGates {
		fc.allowances[o.usdcSpender(gate)] = MaxApproval
	}
}

func grantAllOperators(fc *fakeChain, o *Orchestrator) {
	for _, gate := range OperatorGates {
		fc.operators[o.operatorAddress(gate)] = true
	}
}

func TestCheckStatusOneMissingGate(t *testing.T) {
	fc := newFakeChain()
	o := newTestOrchestrator(t, fc)

	grantAllUsdc(fc, o)
	delete(fc.allowances, o.usdcSpender(GateNegRiskAdapter))
	grantAllOperators(fc, o)

	status, err := o.CheckStatus(context.Background())
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if !status.NeedsUsdcApproval() {
		t.Fatalf("three satisfied gates must still report approval needed")
	}
	missing := status.MissingUsdcGates()
	if len(missing) != 1 || missing[0] != GateNegRiskAdapter {
		t.Fatalf("missing gates = %v, want [negRiskAdapter]", missing)
	}
	if o.State() != StateNeedsUsdcApproval {
		t.Fatalf("state = %s, want needsUsdcApproval", o.State())
	}
}

func TestCheckStatusBelowThresholdNotGranted(t *testing.T) {
	fc := newFakeChain()
	o := newTestOrchestrator(t, fc)

	grantAllUsdc(fc, o)
	fc.allowances[o.usdcSpender(GateExchange)] = new(big.Int).Sub(AllowanceThreshold, big.NewInt(1))

	status, err := o.CheckStatus(context.Background())
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if status.Usdc[GateExchange] {
		t.Fatalf("allowance below threshold must not count as granted")
	}
}

func TestApproveUsdcOnlyGrantsMissing(t *testing.T) {
	fc := newFakeChain()
	o := newTestOrchestrator(t, fc)

	grantAllUsdc(fc, o)
	delete(fc.allowances, o.usdcSpender(GateConditionalTokens))
	grantAllOperators(fc, o)
	fc.balances[testFunding] = chain.ToUSDCUnits(100)

	if err := o.ApproveUsdc(context.Background(), false); err != nil {
		t.Fatalf("ApproveUsdc: %v", err)
	}
	if fc.approveCalls != 1 {
		t.Fatalf("approve ran %d times, want 1 for the single missing gate", fc.approveCalls)
	}
	if o.State() != StateComplete {
		t.Fatalf("state after approval = %s, want complete", o.State())
	}
}

func TestApprovalStateProgression(t *testing.T) {
	fc := newFakeChain()
	o := newTestOrchestrator(t, fc)
	fc.balances[testOwner] = chain.ToUSDCUnits(50)

	if _, err := o.CheckStatus(context.Background()); err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if o.State() != StateNeedsUsdcApproval {
		t.Fatalf("fresh account state = %s, want needsUsdcApproval", o.State())
	}

	if err := o.ApproveUsdc(context.Background(), false); err != nil {
		t.Fatalf("ApproveUsdc: %v", err)
	}
	if o.State() != StateNeedsPositionTokenApproval {
		t.Fatalf("state = %s, want needsPositionTokenApproval", o.State())
	}

	if err := o.ApprovePositionTokens(context.Background(), false); err != nil {
		t.Fatalf("ApprovePositionTokens: %v", err)
	}
	if o.State() != StateNeedsDeposit {
		t.Fatalf("state = %s, want needsDeposit", o.State())
	}

	if err := o.Deposit(context.Background(), 50); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if o.State() != StateComplete {
		t.Fatalf("state = %s, want complete", o.State())
	}
}

func TestSkipAdvancesWithoutGranting(t *testing.T) {
	fc := newFakeChain()
	o := newTestOrchestrator(t, fc)
	grantAllOperators(fc, o)
	fc.balances[testFunding] = chain.ToUSDCUnits(10)

	if _, err := o.CheckStatus(context.Background()); err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if o.State() != StateNeedsUsdcApproval {
		t.Fatalf("state = %s, want needsUsdcApproval", o.State())
	}

	o.Skip()
	if o.State() != StateComplete {
		t.Fatalf("state after skip = %s, want complete", o.State())
	}
	if fc.approveCalls != 0 {
		t.Fatalf("skip must not submit transactions")
	}

	// The next natural check still honors the skip while the gates stay
	// unsatisfied.
	if _, err := o.CheckStatus(context.Background()); err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if o.State() != StateComplete {
		t.Fatalf("skip lost across re-check, state = %s", o.State())
	}

	// Once the grants actually land, the skip marker is dropped and the
	// truth takes over again.
	grantAllUsdc(fc, o)
	if _, err := o.CheckStatus(context.Background()); err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if o.skipped[StateNeedsUsdcApproval] {
		t.Fatalf("satisfied skip marker not reconciled")
	}
}

func TestDepositValidation(t *testing.T) {
	fc := newFakeChain()
	o := newTestOrchestrator(t, fc)
	fc.balances[testOwner] = chain.ToUSDCUnits(20)

	if err := o.Deposit(context.Background(), 0); err != ErrInvalidAmount {
		t.Fatalf("zero deposit error = %v, want ErrInvalidAmount", err)
	}
	if err := o.Deposit(context.Background(), -5); err != ErrInvalidAmount {
		t.Fatalf("negative deposit error = %v, want ErrInvalidAmount", err)
	}
	if err := o.Deposit(context.Background(), 20.01); err != ErrInsufficientBalance {
		t.Fatalf("oversized deposit error = %v, want ErrInsufficientBalance", err)
	}
}

func TestSponsoredWithoutRelay(t *testing.T) {
	fc := newFakeChain()
	o := newTestOrchestrator(t, fc)

	if err := o.ApproveUsdc(context.Background(), true); err != ErrNoSponsoredPath {
		t.Fatalf("sponsored approval without relay = %v, want ErrNoSponsoredPath", err)
	}
}

func TestRevokeAllZeroesEveryGate(t *testing.T) {
	fc := newFakeChain()
	o := newTestOrchestrator(t, fc)
	grantAllUsdc(fc, o)
	grantAllOperators(fc, o)

	if err := o.RevokeAll(context.Background()); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}

	status := o.Status()
	if !status.NeedsUsdcApproval() || !status.NeedsPositionTokenApproval() {
		t.Fatalf("grants survived RevokeAll")
	}
}
