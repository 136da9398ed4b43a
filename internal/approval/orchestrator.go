package approval

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	clobclient "github.com/betdesk/gotrader/clob/client"
	"github.com/betdesk/gotrader/internal/chain"
	"github.com/betdesk/gotrader/internal/relay"
	"github.com/betdesk/gotrader/pkg/logger"
)

var (
	// ErrInvalidAmount rejects zero or negative deposits.
	ErrInvalidAmount = errors.New("deposit amount must be positive")

	// ErrInsufficientBalance rejects deposits above the owner balance.
	ErrInsufficientBalance = errors.New("deposit amount exceeds available balance")

	// ErrNoSponsoredPath means a sponsored approval was requested but no
	// relay client is configured.
	ErrNoSponsoredPath = errors.New("fee-sponsored path unavailable")
)

// Chain is the on-chain surface the orchestrator needs. *chain.Client
// satisfies it.
type Chain interface {
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	IsApprovedForAll(ctx context.Context, token, account, operator common.Address) (bool, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	SetApprovalForAll(ctx context.Context, token, operator common.Address, approved bool) (common.Hash, error)
	Transfer(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Sponsor executes Safe transactions with relayer-paid gas. *relay.Client
// satisfies it.
type Sponsor interface {
	Execute(ctx context.Context, txns []relay.SafeTransaction, metadata string) (*relay.Response, error)
}

// Orchestrator drives the approval flow for one funding address.
type Orchestrator struct {
	chain     Chain
	sponsor   Sponsor
	contracts *clobclient.ContractConfig
	owner     common.Address
	funding   common.Address

	mu      sync.Mutex
	state   State
	status  *Status
	skipped map[State]bool
}

// NewOrchestrator builds an orchestrator. sponsor may be nil when no
// gasless path exists for the backend.
func NewOrchestrator(ch Chain, sponsor Sponsor, contracts *clobclient.ContractConfig, owner, funding common.Address) *Orchestrator {
	return &Orchestrator{
		chain:     ch,
		sponsor:   sponsor,
		contracts: contracts,
		owner:     owner,
		funding:   funding,
		state:     StateChecking,
		skipped:   make(map[State]bool),
	}
}

// State returns the current machine state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status returns the last check result, nil before the first CheckStatus.
func (o *Orchestrator) Status() *Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) usdcSpender(gate UsdcGate) common.Address {
	switch gate {
	case GateExchange:
		return common.HexToAddress(o.contracts.Exchange)
	case GateNegRiskExchange:
		return common.HexToAddress(o.contracts.NegRiskExchange)
	case GateNegRiskAdapter:
		return common.HexToAddress(o.contracts.NegRiskAdapter)
	default:
		return common.HexToAddress(o.contracts.ConditionalTokens)
	}
}

func (o *Orchestrator) operatorAddress(gate OperatorGate) common.Address {
	if gate == OperatorExchange {
		return common.HexToAddress(o.contracts.Exchange)
	}
	return common.HexToAddress(o.contracts.NegRiskExchange)
}

// CheckStatus reads every gate fresh from chain and recomputes the
// machine state. Gates the user skipped earlier are re-validated here:
// a skip that turned out to be genuinely approved is dropped silently.
func (o *Orchestrator) CheckStatus(ctx context.Context) (*Status, error) {
	usdc := common.HexToAddress(o.contracts.Collateral)
	ctf := common.HexToAddress(o.contracts.ConditionalTokens)

	status := &Status{
		Usdc:           make(map[UsdcGate]bool, len(UsdcGates)),
		Operators:      make(map[OperatorGate]bool, len(OperatorGates)),
		FundingIsOwner: o.funding == o.owner,
	}

	for _, gate := range UsdcGates {
		allowance, err := o.chain.Allowance(ctx, usdc, o.funding, o.usdcSpender(gate))
		if err != nil {
			o.fail()
			return nil, fmt.Errorf("read %s allowance: %w", gate, err)
		}
		status.Usdc[gate] = allowance.Cmp(AllowanceThreshold) >= 0
	}

	for _, gate := range OperatorGates {
		approved, err := o.chain.IsApprovedForAll(ctx, ctf, o.funding, o.operatorAddress(gate))
		if err != nil {
			o.fail()
			return nil, fmt.Errorf("read %s operator approval: %w", gate, err)
		}
		status.Operators[gate] = approved
	}

	ownerBal, err := o.chain.BalanceOf(ctx, usdc, o.owner)
	if err != nil {
		o.fail()
		return nil, fmt.Errorf("read owner balance: %w", err)
	}
	status.OwnerBalance = chain.FromUSDCUnits(ownerBal)

	if status.FundingIsOwner {
		status.FundingBalance = status.OwnerBalance
	} else {
		fundingBal, err := o.chain.BalanceOf(ctx, usdc, o.funding)
		if err != nil {
			o.fail()
			return nil, fmt.Errorf("read funding balance: %w", err)
		}
		status.FundingBalance = chain.FromUSDCUnits(fundingBal)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = status
	o.reconcileSkipsLocked(status)
	o.state = o.nextStateLocked(status)
	return status, nil
}

func (o *Orchestrator) fail() {
	o.mu.Lock()
	o.state = StateError
	o.mu.Unlock()
}

// reconcileSkipsLocked drops skip markers for steps that are now
// genuinely satisfied on chain.
func (o *Orchestrator) reconcileSkipsLocked(status *Status) {
	if !status.NeedsUsdcApproval() {
		delete(o.skipped, StateNeedsUsdcApproval)
	}
	if !status.NeedsPositionTokenApproval() {
		delete(o.skipped, StateNeedsPositionTokenApproval)
	}
	if !status.NeedsDeposit() {
		delete(o.skipped, StateNeedsDeposit)
	}
}

func (o *Orchestrator) nextStateLocked(status *Status) State {
	if status.NeedsUsdcApproval() && !o.skipped[StateNeedsUsdcApproval] {
		return StateNeedsUsdcApproval
	}
	if status.NeedsPositionTokenApproval() && !o.skipped[StateNeedsPositionTokenApproval] {
		return StateNeedsPositionTokenApproval
	}
	if status.NeedsDeposit() && !o.skipped[StateNeedsDeposit] {
		return StateNeedsDeposit
	}
	return StateComplete
}

// Skip forces advancement past the current step without re-deriving
// state; the next CheckStatus re-validates silently. The user may know
// an operator is approved through a path we cannot observe.
func (o *Orchestrator) Skip() {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateNeedsUsdcApproval, StateNeedsPositionTokenApproval, StateNeedsDeposit:
		o.skipped[o.state] = true
	default:
		return
	}
	if o.status != nil {
		o.state = o.nextStateLocked(o.status)
	} else {
		o.state = StateChecking
	}
}

// ApproveUsdc grants the outstanding USDC allowances. Sponsored requests
// batch every missing grant through the relay; the direct path walks
// them one transaction at a time, skipping satisfied gates. Completion
// is observed before the mandatory re-check, and the re-check decides
// the next transition: a single relay batch is not assumed to have
// landed all four grants.
func (o *Orchestrator) ApproveUsdc(ctx context.Context, sponsored bool) error {
	status, err := o.CheckStatus(ctx)
	if err != nil {
		return err
	}
	missing := status.MissingUsdcGates()
	if len(missing) == 0 {
		return nil
	}

	usdc := common.HexToAddress(o.contracts.Collateral)

	if sponsored {
		if o.sponsor == nil {
			return ErrNoSponsoredPath
		}
		txns := make([]relay.SafeTransaction, 0, len(missing))
		for _, gate := range missing {
			tx, err := relay.NewApproveTransaction(usdc, o.usdcSpender(gate), MaxApproval)
			if err != nil {
				o.fail()
				return err
			}
			txns = append(txns, tx)
		}
		resp, err := o.sponsor.Execute(ctx, txns, "usdc-approval")
		if err != nil {
			o.fail()
			return fmt.Errorf("sponsored usdc approval: %w", err)
		}
		logger.Infof("approval: sponsored usdc grants submitted, tx=%s state=%s", resp.TransactionHash, resp.State)
	} else {
		for _, gate := range missing {
			txHash, err := o.chain.Approve(ctx, usdc, o.usdcSpender(gate), MaxApproval)
			if err != nil {
				o.fail()
				return fmt.Errorf("approve %s: %w", gate, err)
			}
			if _, err := o.chain.WaitMined(ctx, txHash); err != nil {
				o.fail()
				return fmt.Errorf("approve %s: %w", gate, err)
			}
			logger.Infof("approval: usdc grant %s mined, tx=%s", gate, txHash.Hex())
		}
	}

	_, err = o.CheckStatus(ctx)
	return err
}

// ApprovePositionTokens grants the outstanding ERC-1155 operator
// approvals, mirroring ApproveUsdc.
func (o *Orchestrator) ApprovePositionTokens(ctx context.Context, sponsored bool) error {
	status, err := o.CheckStatus(ctx)
	if err != nil {
		return err
	}
	missing := status.MissingOperatorGates()
	if len(missing) == 0 {
		return nil
	}

	ctf := common.HexToAddress(o.contracts.ConditionalTokens)

	if sponsored {
		if o.sponsor == nil {
			return ErrNoSponsoredPath
		}
		txns := make([]relay.SafeTransaction, 0, len(missing))
		for _, gate := range missing {
			tx, err := relay.NewOperatorTransaction(ctf, o.operatorAddress(gate), true)
			if err != nil {
				o.fail()
				return err
			}
			txns = append(txns, tx)
		}
		resp, err := o.sponsor.Execute(ctx, txns, "operator-approval")
		if err != nil {
			o.fail()
			return fmt.Errorf("sponsored operator approval: %w", err)
		}
		logger.Infof("approval: sponsored operator grants submitted, tx=%s state=%s", resp.TransactionHash, resp.State)
	} else {
		for _, gate := range missing {
			txHash, err := o.chain.SetApprovalForAll(ctx, ctf, o.operatorAddress(gate), true)
			if err != nil {
				o.fail()
				return fmt.Errorf("approve operator %s: %w", gate, err)
			}
			if _, err := o.chain.WaitMined(ctx, txHash); err != nil {
				o.fail()
				return fmt.Errorf("approve operator %s: %w", gate, err)
			}
			logger.Infof("approval: operator grant %s mined, tx=%s", gate, txHash.Hex())
		}
	}

	_, err = o.CheckStatus(ctx)
	return err
}

// Deposit moves USDC from the owner wallet to the funding proxy.
func (o *Orchestrator) Deposit(ctx context.Context, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	usdc := common.HexToAddress(o.contracts.Collateral)
	ownerBal, err := o.chain.BalanceOf(ctx, usdc, o.owner)
	if err != nil {
		return fmt.Errorf("read owner balance: %w", err)
	}
	if chain.ToUSDCUnits(amount).Cmp(ownerBal) > 0 {
		return ErrInsufficientBalance
	}

	txHash, err := o.chain.Transfer(ctx, usdc, o.funding, chain.ToUSDCUnits(amount))
	if err != nil {
		o.fail()
		return fmt.Errorf("deposit transfer: %w", err)
	}
	if _, err := o.chain.WaitMined(ctx, txHash); err != nil {
		o.fail()
		return fmt.Errorf("deposit transfer: %w", err)
	}
	logger.Infof("approval: deposited %.6f USDC to %s, tx=%s", amount, o.funding.Hex(), txHash.Hex())

	_, err = o.CheckStatus(ctx)
	return err
}

// RevokeAll resets every tracked grant to zero. Diagnostic path only.
func (o *Orchestrator) RevokeAll(ctx context.Context) error {
	o.mu.Lock()
	o.state = StateRevoking
	o.mu.Unlock()

	usdc := common.HexToAddress(o.contracts.Collateral)
	ctf := common.HexToAddress(o.contracts.ConditionalTokens)

	for _, gate := range UsdcGates {
		txHash, err := o.chain.Approve(ctx, usdc, o.usdcSpender(gate), big.NewInt(0))
		if err != nil {
			o.fail()
			return fmt.Errorf("revoke %s: %w", gate, err)
		}
		if _, err := o.chain.WaitMined(ctx, txHash); err != nil {
			o.fail()
			return fmt.Errorf("revoke %s: %w", gate, err)
		}
	}
	for _, gate := range OperatorGates {
		txHash, err := o.chain.SetApprovalForAll(ctx, ctf, o.operatorAddress(gate), false)
		if err != nil {
			o.fail()
			return fmt.Errorf("revoke operator %s: %w", gate, err)
		}
		if _, err := o.chain.WaitMined(ctx, txHash); err != nil {
			o.fail()
			return fmt.Errorf("revoke operator %s: %w", gate, err)
		}
	}

	_, err := o.CheckStatus(ctx)
	return err
}
