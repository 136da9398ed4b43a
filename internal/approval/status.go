// Package approval inspects and drives the on-chain allowances the
// exchange needs before the funding address can trade.
package approval

import "math/big"

// State is the orchestrator's position in the approval flow.
type State string

const (
	StateChecking                   State = "checking"
	StateNeedsUsdcApproval          State = "needsUsdcApproval"
	StateNeedsPositionTokenApproval State = "needsPositionTokenApproval"
	StateNeedsDeposit               State = "needsDeposit"
	StateComplete                   State = "complete"
	StateRevoking                   State = "revoking"
	StateError                      State = "error"
)

// AllowanceThreshold is the minimum USDC allowance treated as granted:
// one million USDC in raw 6-decimal units. Grants use MaxApproval, so
// anything below the threshold means the user revoked or never approved.
var AllowanceThreshold = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000))

// MaxApproval is the unlimited ERC-20 allowance (2^256 - 1).
var MaxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// UsdcGate names one tracked ERC-20 allowance.
type UsdcGate string

const (
	GateExchange          UsdcGate = "exchange"
	GateNegRiskExchange   UsdcGate = "negRiskExchange"
	GateNegRiskAdapter    UsdcGate = "negRiskAdapter"
	GateConditionalTokens UsdcGate = "conditionalTokens"
)

// UsdcGates lists every tracked spender in grant order.
var UsdcGates = []UsdcGate{GateExchange, GateNegRiskExchange, GateNegRiskAdapter, GateConditionalTokens}

// OperatorGate names one tracked ERC-1155 operator approval.
type OperatorGate string

const (
	OperatorExchange        OperatorGate = "exchange"
	OperatorNegRiskExchange OperatorGate = "negRiskExchange"
)

// OperatorGates lists every tracked operator in grant order.
var OperatorGates = []OperatorGate{OperatorExchange, OperatorNegRiskExchange}

// Status is one point-in-time view of the funding address's approvals
// and balances.
type Status struct {
	Usdc      map[UsdcGate]bool
	Operators map[OperatorGate]bool

	// Balances in human USDC units.
	OwnerBalance   float64
	FundingBalance float64

	// FundingIsOwner is true for custodial wallets; there is no deposit
	// step when the owner holds balance directly.
	FundingIsOwner bool
}

// NeedsUsdcApproval is false exactly when all four tracked allowances
// meet the threshold.
func (s *Status) NeedsUsdcApproval() bool {
	for _, gate := range UsdcGates {
		if !s.Usdc[gate] {
			return true
		}
	}
	return false
}

// MissingUsdcGates returns the spenders still to grant, in grant order.
func (s *Status) MissingUsdcGates() []UsdcGate {
	var missing []UsdcGate
	for _, gate := range UsdcGates {
		if !s.Usdc[gate] {
			missing = append(missing, gate)
		}
	}
	return missing
}

// NeedsPositionTokenApproval is false exactly when both operators are
// approved.
func (s *Status) NeedsPositionTokenApproval() bool {
	for _, gate := range OperatorGates {
		if !s.Operators[gate] {
			return true
		}
	}
	return false
}

// MissingOperatorGates returns the operators still to grant.
func (s *Status) MissingOperatorGates() []OperatorGate {
	var missing []OperatorGate
	for _, gate := range OperatorGates {
		if !s.Operators[gate] {
			missing = append(missing, gate)
		}
	}
	return missing
}

// NeedsDeposit reports whether tradable balance must be moved to the
// proxy before trading makes sense.
func (s *Status) NeedsDeposit() bool {
	return !s.FundingIsOwner && s.FundingBalance <= 0 && s.OwnerBalance > 0
}
