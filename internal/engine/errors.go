package engine

import (
	"fmt"
	"strings"
)

// Kind classifies an execution failure so the caller knows the next
// step: re-approve, fund the wallet, retry the session or retry the
// order.
type Kind string

const (
	KindWalletNotConnected         Kind = "walletNotConnected"
	KindNetworkMismatch            Kind = "networkMismatch"
	KindSigningRejected            Kind = "signingRejected"
	KindSigningTimeout             Kind = "signingTimeout"
	KindCredentialDerivationFailed Kind = "credentialDerivationFailed"
	KindSessionIncomplete          Kind = "sessionIncomplete"
	KindInsufficientAllowance      Kind = "insufficientAllowance"
	KindInsufficientBalance        Kind = "insufficientBalance"
	KindInvalidAmount              Kind = "invalidAmount"
	KindExchangeRejected           Kind = "exchangeRejected"
	KindFeeTransferFailed          Kind = "feeTransferFailed"
)

// Error is a classified execution failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the classification from an error, defaulting to
// exchangeRejected for anything unclassified.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindExchangeRejected
}

// classifyRejection resolves an exchange rejection message into a kind.
// The message text alone is ambiguous ("insufficient" shows up in both
// allowance and balance failures), so the caller passes a fresh on-chain
// answer for whether every allowance gate is satisfied: a user who is
// fully approved must not be routed back to the approval wizard.
func classifyRejection(message string, allowancesOK bool) Kind {
	m := strings.ToLower(message)
	allowanceHit := strings.Contains(m, "allowance") ||
		strings.Contains(m, "insufficient") ||
		strings.Contains(m, "not approved")
	balanceHit := strings.Contains(m, "balance")

	switch {
	case allowanceHit && !allowancesOK:
		return KindInsufficientAllowance
	case balanceHit:
		return KindInsufficientBalance
	case allowanceHit:
		// Text blamed allowances but the chain says fully approved.
		return KindInsufficientBalance
	default:
		return KindExchangeRejected
	}
}

// credentialRejection detects an exchange response that means our API
// credentials went stale; the session must be invalidated.
func credentialRejection(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "unauthorized") ||
		strings.Contains(m, "api key") ||
		strings.Contains(m, "invalid credential")
}
