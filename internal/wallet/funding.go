package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/betdesk/gotrader/pkg/logger"
)

// Safe proxy factory on Polygon and the keccak hash of its proxy
// creation code. Every non-custodial account trades through the Safe the
// factory would deploy for it, whether or not it exists yet.
const (
	SafeFactoryAddress  = "0xaacFeEa03eb1561C4e67d661e40682Bd20E3541b"
	safeInitCodeHashHex = "0x58cf8c5f6c84a6fc3140ee934c1f4c17a8e5f210ad74108bda72cda78f58c89f"
)

// Funding is the address that holds tradable balance for an owner.
type Funding struct {
	Address  common.Address
	Deployed bool
}

// DeploymentChecker answers whether the owner's proxy exists on chain.
// The relay client implements it.
type DeploymentChecker interface {
	ProxyDeployed(ctx context.Context, owner common.Address) (bool, error)
}

// DeriveSafeAddress computes the counterfactual Safe proxy address for an
// owner. Pure function of the owner address: no network, no signer, and
// the same result for every non-custodial backend.
func DeriveSafeAddress(owner common.Address) common.Address {
	salt := crypto.Keccak256(common.LeftPadBytes(owner.Bytes(), 32))

	factory := common.HexToAddress(SafeFactoryAddress)
	initCodeHash := common.FromHex(safeInitCodeHashHex)

	buf := make([]byte, 0, 1+20+32+32)
	buf = append(buf, 0xff)
	buf = append(buf, factory.Bytes()...)
	buf = append(buf, salt...)
	buf = append(buf, initCodeHash...)

	return common.BytesToAddress(crypto.Keccak256(buf)[12:])
}

// ResolveFunding maps an owner to its funding address. Custodial wallets
// hold balance directly. For everything else the derivation is the
// always-trusted source; the deployment check is best-effort and fails
// soft to false, since the exchange rejects orders from a genuinely
// undeployed proxy anyway.
func ResolveFunding(ctx context.Context, owner common.Address, kind Kind, checker DeploymentChecker) Funding {
	if kind.IsCustodial() {
		return Funding{Address: owner, Deployed: true}
	}

	f := Funding{Address: DeriveSafeAddress(owner)}
	if checker == nil {
		return f
	}

	deployed, err := checker.ProxyDeployed(ctx, owner)
	if err != nil {
		logger.Warnf("funding: deployment check failed for %s: %v", owner.Hex(), err)
		return f
	}
	f.Deployed = deployed
	return f
}
