package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type stubChecker struct {
	deployed bool
	err      error
}

func (s *stubChecker) ProxyDeployed(context.Context, common.Address) (bool, error) {
	return s.deployed, s.err
}

func TestResolveFundingCustodial(t *testing.T) {
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")

	f := ResolveFunding(context.Background(), owner, KindCustodial, nil)
	if f.Address != owner {
		t.Fatalf("custodial funding address = %s, want owner %s", f.Address.Hex(), owner.Hex())
	}
	if !f.Deployed {
		t.Fatalf("custodial funding must report deployed")
	}
}

func TestResolveFundingBackendIndependent(t *testing.T) {
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")

	ext := ResolveFunding(context.Background(), owner, KindExtension, nil)
	rel := ResolveFunding(context.Background(), owner, KindRelay, nil)
	mob := ResolveFunding(context.Background(), owner, KindMobile, nil)

	if ext.Address != rel.Address || rel.Address != mob.Address {
		t.Fatalf("funding address differs across backends: %s %s %s",
			ext.Address.Hex(), rel.Address.Hex(), mob.Address.Hex())
	}
	if ext.Address == owner {
		t.Fatalf("non-custodial funding address must not equal owner")
	}
}

func TestDeriveSafeAddressDeterministic(t *testing.T) {
	a := common.HexToAddress("0x3333333333333333333333333333333333333333")
	b := common.HexToAddress("0x4444444444444444444444444444444444444444")

	if DeriveSafeAddress(a) != DeriveSafeAddress(a) {
		t.Fatalf("derivation is not deterministic")
	}
	if DeriveSafeAddress(a) == DeriveSafeAddress(b) {
		t.Fatalf("distinct owners derived the same proxy")
	}
}

func TestResolveFundingDeploymentCheckFailsSoft(t *testing.T) {
	owner := common.HexToAddress("0x5555555555555555555555555555555555555555")

	f := ResolveFunding(context.Background(), owner, KindExtension, &stubChecker{err: errors.New("relay down")})
	if f.Deployed {
		t.Fatalf("failed deployment check must default to undeployed")
	}
	if f.Address != DeriveSafeAddress(owner) {
		t.Fatalf("derivation must survive a failed deployment check")
	}

	f = ResolveFunding(context.Background(), owner, KindExtension, &stubChecker{deployed: true})
	if !f.Deployed {
		t.Fatalf("deployment check result not propagated")
	}
}
