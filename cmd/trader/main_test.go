package main

import (
	"testing"

	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/internal/wallet"
	"github.com/betdesk/gotrader/pkg/config"
)

const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestBuildWalletCustodialFromHex(t *testing.T) {
	cfg := &config.Config{}
	cfg.Wallet.Backend = "custodial"
	cfg.Wallet.PrivateKey = testKey

	w, err := buildWallet(cfg, types.ChainAmoy)
	if err != nil {
		t.Fatalf("buildWallet: %v", err)
	}
	if w.Kind() != wallet.KindCustodial {
		t.Fatalf("kind = %s, want custodial", w.Kind())
	}
	if got := w.Address().Hex(); got != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Fatalf("address = %s", got)
	}
}

func TestBuildWalletRejectsRemoteBackends(t *testing.T) {
	for _, backend := range []string{"extension", "relay", "mobile"} {
		cfg := &config.Config{}
		cfg.Wallet.Backend = backend
		if _, err := buildWallet(cfg, types.ChainAmoy); err == nil {
			t.Fatalf("backend %q: expected error", backend)
		}
	}

	cfg := &config.Config{}
	cfg.Wallet.Backend = "hardware"
	if _, err := buildWallet(cfg, types.ChainAmoy); err == nil {
		t.Fatal("unknown backend: expected error")
	}
}

func TestSafeDerivationForRemoteOwner(t *testing.T) {
	cfg := &config.Config{}
	cfg.Wallet.Backend = "custodial"
	cfg.Wallet.PrivateKey = testKey
	w, err := buildWallet(cfg, types.ChainAmoy)
	if err != nil {
		t.Fatalf("buildWallet: %v", err)
	}

	safe := wallet.DeriveSafeAddress(w.Address())
	if safe == (w.Address()) {
		t.Fatal("safe address must differ from the owner EOA")
	}
	if again := wallet.DeriveSafeAddress(w.Address()); again != safe {
		t.Fatalf("derivation not deterministic: %s vs %s", again.Hex(), safe.Hex())
	}
}

func TestBuilderCredsFromEnv(t *testing.T) {
	t.Setenv("POLY_BUILDER_API_KEY", "")
	if creds := builderCredsFromEnv(); creds != nil {
		t.Fatalf("expected nil creds without key, got %+v", creds)
	}

	t.Setenv("POLY_BUILDER_API_KEY", " builder-key ")
	t.Setenv("POLY_BUILDER_SECRET", "builder-secret")
	t.Setenv("POLY_BUILDER_PASSPHRASE", "builder-pass")
	creds := builderCredsFromEnv()
	if creds == nil {
		t.Fatal("expected creds")
	}
	if creds.Key != "builder-key" || creds.Secret != "builder-secret" || creds.Passphrase != "builder-pass" {
		t.Fatalf("creds = %+v", creds)
	}
}
