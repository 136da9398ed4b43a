// Package session manages per-owner trading sessions: exchange
// credentials bound to a resolved funding address, persisted across
// restarts and invalidated on wallet changes.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/internal/wallet"
)

// schemaVersion guards persisted sessions across struct changes; loads
// with a different version are discarded and re-derived.
const schemaVersion = 2

// ErrSetupRequired means a partial session was persisted but the funding
// address could not be resolved; the caller should finish wallet setup
// and initialize again.
var ErrSetupRequired = errors.New("trading setup required: funding address unresolved")

// TradingSession binds one owner to its exchange credentials and funding
// address.
type TradingSession struct {
	SchemaVersion int                `json:"schemaVersion"`
	OwnerAddress  string             `json:"ownerAddress"`
	Backend       wallet.Kind        `json:"backend"`
	FundingAddr   string             `json:"fundingAddress"`
	ProxyDeployed bool               `json:"proxyDeployed"`
	SignatureType types.SignatureType `json:"signatureType"`
	Creds         *types.ApiKeyCreds `json:"creds,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	LastCheckedAt time.Time          `json:"lastCheckedAt"`
}

// Ready reports whether the session can place orders: credentials plus,
// for non-custodial backends, a funding address.
func (s *TradingSession) Ready() bool {
	if s == nil || s.Creds == nil {
		return false
	}
	return s.Backend.IsCustodial() || s.FundingAddr != ""
}

func normalizeAddress(hex string) string {
	return strings.ToLower(hex)
}
