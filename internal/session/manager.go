package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	clobclient "github.com/betdesk/gotrader/clob/client"
	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/internal/wallet"
	"github.com/betdesk/gotrader/pkg/logger"
	"github.com/betdesk/gotrader/pkg/persistence"
)

const sessionStorePrefix = "session"

// CredentialSource derives exchange API credentials for the active
// signer. *clob/client.Client satisfies it; the derive-then-create flow
// keeps repeated initializations from minting new keys.
type CredentialSource interface {
	CreateOrDeriveAPIKey(ctx context.Context, nonce *int64) (*types.ApiKeyCreds, error)
}

// Options configures a Manager.
type Options struct {
	Store    persistence.Service
	ClobHost string
	ChainID  types.Chain

	// Checker is optional; without it proxy deployment reports false.
	Checker wallet.DeploymentChecker

	// Credentials overrides the exchange client as credential source.
	Credentials CredentialSource
}

// Manager owns session lifecycle and the exchange client built for it.
// The client is an explicit handle passed to the execution engine; there
// is no package-level instance.
type Manager struct {
	opts Options

	mu      sync.Mutex
	active  *TradingSession
	client  *clobclient.Client
	adapter wallet.Adapter
}

func NewManager(opts Options) *Manager {
	return &Manager{opts: opts}
}

// Initialize loads or derives a session for the connected wallet.
// Calling it twice without state changes returns the same credentials
// and funding address. A non-custodial wallet whose funding address
// cannot be resolved gets a partial session and ErrSetupRequired.
func (m *Manager) Initialize(ctx context.Context, w wallet.Adapter) (*TradingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ownerAddr := w.Address()
	if ownerAddr == (common.Address{}) {
		return nil, wallet.ErrDisconnected
	}
	owner := normalizeAddress(ownerAddr.Hex())

	store := m.opts.Store.NewStore(sessionStorePrefix, owner)

	cl := clobclient.NewClient(m.opts.ClobHost, m.opts.ChainID, w, nil)
	creds := m.opts.Credentials
	if creds == nil {
		creds = cl
	}

	var sess TradingSession
	err := store.Load(&sess)
	switch {
	case err == nil:
		if m.validate(&sess, owner, w) {
			if sess.Ready() {
				cl.SetCreds(sess.Creds)
				m.adopt(&sess, cl, w)
				return &sess, nil
			}
			// Partial session: keep credentials, retry funding below.
		} else {
			logger.Infof("session: discarding stale session for %s", owner)
			_ = store.Delete()
			sess = TradingSession{}
		}
	case errors.Is(err, persistence.ErrNotExists):
		// First initialization for this owner.
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}

	if sess.Creds == nil {
		apiCreds, err := creds.CreateOrDeriveAPIKey(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("derive exchange credentials: %w", err)
		}
		sess.Creds = apiCreds
	}
	cl.SetCreds(sess.Creds)

	now := time.Now()
	sess.SchemaVersion = schemaVersion
	sess.OwnerAddress = owner
	sess.Backend = w.Kind()
	sess.SignatureType = w.Kind().SignatureScheme()
	sess.LastCheckedAt = now
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}

	funding := wallet.ResolveFunding(ctx, ownerAddr, w.Kind(), m.opts.Checker)
	if funding.Address == (common.Address{}) {
		// Persist what we have so credentials survive the retry.
		if err := store.Save(&sess); err != nil {
			return nil, fmt.Errorf("persist partial session: %w", err)
		}
		return nil, ErrSetupRequired
	}
	sess.FundingAddr = normalizeAddress(funding.Address.Hex())
	sess.ProxyDeployed = funding.Deployed

	if err := store.Save(&sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	m.adopt(&sess, cl, w)
	return &sess, nil
}

// adopt installs the session and hooks wallet lifecycle events. Must be
// called with the lock held.
func (m *Manager) adopt(sess *TradingSession, cl *clobclient.Client, w wallet.Adapter) {
	m.active = sess
	m.client = cl

	if m.adapter != w {
		m.adapter = w
		w.OnAccountsChanged(func([]common.Address) { m.Invalidate() })
		w.OnDisconnect(func() { m.Invalidate() })
	}
}

// validate applies the load-time discard rules: schema, owner and
// backend must match the live wallet, and a persisted funding address
// must agree with a fresh derivation.
func (m *Manager) validate(sess *TradingSession, owner string, w wallet.Adapter) bool {
	if sess.SchemaVersion != schemaVersion {
		return false
	}
	if sess.OwnerAddress != owner {
		return false
	}
	if sess.Backend != w.Kind() {
		return false
	}
	if sess.FundingAddr != "" {
		fresh := wallet.ResolveFunding(context.Background(), w.Address(), w.Kind(), nil)
		if normalizeAddress(fresh.Address.Hex()) != sess.FundingAddr {
			return false
		}
	}
	return true
}

// Invalidate clears persisted and in-memory session state; the next
// Initialize re-derives everything.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		store := m.opts.Store.NewStore(sessionStorePrefix, m.active.OwnerAddress)
		if err := store.Delete(); err != nil {
			logger.Warnf("session: clear persisted state: %v", err)
		}
	}
	m.active = nil
	m.client = nil
}

// IsReady reports whether an initialized session can place orders.
func (m *Manager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.Ready()
}

// Session returns the active session, nil before Initialize.
func (m *Manager) Session() *TradingSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Client returns the exchange client bound to the active session. The
// execution engine receives it from here; nil before Initialize.
func (m *Manager) Client() *clobclient.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}
