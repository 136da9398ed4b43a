package engine

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/betdesk/gotrader/pkg/rest"
)

// DefaultDataHost serves the positions-by-address query.
const DefaultDataHost = "https://data-api.polymarket.com"

// Position is one outcome-token holding as reported by the data api.
type Position struct {
	TokenID  string  `json:"asset"`
	Market   string  `json:"conditionId"`
	Outcome  string  `json:"outcome"`
	Size     float64 `json:"size"`
	AvgPrice float64 `json:"avgPrice"`
	CurPrice float64 `json:"curPrice"`
	NegRisk  bool    `json:"negativeRisk"`
}

// PositionStore caches the owner's positions and applies optimistic
// adjustments between refreshes so a just-sold position does not keep
// showing its stale size.
type PositionStore struct {
	http  *rest.Client
	owner string

	mu        sync.Mutex
	positions []Position
	fetchedAt time.Time
}

func NewPositionStore(host, owner string) *PositionStore {
	if host == "" {
		host = DefaultDataHost
	}
	return &PositionStore{
		http:  rest.NewClient(host),
		owner: strings.ToLower(owner),
	}
}

// Refresh replaces the cached view with a fresh data-api read.
func (p *PositionStore) Refresh(ctx context.Context) ([]Position, error) {
	var out []Position
	resp, err := p.http.DoRequest(ctx, http.MethodGet, "/positions", &rest.RequestOptions{
		Params: map[string]string{"user": p.owner},
	}, &out)
	if err := rest.CheckResponse(resp, err); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.positions = out
	p.fetchedAt = time.Now()
	p.mu.Unlock()
	return out, nil
}

// Positions returns the cached view, refreshing when empty or older
// than maxAge.
func (p *PositionStore) Positions(ctx context.Context, maxAge time.Duration) ([]Position, error) {
	p.mu.Lock()
	fresh := p.positions != nil && time.Since(p.fetchedAt) <= maxAge
	cached := p.positions
	p.mu.Unlock()
	if fresh {
		return cached, nil
	}
	return p.Refresh(ctx)
}

// Get looks up one token in the cached view without refreshing.
func (p *PositionStore) Get(tokenID string) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pos := range p.positions {
		if pos.TokenID == tokenID {
			return pos, true
		}
	}
	return Position{}, false
}

// Reduce optimistically shrinks a position after a sell so the cached
// view stays usable until the next refresh.
func (p *PositionStore) Reduce(tokenID string, shares float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.positions {
		if p.positions[i].TokenID != tokenID {
			continue
		}
		p.positions[i].Size -= shares
		if p.positions[i].Size <= 0 {
			p.positions = append(p.positions[:i], p.positions[i+1:]...)
		}
		return
	}
}

// Invalidate drops the cached view; the next read refetches.
func (p *PositionStore) Invalidate() {
	p.mu.Lock()
	p.positions = nil
	p.fetchedAt = time.Time{}
	p.mu.Unlock()
}
