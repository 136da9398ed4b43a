package stream

import (
	"context"
	"time"

	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/internal/fees"
	"github.com/betdesk/gotrader/pkg/logger"
)

// BookSink consumes live order book snapshots. *engine.Engine
// satisfies it.
type BookSink interface {
	UpdateBook(book *types.OrderBookSummary)
}

// FeeConfigSource serves the current fee schedule. *companion.Client
// satisfies it.
type FeeConfigSource interface {
	FeeConfig(ctx context.Context) (fees.Config, error)
}

// FeeConfigSink receives fee schedule updates. *fees.Collector
// satisfies it.
type FeeConfigSink interface {
	SetConfig(cfg fees.Config)
}

const (
	positionRefreshInterval = 30 * time.Second
	feeConfigInterval       = 30 * time.Second
)

// Refresher fans stream events into the engine's book cache and keeps
// slow-moving views (positions, fee schedule) current on fixed
// intervals. It never blocks an in-flight order: everything here is
// read-only and advisory.
type Refresher struct {
	Stream *MarketStream
	Books  BookSink

	// Positions refetches the cached positions view; nil disables the
	// ticker.
	Positions func(ctx context.Context) error

	FeeSource FeeConfigSource // optional
	FeeSink   FeeConfigSink
}

// Run consumes events and drives the refresh tickers until ctx is
// cancelled.
func (r *Refresher) Run(ctx context.Context) {
	positionTicker := time.NewTicker(positionRefreshInterval)
	defer positionTicker.Stop()
	feeTicker := time.NewTicker(feeConfigInterval)
	defer feeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-r.Stream.Events():
			if !ok {
				return
			}
			if book := ev.Book(); book != nil && r.Books != nil {
				r.Books.UpdateBook(book)
			}

		case <-positionTicker.C:
			if r.Positions == nil {
				continue
			}
			if err := r.Positions(ctx); err != nil {
				logger.Debugf("stream: position refresh: %v", err)
			}

		case <-feeTicker.C:
			if r.FeeSource == nil || r.FeeSink == nil {
				continue
			}
			cfg, err := r.FeeSource.FeeConfig(ctx)
			if err != nil {
				logger.Debugf("stream: fee config refresh: %v", err)
				continue
			}
			r.FeeSink.SetConfig(cfg)
		}
	}
}
