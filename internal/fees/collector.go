package fees

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/betdesk/gotrader/internal/chain"
	"github.com/betdesk/gotrader/internal/relay"
	"github.com/betdesk/gotrader/pkg/logger"
)

// ErrTransferFailed marks a failed fee transfer. Callers log it and move
// on; the order that triggered the fee already succeeded.
var ErrTransferFailed = errors.New("fee transfer failed")

// Sender moves a fee amount to the treasury and returns a transaction
// reference.
type Sender interface {
	SendFee(ctx context.Context, to common.Address, amount decimal.Decimal) (string, error)
}

// ChainSender pays fees with a direct on-chain USDC transfer. Custodial
// wallets use it.
type ChainSender struct {
	Chain *chain.Client
	Token common.Address
}

func (s ChainSender) SendFee(ctx context.Context, to common.Address, amount decimal.Decimal) (string, error) {
	units := amount.Shift(chain.USDCDecimals).BigInt()
	txHash, err := s.Chain.Transfer(ctx, s.Token, to, units)
	if err != nil {
		return "", err
	}
	if _, err := s.Chain.WaitMined(ctx, txHash); err != nil {
		return "", err
	}
	return txHash.Hex(), nil
}

// RelaySender pays fees through the Safe proxy via the gasless relay.
type RelaySender struct {
	Relay *relay.Client
	Token common.Address
}

func (s RelaySender) SendFee(ctx context.Context, to common.Address, amount decimal.Decimal) (string, error) {
	units := amount.Shift(chain.USDCDecimals).BigInt()
	tx, err := relay.NewTransferTransaction(s.Token, to, units)
	if err != nil {
		return "", err
	}
	resp, err := s.Relay.Execute(ctx, []relay.SafeTransaction{tx}, "fee-transfer")
	if err != nil {
		return "", err
	}
	return resp.TransactionHash, nil
}

// Recorder mirrors fee records to the server-side companion. Best
// effort.
type Recorder interface {
	RecordFee(ctx context.Context, r Record) error
}

// Collector computes and collects fees against the ledger. The fee
// schedule is swapped from a background refresher while orders read it,
// so access goes through the mutex.
type Collector struct {
	ledger   *Ledger
	sender   Sender
	recorder Recorder

	cfgMu sync.RWMutex
	cfg   Config
}

// NewCollector builds a collector. recorder may be nil.
func NewCollector(ledger *Ledger, cfg Config, sender Sender, recorder Recorder) *Collector {
	return &Collector{ledger: ledger, cfg: cfg, sender: sender, recorder: recorder}
}

// Config returns the active fee schedule.
func (c *Collector) Config() Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// SetConfig swaps the fee schedule, picked up from the companion's
// fee-configuration endpoint.
func (c *Collector) SetConfig(cfg Config) {
	c.cfgMu.Lock()
	c.cfg = cfg
	c.cfgMu.Unlock()
}

// Collect takes the fee for a filled order right now. The record lands
// in the ledger either way; a transfer failure returns ErrTransferFailed
// for the caller to log, never to fail the trade on.
func (c *Collector) Collect(ctx context.Context, walletAddress, orderID, tokenID, side string, amount decimal.Decimal) (Record, error) {
	cfg := c.Config()
	fee := cfg.Compute(amount)
	rec := NewRecord(walletAddress, orderID, tokenID, side, fee, cfg.Percentage, StatusPending)
	if err := c.ledger.Insert(ctx, rec); err != nil {
		return rec, err
	}

	txHash, err := c.sender.SendFee(ctx, common.HexToAddress(cfg.Treasury), fee)
	if err != nil {
		if uerr := c.ledger.UpdateStatus(ctx, rec.ID, StatusFailed, ""); uerr != nil {
			logger.Errorf("fees: mark record %s failed: %v", rec.ID, uerr)
		}
		rec.Status = StatusFailed
		return rec, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	if err := c.ledger.UpdateStatus(ctx, rec.ID, StatusConfirmed, txHash); err != nil {
		logger.Errorf("fees: mark record %s confirmed: %v", rec.ID, err)
	}
	rec.Status = StatusConfirmed
	rec.TxHash = txHash

	c.mirror(ctx, rec)
	return rec, nil
}

// DeferUntilFill records a fee for a resting order. The reconciler
// collects it once the order leaves the book.
func (c *Collector) DeferUntilFill(ctx context.Context, walletAddress, orderID, tokenID, side string, amount decimal.Decimal) (Record, error) {
	cfg := c.Config()
	fee := cfg.Compute(amount)
	rec := NewRecord(walletAddress, orderID, tokenID, side, fee, cfg.Percentage, StatusPendingFill)
	if err := c.ledger.Insert(ctx, rec); err != nil {
		return rec, err
	}
	c.mirror(ctx, rec)
	return rec, nil
}

func (c *Collector) mirror(ctx context.Context, rec Record) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordFee(ctx, rec); err != nil {
		logger.Warnf("fees: companion record failed for %s: %v", rec.ID, err)
	}
}
