package fees

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/betdesk/gotrader/clob/types"
)

func testConfig() Config {
	return Config{
		Percentage: decimal.NewFromInt(2),
		Treasury:   "0x00000000000000000000000000000000000000fe",
	}
}

func TestFeeMath(t *testing.T) {
	cfg := testConfig()
	amount := decimal.NewFromInt(10)

	fee := cfg.Compute(amount)
	if !fee.Equal(decimal.RequireFromString("0.2")) {
		t.Fatalf("fee = %s, want 0.2", fee)
	}
	total := cfg.TotalCost(amount)
	if !total.Equal(decimal.RequireFromString("10.2")) {
		t.Fatalf("total cost = %s, want 10.2", total)
	}
}

type stubSender struct {
	sent []decimal.Decimal
	err  error
}

func (s *stubSender) SendFee(_ context.Context, _ common.Address, amount decimal.Decimal) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, amount)
	return "0xfeedbeef", nil
}

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(":memory:")
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestCollectConfirmed(t *testing.T) {
	ledger := openTestLedger(t)
	sender := &stubSender{}
	c := NewCollector(ledger, testConfig(), sender, nil)

	rec, err := c.Collect(context.Background(), "0xwallet", "order-1", "token-1", "BUY", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if rec.Status != StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", rec.Status)
	}
	if len(sender.sent) != 1 || !sender.sent[0].Equal(decimal.RequireFromString("0.2")) {
		t.Fatalf("sent %v, want one transfer of 0.2", sender.sent)
	}

	stored, err := ledger.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored == nil || stored.Status != StatusConfirmed || stored.TxHash != "0xfeedbeef" {
		t.Fatalf("stored record = %+v", stored)
	}
}

func TestConfigSwapConcurrentWithCollect(t *testing.T) {
	ledger := openTestLedger(t)
	sender := &stubSender{}
	c := NewCollector(ledger, testConfig(), sender, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			c.SetConfig(Config{
				Percentage: decimal.NewFromInt(int64(i % 5)),
				Treasury:   "0x00000000000000000000000000000000000000fe",
			})
		}
	}()

	for i := 0; i < 200; i++ {
		cfg := c.Config()
		if cfg.Treasury == "" {
			t.Fatal("read a zero config mid-swap")
		}
		if _, err := c.Collect(context.Background(), "0xwallet", "order-r", "token-r", "BUY", decimal.NewFromInt(10)); err != nil {
			t.Fatalf("Collect: %v", err)
		}
	}
	<-done
}

func TestCollectTransferFailureIsRecorded(t *testing.T) {
	ledger := openTestLedger(t)
	sender := &stubSender{err: errors.New("transfer reverted")}
	c := NewCollector(ledger, testConfig(), sender, nil)

	rec, err := c.Collect(context.Background(), "0xwallet", "order-2", "token-1", "SELL", decimal.NewFromInt(5))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}
	if rec.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}

	stored, err := ledger.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored == nil || stored.Status != StatusFailed {
		t.Fatalf("failed transfer not persisted: %+v", stored)
	}
}

type stubOrders struct {
	open map[string]*types.OpenOrder
}

func (s *stubOrders) GetOrder(_ context.Context, orderID string) (*types.OpenOrder, error) {
	return s.open[orderID], nil
}

func TestReconcilerCollectsWhenOrderLeavesBook(t *testing.T) {
	ledger := openTestLedger(t)
	sender := &stubSender{}
	cfg := testConfig()
	c := NewCollector(ledger, cfg, sender, nil)

	resting, err := c.DeferUntilFill(context.Background(), "0xwallet", "order-rest", "token-1", "BUY", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("DeferUntilFill: %v", err)
	}

	orders := &stubOrders{open: map[string]*types.OpenOrder{
		"order-rest": {ID: "order-rest", Status: "LIVE"},
	}}
	r := NewReconciler(ledger, orders, sender, func() Config { return cfg })

	// Still resting: nothing collected.
	if err := r.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("fee collected while order still resting")
	}

	// Off the book: the deferred fee is collected and confirmed.
	delete(orders.open, "order-rest")
	if err := r.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one collection, got %d", len(sender.sent))
	}

	stored, err := ledger.Get(context.Background(), resting.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != StatusConfirmed {
		t.Fatalf("deferred record status = %s, want confirmed", stored.Status)
	}

	// Idempotent: a confirmed record is not collected again.
	if err := r.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("confirmed fee collected twice")
	}
}
