// Package fees computes, collects and reconciles the platform fee taken
// on each trade. Collection is a best-effort secondary transfer: it never
// blocks or reverts a completed order.
package fees

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle of one fee record.
type Status string

const (
	// StatusPending is an in-flight synchronous collection.
	StatusPending Status = "pending"
	// StatusConfirmed means the transfer landed.
	StatusConfirmed Status = "confirmed"
	// StatusPendingFill waits for a resting order to fill before
	// collection; the reconciler owns these.
	StatusPendingFill Status = "pending_fill"
	// StatusFailed means the transfer failed; kept for audit.
	StatusFailed Status = "failed"
)

// Record is one fee owed or collected.
type Record struct {
	ID            string
	WalletAddress string
	OrderID       string
	TokenID       string
	Side          string
	Amount        decimal.Decimal
	Percentage    decimal.Decimal
	Status        Status
	TxHash        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRecord builds a fee record for one order.
func NewRecord(walletAddress, orderID, tokenID, side string, amount, percentage decimal.Decimal, status Status) Record {
	now := time.Now()
	return Record{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		OrderID:       orderID,
		TokenID:       tokenID,
		Side:          side,
		Amount:        amount,
		Percentage:    percentage,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Config is the platform fee schedule.
type Config struct {
	// Percentage of the quote amount, e.g. 2 for 2%.
	Percentage decimal.Decimal
	// Treasury receives collected fees.
	Treasury string
}

// Compute returns the fee for a quote-currency amount.
func (c Config) Compute(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.Percentage).Div(decimal.NewFromInt(100))
}

// TotalCost returns amount plus fee.
func (c Config) TotalCost(amount decimal.Decimal) decimal.Decimal {
	return amount.Add(c.Compute(amount))
}
