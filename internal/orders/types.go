// Package orders submits entry and exit orders through a broker collaborator
// and records the resulting fills.
package orders

import (
	"context"
	"errors"
	"time"
)

// Action is the order side
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Errors for order execution
var (
	ErrEntryFailed = errors.New("entry order failed")
	ErrExitFailed  = errors.New("exit order failed")
)

// Fill is the immutable record of one executed order. Written once per
// entry/exit and consumed by ledger and end-of-day reporting.
type Fill struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Action         Action    `json:"action"`
	Quantity       float64   `json:"quantity"`
	Price          float64   `json:"price"`
	Timestamp      time.Time `json:"timestamp"`
	PatternID      string    `json:"pattern_id,omitempty"`
	RealizedPnLPct float64   `json:"realized_pnl_pct,omitempty"`
	ExitReason     string    `json:"exit_reason,omitempty"`
}

// Broker is the order-submission collaborator. It returns the average fill
// price for the executed quantity.
type Broker interface {
	SubmitOrder(ctx context.Context, symbol string, action Action, quantity, price float64) (float64, error)
}

// FillRepository persists fill records
type FillRepository interface {
	SaveFill(ctx context.Context, fill *Fill) error
}
