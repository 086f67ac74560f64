package game

import (
	"errors"
	"fmt"
)

var (
	ErrCycleInProgress     = errors.New("a cycle is already running")
	ErrApprovalFailed      = errors.New("could not check/set approvals")
	ErrInvalidAmount       = errors.New("amount must be a positive number")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoListing           = errors.New("no market listing for item")
	ErrNotAffordable       = errors.New("not enough tokens to order")
	ErrNoMarket            = errors.New("network has no market")
)

// TxState is the progress of one transaction through the pipeline.
type TxState int

const (
	TxBuilt TxState = iota
	TxGasEstimated
	TxSigned
	TxBroadcast
	TxConfirmed
	TxFailed
)

func (s TxState) String() string {
	switch s {
	case TxBuilt:
		return "built"
	case TxGasEstimated:
		return "gas-estimated"
	case TxSigned:
		return "signed"
	case TxBroadcast:
		return "broadcast"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	}
	return fmt.Sprintf("TxState(%d)", int(s))
}

// TxError is a failed transaction. Reached is the last state before failure.
type TxError struct {
	Label   string
	Reached TxState
	Err     error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s: failed after %s: %v", e.Label, e.Reached, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }
