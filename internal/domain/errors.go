package domain

import "errors"

var (
	ErrNoPendingSell     = errors.New("no pending sell marker")
	ErrSellInFlight      = errors.New("sell already in flight")
	ErrNoCreator         = errors.New("creator unknown, cannot derive vault")
	ErrZeroAmount        = errors.New("computed trade amount is zero")
	ErrEmptyInstructions = errors.New("no instructions to submit")
	ErrNoBlockhash       = errors.New("no blockhash available")
	ErrChannelFailed     = errors.New("delivery channel failed")
	ErrHoldingNotFound   = errors.New("holding not found")
	ErrNotConfigured     = errors.New("not configured")
	ErrFeedClosed        = errors.New("event feed closed")
)
