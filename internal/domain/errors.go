package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Transfer errors
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrUnprocessable       = errors.New("unprocessable transfer")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrNotBalanced         = errors.New("total debits must equal total credits")
	ErrInvalidModification = errors.New("transfer may not be modified in this way")
	ErrUnmetCondition      = errors.New("fulfillment does not match condition")
	ErrConflict            = errors.New("lost concurrent update race")

	// Authorization errors
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDebitUnauthorized  = errors.New("not authorized to debit this account")
	ErrRejectUnauthorized = errors.New("invalid attempt to reject credit")
)
