package wallet

import "errors"

var (
	// ErrInsufficientBalance: the spend exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrNegativeBalance: the account is in deficit; spending is blocked
	// entirely until an earn or adjustment brings it back to >= 0.
	ErrNegativeBalance = errors.New("wallet balance is negative")

	ErrInvalidAmount   = errors.New("amount must be a positive integer")
	ErrMissingCustomer = errors.New("customer id is required")
	ErrMissingOrder    = errors.New("order id is required")
)
