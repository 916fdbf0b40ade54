package ledger

import "errors"

var (
	// ErrInsufficientBalance is returned when a buy exceeds the cash balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount is returned when a buy amount is zero, negative or
	// not a finite number.
	ErrInvalidAmount = errors.New("invalid trade amount")

	// ErrInvalidQuote is returned when the quoted entry price is not a
	// positive finite number. Buying at a zero price would make the
	// quantity undefined.
	ErrInvalidQuote = errors.New("invalid quote price")

	// ErrInvalidPrice is returned when a close is attempted at a negative
	// or non-finite exit price. Zero is a valid exit price.
	ErrInvalidPrice = errors.New("invalid exit price")

	// ErrInvalidPosition is returned when a position reference no longer
	// resolves, typically because the position was already closed.
	ErrInvalidPosition = errors.New("position not found")
)
