package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTradeType = errors.New("trade type must be BUY or SELL")
	ErrInvalidAmount    = errors.New("trade amount must be greater than zero")
	ErrInvalidPrice     = errors.New("execution price must be greater than zero")
	ErrDisplayNameTaken = errors.New("display name already taken")
)

// InsufficientFundsError is returned when a trade would drive the cash
// balance negative. It carries the amounts so callers can show both.
type InsufficientFundsError struct {
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required $%.2f, available $%.2f", e.Required, e.Available)
}

// InsufficientHoldingsError is returned when a sell asks for more units
// than the caller currently holds.
type InsufficientHoldingsError struct {
	CoinID    string
	Requested float64
	Held      float64
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("insufficient holdings of %s: requested %v, held %v", e.CoinID, e.Requested, e.Held)
}
