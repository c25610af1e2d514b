package exception

import "github.com/yanun0323/errors"

var (
	ErrUnknownOrder   = errors.New("order: not found")
	ErrInvalidFill    = errors.New("order: invalid fill quantity")
	ErrOrderRejected  = errors.New("order: rejected by venue")
	ErrRetryExhausted = errors.New("order: retry depth exhausted")
	ErrNoPriceLevel   = errors.New("order: no untried price level")
	ErrHedgeDepth     = errors.New("order: hedge ladder exhausted")
	ErrInvalidVolume  = errors.New("order: volume must be > 0")
	ErrPositionLimit  = errors.New("order: position limit reached")
)
