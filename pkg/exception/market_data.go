package exception

import "github.com/yanun0323/errors"

var (
	ErrUnknownInstrument = errors.New("market data: unknown instrument")
	ErrEmptyBook         = errors.New("market data: no quote on required level")
)
