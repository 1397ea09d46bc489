package hyperliquid

import "errors"

var (
	errInvalidJSON = errors.New("decode: invalid json")
	errNotArray    = errors.New("decode: expected array")
)
