package lootbox

import (
	"github.com/pkg/errors"
)

var (
	// ErrMalformedRecord indicates a buffer could not be decoded with the
	// selected schema.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrAccountNotFound indicates the queried address holds no data.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUnsupportedVersion indicates the leading version byte of a state
	// account does not match a known layout.
	ErrUnsupportedVersion = errors.New("unsupported state version")

	// ErrPriceNotConfigured indicates the lootbox has no price for the
	// requested payment account.
	ErrPriceNotConfigured = errors.New("price not configured")

	ErrInvalidSignatureFormat = errors.New("invalid signature format")
	ErrInvalidSignerKey       = errors.New("invalid signer key")

	// ErrUnsupportedInstruction indicates the program revision has no opcode
	// for the requested operation.
	ErrUnsupportedInstruction = errors.New("instruction not supported by revision")

	ErrInvalidParameter = errors.New("invalid parameter")
)
