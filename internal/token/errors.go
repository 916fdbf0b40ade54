package token

import "errors"

var (
	// ErrInvalidMint is returned when an address does not parse as a
	// Solana public key.
	ErrInvalidMint = errors.New("invalid mint address")

	// ErrTokenNotFound is returned when the upstream source does not know
	// the token at all. Unlike transient fetch failures, this one is
	// permanent: callers should stop polling the address.
	ErrTokenNotFound = errors.New("token not found")
)

// IsPermanent reports whether a fetch error will not resolve by retrying.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrInvalidMint)
}
