package token

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Metadata describes a token as reported by the metadata endpoint.
type Metadata struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	LogoURI string `json:"logoURI"`
}

// PriceSource fetches the latest price for a token mint. Implementations are
// treated as unreliable: they may 404, return garbage, or be rate-limited.
type PriceSource interface {
	FetchPrice(ctx context.Context, mint string) (float64, error)
}

// MetadataSource fetches token metadata for a mint.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, mint string) (*Metadata, error)
}

// ValidateMint checks that mint parses as a Solana public key.
func ValidateMint(mint string) error {
	if _, err := solana.PublicKeyFromBase58(mint); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMint, mint)
	}
	return nil
}
