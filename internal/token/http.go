package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPriceBaseURL serves plain-text spot prices at
	// /tokens/{mint}/price.
	DefaultPriceBaseURL = "https://data.fluxbeam.xyz"

	// DefaultMetadataBaseURL serves token metadata at /token/{mint}.
	DefaultMetadataBaseURL = "https://tokens.jup.ag"

	requestTimeout = 10 * time.Second
)

// Client fetches prices and metadata over HTTP. It implements both
// PriceSource and MetadataSource.
type Client struct {
	httpClient      *http.Client
	priceBaseURL    string
	metadataBaseURL string
	logger          *zap.Logger
}

// NewClient creates an HTTP token client. Empty base URLs fall back to the
// defaults.
func NewClient(priceBaseURL, metadataBaseURL string, logger *zap.Logger) *Client {
	if priceBaseURL == "" {
		priceBaseURL = DefaultPriceBaseURL
	}
	if metadataBaseURL == "" {
		metadataBaseURL = DefaultMetadataBaseURL
	}
	return &Client{
		httpClient:      &http.Client{Timeout: requestTimeout},
		priceBaseURL:    strings.TrimRight(priceBaseURL, "/"),
		metadataBaseURL: strings.TrimRight(metadataBaseURL, "/"),
		logger:          logger,
	}
}

// FetchPrice returns the latest price for the mint. The endpoint responds
// with the price as plain text. A 404 means the token is unknown upstream and
// maps to ErrTokenNotFound; other failures are transient.
func (c *Client) FetchPrice(ctx context.Context, mint string) (float64, error) {
	url := fmt.Sprintf("%s/tokens/%s/price", c.priceBaseURL, mint)

	body, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}

	raw := strings.TrimSpace(string(body))
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed price %q for %s: %w", raw, mint, err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, fmt.Errorf("out-of-range price %q for %s", raw, mint)
	}

	return price, nil
}

// FetchMetadata returns name, symbol and logo for the mint.
func (c *Client) FetchMetadata(ctx context.Context, mint string) (*Metadata, error) {
	url := fmt.Sprintf("%s/token/%s", c.metadataBaseURL, mint)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("malformed metadata for %s: %w", mint, err)
	}
	if meta.Symbol == "" {
		meta.Symbol = shortMint(mint)
	}

	return &meta, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrTokenNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	return body, nil
}

// shortMint renders an abbreviated address usable as a fallback symbol.
func shortMint(mint string) string {
	if len(mint) >= 8 {
		return mint[:4] + "..." + mint[len(mint)-4:]
	}
	return mint
}
