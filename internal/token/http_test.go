package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const wsolMint = "So11111111111111111111111111111111111111112"

func priceServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.URL, zap.NewNop())
}

func TestFetchPricePlainText(t *testing.T) {
	c := priceServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/tokens/%s/price", wsolMint), r.URL.Path)
		fmt.Fprint(w, "0.00012345\n")
	})

	price, err := c.FetchPrice(context.Background(), wsolMint)
	require.NoError(t, err)
	assert.InDelta(t, 0.00012345, price, 1e-15)
}

func TestFetchPriceZero(t *testing.T) {
	c := priceServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "0")
	})

	price, err := c.FetchPrice(context.Background(), wsolMint)
	require.NoError(t, err)
	assert.Zero(t, price)
}

func TestFetchPriceNotFound(t *testing.T) {
	c := priceServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.FetchPrice(context.Background(), wsolMint)
	require.ErrorIs(t, err, ErrTokenNotFound)
	assert.True(t, IsPermanent(err))
}

func TestFetchPriceServerErrorIsTransient(t *testing.T) {
	c := priceServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busy", http.StatusBadGateway)
	})

	_, err := c.FetchPrice(context.Background(), wsolMint)
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestFetchPriceMalformedBody(t *testing.T) {
	bodies := []string{"not-a-number", "", "NaN", "+Inf", "-5"}

	for _, body := range bodies {
		t.Run(fmt.Sprintf("body %q", body), func(t *testing.T) {
			c := priceServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			})

			_, err := c.FetchPrice(context.Background(), wsolMint)
			require.Error(t, err)
			assert.False(t, IsPermanent(err), "bad body may be an upstream hiccup")
		})
	}
}

func TestFetchPriceContextCancelled(t *testing.T) {
	c := priceServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "1.0")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPrice(ctx, wsolMint)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFetchMetadata(t *testing.T) {
	c := priceServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token/"+wsolMint, r.URL.Path)
		fmt.Fprint(w, `{"name":"Wrapped SOL","symbol":"SOL","logoURI":"https://example.com/sol.png"}`)
	})

	meta, err := c.FetchMetadata(context.Background(), wsolMint)
	require.NoError(t, err)
	assert.Equal(t, "Wrapped SOL", meta.Name)
	assert.Equal(t, "SOL", meta.Symbol)
	assert.Equal(t, "https://example.com/sol.png", meta.LogoURI)
}

func TestFetchMetadataMissingSymbolFallsBack(t *testing.T) {
	c := priceServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"Mystery Token"}`)
	})

	meta, err := c.FetchMetadata(context.Background(), wsolMint)
	require.NoError(t, err)
	assert.Equal(t, "So11...1112", meta.Symbol)
}

func TestFetchMetadataNotFound(t *testing.T) {
	c := priceServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.FetchMetadata(context.Background(), wsolMint)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestFetchMetadataMalformedJSON(t *testing.T) {
	c := priceServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": `)
	})

	_, err := c.FetchMetadata(context.Background(), wsolMint)
	require.Error(t, err)
}

func TestValidateMint(t *testing.T) {
	assert.NoError(t, ValidateMint(wsolMint))

	for _, bad := range []string{"", "hello", "0x1234", "So111-invalid"} {
		err := ValidateMint(bad)
		assert.ErrorIs(t, err, ErrInvalidMint, bad)
		assert.True(t, IsPermanent(err))
	}
}

func TestShortMint(t *testing.T) {
	assert.Equal(t, "So11...1112", shortMint(wsolMint))
	assert.Equal(t, "abc", shortMint("abc"))
}
