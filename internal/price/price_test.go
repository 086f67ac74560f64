package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQuoteParsesPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pair":{"priceUsd":"0.0123","priceChange":{"h24":-4.5}}}`))
	}))
	defer srv.Close()

	q, err := NewFeed(srv.URL, zap.NewNop()).Quote(context.Background())
	require.NoError(t, err)
	assert.True(t, q.USD.Equal(decimal.RequireFromString("0.0123")))
	assert.True(t, q.Change24h.Equal(decimal.RequireFromString("-4.5")))
	assert.False(t, q.FetchedAt.IsZero())
}

func TestQuoteMissingPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pair":null}`))
	}))
	defer srv.Close()

	_, err := NewFeed(srv.URL, nil).Quote(context.Background())
	require.ErrorIs(t, err, ErrNoPair)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFeed(srv.URL, nil)
	for i := 0; i < 5; i++ {
		_, err := f.Quote(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}
