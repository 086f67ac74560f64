// Package price reads the reward token's USD price from a DexScreener pair.
package price

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var ErrNoPair = errors.New("price: pair not found")

// Quote is a point-in-time token price.
type Quote struct {
	USD       decimal.Decimal
	Change24h decimal.Decimal
	FetchedAt time.Time
}

type pairResponse struct {
	Pair *struct {
		PriceUSD    string `json:"priceUsd"`
		PriceChange struct {
			H24 decimal.Decimal `json:"h24"`
		} `json:"priceChange"`
	} `json:"pair"`
}

// Feed fetches quotes behind a circuit breaker. Three consecutive failures
// open it for Timeout.
type Feed struct {
	url     string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewFeed(pairURL string, log *zap.Logger) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "DexScreener",
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     30 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("price circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Feed{
		url:     pairURL,
		http:    resty.New().SetTimeout(10*time.Second).SetHeader("Accept", "application/json"),
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

func (f *Feed) Quote(ctx context.Context) (Quote, error) {
	out, err := f.breaker.Execute(func() (interface{}, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return Quote{}, err
	}
	return out.(Quote), nil
}

func (f *Feed) fetch(ctx context.Context) (Quote, error) {
	var body pairResponse
	resp, err := f.http.R().SetContext(ctx).SetResult(&body).Get(f.url)
	if err != nil {
		return Quote{}, fmt.Errorf("price request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Quote{}, fmt.Errorf("price request: status %d", resp.StatusCode())
	}
	if body.Pair == nil {
		return Quote{}, ErrNoPair
	}
	usd, err := decimal.NewFromString(body.Pair.PriceUSD)
	if err != nil {
		return Quote{}, fmt.Errorf("price: priceUsd %q: %w", body.Pair.PriceUSD, err)
	}
	return Quote{USD: usd, Change24h: body.Pair.PriceChange.H24, FetchedAt: time.Now()}, nil
}
