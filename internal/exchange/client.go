package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	"github.com/smallbiznis/privatedrops/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const cacheSize = 256

var (
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrRateUnavailable    = errors.New("exchange_rate_unavailable")
	ErrConversionRejected = errors.New("exchange_conversion_rejected")
)

// Converter turns an amount in minor units of one currency into another.
type Converter interface {
	Convert(ctx context.Context, from, to string, amount int64) (int64, error)
}

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Clock clock.Clock
}

type Client struct {
	http  *resty.Client
	key   string
	ttl   time.Duration
	clock clock.Clock
	log   *zap.Logger

	mu    sync.Mutex
	rates *lru.Cache
}

type rateEntry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

type convertResponse struct {
	Success bool `json:"success"`
	Info    struct {
		Rate float64 `json:"rate"`
	} `json:"info"`
	Result float64 `json:"result"`
	Error  *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error,omitempty"`
}

func NewClient(p Params) (*Client, error) {
	rates, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(p.Cfg.Exchange.BaseURL, "/")).
		SetTimeout(10 * time.Second).
		SetTransport(tracing.WrapTransport("exchange", nil))

	return &Client{
		http:  httpClient,
		key:   p.Cfg.Exchange.AccessKey,
		ttl:   p.Cfg.Exchange.CacheTTL,
		clock: p.Clock,
		log:   p.Log.Named("exchange"),
		rates: rates,
	}, nil
}

// Convert rounds the converted amount up to the next minor unit.
func (c *Client) Convert(ctx context.Context, from, to string, amount int64) (int64, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if len(from) != 3 || len(to) != 3 {
		return 0, ErrInvalidCurrency
	}
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	if from == to || amount == 0 {
		return amount, nil
	}

	rate, err := c.rate(ctx, from, to, amount)
	if err != nil {
		return 0, err
	}
	return decimal.NewFromInt(amount).Mul(rate).Ceil().IntPart(), nil
}

func (c *Client) rate(ctx context.Context, from, to string, amount int64) (decimal.Decimal, error) {
	key := from + ":" + to
	now := c.clock.Now()

	c.mu.Lock()
	if val, ok := c.rates.Get(key); ok {
		entry := val.(rateEntry)
		if now.Before(entry.expiresAt) {
			c.mu.Unlock()
			return entry.rate, nil
		}
		c.rates.Remove(key)
	}
	c.mu.Unlock()

	var body convertResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"access_key": c.key,
			"from":       strings.ToUpper(from),
			"to":         strings.ToUpper(to),
			"amount":     strconv.FormatInt(amount, 10),
		}).
		SetResult(&body).
		Get("/v1/convert")
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	if resp.StatusCode() >= 500 {
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrRateUnavailable, resp.StatusCode())
	}
	if resp.IsError() || !body.Success {
		reason := resp.Status()
		if body.Error != nil {
			reason = body.Error.Code
		}
		c.log.Warn("conversion rejected", zap.String("pair", key), zap.String("reason", reason))
		return decimal.Zero, ErrConversionRejected
	}

	rate := decimal.NewFromFloat(body.Info.Rate)
	if !rate.IsPositive() {
		// Some plans omit the rate; derive it from the converted result.
		rate = decimal.NewFromFloat(body.Result).Div(decimal.NewFromInt(amount))
	}
	if !rate.IsPositive() {
		return decimal.Zero, ErrConversionRejected
	}

	c.mu.Lock()
	c.rates.Add(key, rateEntry{rate: rate, expiresAt: now.Add(c.ttl)})
	c.mu.Unlock()
	return rate, nil
}

var Module = fx.Module("exchange",
	fx.Provide(
		NewClient,
		func(c *Client) Converter { return c },
	),
)
