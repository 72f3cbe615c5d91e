package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/privatedrops/internal/config"
	"github.com/smallbiznis/privatedrops/internal/observability/tracing"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured  = errors.New("moderation_not_configured")
	ErrUnavailable    = errors.New("moderation_unavailable")
	ErrCheckRejected  = errors.New("moderation_check_rejected")
	errTransientCheck = errors.New("moderation_transient")
)

// Checker scores an image for the presence of minors.
type Checker interface {
	// MinorScore returns the highest minor probability over detected faces.
	MinorScore(ctx context.Context, imageURL string) (float64, error)
}

type SightengineClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	user    string
	secret  string
}

type checkResponse struct {
	Status string `json:"status"`
	Faces  []struct {
		Attributes struct {
			Minor float64 `json:"minor"`
		} `json:"attributes"`
	} `json:"faces"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewSightengineClient(cfg config.ModerationConfig, log *zap.Logger) *SightengineClient {
	log = log.Named("moderation.sightengine")
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(15 * time.Second).
		SetTransport(tracing.WrapTransport("sightengine", nil))

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sightengine",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCheckRejected)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &SightengineClient{
		http:    httpClient,
		breaker: breaker,
		user:    strings.TrimSpace(cfg.User),
		secret:  strings.TrimSpace(cfg.Secret),
	}
}

func (c *SightengineClient) Configured() bool {
	return c.user != "" && c.secret != ""
}

func (c *SightengineClient) MinorScore(ctx context.Context, imageURL string) (float64, error) {
	if !c.Configured() {
		return 0, ErrNotConfigured
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var body checkResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"url":        imageURL,
				"models":     "face-attributes",
				"api_user":   c.user,
				"api_secret": c.secret,
			}).
			SetResult(&body).
			SetError(&body).
			Get("/1.0/check.json")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errTransientCheck, err)
		}
		if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
			return nil, fmt.Errorf("%w: status %d", errTransientCheck, resp.StatusCode())
		}
		if resp.IsError() || body.Status != "success" {
			reason := resp.Status()
			if body.Error != nil {
				reason = body.Error.Type + ": " + body.Error.Message
			}
			return nil, fmt.Errorf("%w: %s", ErrCheckRejected, reason)
		}
		return &body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || errors.Is(err, errTransientCheck) {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return 0, err
	}

	body := result.(*checkResponse)
	var score float64
	for _, face := range body.Faces {
		if face.Attributes.Minor > score {
			score = face.Attributes.Minor
		}
	}
	return score, nil
}

var _ Checker = (*SightengineClient)(nil)
