package notification

import (
	"context"
	"errors"
	"time"
)

const DefaultMaxAttempts = 3

var (
	ErrQueueClosed     = errors.New("notification_queue_closed")
	ErrUnknownTemplate = errors.New("unknown_notification_template")
)

// Job is one outbound mail. Attempt counts deliveries already tried.
type Job struct {
	ID          string    `json:"id"`
	Template    string    `json:"template"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Text        string    `json:"text"`
	HTML        string    `json:"html"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks up to wait and returns (nil, nil) when nothing arrived.
	Dequeue(ctx context.Context, wait time.Duration) (*Job, error)
}
