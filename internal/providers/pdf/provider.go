package pdf

import (
	"context"
	"io"
	"time"
)

// StatementLine is one payout movement on the creator balance.
type StatementLine struct {
	Date        time.Time
	Description string
	// Amount is signed: credits are positive.
	Amount int64
}

type StatementData struct {
	Email       string
	Nickname    string
	Currency    string
	GeneratedAt time.Time
	Lines       []StatementLine
	Balance     int64
}

type Provider interface {
	GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error)
}

func NewProvider() Provider {
	return &PDFProvider{}
}
