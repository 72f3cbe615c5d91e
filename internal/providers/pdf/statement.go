package pdf

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

type PDFProvider struct{}

func (p *PDFProvider) GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(30,
		text.NewCol(8, "Payout statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "PrivateDrops", props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	name := data.Email
	if data.Nickname != "" {
		name = data.Nickname + " <" + data.Email + ">"
	}
	m.AddRow(20,
		col.New(8).Add(
			text.New("Creator: "+name, props.Text{Top: 0}),
			text.New("Generated: "+data.GeneratedAt.Format("2006-01-02 15:04 MST"), props.Text{Top: 5}),
		),
		col.New(4),
	)

	m.AddRow(10,
		text.NewCol(3, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range data.Lines {
		m.AddRow(8,
			text.NewCol(3, line.Date.Format("2006-01-02"), props.Text{Size: 9}),
			text.NewCol(6, line.Description, props.Text{Size: 9}),
			text.NewCol(3, formatAmount(line.Amount, data.Currency), props.Text{Size: 9, Align: align.Right}),
		)
	}
	if len(data.Lines) == 0 {
		m.AddRow(8, text.NewCol(12, "No payouts yet", props.Text{Size: 9}))
	}

	m.AddRow(12,
		col.New(6),
		text.NewCol(3, "Balance", props.Text{Size: 10, Style: fontstyle.Bold, Top: 3}),
		text.NewCol(3, formatAmount(data.Balance, data.Currency), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right, Top: 3}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func formatAmount(minor int64, currency string) string {
	return decimal.New(minor, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}
