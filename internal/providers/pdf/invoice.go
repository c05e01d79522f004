package pdf

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// InvoiceDocument is the pre-formatted content of an invoice; amounts are
// already rendered as strings.
type InvoiceDocument struct {
	CompanyName  string
	InvoiceNo    string
	IssueDate    string
	Status       string
	CustomerName string
	PassportNo   string
	AgentName    string
	Remarks      string

	Orders   []OrderLine
	Payments []PaymentLine

	Total  string
	Paid   string
	Unpaid string
}

type OrderLine struct {
	OrderNo   string
	OrderDate string
	Status    string
	Amount    string
}

type PaymentLine struct {
	Date   string
	Method string
	Status string
	Amount string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	if doc.InvoiceNo == "" {
		return nil, errors.New("invoice number is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, doc.CompanyName, props.Text{Size: 14, Style: fontstyle.Bold}),
		text.NewCol(4, "INVOICE", props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Invoice number: "+doc.InvoiceNo, props.Text{Top: 0}),
			text.New("Date of issue: "+doc.IssueDate, props.Text{Top: 5}),
			text.New("Status: "+doc.Status, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(doc.CustomerName, props.Text{Top: 5, Align: align.Right}),
			text.New("Passport: "+doc.PassportNo, props.Text{Top: 10, Align: align.Right}),
			text.New("Agent: "+doc.AgentName, props.Text{Top: 15, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(4, "Order", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Status", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, o := range doc.Orders {
		m.AddRow(8,
			text.NewCol(4, o.OrderNo, props.Text{Size: 9}),
			text.NewCol(3, o.OrderDate, props.Text{Size: 9}),
			text.NewCol(2, o.Status, props.Text{Size: 9}),
			text.NewCol(3, o.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(2, line.NewCol(12))
	addTotal(m, "Total", doc.Total, false)
	addTotal(m, "Paid", doc.Paid, false)
	addTotal(m, "Amount due", doc.Unpaid, true)

	if len(doc.Payments) > 0 {
		m.AddRow(12, text.NewCol(12, "Payments", props.Text{Style: fontstyle.Bold, Top: 4}))
		for _, pay := range doc.Payments {
			m.AddRow(8,
				text.NewCol(4, pay.Date, props.Text{Size: 9}),
				text.NewCol(3, pay.Method, props.Text{Size: 9}),
				text.NewCol(2, pay.Status, props.Text{Size: 9}),
				text.NewCol(3, pay.Amount, props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	if doc.Remarks != "" {
		m.AddRow(16, text.NewCol(12, "Remarks: "+doc.Remarks, props.Text{Size: 9, Top: 6}))
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}

func addTotal(m core.Maroto, label, value string, bold bool) {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	m.AddRow(8,
		col.New(7),
		text.NewCol(2, label, props.Text{Size: 9, Style: style}),
		text.NewCol(3, value, props.Text{Size: 9, Style: style, Align: align.Right}),
	)
}
