package pdf

import (
	"context"

	"go.uber.org/fx"
)

// Provider renders invoices to PDF bytes.
type Provider interface {
	RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error)
}

var Module = fx.Module("pdf.provider",
	fx.Provide(New),
)
