package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderInvoiceProducesPDF(t *testing.T) {
	out, err := New().RenderInvoice(context.Background(), InvoiceDocument{
		CompanyName:  "Visadesk Travel",
		InvoiceNo:    "INV202403150001",
		IssueDate:    "2024-03-15",
		Status:       "partially_paid",
		CustomerName: "Jane Doe",
		PassportNo:   "E12345678",
		AgentName:    "North Agency",
		Orders: []OrderLine{
			{OrderNo: "ORD202403150001", OrderDate: "2024-03-15", Status: "pending", Amount: "150.00"},
		},
		Payments: []PaymentLine{
			{Date: "2024-03-16", Method: "cash", Status: "approved", Amount: "50.00"},
		},
		Total:  "150.00",
		Paid:   "50.00",
		Unpaid: "100.00",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderInvoiceRequiresNumber(t *testing.T) {
	_, err := New().RenderInvoice(context.Background(), InvoiceDocument{})
	assert.Error(t, err)
}
