package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/smallbiznis/visadesk/internal/docnumber"
	invoicedomain "github.com/smallbiznis/visadesk/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/visadesk/internal/payment/domain"
	"github.com/smallbiznis/visadesk/internal/ratelimit"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", paymentdomain.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{"not found", invoicedomain.ErrInvoiceNotFound, http.StatusNotFound, "not_found"},
		{"conflict", paymentdomain.ErrPaymentNotPending, http.StatusConflict, "conflict"},
		{"sequence exhausted", fmt.Errorf("next order number: %w", docnumber.ErrSequenceExhausted), http.StatusConflict, "conflict"},
		{"rate limited", ratelimit.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}
}
