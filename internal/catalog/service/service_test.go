package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/internal/testutil"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*testutil.Env, domain.Service) {
	t.Helper()
	env := testutil.NewEnv(t)
	svc := New(Params{
		DB:       env.DB,
		Log:      zap.NewNop(),
		GenID:    env.Node,
		Clock:    env.Clock,
		Business: env.Business,
	})
	return env, svc
}

func TestPassportUniqueness(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()

	created, err := svc.CreatePassport(ctx, domain.CreatePassportRequest{
		Name:       "Alice Tan",
		PassportNo: " e1234567 ",
		Gender:     "Female",
		IssueDate:  "2020-01-10",
		ExpiryDate: "2030-01-09",
	})
	require.NoError(t, err)
	assert.Equal(t, "E1234567", created.PassportNo)
	assert.Equal(t, "female", created.Gender)

	_, err = svc.CreatePassport(ctx, domain.CreatePassportRequest{Name: "Bob", PassportNo: "E1234567"})
	assert.ErrorIs(t, err, domain.ErrPassportNoTaken)

	other, err := svc.CreatePassport(ctx, domain.CreatePassportRequest{Name: "Bob", PassportNo: "K7654321"})
	require.NoError(t, err)

	taken := "e1234567"
	_, err = svc.UpdatePassport(ctx, other.ID.String(), domain.UpdatePassportRequest{PassportNo: &taken})
	assert.ErrorIs(t, err, domain.ErrPassportNoTaken)
}

func TestPassportValidation(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreatePassportRequest
		err  error
	}{
		{"missing name", domain.CreatePassportRequest{PassportNo: "E1"}, domain.ErrInvalidName},
		{"missing number", domain.CreatePassportRequest{Name: "A"}, domain.ErrInvalidPassportNo},
		{"bad gender", domain.CreatePassportRequest{Name: "A", PassportNo: "E1", Gender: "x"}, domain.ErrInvalidGender},
		{"bad date", domain.CreatePassportRequest{Name: "A", PassportNo: "E1", IssueDate: "10/01/2020"}, domain.ErrInvalidDate},
		{"expiry before issue", domain.CreatePassportRequest{Name: "A", PassportNo: "E1", IssueDate: "2024-01-01", ExpiryDate: "2023-01-01"}, domain.ErrInvalidDateRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreatePassport(ctx, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestVisaStatusFollowsExpiry(t *testing.T) {
	env, svc := newService(t)
	ctx := context.Background()

	passport, err := svc.CreatePassport(ctx, domain.CreatePassportRequest{Name: "Alice", PassportNo: "E1"})
	require.NoError(t, err)

	create := func(expiry string) *domain.Visa {
		v, err := svc.CreateVisa(ctx, domain.CreateVisaRequest{
			PassportID: passport.ID.String(),
			VisaType:   "tourist",
			ExpiryDate: expiry,
		})
		require.NoError(t, err)
		return v
	}

	// testutil.Now is 2024-05-01 and the default window is 30 days.
	assert.Equal(t, domain.VisaStatusExpired, create("2024-04-30").Status)
	assert.Equal(t, domain.VisaStatusExpiringSoon, create("2024-05-31").Status)
	valid := create("2024-06-01")
	assert.Equal(t, domain.VisaStatusValid, valid.Status)
	assert.Equal(t, domain.EntrySingle, valid.EntryCount)

	env.Clock.Advance(5 * 24 * time.Hour)
	remarks := "renewal pending"
	updated, err := svc.UpdateVisa(ctx, valid.ID.String(), domain.UpdateVisaRequest{Remarks: &remarks})
	require.NoError(t, err)
	assert.Equal(t, domain.VisaStatusExpiringSoon, updated.Status)

	_, err = svc.CreateVisa(ctx, domain.CreateVisaRequest{PassportID: passport.ID.String(), VisaType: "tourist"})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	_, err = svc.CreateVisa(ctx, domain.CreateVisaRequest{PassportID: env.Node.Generate().String(), VisaType: "tourist", ExpiryDate: "2025-01-01"})
	assert.ErrorIs(t, err, domain.ErrPassportNotFound)

	err = svc.DeletePassport(ctx, passport.ID.String())
	assert.ErrorIs(t, err, domain.ErrPassportHasVisas)

	page, err := svc.ListVisas(ctx, domain.ListVisaRequest{
		Pagination: pagination.Pagination{Page: 1, Limit: 10},
		PassportID: passport.ID.String(),
		Status:     domain.VisaStatusExpired,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}

func TestPricingUniquenessAndDeleteGuards(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, domain.CreateProductRequest{Name: "Japan tourist visa", Type: "other"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, product.Status)
	supplier, err := svc.CreateSupplier(ctx, domain.CreatePartyRequest{Name: "Embassy Desk"})
	require.NoError(t, err)
	agent, err := svc.CreateAgent(ctx, domain.CreatePartyRequest{Name: "Sunrise Travel"})
	require.NoError(t, err)

	quote, err := svc.CreateQuote(ctx, domain.CreateQuoteRequest{
		ProductID:  product.ID.String(),
		SupplierID: supplier.ID.String(),
		CostPrice:  decimal.RequireFromString("60.00"),
	})
	require.NoError(t, err)

	_, err = svc.CreateQuote(ctx, domain.CreateQuoteRequest{
		ProductID:  product.ID.String(),
		SupplierID: supplier.ID.String(),
		CostPrice:  decimal.RequireFromString("55.00"),
	})
	assert.ErrorIs(t, err, domain.ErrQuoteExists)

	_, err = svc.CreateAgentPrice(ctx, domain.CreateAgentPriceRequest{
		ProductQuoteID: quote.ID.String(),
		AgentID:        agent.ID.String(),
		CostPrice:      decimal.RequireFromString("-1"),
		SellingPrice:   decimal.RequireFromString("100"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	price, err := svc.CreateAgentPrice(ctx, domain.CreateAgentPriceRequest{
		ProductQuoteID: quote.ID.String(),
		AgentID:        agent.ID.String(),
		CostPrice:      decimal.RequireFromString("60.00"),
		SellingPrice:   decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	_, err = svc.CreateAgentPrice(ctx, domain.CreateAgentPriceRequest{
		ProductQuoteID: quote.ID.String(),
		AgentID:        agent.ID.String(),
		SellingPrice:   decimal.RequireFromString("90.00"),
	})
	assert.ErrorIs(t, err, domain.ErrAgentPriceExists)

	assert.ErrorIs(t, svc.DeleteProduct(ctx, product.ID.String()), domain.ErrProductHasQuotes)
	assert.ErrorIs(t, svc.DeleteSupplier(ctx, supplier.ID.String()), domain.ErrSupplierHasQuotes)
	assert.ErrorIs(t, svc.DeleteAgent(ctx, agent.ID.String()), domain.ErrAgentHasPrices)
	assert.ErrorIs(t, svc.DeleteQuote(ctx, quote.ID.String()), domain.ErrQuoteHasPrices)

	require.NoError(t, svc.DeleteAgentPrice(ctx, price.ID.String()))
	require.NoError(t, svc.DeleteQuote(ctx, quote.ID.String()))
	require.NoError(t, svc.DeleteProduct(ctx, product.ID.String()))
	require.NoError(t, svc.DeleteSupplier(ctx, supplier.ID.String()))
	require.NoError(t, svc.DeleteAgent(ctx, agent.ID.String()))

	_, err = svc.GetProduct(ctx, product.ID.String())
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestPartyValidation(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateAgent(ctx, domain.CreatePartyRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.CreateSupplier(ctx, domain.CreatePartyRequest{Name: "Desk", Status: "paused"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.CreateProduct(ctx, domain.CreateProductRequest{Name: "Cruise", Type: "boat"})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = svc.GetAgent(ctx, "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
