package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/visadesk/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/visadesk/internal/invoice/repository"
	"github.com/smallbiznis/visadesk/internal/observability/obscontext"
	paymentdomain "github.com/smallbiznis/visadesk/internal/payment/domain"
	"github.com/smallbiznis/visadesk/internal/payment/domain/mock"
	"github.com/smallbiznis/visadesk/internal/payment/repository"
	"github.com/smallbiznis/visadesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	env      *testutil.Env
	svc      paymentdomain.Service
	vouchers *mock.MockVoucherStore
	invoice  invoicedomain.Invoice
}

func newFixture(t *testing.T, total string) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	ctrl := gomock.NewController(t)
	vouchers := mock.NewMockVoucherStore(ctrl)

	cat := env.SeedCatalog(t, "100")
	amount := testutil.Dec(total)
	now := env.Clock.Now()
	invoice := invoicedomain.Invoice{
		ID:           env.Node.Generate(),
		InvoiceNo:    "INV202405010001",
		CustomerID:   cat.Passport.ID,
		TotalAmount:  amount,
		PaidAmount:   decimal.Zero,
		UnpaidAmount: amount,
		Status:       invoicedomain.StatusUnpaid,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, env.DB.Create(&invoice).Error)

	svc := New(Params{
		DB:          env.DB,
		Log:         zap.NewNop(),
		GenID:       env.Node,
		Clock:       env.Clock,
		Repo:        repository.Provide(),
		InvoiceRepo: invoicerepository.Provide(),
		Vouchers:    vouchers,
		Business:    env.Business,
	})
	return &fixture{env: env, svc: svc, vouchers: vouchers, invoice: invoice}
}

func (f *fixture) submit(t *testing.T, amount string) (*paymentdomain.Payment, error) {
	t.Helper()
	return f.svc.Create(context.Background(), paymentdomain.CreatePaymentRequest{
		InvoiceID:     f.invoice.ID.String(),
		Amount:        testutil.Dec(amount),
		PaymentMethod: "bank_transfer",
		PaymentDate:   "2024-05-01",
	})
}

func (f *fixture) reload(t *testing.T) invoicedomain.Invoice {
	t.Helper()
	var inv invoicedomain.Invoice
	require.NoError(t, f.env.DB.First(&inv, "id = ?", f.invoice.ID).Error)
	return inv
}

func TestPaymentLifecycle(t *testing.T) {
	f := newFixture(t, "250")

	first, err := f.submit(t, "100")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPending, first.Status)
	assert.Equal(t, "250.00", f.reload(t).UnpaidAmount.StringFixed(2))

	reviewer := f.env.Node.Generate()
	ctx := obscontext.WithActorID(context.Background(), reviewer.String())
	approved, err := f.svc.Review(ctx, first.ID.String(), paymentdomain.ReviewPaymentRequest{Status: "Approved", Remark: "ok"})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewerID)
	assert.Equal(t, reviewer, *approved.ReviewerID)
	assert.NotNil(t, approved.ReviewedAt)
	assert.Equal(t, "ok", approved.ReviewRemark)

	inv := f.reload(t)
	assert.Equal(t, "100.00", inv.PaidAmount.StringFixed(2))
	assert.Equal(t, "150.00", inv.UnpaidAmount.StringFixed(2))
	assert.Equal(t, invoicedomain.StatusPartiallyPaid, inv.Status)

	_, err = f.submit(t, "200")
	assert.ErrorIs(t, err, paymentdomain.ErrAmountExceedsUnpaid)

	second, err := f.submit(t, "150")
	require.NoError(t, err)
	_, err = f.svc.Review(context.Background(), second.ID.String(), paymentdomain.ReviewPaymentRequest{Status: "approved"})
	require.NoError(t, err)

	inv = f.reload(t)
	assert.Equal(t, "250.00", inv.PaidAmount.StringFixed(2))
	assert.True(t, inv.UnpaidAmount.IsZero())
	assert.Equal(t, invoicedomain.StatusPaid, inv.Status)

	_, err = f.svc.Review(context.Background(), second.ID.String(), paymentdomain.ReviewPaymentRequest{Status: "rejected"})
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentNotPending)
}

func TestApprovalRechecksUnpaid(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()

	a, err := f.submit(t, "80")
	require.NoError(t, err)
	b, err := f.submit(t, "80")
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, a.ID.String(), paymentdomain.ReviewPaymentRequest{Status: "approved"})
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, b.ID.String(), paymentdomain.ReviewPaymentRequest{Status: "approved"})
	assert.ErrorIs(t, err, paymentdomain.ErrApprovalExceedsUnpaid)

	rejected, err := f.svc.Review(ctx, b.ID.String(), paymentdomain.ReviewPaymentRequest{Status: "rejected", Remark: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusRejected, rejected.Status)

	inv := f.reload(t)
	assert.Equal(t, "80.00", inv.PaidAmount.StringFixed(2))
	assert.Equal(t, "20.00", inv.UnpaidAmount.StringFixed(2))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, "50")
	ctx := context.Background()
	base := paymentdomain.CreatePaymentRequest{
		InvoiceID:     f.invoice.ID.String(),
		Amount:        testutil.Dec("10"),
		PaymentMethod: "cash",
	}

	req := base
	req.Amount = decimal.Zero
	_, err := f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	req = base
	req.PaymentMethod = "crypto"
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidMethod)

	req = base
	req.PaymentDate = "yesterday"
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPaymentDate)

	req = base
	req.InvoiceID = f.env.Node.Generate().String()
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)

	req = base
	req.Voucher = &paymentdomain.VoucherUpload{Filename: "receipt.exe", Size: 3, Content: strings.NewReader("abc")}
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidVoucher)

	req.Voucher = &paymentdomain.VoucherUpload{Filename: "receipt.png", Size: 6 << 20, Content: strings.NewReader("abc")}
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, paymentdomain.ErrVoucherTooLarge)
}

func TestSubCentAmountsAreRejected(t *testing.T) {
	f := newFixture(t, "50")
	ctx := context.Background()

	_, err := f.submit(t, "0.004")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	p, err := f.submit(t, "0.005")
	require.NoError(t, err)
	assert.Equal(t, "0.01", p.Amount.StringFixed(2))

	tiny := testutil.Dec("0.001")
	_, err = f.svc.Update(ctx, p.ID.String(), paymentdomain.UpdatePaymentRequest{Amount: &tiny})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	list, err := f.svc.ListByInvoice(ctx, f.invoice.ID.String())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "0.01", list[0].Amount.StringFixed(2))
}

func TestVoucherStoredAndCleanedUp(t *testing.T) {
	f := newFixture(t, "50")
	ctx := context.Background()
	upload := func(name string) *paymentdomain.VoucherUpload {
		return &paymentdomain.VoucherUpload{Filename: name, Size: 3, Content: strings.NewReader("img")}
	}

	f.vouchers.EXPECT().Save(gomock.Any(), "first.png", gomock.Any()).Return("/uploads/vouchers/first.png", nil)
	created, err := f.svc.Create(ctx, paymentdomain.CreatePaymentRequest{
		InvoiceID:     f.invoice.ID.String(),
		Amount:        testutil.Dec("20"),
		PaymentMethod: "cash",
		Voucher:       upload("first.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/vouchers/first.png", created.VoucherPath)

	gomock.InOrder(
		f.vouchers.EXPECT().Save(gomock.Any(), "second.pdf", gomock.Any()).Return("/uploads/vouchers/second.pdf", nil),
		f.vouchers.EXPECT().Remove(gomock.Any(), "/uploads/vouchers/first.png").Return(nil),
	)
	updated, err := f.svc.Update(ctx, created.ID.String(), paymentdomain.UpdatePaymentRequest{Voucher: upload("second.pdf")})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/vouchers/second.pdf", updated.VoucherPath)

	f.vouchers.EXPECT().Remove(gomock.Any(), "/uploads/vouchers/second.pdf").Return(errors.New("gone"))
	require.NoError(t, f.svc.Delete(ctx, created.ID.String()))
	_, err = f.svc.Get(ctx, created.ID.String())
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentNotFound)
}

func TestFailedCreateRemovesSavedVoucher(t *testing.T) {
	f := newFixture(t, "50")

	gomock.InOrder(
		f.vouchers.EXPECT().Save(gomock.Any(), "big.jpg", gomock.Any()).Return("/uploads/vouchers/big.jpg", nil),
		f.vouchers.EXPECT().Remove(gomock.Any(), "/uploads/vouchers/big.jpg").Return(nil),
	)
	_, err := f.svc.Create(context.Background(), paymentdomain.CreatePaymentRequest{
		InvoiceID:     f.invoice.ID.String(),
		Amount:        testutil.Dec("60"),
		PaymentMethod: "cash",
		Voucher:       &paymentdomain.VoucherUpload{Filename: "big.jpg", Size: 3, Content: strings.NewReader("img")},
	})
	assert.ErrorIs(t, err, paymentdomain.ErrAmountExceedsUnpaid)
}

func TestUpdateAmountBoundIncludesCurrentAmount(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()

	p, err := f.submit(t, "40")
	require.NoError(t, err)

	amount := testutil.Dec("140")
	updated, err := f.svc.Update(ctx, p.ID.String(), paymentdomain.UpdatePaymentRequest{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, "140.00", updated.Amount.StringFixed(2))

	over := testutil.Dec("140.01")
	_, err = f.svc.Update(ctx, p.ID.String(), paymentdomain.UpdatePaymentRequest{Amount: &over})
	assert.ErrorIs(t, err, paymentdomain.ErrAmountExceedsUnpaid)

	// 140 is above the invoice's 100 unpaid, so approval rechecks and refuses.
	_, err = f.svc.Review(ctx, p.ID.String(), paymentdomain.ReviewPaymentRequest{Status: "approved"})
	assert.ErrorIs(t, err, paymentdomain.ErrApprovalExceedsUnpaid)

	lower := testutil.Dec("90")
	_, err = f.svc.Update(ctx, p.ID.String(), paymentdomain.UpdatePaymentRequest{Amount: &lower})
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, p.ID.String(), paymentdomain.ReviewPaymentRequest{Status: "approved"})
	require.NoError(t, err)

	inv := f.reload(t)
	assert.Equal(t, "90.00", inv.PaidAmount.StringFixed(2))
	assert.Equal(t, "10.00", inv.UnpaidAmount.StringFixed(2))

	remarks := "edit"
	_, err = f.svc.Update(ctx, p.ID.String(), paymentdomain.UpdatePaymentRequest{Remarks: &remarks})
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentNotPending)
	assert.ErrorIs(t, f.svc.Delete(ctx, p.ID.String()), paymentdomain.ErrPaymentNotPending)
}

func TestReviewRejectsUnknownOutcome(t *testing.T) {
	f := newFixture(t, "100")
	p, err := f.submit(t, "10")
	require.NoError(t, err)

	_, err = f.svc.Review(context.Background(), p.ID.String(), paymentdomain.ReviewPaymentRequest{Status: "pending"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidReviewStatus)

	list, err := f.svc.ListByInvoice(context.Background(), f.invoice.ID.String())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, paymentdomain.StatusPending, list[0].Status)
}
