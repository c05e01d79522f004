package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/visadesk/internal/audit/domain"
	"github.com/smallbiznis/visadesk/internal/clock"
	"github.com/smallbiznis/visadesk/internal/config"
	invoicedomain "github.com/smallbiznis/visadesk/internal/invoice/domain"
	"github.com/smallbiznis/visadesk/internal/observability/logger"
	"github.com/smallbiznis/visadesk/internal/observability/metrics"
	"github.com/smallbiznis/visadesk/internal/observability/obscontext"
	paymentdomain "github.com/smallbiznis/visadesk/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	InvoiceRepo invoicedomain.Repository
	Vouchers    paymentdomain.VoucherStore
	Business    *config.BusinessConfigHolder
	AuditSvc    auditdomain.Service `optional:"true"`
	Metrics     *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	invoiceRepo invoicedomain.Repository
	vouchers    paymentdomain.VoucherStore
	business    *config.BusinessConfigHolder
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		vouchers:    p.Vouchers,
		business:    p.Business,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req paymentdomain.CreatePaymentRequest) (*paymentdomain.Payment, error) {
	invoiceID, err := parseID(req.InvoiceID, paymentdomain.ErrInvalidInvoiceID)
	if err != nil {
		return nil, err
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, paymentdomain.ErrInvalidAmount
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" || !s.business.Get().AllowsPaymentMethod(method) {
		return nil, paymentdomain.ErrInvalidMethod
	}

	now := s.clock.Now().UTC()
	paymentDate := now
	if raw := strings.TrimSpace(req.PaymentDate); raw != "" {
		if paymentDate, err = parseTimestamp(raw); err != nil {
			return nil, paymentdomain.ErrInvalidPaymentDate
		}
	}
	if err := s.checkVoucher(req.Voucher); err != nil {
		return nil, err
	}

	voucherPath, err := s.saveVoucher(ctx, req.Voucher)
	if err != nil {
		return nil, err
	}

	payment := paymentdomain.Payment{
		ID:            s.genID.Generate(),
		InvoiceID:     invoiceID,
		Amount:        amount,
		PaymentMethod: method,
		PaymentDate:   paymentDate,
		Status:        paymentdomain.StatusPending,
		VoucherPath:   voucherPath,
		Remarks:       strings.TrimSpace(req.Remarks),
		CreatedBy:     actorID(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(invoice.UnpaidAmount) {
			return paymentdomain.ErrAmountExceedsUnpaid
		}
		return s.repo.Insert(ctx, tx, &payment)
	})
	if err != nil {
		s.removeVoucher(ctx, voucherPath)
		return nil, err
	}

	s.metrics.RecordPaymentCreated(ctx, method)
	s.emitAudit(ctx, "payment.create", payment.ID, map[string]any{
		"invoice_id": invoiceID.String(),
		"amount":     amount.StringFixed(2),
		"method":     method,
	})
	return &payment, nil
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID string) ([]paymentdomain.Payment, error) {
	id, err := parseID(invoiceID, paymentdomain.ErrInvalidInvoiceID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return s.repo.ListByInvoice(ctx, s.db, id)
}

func (s *Service) Get(ctx context.Context, id string) (*paymentdomain.Payment, error) {
	paymentID, err := parseID(id, paymentdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	payment, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) Update(ctx context.Context, id string, req paymentdomain.UpdatePaymentRequest) (*paymentdomain.Payment, error) {
	paymentID, err := parseID(id, paymentdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	if req.Amount != nil && !req.Amount.Round(2).IsPositive() {
		return nil, paymentdomain.ErrInvalidAmount
	}
	values := map[string]any{}
	if req.PaymentMethod != nil {
		method := strings.ToLower(strings.TrimSpace(*req.PaymentMethod))
		if method == "" || !s.business.Get().AllowsPaymentMethod(method) {
			return nil, paymentdomain.ErrInvalidMethod
		}
		values["payment_method"] = method
	}
	if req.PaymentDate != nil {
		paymentDate, err := parseTimestamp(strings.TrimSpace(*req.PaymentDate))
		if err != nil {
			return nil, paymentdomain.ErrInvalidPaymentDate
		}
		values["payment_date"] = paymentDate
	}
	if req.Remarks != nil {
		values["remarks"] = strings.TrimSpace(*req.Remarks)
	}
	if err := s.checkVoucher(req.Voucher); err != nil {
		return nil, err
	}

	newVoucher, err := s.saveVoucher(ctx, req.Voucher)
	if err != nil {
		return nil, err
	}
	if newVoucher != "" {
		values["voucher_path"] = newVoucher
	}

	var (
		updated    *paymentdomain.Payment
		oldVoucher string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, invoice, err := s.lockPending(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if req.Amount != nil {
			amount := req.Amount.Round(2)
			if amount.GreaterThan(invoice.UnpaidAmount.Add(current.Amount)) {
				return paymentdomain.ErrAmountExceedsUnpaid
			}
			values["amount"] = amount
		}
		if newVoucher != "" {
			oldVoucher = current.VoucherPath
		}
		if len(values) > 0 {
			values["updated_at"] = s.clock.Now().UTC()
			if err := s.repo.Update(ctx, tx, paymentID, values); err != nil {
				return err
			}
		}
		updated, err = s.repo.FindByID(ctx, tx, paymentID)
		return err
	})
	if err != nil {
		s.removeVoucher(ctx, newVoucher)
		return nil, err
	}

	s.removeVoucher(ctx, oldVoucher)
	if len(values) > 0 {
		s.emitAudit(ctx, "payment.update", paymentID, auditChanges(values))
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	paymentID, err := parseID(id, paymentdomain.ErrInvalidID)
	if err != nil {
		return err
	}

	var removed *paymentdomain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, _, err := s.lockPending(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		removed = current
		return s.repo.Delete(ctx, tx, paymentID)
	})
	if err != nil {
		return err
	}

	s.removeVoucher(ctx, removed.VoucherPath)
	s.emitAudit(ctx, "payment.delete", paymentID, map[string]any{
		"invoice_id": removed.InvoiceID.String(),
		"amount":     removed.Amount.StringFixed(2),
	})
	return nil
}

// Review settles a pending payment. Approval moves the amount from unpaid to
// paid on the invoice within the same transaction.
func (s *Service) Review(ctx context.Context, id string, req paymentdomain.ReviewPaymentRequest) (*paymentdomain.Payment, error) {
	paymentID, err := parseID(id, paymentdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	outcome := paymentdomain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if outcome != paymentdomain.StatusApproved && outcome != paymentdomain.StatusRejected {
		return nil, paymentdomain.ErrInvalidReviewStatus
	}

	var (
		reviewed      *paymentdomain.Payment
		invoiceStatus invoicedomain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, invoice, err := s.lockPending(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()

		if outcome == paymentdomain.StatusApproved {
			if current.Amount.GreaterThan(invoice.UnpaidAmount) {
				return paymentdomain.ErrApprovalExceedsUnpaid
			}
			paid := invoice.PaidAmount.Add(current.Amount)
			invoiceStatus = invoicedomain.DeriveStatus(invoice.TotalAmount, paid)
			if err := s.invoiceRepo.Update(ctx, tx, invoice.ID, map[string]any{
				"paid_amount":   paid,
				"unpaid_amount": invoice.TotalAmount.Sub(paid),
				"status":        invoiceStatus,
				"updated_at":    now,
			}); err != nil {
				return err
			}
		}

		values := map[string]any{
			"status":        outcome,
			"reviewed_at":   now,
			"review_remark": strings.TrimSpace(req.Remark),
			"updated_at":    now,
		}
		if reviewer := actorID(ctx); reviewer != 0 {
			values["reviewer_id"] = reviewer
		}
		if err := s.repo.Update(ctx, tx, paymentID, values); err != nil {
			return err
		}
		reviewed, err = s.repo.FindByID(ctx, tx, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPaymentReviewed(ctx, string(outcome))
	metadata := map[string]any{
		"invoice_id": reviewed.InvoiceID.String(),
		"status":     string(outcome),
		"amount":     reviewed.Amount.StringFixed(2),
	}
	if invoiceStatus != "" {
		metadata["invoice_status"] = string(invoiceStatus)
	}
	s.emitAudit(ctx, "payment.review", paymentID, metadata)
	return reviewed, nil
}

// lockPending locks the owning invoice before the payment so every writer
// takes the two rows in the same order.
func (s *Service) lockPending(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) (*paymentdomain.Payment, *invoicedomain.Invoice, error) {
	current, err := s.repo.FindByID(ctx, tx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, paymentdomain.ErrPaymentNotFound
	}
	invoice, err := s.lockInvoice(ctx, tx, current.InvoiceID)
	if err != nil {
		return nil, nil, err
	}
	current, err = s.repo.FindByIDForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, paymentdomain.ErrPaymentNotFound
	}
	if current.Status != paymentdomain.StatusPending {
		return nil, nil, paymentdomain.ErrPaymentNotPending
	}
	return current, invoice, nil
}

func (s *Service) lockInvoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) checkVoucher(upload *paymentdomain.VoucherUpload) error {
	if upload == nil {
		return nil
	}
	cfg := s.business.Get()
	if upload.Content == nil || strings.TrimSpace(upload.Filename) == "" {
		return paymentdomain.ErrInvalidVoucher
	}
	if !cfg.AllowsVoucherExtension(filepath.Ext(upload.Filename)) {
		return paymentdomain.ErrInvalidVoucher
	}
	if upload.Size > cfg.Voucher.MaxBytes {
		return paymentdomain.ErrVoucherTooLarge
	}
	return nil
}

func (s *Service) saveVoucher(ctx context.Context, upload *paymentdomain.VoucherUpload) (string, error) {
	if upload == nil {
		return "", nil
	}
	return s.vouchers.Save(ctx, upload.Filename, upload.Content)
}

func (s *Service) removeVoucher(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.vouchers.Remove(ctx, path); err != nil {
		logger.WithContext(ctx, s.log).Warn("remove voucher failed", zap.String("path", path), zap.Error(err))
	}
}

func (s *Service) emitAudit(ctx context.Context, action string, paymentID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, action, "payment", paymentID.String(), metadata); err != nil {
		logger.WithContext(ctx, s.log).Warn("operation log failed", zap.String("action", action), zap.Error(err))
	}
}

func auditChanges(changes map[string]any) map[string]any {
	out := make(map[string]any, len(changes))
	for k, v := range changes {
		if k == "updated_at" {
			continue
		}
		if d, ok := v.(decimal.Decimal); ok {
			v = d.StringFixed(2)
		}
		out[k] = v
	}
	return out
}

func actorID(ctx context.Context) snowflake.ID {
	id, err := snowflake.ParseString(obscontext.ActorIDFromContext(ctx))
	if err != nil {
		return 0
	}
	return id
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, errors.New("invalid timestamp")
	}
	return t, nil
}
