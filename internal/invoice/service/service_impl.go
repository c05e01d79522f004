package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/visadesk/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/internal/clock"
	"github.com/smallbiznis/visadesk/internal/config"
	"github.com/smallbiznis/visadesk/internal/docnumber"
	invoicedomain "github.com/smallbiznis/visadesk/internal/invoice/domain"
	"github.com/smallbiznis/visadesk/internal/observability/logger"
	"github.com/smallbiznis/visadesk/internal/observability/metrics"
	"github.com/smallbiznis/visadesk/internal/observability/obscontext"
	"github.com/smallbiznis/visadesk/internal/providers/pdf"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
	"github.com/smallbiznis/visadesk/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     invoicedomain.Repository
	Numbers  *docnumber.Generator
	Business *config.BusinessConfigHolder
	PDF      pdf.Provider
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     invoicedomain.Repository
	numbers  *docnumber.Generator
	business *config.BusinessConfigHolder
	pdf      pdf.Provider
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) invoicedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		numbers:  p.Numbers,
		business: p.Business,
		pdf:      p.PDF,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	customerID, err := parseID(req.CustomerID, invoicedomain.ErrInvalidCustomer)
	if err != nil {
		return nil, err
	}
	agentID, err := parseOptionalID(req.AgentID, invoicedomain.ErrInvalidAgent)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	if req.TotalAmount != nil {
		if req.TotalAmount.IsNegative() {
			return nil, invoicedomain.ErrInvalidTotal
		}
		total = req.TotalAmount.Round(2)
	}

	now := s.clock.Now().UTC()
	invoice := invoicedomain.Invoice{
		ID:           s.genID.Generate(),
		CustomerID:   customerID,
		TotalAmount:  total,
		PaidAmount:   decimal.Zero,
		UnpaidAmount: total,
		Status:       invoicedomain.StatusUnpaid,
		Remarks:      strings.TrimSpace(req.Remarks),
		CreatedBy:    actorID(ctx),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if agentID != 0 {
		invoice.AgentID = &agentID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCustomer(ctx, tx, customerID); err != nil {
			return err
		}
		if agentID != 0 {
			if err := ensureAgent(ctx, tx, agentID); err != nil {
				return err
			}
		}

		invoiceNo, err := s.numbers.Next(ctx, tx, docnumber.KindInvoice, s.business.Get().Numbering.InvoicePrefix)
		if err != nil {
			return err
		}
		invoice.InvoiceNo = invoiceNo
		return s.repo.Insert(ctx, tx, &invoice)
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "invoice.create", invoice.ID, map[string]any{
		"invoice_no":   invoice.InvoiceNo,
		"total_amount": invoice.TotalAmount.StringFixed(2),
	})
	return &invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (pagination.Page[invoicedomain.InvoiceRow], error) {
	var empty pagination.Page[invoicedomain.InvoiceRow]

	customerID, err := parseOptionalID(req.CustomerID, invoicedomain.ErrInvalidCustomer)
	if err != nil {
		return empty, err
	}
	filter := invoicedomain.ListFilter{
		InvoiceNo:    req.InvoiceNo,
		CustomerName: req.CustomerName,
		CustomerID:   customerID,
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := invoicedomain.ParseStatus(raw)
		if !ok {
			return empty, invoicedomain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if filter.DateFrom, filter.DateTo, err = parseDateRange(req.DateFrom, req.DateTo); err != nil {
		return empty, err
	}

	page := req.Pagination.Normalize()
	filter.Offset = page.Offset()
	filter.Limit = page.Limit

	rows, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return empty, err
	}
	return pagination.NewPage(page, total, rows), nil
}

func (s *Service) Get(ctx context.Context, id string) (*invoicedomain.InvoiceRow, error) {
	invoiceID, err := parseID(id, invoicedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.FindRow(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return row, nil
}

func (s *Service) Update(ctx context.Context, id string, req invoicedomain.UpdateInvoiceRequest) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id, invoicedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	var (
		updated *invoicedomain.Invoice
		changes = map[string]any{}
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == invoicedomain.StatusPaid {
			return invoicedomain.ErrInvoicePaid
		}

		if req.CustomerID != nil {
			customerID, err := parseID(*req.CustomerID, invoicedomain.ErrInvalidCustomer)
			if err != nil {
				return err
			}
			if err := ensureCustomer(ctx, tx, customerID); err != nil {
				return err
			}
			changes["customer_id"] = customerID
		}
		if req.AgentID != nil {
			agentID, err := parseOptionalID(*req.AgentID, invoicedomain.ErrInvalidAgent)
			if err != nil {
				return err
			}
			if agentID == 0 {
				changes["agent_id"] = nil
			} else {
				if err := ensureAgent(ctx, tx, agentID); err != nil {
					return err
				}
				changes["agent_id"] = agentID
			}
		}
		if req.Remarks != nil {
			changes["remarks"] = strings.TrimSpace(*req.Remarks)
		}
		if len(changes) > 0 {
			changes["updated_at"] = s.clock.Now().UTC()
			if err := s.repo.Update(ctx, tx, invoiceID, changes); err != nil {
				return err
			}
		}

		updated, err = s.repo.FindByID(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		s.emitAudit(ctx, "invoice.update", invoiceID, auditChanges(changes))
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseID(id, invoicedomain.ErrInvalidID)
	if err != nil {
		return err
	}

	var invoiceNo string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		invoiceNo = invoice.InvoiceNo
		if invoice.Status != invoicedomain.StatusUnpaid || invoice.PaidAmount.IsPositive() {
			return invoicedomain.ErrInvoiceNotDeletable
		}

		links, err := s.repo.CountActiveLinks(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		payments, err := s.repo.CountPayments(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if links > 0 || payments > 0 {
			return invoicedomain.ErrInvoiceNotDeletable
		}

		if err := s.repo.DeleteLinks(ctx, tx, invoiceID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, invoiceID)
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, "invoice.delete", invoiceID, map[string]any{"invoice_no": invoiceNo})
	return nil
}

// SetStatus forces the status without touching the balance.
func (s *Service) SetStatus(ctx context.Context, id string, status string) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id, invoicedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	next, ok := invoicedomain.ParseStatus(status)
	if !ok {
		return nil, invoicedomain.ErrInvalidStatus
	}

	var (
		updated  *invoicedomain.Invoice
		previous invoicedomain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		previous = invoice.Status
		if previous != next {
			if err := s.repo.Update(ctx, tx, invoiceID, map[string]any{
				"status":     next,
				"updated_at": s.clock.Now().UTC(),
			}); err != nil {
				return err
			}
		}
		updated, err = s.repo.FindByID(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if previous != next {
		s.emitAudit(ctx, "invoice.status", invoiceID, map[string]any{
			"from": string(previous),
			"to":   string(next),
		})
	}
	return updated, nil
}

func (s *Service) RenderPDF(ctx context.Context, id string) (*invoicedomain.RenderedInvoice, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	orders, err := s.repo.ListLinkedOrders(ctx, s.db, row.ID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPaymentSummaries(ctx, s.db, row.ID)
	if err != nil {
		return nil, err
	}

	doc := pdf.InvoiceDocument{
		CompanyName:  s.business.Get().Company.Name,
		InvoiceNo:    row.InvoiceNo,
		IssueDate:    row.CreatedAt.UTC().Format("2006-01-02"),
		Status:       string(row.Status),
		CustomerName: row.CustomerName,
		PassportNo:   row.PassportNo,
		AgentName:    row.AgentName,
		Remarks:      row.Remarks,
		Total:        row.TotalAmount.StringFixed(2),
		Paid:         row.PaidAmount.StringFixed(2),
		Unpaid:       row.UnpaidAmount.StringFixed(2),
	}
	for _, o := range orders {
		doc.Orders = append(doc.Orders, pdf.OrderLine{
			OrderNo:   o.OrderNo,
			OrderDate: o.OrderDate.UTC().Format("2006-01-02"),
			Status:    o.OrderStatus,
			Amount:    o.Amount.StringFixed(2),
		})
	}
	for _, p := range payments {
		doc.Payments = append(doc.Payments, pdf.PaymentLine{
			Date:   p.PaymentDate.UTC().Format("2006-01-02"),
			Method: p.PaymentMethod,
			Status: p.Status,
			Amount: p.Amount.StringFixed(2),
		})
	}

	content, err := s.pdf.RenderInvoice(ctx, doc)
	if err != nil {
		logger.WithContext(ctx, s.log).Error("render invoice pdf", zap.String("invoice_no", row.InvoiceNo), zap.Error(err))
		return nil, err
	}
	return &invoicedomain.RenderedInvoice{
		Filename: row.InvoiceNo + ".pdf",
		Content:  content,
	}, nil
}

func (s *Service) lockInvoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func ensureCustomer(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	customer, err := repository.ProvideStore[catalogdomain.Passport](tx).FindByID(ctx, id)
	if err != nil {
		return err
	}
	if customer == nil {
		return catalogdomain.ErrPassportNotFound
	}
	return nil
}

func ensureAgent(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	agent, err := repository.ProvideStore[catalogdomain.Agent](tx).FindByID(ctx, id)
	if err != nil {
		return err
	}
	if agent == nil {
		return catalogdomain.ErrAgentNotFound
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, action string, invoiceID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, action, "invoice", invoiceID.String(), metadata); err != nil {
		logger.WithContext(ctx, s.log).Warn("operation log failed", zap.String("action", action), zap.Error(err))
	}
}

func auditChanges(changes map[string]any) map[string]any {
	out := make(map[string]any, len(changes))
	for k, v := range changes {
		if k == "updated_at" {
			continue
		}
		if id, ok := v.(snowflake.ID); ok {
			v = id.String()
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

func parseOptionalID(value string, invalid error) (snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return parseID(value, invalid)
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

// parseDateRange returns [from, to) with a bare date end widened to the next day.
func parseDateRange(fromRaw, toRaw string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if raw := strings.TrimSpace(fromRaw); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return nil, nil, invoicedomain.ErrInvalidDateRange
		}
		from = &t
	}
	if raw := strings.TrimSpace(toRaw); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return nil, nil, invoicedomain.ErrInvalidDateRange
		}
		if len(raw) == len("2006-01-02") {
			t = t.AddDate(0, 0, 1)
		}
		to = &t
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, invoicedomain.ErrInvalidDateRange
	}
	return from, to, nil
}
