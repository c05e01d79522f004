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
	"github.com/smallbiznis/visadesk/internal/observability/logger"
	"github.com/smallbiznis/visadesk/internal/observability/metrics"
	"github.com/smallbiznis/visadesk/internal/observability/obscontext"
	orderdomain "github.com/smallbiznis/visadesk/internal/order/domain"
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
	Repo     orderdomain.Repository
	Numbers  *docnumber.Generator
	Business *config.BusinessConfigHolder
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     orderdomain.Repository
	numbers  *docnumber.Generator
	business *config.BusinessConfigHolder
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) orderdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("order.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		numbers:  p.Numbers,
		business: p.Business,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req orderdomain.CreateOrderRequest) (*orderdomain.CreateOrderResponse, error) {
	customerID, err := parseID(req.CustomerID, orderdomain.ErrInvalidCustomer)
	if err != nil {
		return nil, err
	}
	agentID, err := parseID(req.AgentID, orderdomain.ErrInvalidAgent)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, orderdomain.ErrInvalidItems
	}
	for _, in := range req.Items {
		if err := validateItemInput(in); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	orderDate := now
	if raw := strings.TrimSpace(req.OrderDate); raw != "" {
		if orderDate, err = parseTimestamp(raw); err != nil {
			return nil, orderdomain.ErrInvalidOrderDate
		}
	}

	order := orderdomain.Order{
		ID:            s.genID.Generate(),
		CustomerID:    customerID,
		AgentID:       agentID,
		OrderStatus:   orderdomain.OrderStatusPending,
		PaymentStatus: orderdomain.PaymentStatusUnpaid,
		OrderDate:     orderDate,
		Remarks:       strings.TrimSpace(req.Remarks),
		CreatedBy:     actorID(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureParties(ctx, tx, customerID, agentID); err != nil {
			return err
		}

		items := make([]orderdomain.OrderItem, 0, len(req.Items))
		total := decimal.Zero
		for _, in := range req.Items {
			item, err := s.resolveItem(ctx, tx, in)
			if err != nil {
				return err
			}
			item.ID = s.genID.Generate()
			item.OrderID = order.ID
			item.CreatedAt = now
			item.UpdatedAt = now
			total = total.Add(item.Subtotal)
			items = append(items, item)
		}
		order.TotalAmount = total

		orderNo, err := s.numbers.Next(ctx, tx, docnumber.KindOrder, s.business.Get().Numbering.OrderPrefix)
		if err != nil {
			return err
		}
		order.OrderNo = orderNo

		if err := s.repo.Insert(ctx, tx, &order); err != nil {
			return err
		}
		return s.repo.InsertItems(ctx, tx, items)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderCreated(ctx, len(req.Items))
	s.emitAudit(ctx, "order.create", order.ID, map[string]any{
		"order_no":     order.OrderNo,
		"total_amount": order.TotalAmount.StringFixed(2),
		"items":        len(req.Items),
	})

	return &orderdomain.CreateOrderResponse{ID: order.ID.String(), OrderNo: order.OrderNo}, nil
}

func (s *Service) List(ctx context.Context, req orderdomain.ListOrderRequest) (pagination.Page[orderdomain.OrderRow], error) {
	var empty pagination.Page[orderdomain.OrderRow]

	customerID, err := parseOptionalID(req.CustomerID, orderdomain.ErrInvalidCustomer)
	if err != nil {
		return empty, err
	}
	agentID, err := parseOptionalID(req.AgentID, orderdomain.ErrInvalidAgent)
	if err != nil {
		return empty, err
	}

	filter := orderdomain.ListFilter{
		CustomerID: customerID,
		AgentID:    agentID,
		OrderNo:    req.OrderNo,
	}
	if raw := strings.TrimSpace(req.OrderStatus); raw != "" {
		status := orderdomain.OrderStatus(strings.ToLower(raw))
		if !status.Valid() {
			return empty, orderdomain.ErrInvalidOrderStatus
		}
		filter.OrderStatus = status
	}
	if raw := strings.TrimSpace(req.PaymentStatus); raw != "" {
		status := orderdomain.PaymentStatus(strings.ToLower(raw))
		if !status.Valid() {
			return empty, orderdomain.ErrInvalidPaymentStatus
		}
		filter.PaymentStatus = status
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

func (s *Service) Get(ctx context.Context, id string) (*orderdomain.OrderDetail, error) {
	orderID, err := parseID(id, orderdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.FindRow(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	items, err := s.repo.ListItems(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	return &orderdomain.OrderDetail{OrderRow: *row, Items: items}, nil
}

func (s *Service) Update(ctx context.Context, id string, req orderdomain.UpdateOrderRequest) (*orderdomain.Order, error) {
	orderID, err := parseID(id, orderdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	var (
		nextStatus  *orderdomain.OrderStatus
		nextPayment *orderdomain.PaymentStatus
	)
	if req.OrderStatus != nil {
		status := orderdomain.OrderStatus(strings.ToLower(strings.TrimSpace(*req.OrderStatus)))
		if !status.Valid() {
			return nil, orderdomain.ErrInvalidOrderStatus
		}
		nextStatus = &status
	}
	if req.PaymentStatus != nil {
		status := orderdomain.PaymentStatus(strings.ToLower(strings.TrimSpace(*req.PaymentStatus)))
		if !status.Valid() {
			return nil, orderdomain.ErrInvalidPaymentStatus
		}
		nextPayment = &status
	}

	var (
		updated *orderdomain.Order
		changes = map[string]any{}
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrOrderNotFound
		}

		if nextStatus != nil && *nextStatus != order.OrderStatus {
			if err := checkTransition(order.OrderStatus, *nextStatus); err != nil {
				return err
			}
			changes["order_status"] = *nextStatus
		}
		if nextPayment != nil && *nextPayment != order.PaymentStatus {
			changes["payment_status"] = *nextPayment
		}
		if req.Remarks != nil {
			changes["remarks"] = strings.TrimSpace(*req.Remarks)
		}
		if len(changes) > 0 {
			changes["updated_at"] = s.clock.Now().UTC()
			if err := s.repo.Update(ctx, tx, orderID, changes); err != nil {
				return err
			}
		}

		updated, err = s.repo.FindByID(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		s.emitAudit(ctx, "order.update", orderID, auditChanges(changes))
	}
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (*orderdomain.Order, error) {
	cancelled := string(orderdomain.OrderStatusCancelled)
	orderID, err := parseID(id, orderdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	var order *orderdomain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return orderdomain.ErrOrderNotFound
		}
		if err := checkTransition(current.OrderStatus, orderdomain.OrderStatusCancelled); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, orderID, map[string]any{
			"order_status": cancelled,
			"updated_at":   s.clock.Now().UTC(),
		}); err != nil {
			return err
		}
		order, err = s.repo.FindByID(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "order.cancel", orderID, map[string]any{"order_no": order.OrderNo})
	return order, nil
}

// checkTransition guards order_status changes: cancelled is terminal and a
// completed order cannot be cancelled.
func checkTransition(from, to orderdomain.OrderStatus) error {
	switch from {
	case orderdomain.OrderStatusCancelled:
		return orderdomain.ErrOrderAlreadyCancelled
	case orderdomain.OrderStatusCompleted:
		if to == orderdomain.OrderStatusCancelled {
			return orderdomain.ErrOrderCompleted
		}
	}
	return nil
}

func (s *Service) ensureParties(ctx context.Context, tx *gorm.DB, customerID, agentID snowflake.ID) error {
	customer, err := repository.ProvideStore[catalogdomain.Passport](tx).FindByID(ctx, customerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return catalogdomain.ErrPassportNotFound
	}
	agent, err := repository.ProvideStore[catalogdomain.Agent](tx).FindByID(ctx, agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return catalogdomain.ErrAgentNotFound
	}
	return nil
}

// resolveItem loads the catalog rows an item points at and prices it.
func (s *Service) resolveItem(ctx context.Context, tx *gorm.DB, in orderdomain.ItemInput) (orderdomain.OrderItem, error) {
	var item orderdomain.OrderItem

	productID, err := parseID(in.ProductID, orderdomain.ErrInvalidProduct)
	if err != nil {
		return item, err
	}
	quoteID, err := parseID(in.ProductQuoteID, orderdomain.ErrInvalidQuote)
	if err != nil {
		return item, err
	}
	priceID, err := parseID(in.AgentProductPriceID, orderdomain.ErrInvalidAgentPrice)
	if err != nil {
		return item, err
	}

	product, err := repository.ProvideStore[catalogdomain.Product](tx).FindByID(ctx, productID)
	if err != nil {
		return item, err
	}
	if product == nil {
		return item, catalogdomain.ErrProductNotFound
	}
	quote, err := repository.ProvideStore[catalogdomain.ProductQuote](tx).FindByID(ctx, quoteID)
	if err != nil {
		return item, err
	}
	if quote == nil {
		return item, catalogdomain.ErrQuoteNotFound
	}
	price, err := repository.ProvideStore[catalogdomain.AgentProductPrice](tx).FindByID(ctx, priceID)
	if err != nil {
		return item, err
	}
	if price == nil {
		return item, catalogdomain.ErrAgentPriceNotFound
	}
	if quote.ProductID != productID || price.ProductQuoteID != quoteID {
		return item, orderdomain.ErrItemReferenceMismatch
	}

	unitPrice := price.SellingPrice
	if in.UnitPrice != nil {
		unitPrice = *in.UnitPrice
	}
	unitPrice = unitPrice.Round(2)

	item = orderdomain.OrderItem{
		ProductID:           productID,
		ProductQuoteID:      quoteID,
		AgentProductPriceID: priceID,
		Quantity:            in.Quantity,
		UnitPrice:           unitPrice,
		Subtotal:            orderdomain.Subtotal(in.Quantity, unitPrice),
		Remarks:             strings.TrimSpace(in.Remarks),
	}
	return item, nil
}

func validateItemInput(in orderdomain.ItemInput) error {
	if in.Quantity <= 0 {
		return orderdomain.ErrInvalidQuantity
	}
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return orderdomain.ErrInvalidUnitPrice
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, action string, orderID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, action, "order", orderID.String(), metadata); err != nil {
		logger.WithContext(ctx, s.log).Warn("operation log failed", zap.String("action", action), zap.Error(err))
	}
}

func auditChanges(changes map[string]any) map[string]any {
	out := make(map[string]any, len(changes))
	for k, v := range changes {
		if k == "updated_at" {
			continue
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

// parseTimestamp accepts RFC 3339 or a bare YYYY-MM-DD date.
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
			return nil, nil, orderdomain.ErrInvalidDateRange
		}
		from = &t
	}
	if raw := strings.TrimSpace(toRaw); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return nil, nil, orderdomain.ErrInvalidDateRange
		}
		if len(raw) == len("2006-01-02") {
			t = t.AddDate(0, 0, 1)
		}
		to = &t
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, orderdomain.ErrInvalidDateRange
	}
	return from, to, nil
}
