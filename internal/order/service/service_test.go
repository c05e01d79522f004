package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	auditrepository "github.com/smallbiznis/visadesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/visadesk/internal/audit/service"
	catalogdomain "github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/internal/docnumber"
	"github.com/smallbiznis/visadesk/internal/observability/obscontext"
	orderdomain "github.com/smallbiznis/visadesk/internal/order/domain"
	"github.com/smallbiznis/visadesk/internal/order/repository"
	"github.com/smallbiznis/visadesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	env  *testutil.Env
	svc  orderdomain.Service
	cat  testutil.Catalog
	logs *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)

	audit := auditservice.NewService(auditservice.Params{
		DB:    env.DB,
		Log:   log,
		GenID: env.Node,
		Clock: env.Clock,
		Repo:  auditrepository.Provide(),
	})
	svc := New(Params{
		DB:       env.DB,
		Log:      log,
		GenID:    env.Node,
		Clock:    env.Clock,
		Repo:     repository.Provide(),
		Numbers:  docnumber.New(env.Clock),
		Business: env.Business,
		AuditSvc: audit,
	})
	return &fixture{env: env, svc: svc, cat: env.SeedCatalog(t, "100.00"), logs: logs}
}

func (f *fixture) item(quantity int, unitPrice string) orderdomain.ItemInput {
	in := orderdomain.ItemInput{
		ProductID:           f.cat.Product.ID.String(),
		ProductQuoteID:      f.cat.Quote.ID.String(),
		AgentProductPriceID: f.cat.Price.ID.String(),
		Quantity:            quantity,
	}
	if unitPrice != "" {
		price := decimal.RequireFromString(unitPrice)
		in.UnitPrice = &price
	}
	return in
}

func (f *fixture) create(t *testing.T, items ...orderdomain.ItemInput) *orderdomain.OrderDetail {
	t.Helper()
	ctx := context.Background()
	resp, err := f.svc.Create(ctx, orderdomain.CreateOrderRequest{
		CustomerID: f.cat.Passport.ID.String(),
		AgentID:    f.cat.Agent.ID.String(),
		Items:      items,
	})
	require.NoError(t, err)
	detail, err := f.svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	return detail
}

func TestCreateOrderSumsItems(t *testing.T) {
	f := newFixture(t)

	detail := f.create(t, f.item(2, ""), f.item(1, "50"))

	assert.Equal(t, "250.00", detail.TotalAmount.StringFixed(2))
	assert.Equal(t, "ORD202405010001", detail.OrderNo)
	assert.Equal(t, orderdomain.OrderStatusPending, detail.OrderStatus)
	assert.Equal(t, orderdomain.PaymentStatusUnpaid, detail.PaymentStatus)
	assert.Equal(t, "Alice Tan", detail.CustomerName)
	assert.Equal(t, "Sunrise Travel", detail.AgentName)
	require.Len(t, detail.Items, 2)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := orderdomain.CreateOrderRequest{
		CustomerID: f.cat.Passport.ID.String(),
		AgentID:    f.cat.Agent.ID.String(),
	}

	_, err := f.svc.Create(ctx, base)
	assert.ErrorIs(t, err, orderdomain.ErrInvalidItems)

	req := base
	req.Items = []orderdomain.ItemInput{f.item(0, "")}
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, orderdomain.ErrInvalidQuantity)

	req.Items = []orderdomain.ItemInput{f.item(1, "-1")}
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, orderdomain.ErrInvalidUnitPrice)

	req = base
	req.CustomerID = f.env.Node.Generate().String()
	req.Items = []orderdomain.ItemInput{f.item(1, "")}
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, catalogdomain.ErrPassportNotFound)

	other := f.env.SeedCatalog(t, "10")
	mismatch := f.item(1, "")
	mismatch.ProductQuoteID = other.Quote.ID.String()
	req = base
	req.Items = []orderdomain.ItemInput{mismatch}
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, orderdomain.ErrItemReferenceMismatch)

	var count int64
	require.NoError(t, f.env.DB.Model(&orderdomain.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestItemMutationsMaintainTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.create(t, f.item(2, ""), f.item(1, "50"))

	add := orderdomain.AddItemRequest{OrderID: detail.ID.String(), ItemInput: f.item(3, "10")}
	added, err := f.svc.AddItem(ctx, add)
	require.NoError(t, err)
	assert.Equal(t, "30.00", added.Subtotal.StringFixed(2))
	assert.Equal(t, "280.00", f.total(t, detail.ID.String()))

	qty := 1
	_, err = f.svc.UpdateItem(ctx, added.ID.String(), orderdomain.UpdateItemRequest{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, "260.00", f.total(t, detail.ID.String()))

	require.NoError(t, f.svc.DeleteItem(ctx, added.ID.String()))
	assert.Equal(t, "250.00", f.total(t, detail.ID.String()))
}

func TestDeleteItemRespectsOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.create(t, f.item(2, ""), f.item(1, "50"))

	var fifty orderdomain.OrderItem
	for _, item := range detail.Items {
		if item.Subtotal.Equal(decimal.NewFromInt(50)) {
			fifty = item
		}
	}
	require.NotZero(t, fifty.ID)

	second := f.create(t, f.item(2, ""), f.item(1, "50"))
	completed := string(orderdomain.OrderStatusCompleted)
	_, err := f.svc.Update(ctx, second.ID.String(), orderdomain.UpdateOrderRequest{OrderStatus: &completed})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteItem(ctx, fifty.ID.String()))
	assert.Equal(t, "200.00", f.total(t, detail.ID.String()))

	err = f.svc.DeleteItem(ctx, second.Items[1].ID.String())
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotEditable)
	assert.Equal(t, "250.00", f.total(t, second.ID.String()))
	items, err := f.svc.ListItems(ctx, second.ID.String())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestTotalDriftIsCorrectedFromItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.create(t, f.item(1, ""))

	require.NoError(t, f.env.DB.Model(&orderdomain.Order{}).
		Where("id = ?", detail.ID).
		Update("total_amount", decimal.RequireFromString("999")).Error)

	_, err := f.svc.AddItem(ctx, orderdomain.AddItemRequest{OrderID: detail.ID.String(), ItemInput: f.item(1, "20")})
	require.NoError(t, err)

	assert.Equal(t, "120.00", f.total(t, detail.ID.String()))
	assert.Equal(t, 1, f.logs.FilterMessage("order total drift corrected").Len())
}

func TestOrderStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.create(t, f.item(1, ""))
	id := detail.ID.String()

	processing := "Processing"
	order, err := f.svc.Update(ctx, id, orderdomain.UpdateOrderRequest{OrderStatus: &processing})
	require.NoError(t, err)
	assert.Equal(t, orderdomain.OrderStatusProcessing, order.OrderStatus)

	bogus := "shipped"
	_, err = f.svc.Update(ctx, id, orderdomain.UpdateOrderRequest{OrderStatus: &bogus})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidOrderStatus)

	partial := "partial"
	order, err = f.svc.Update(ctx, id, orderdomain.UpdateOrderRequest{PaymentStatus: &partial})
	require.NoError(t, err)
	assert.Equal(t, orderdomain.PaymentStatusPartial, order.PaymentStatus)

	order, err = f.svc.Cancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.OrderStatusCancelled, order.OrderStatus)

	_, err = f.svc.Cancel(ctx, id)
	assert.ErrorIs(t, err, orderdomain.ErrOrderAlreadyCancelled)

	_, err = f.svc.AddItem(ctx, orderdomain.AddItemRequest{OrderID: id, ItemInput: f.item(1, "")})
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotEditable)
}

func TestCompletedOrderCannotBeCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.create(t, f.item(1, ""))

	completed := string(orderdomain.OrderStatusCompleted)
	_, err := f.svc.Update(ctx, detail.ID.String(), orderdomain.UpdateOrderRequest{OrderStatus: &completed})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, detail.ID.String())
	assert.ErrorIs(t, err, orderdomain.ErrOrderCompleted)
}

func TestListOrdersFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, f.item(1, ""))
	f.env.Clock.Advance(48 * time.Hour)
	f.create(t, f.item(2, ""))

	page, err := f.svc.List(ctx, orderdomain.ListOrderRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = f.svc.List(ctx, orderdomain.ListOrderRequest{OrderNo: first.OrderNo})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, first.ID, page.Data[0].ID)

	page, err = f.svc.List(ctx, orderdomain.ListOrderRequest{DateFrom: "2024-05-01", DateTo: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = f.svc.List(ctx, orderdomain.ListOrderRequest{DateFrom: "2024-05-03", DateTo: "2024-05-01"})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidDateRange)
}

func TestCreateOrderRecordsActor(t *testing.T) {
	f := newFixture(t)
	actor := f.env.Node.Generate()
	ctx := obscontext.WithActorID(context.Background(), actor.String())

	resp, err := f.svc.Create(ctx, orderdomain.CreateOrderRequest{
		CustomerID: f.cat.Passport.ID.String(),
		AgentID:    f.cat.Agent.ID.String(),
		Items:      []orderdomain.ItemInput{f.item(1, "")},
	})
	require.NoError(t, err)

	detail, err := f.svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, actor, detail.CreatedBy)

	var logged int64
	require.NoError(t, f.env.DB.Table("operation_logs").
		Where("action = ? AND actor_id = ?", "order.create", actor.String()).
		Count(&logged).Error)
	assert.Equal(t, int64(1), logged)
}

func (f *fixture) total(t *testing.T, id string) string {
	t.Helper()
	detail, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	return detail.TotalAmount.StringFixed(2)
}
