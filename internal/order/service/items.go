package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/visadesk/internal/observability/logger"
	orderdomain "github.com/smallbiznis/visadesk/internal/order/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) ListItems(ctx context.Context, orderID string) ([]orderdomain.OrderItem, error) {
	id, err := parseID(orderID, orderdomain.ErrInvalidOrderID)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	return s.repo.ListItems(ctx, s.db, id)
}

func (s *Service) GetItem(ctx context.Context, id string) (*orderdomain.OrderItem, error) {
	itemID, err := parseID(id, orderdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, orderdomain.ErrOrderItemNotFound
	}
	return item, nil
}

func (s *Service) AddItem(ctx context.Context, req orderdomain.AddItemRequest) (*orderdomain.OrderItem, error) {
	orderID, err := parseID(req.OrderID, orderdomain.ErrInvalidOrderID)
	if err != nil {
		return nil, err
	}
	if err := validateItemInput(req.ItemInput); err != nil {
		return nil, err
	}

	var item orderdomain.OrderItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.lockEditableOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		item, err = s.resolveItem(ctx, tx, req.ItemInput)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		item.ID = s.genID.Generate()
		item.OrderID = orderID
		item.CreatedAt = now
		item.UpdatedAt = now

		if err := s.repo.InsertItems(ctx, tx, []orderdomain.OrderItem{item}); err != nil {
			return err
		}
		return s.applyTotal(ctx, tx, order, order.TotalAmount.Add(item.Subtotal))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderItemChange(ctx, "add")
	s.emitAudit(ctx, "order.item.add", orderID, map[string]any{
		"item_id":  item.ID.String(),
		"subtotal": item.Subtotal.StringFixed(2),
	})
	return &item, nil
}

func (s *Service) UpdateItem(ctx context.Context, id string, req orderdomain.UpdateItemRequest) (*orderdomain.OrderItem, error) {
	itemID, err := parseID(id, orderdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	if req.Quantity != nil && *req.Quantity <= 0 {
		return nil, orderdomain.ErrInvalidQuantity
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		return nil, orderdomain.ErrInvalidUnitPrice
	}

	var (
		updated *orderdomain.OrderItem
		orderID snowflake.ID
		delta   decimal.Decimal
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if current == nil {
			return orderdomain.ErrOrderItemNotFound
		}
		orderID = current.OrderID

		order, err := s.lockEditableOrder(ctx, tx, current.OrderID)
		if err != nil {
			return err
		}

		quantity := current.Quantity
		if req.Quantity != nil {
			quantity = *req.Quantity
		}
		unitPrice := current.UnitPrice
		if req.UnitPrice != nil {
			unitPrice = req.UnitPrice.Round(2)
		}
		subtotal := orderdomain.Subtotal(quantity, unitPrice)
		delta = subtotal.Sub(current.Subtotal)

		values := map[string]any{
			"quantity":   quantity,
			"unit_price": unitPrice,
			"subtotal":   subtotal,
			"updated_at": s.clock.Now().UTC(),
		}
		if req.Remarks != nil {
			values["remarks"] = strings.TrimSpace(*req.Remarks)
		}
		if err := s.repo.UpdateItem(ctx, tx, itemID, values); err != nil {
			return err
		}
		if err := s.applyTotal(ctx, tx, order, order.TotalAmount.Add(delta)); err != nil {
			return err
		}

		updated, err = s.repo.FindItem(ctx, tx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderItemChange(ctx, "update")
	s.emitAudit(ctx, "order.item.update", orderID, map[string]any{
		"item_id": itemID.String(),
		"delta":   delta.StringFixed(2),
	})
	return updated, nil
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	itemID, err := parseID(id, orderdomain.ErrInvalidID)
	if err != nil {
		return err
	}

	var removed orderdomain.OrderItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if current == nil {
			return orderdomain.ErrOrderItemNotFound
		}
		removed = *current

		order, err := s.lockEditableOrder(ctx, tx, current.OrderID)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteItem(ctx, tx, itemID); err != nil {
			return err
		}
		return s.applyTotal(ctx, tx, order, order.TotalAmount.Sub(current.Subtotal))
	})
	if err != nil {
		return err
	}

	s.metrics.RecordOrderItemChange(ctx, "delete")
	s.emitAudit(ctx, "order.item.delete", removed.OrderID, map[string]any{
		"item_id":  itemID.String(),
		"subtotal": removed.Subtotal.StringFixed(2),
	})
	return nil
}

func (s *Service) lockEditableOrder(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*orderdomain.Order, error) {
	order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	if !order.OrderStatus.Editable() {
		return nil, orderdomain.ErrOrderNotEditable
	}
	return order, nil
}

// applyTotal writes the incrementally computed total after checking it
// against a fresh sum of the item subtotals. On disagreement the sum wins.
func (s *Service) applyTotal(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, expected decimal.Decimal) error {
	sum, err := s.repo.SumSubtotals(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	total := expected.Round(2)
	if !sum.Equal(total) {
		logger.WithContext(ctx, s.log).Warn("order total drift corrected",
			zap.String("order_id", order.ID.String()),
			zap.String("incremental", total.StringFixed(2)),
			zap.String("sum", sum.StringFixed(2)),
		)
		s.metrics.RecordOrderTotalDrift(ctx)
		total = sum
	}
	return s.repo.Update(ctx, tx, order.ID, map[string]any{
		"total_amount": total,
		"updated_at":   s.clock.Now().UTC(),
	})
}
