package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/visadesk/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/visadesk/internal/order/domain"
	pkgdb "github.com/smallbiznis/visadesk/pkg/db"
	"github.com/smallbiznis/visadesk/pkg/repository"
	"gorm.io/gorm"
)

func (s *Service) ListOrders(ctx context.Context, id string) ([]invoicedomain.LinkedOrder, error) {
	invoiceID, err := parseID(id, invoicedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return s.repo.ListLinkedOrders(ctx, s.db, invoiceID)
}

// pendingLink is an order that passed batch validation. existing is set when
// an inactive link to the same invoice will be re-activated.
type pendingLink struct {
	order    *orderdomain.Order
	existing *invoicedomain.InvoiceOrder
	amount   decimal.Decimal
}

// LinkOrders validates the whole batch before writing anything, so either
// every order is linked or none is.
func (s *Service) LinkOrders(ctx context.Context, id string, req invoicedomain.LinkOrdersRequest) (*invoicedomain.LinkOrdersResponse, error) {
	invoiceID, err := parseID(id, invoicedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	orderIDs, err := dedupeOrderIDs(req.OrderIDs)
	if err != nil {
		return nil, err
	}
	if req.Amount != nil && !req.Amount.Round(2).IsPositive() {
		return nil, invoicedomain.ErrInvalidAmount
	}

	var (
		updated *invoicedomain.Invoice
		pending []pendingLink
		skipped int
		sum     decimal.Decimal
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == invoicedomain.StatusPaid {
			return invoicedomain.ErrInvoicePaid
		}

		orders := repository.ProvideStore[orderdomain.Order](tx)
		for _, orderID := range orderIDs {
			order, err := orders.FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				return orderdomain.ErrOrderNotFound
			}
			if order.OrderStatus == orderdomain.OrderStatusCancelled {
				return invoicedomain.ErrOrderCancelled
			}

			active, err := s.repo.FindActiveLinkByOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if active != nil {
				if active.InvoiceID != invoiceID {
					return invoicedomain.ErrOrderInvoiced
				}
				skipped++
				continue
			}

			existing, err := s.repo.FindLink(ctx, tx, invoiceID, orderID)
			if err != nil {
				return err
			}
			amount := order.TotalAmount
			if req.Amount != nil {
				amount = *req.Amount
			}
			pending = append(pending, pendingLink{order: order, existing: existing, amount: amount.Round(2)})
		}

		now := s.clock.Now().UTC()
		sum = decimal.Zero
		for _, p := range pending {
			if p.existing != nil {
				if err := s.repo.UpdateLink(ctx, tx, p.existing.ID, map[string]any{
					"status":     invoicedomain.LinkStatusActive,
					"amount":     p.amount,
					"updated_at": now,
				}); err != nil {
					return translateLinkErr(err)
				}
			} else {
				link := invoicedomain.InvoiceOrder{
					ID:        s.genID.Generate(),
					InvoiceID: invoiceID,
					OrderID:   p.order.ID,
					Amount:    p.amount,
					Status:    invoicedomain.LinkStatusActive,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := s.repo.InsertLink(ctx, tx, &link); err != nil {
					return translateLinkErr(err)
				}
			}
			sum = sum.Add(p.amount)
		}

		if len(pending) > 0 {
			if err := s.applyBalance(ctx, tx, invoice, invoice.TotalAmount.Add(sum)); err != nil {
				return err
			}
		}
		updated, err = s.repo.FindByID(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(pending) > 0 {
		s.metrics.RecordInvoiceLink(ctx, "link", len(pending))
		linked := make([]string, 0, len(pending))
		for _, p := range pending {
			linked = append(linked, p.order.OrderNo)
		}
		s.emitAudit(ctx, "invoice.order.link", invoiceID, map[string]any{
			"orders": linked,
			"amount": sum.StringFixed(2),
		})
	}
	return &invoicedomain.LinkOrdersResponse{
		Invoice: updated,
		Linked:  len(pending),
		Skipped: skipped,
	}, nil
}

func (s *Service) UnlinkOrder(ctx context.Context, id string, orderID string) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id, invoicedomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	oid, err := parseID(orderID, invoicedomain.ErrInvalidOrderIDs)
	if err != nil {
		return nil, err
	}

	var (
		updated *invoicedomain.Invoice
		removed *invoicedomain.InvoiceOrder
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == invoicedomain.StatusPaid {
			return invoicedomain.ErrInvoicePaid
		}

		link, err := s.repo.FindLink(ctx, tx, invoiceID, oid)
		if err != nil {
			return err
		}
		if link == nil || link.Status != invoicedomain.LinkStatusActive {
			return invoicedomain.ErrLinkNotFound
		}
		removed = link

		total := invoice.TotalAmount.Sub(link.Amount)
		if total.LessThan(invoice.PaidAmount) {
			return invoicedomain.ErrTotalBelowPaid
		}
		if err := s.repo.UpdateLink(ctx, tx, link.ID, map[string]any{
			"status":     invoicedomain.LinkStatusInactive,
			"updated_at": s.clock.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := s.applyBalance(ctx, tx, invoice, total); err != nil {
			return err
		}
		updated, err = s.repo.FindByID(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceLink(ctx, "unlink", 1)
	s.emitAudit(ctx, "invoice.order.unlink", invoiceID, map[string]any{
		"order_id": removed.OrderID.String(),
		"amount":   removed.Amount.StringFixed(2),
	})
	return updated, nil
}

// applyBalance writes a new total and recomputes unpaid from it. The status is
// only re-derived once money has been received, so a manually set status on an
// unpaid invoice survives linking.
func (s *Service) applyBalance(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, total decimal.Decimal) error {
	total = total.Round(2)
	values := map[string]any{
		"total_amount":  total,
		"unpaid_amount": total.Sub(invoice.PaidAmount),
		"updated_at":    s.clock.Now().UTC(),
	}
	if invoice.PaidAmount.IsPositive() {
		values["status"] = invoicedomain.DeriveStatus(total, invoice.PaidAmount)
	}
	return s.repo.Update(ctx, tx, invoice.ID, values)
}

func dedupeOrderIDs(raw []string) ([]snowflake.ID, error) {
	if len(raw) == 0 {
		return nil, invoicedomain.ErrInvalidOrderIDs
	}
	seen := make(map[snowflake.ID]struct{}, len(raw))
	out := make([]snowflake.ID, 0, len(raw))
	for _, value := range raw {
		id, err := parseID(value, invoicedomain.ErrInvalidOrderIDs)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// translateLinkErr maps a unique-index hit on the active-link index, which
// means another invoice linked the order concurrently.
func translateLinkErr(err error) error {
	if pkgdb.IsDuplicateKeyErr(err) {
		return invoicedomain.ErrOrderInvoiced
	}
	return err
}
