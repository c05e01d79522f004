package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/pkg/db"
	"github.com/smallbiznis/visadesk/pkg/db/option"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
)

func (s *Service) ListQuotes(ctx context.Context, req domain.ListQuoteRequest) (pagination.Page[*domain.ProductQuote], error) {
	productID, err := parseOptionalID(req.ProductID, domain.ErrInvalidProductID)
	if err != nil {
		return pagination.Page[*domain.ProductQuote]{}, err
	}
	supplierID, err := parseOptionalID(req.SupplierID, domain.ErrInvalidSupplierID)
	if err != nil {
		return pagination.Page[*domain.ProductQuote]{}, err
	}
	filter := &domain.ProductQuote{ProductID: productID, SupplierID: supplierID}
	return s.quotes.Paginate(ctx, filter, req.Pagination,
		option.WithSortBy(option.WithQuerySortBy("created_at", "desc", sortable)),
	)
}

func (s *Service) GetQuote(ctx context.Context, id string) (*domain.ProductQuote, error) {
	quoteID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrQuoteNotFound
	}
	return item, nil
}

func (s *Service) CreateQuote(ctx context.Context, req domain.CreateQuoteRequest) (*domain.ProductQuote, error) {
	productID, err := parseID(req.ProductID, domain.ErrInvalidProductID)
	if err != nil {
		return nil, err
	}
	supplierID, err := parseID(req.SupplierID, domain.ErrInvalidSupplierID)
	if err != nil {
		return nil, err
	}
	if req.CostPrice.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	supplier, err := s.suppliers.FindByID(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	if supplier == nil {
		return nil, domain.ErrSupplierNotFound
	}

	existing, err := s.quotes.FindOne(ctx, &domain.ProductQuote{ProductID: productID, SupplierID: supplierID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrQuoteExists
	}

	now := s.now()
	item := &domain.ProductQuote{
		ID:         s.genID.Generate(),
		ProductID:  productID,
		SupplierID: supplierID,
		CostPrice:  req.CostPrice.Round(2),
		Remarks:    strings.TrimSpace(req.Remarks),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.quotes.Create(ctx, item); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrQuoteExists
		}
		return nil, err
	}
	s.emitAudit(ctx, "product_quote.create", "product_quote", item.ID, map[string]any{
		"product_id":  productID.String(),
		"supplier_id": supplierID.String(),
	})
	return item, nil
}

func (s *Service) UpdateQuote(ctx context.Context, id string, req domain.UpdateQuoteRequest) (*domain.ProductQuote, error) {
	item, err := s.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		updates["cost_price"] = req.CostPrice.Round(2)
	}
	if req.Remarks != nil {
		updates["remarks"] = strings.TrimSpace(*req.Remarks)
	}
	if len(updates) > 0 {
		updates["updated_at"] = s.now()
		if err := s.quotes.Update(ctx, item.ID, updates); err != nil {
			return nil, err
		}
		s.emitAudit(ctx, "product_quote.update", "product_quote", item.ID, nil)
	}
	return s.quotes.FindByID(ctx, item.ID)
}

func (s *Service) DeleteQuote(ctx context.Context, id string) error {
	item, err := s.GetQuote(ctx, id)
	if err != nil {
		return err
	}
	prices, err := s.agentPrices.Count(ctx, &domain.AgentProductPrice{ProductQuoteID: item.ID})
	if err != nil {
		return err
	}
	if prices > 0 {
		return domain.ErrQuoteHasPrices
	}
	if err := s.quotes.Delete(ctx, item.ID); err != nil {
		return err
	}
	s.emitAudit(ctx, "product_quote.delete", "product_quote", item.ID, nil)
	return nil
}

func (s *Service) ListAgentPrices(ctx context.Context, req domain.ListAgentPriceRequest) (pagination.Page[*domain.AgentProductPrice], error) {
	quoteID, err := parseOptionalID(req.ProductQuoteID, domain.ErrInvalidQuoteID)
	if err != nil {
		return pagination.Page[*domain.AgentProductPrice]{}, err
	}
	agentID, err := parseOptionalID(req.AgentID, domain.ErrInvalidAgentID)
	if err != nil {
		return pagination.Page[*domain.AgentProductPrice]{}, err
	}
	filter := &domain.AgentProductPrice{ProductQuoteID: quoteID, AgentID: agentID}
	return s.agentPrices.Paginate(ctx, filter, req.Pagination,
		option.WithSortBy(option.WithQuerySortBy("created_at", "desc", sortable)),
	)
}

func (s *Service) GetAgentPrice(ctx context.Context, id string) (*domain.AgentProductPrice, error) {
	priceID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.agentPrices.FindByID(ctx, priceID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrAgentPriceNotFound
	}
	return item, nil
}

func (s *Service) CreateAgentPrice(ctx context.Context, req domain.CreateAgentPriceRequest) (*domain.AgentProductPrice, error) {
	quoteID, err := parseID(req.ProductQuoteID, domain.ErrInvalidQuoteID)
	if err != nil {
		return nil, err
	}
	agentID, err := parseID(req.AgentID, domain.ErrInvalidAgentID)
	if err != nil {
		return nil, err
	}
	if err := validPrices(req.CostPrice, req.SellingPrice); err != nil {
		return nil, err
	}

	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, domain.ErrQuoteNotFound
	}
	agent, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, domain.ErrAgentNotFound
	}

	existing, err := s.agentPrices.FindOne(ctx, &domain.AgentProductPrice{ProductQuoteID: quoteID, AgentID: agentID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAgentPriceExists
	}

	now := s.now()
	item := &domain.AgentProductPrice{
		ID:             s.genID.Generate(),
		ProductQuoteID: quoteID,
		AgentID:        agentID,
		CostPrice:      req.CostPrice.Round(2),
		SellingPrice:   req.SellingPrice.Round(2),
		Remarks:        strings.TrimSpace(req.Remarks),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.agentPrices.Create(ctx, item); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAgentPriceExists
		}
		return nil, err
	}
	s.emitAudit(ctx, "agent_product_price.create", "agent_product_price", item.ID, map[string]any{
		"product_quote_id": quoteID.String(),
		"agent_id":         agentID.String(),
	})
	return item, nil
}

func (s *Service) UpdateAgentPrice(ctx context.Context, id string, req domain.UpdateAgentPriceRequest) (*domain.AgentProductPrice, error) {
	item, err := s.GetAgentPrice(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		updates["cost_price"] = req.CostPrice.Round(2)
	}
	if req.SellingPrice != nil {
		if req.SellingPrice.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		updates["selling_price"] = req.SellingPrice.Round(2)
	}
	if req.Remarks != nil {
		updates["remarks"] = strings.TrimSpace(*req.Remarks)
	}
	if len(updates) > 0 {
		updates["updated_at"] = s.now()
		if err := s.agentPrices.Update(ctx, item.ID, updates); err != nil {
			return nil, err
		}
		s.emitAudit(ctx, "agent_product_price.update", "agent_product_price", item.ID, nil)
	}
	return s.agentPrices.FindByID(ctx, item.ID)
}

func (s *Service) DeleteAgentPrice(ctx context.Context, id string) error {
	item, err := s.GetAgentPrice(ctx, id)
	if err != nil {
		return err
	}
	if err := s.agentPrices.Delete(ctx, item.ID); err != nil {
		return err
	}
	s.emitAudit(ctx, "agent_product_price.delete", "agent_product_price", item.ID, nil)
	return nil
}

func validPrices(prices ...decimal.Decimal) error {
	for _, p := range prices {
		if p.IsNegative() {
			return domain.ErrInvalidPrice
		}
	}
	return nil
}
