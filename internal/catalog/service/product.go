package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/pkg/db/option"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
)

func (s *Service) ListProducts(ctx context.Context, req domain.ListProductRequest) (pagination.Page[*domain.Product], error) {
	filter := &domain.Product{
		Type:   strings.ToLower(strings.TrimSpace(req.Type)),
		Status: strings.ToLower(strings.TrimSpace(req.Status)),
	}
	return s.products.Paginate(ctx, filter, req.Pagination,
		option.Search(req.Keyword, "name"),
		option.WithSortBy(option.WithQuerySortBy("created_at", "desc", sortable)),
	)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	productID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrProductNotFound
	}
	return item, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	productType := strings.ToLower(strings.TrimSpace(req.Type))
	if !domain.ValidProductType(productType) {
		return nil, domain.ErrInvalidType
	}
	status, err := normalizeStatus(req.Status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	item := &domain.Product{
		ID:          s.genID.Generate(),
		Name:        name,
		Type:        productType,
		Description: strings.TrimSpace(req.Description),
		Details:     strings.TrimSpace(req.Details),
		Status:      status,
		Remarks:     strings.TrimSpace(req.Remarks),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, item); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "product.create", "product", item.ID, map[string]any{"name": name})
	return item, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.UpdateProductRequest) (*domain.Product, error) {
	item, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		updates["name"] = name
	}
	if req.Type != nil {
		productType := strings.ToLower(strings.TrimSpace(*req.Type))
		if !domain.ValidProductType(productType) {
			return nil, domain.ErrInvalidType
		}
		updates["type"] = productType
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Details != nil {
		updates["details"] = strings.TrimSpace(*req.Details)
	}
	if req.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*req.Status))
		if !domain.ValidStatus(status) {
			return nil, domain.ErrInvalidStatus
		}
		updates["status"] = status
	}
	if req.Remarks != nil {
		updates["remarks"] = strings.TrimSpace(*req.Remarks)
	}

	if len(updates) > 0 {
		updates["updated_at"] = s.now()
		if err := s.products.Update(ctx, item.ID, updates); err != nil {
			return nil, err
		}
		s.emitAudit(ctx, "product.update", "product", item.ID, nil)
	}
	return s.products.FindByID(ctx, item.ID)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	item, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	quotes, err := s.quotes.Count(ctx, &domain.ProductQuote{ProductID: item.ID})
	if err != nil {
		return err
	}
	if quotes > 0 {
		return domain.ErrProductHasQuotes
	}
	if err := s.products.Delete(ctx, item.ID); err != nil {
		return err
	}
	s.emitAudit(ctx, "product.delete", "product", item.ID, map[string]any{"name": item.Name})
	return nil
}
