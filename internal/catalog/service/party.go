package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/pkg/db/option"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
)

func (s *Service) ListSuppliers(ctx context.Context, req domain.ListPartyRequest) (pagination.Page[*domain.Supplier], error) {
	filter := &domain.Supplier{Status: strings.ToLower(strings.TrimSpace(req.Status))}
	return s.suppliers.Paginate(ctx, filter, req.Pagination,
		option.Search(req.Keyword, "name", "contact_person"),
		option.WithSortBy(option.WithQuerySortBy("created_at", "desc", sortable)),
	)
}

func (s *Service) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	supplierID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.suppliers.FindByID(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrSupplierNotFound
	}
	return item, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.CreatePartyRequest) (*domain.Supplier, error) {
	name, status, err := validateParty(req)
	if err != nil {
		return nil, err
	}
	now := s.now()
	item := &domain.Supplier{
		ID:            s.genID.Generate(),
		Name:          name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		ContactPhone:  strings.TrimSpace(req.ContactPhone),
		Address:       strings.TrimSpace(req.Address),
		Status:        status,
		Remarks:       strings.TrimSpace(req.Remarks),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.suppliers.Create(ctx, item); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "supplier.create", "supplier", item.ID, map[string]any{"name": name})
	return item, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.UpdatePartyRequest) (*domain.Supplier, error) {
	item, err := s.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	updates, err := partyUpdates(req)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		updates["updated_at"] = s.now()
		if err := s.suppliers.Update(ctx, item.ID, updates); err != nil {
			return nil, err
		}
		s.emitAudit(ctx, "supplier.update", "supplier", item.ID, nil)
	}
	return s.suppliers.FindByID(ctx, item.ID)
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	item, err := s.GetSupplier(ctx, id)
	if err != nil {
		return err
	}
	quotes, err := s.quotes.Count(ctx, &domain.ProductQuote{SupplierID: item.ID})
	if err != nil {
		return err
	}
	if quotes > 0 {
		return domain.ErrSupplierHasQuotes
	}
	if err := s.suppliers.Delete(ctx, item.ID); err != nil {
		return err
	}
	s.emitAudit(ctx, "supplier.delete", "supplier", item.ID, map[string]any{"name": item.Name})
	return nil
}

func (s *Service) ListAgents(ctx context.Context, req domain.ListPartyRequest) (pagination.Page[*domain.Agent], error) {
	filter := &domain.Agent{Status: strings.ToLower(strings.TrimSpace(req.Status))}
	return s.agents.Paginate(ctx, filter, req.Pagination,
		option.Search(req.Keyword, "name", "contact_person"),
		option.WithSortBy(option.WithQuerySortBy("created_at", "desc", sortable)),
	)
}

func (s *Service) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	agentID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrAgentNotFound
	}
	return item, nil
}

func (s *Service) CreateAgent(ctx context.Context, req domain.CreatePartyRequest) (*domain.Agent, error) {
	name, status, err := validateParty(req)
	if err != nil {
		return nil, err
	}
	now := s.now()
	item := &domain.Agent{
		ID:            s.genID.Generate(),
		Name:          name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		ContactPhone:  strings.TrimSpace(req.ContactPhone),
		Address:       strings.TrimSpace(req.Address),
		Status:        status,
		Remarks:       strings.TrimSpace(req.Remarks),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.agents.Create(ctx, item); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "agent.create", "agent", item.ID, map[string]any{"name": name})
	return item, nil
}

func (s *Service) UpdateAgent(ctx context.Context, id string, req domain.UpdatePartyRequest) (*domain.Agent, error) {
	item, err := s.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	updates, err := partyUpdates(req)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		updates["updated_at"] = s.now()
		if err := s.agents.Update(ctx, item.ID, updates); err != nil {
			return nil, err
		}
		s.emitAudit(ctx, "agent.update", "agent", item.ID, nil)
	}
	return s.agents.FindByID(ctx, item.ID)
}

func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	item, err := s.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	prices, err := s.agentPrices.Count(ctx, &domain.AgentProductPrice{AgentID: item.ID})
	if err != nil {
		return err
	}
	if prices > 0 {
		return domain.ErrAgentHasPrices
	}
	if err := s.agents.Delete(ctx, item.ID); err != nil {
		return err
	}
	s.emitAudit(ctx, "agent.delete", "agent", item.ID, map[string]any{"name": item.Name})
	return nil
}

func validateParty(req domain.CreatePartyRequest) (string, string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", "", domain.ErrInvalidName
	}
	status, err := normalizeStatus(req.Status)
	if err != nil {
		return "", "", err
	}
	return name, status, nil
}

func partyUpdates(req domain.UpdatePartyRequest) (map[string]any, error) {
	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		updates["name"] = name
	}
	if req.ContactPerson != nil {
		updates["contact_person"] = strings.TrimSpace(*req.ContactPerson)
	}
	if req.ContactPhone != nil {
		updates["contact_phone"] = strings.TrimSpace(*req.ContactPhone)
	}
	if req.Address != nil {
		updates["address"] = strings.TrimSpace(*req.Address)
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
	return updates, nil
}
