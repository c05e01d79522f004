package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/pkg/db/option"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
	"gorm.io/datatypes"
)

func (s *Service) ListVisas(ctx context.Context, req domain.ListVisaRequest) (pagination.Page[*domain.Visa], error) {
	passportID, err := parseOptionalID(req.PassportID, domain.ErrInvalidPassportID)
	if err != nil {
		return pagination.Page[*domain.Visa]{}, err
	}
	filter := &domain.Visa{
		PassportID: passportID,
		Status:     strings.ToLower(strings.TrimSpace(req.Status)),
	}
	return s.visas.Paginate(ctx, filter, req.Pagination,
		option.Search(req.VisaType, "visa_type"),
		option.WithSortBy(option.WithQuerySortBy("expiry_date", "asc", map[string]bool{"expiry_date": true})),
	)
}

func (s *Service) GetVisa(ctx context.Context, id string) (*domain.Visa, error) {
	visaID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.visas.FindByID(ctx, visaID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrVisaNotFound
	}
	return item, nil
}

func (s *Service) CreateVisa(ctx context.Context, req domain.CreateVisaRequest) (*domain.Visa, error) {
	passportID, err := parseID(req.PassportID, domain.ErrInvalidPassportID)
	if err != nil {
		return nil, err
	}
	visaType := strings.TrimSpace(req.VisaType)
	if visaType == "" {
		return nil, domain.ErrInvalidVisaType
	}
	entry := strings.ToLower(strings.TrimSpace(req.EntryCount))
	if entry == "" {
		entry = domain.EntrySingle
	}
	if !domain.ValidEntryCount(entry) {
		return nil, domain.ErrInvalidEntryCount
	}
	issue, err := parseDate(req.IssueDate)
	if err != nil {
		return nil, err
	}
	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	if expiry == nil {
		return nil, domain.ErrInvalidDate
	}
	if err := checkDateOrder(issue, expiry); err != nil {
		return nil, err
	}

	passport, err := s.passports.FindByID(ctx, passportID)
	if err != nil {
		return nil, err
	}
	if passport == nil {
		return nil, domain.ErrPassportNotFound
	}

	now := s.now()
	item := &domain.Visa{
		ID:           s.genID.Generate(),
		PassportID:   passportID,
		VisaType:     visaType,
		IssueCountry: strings.TrimSpace(req.IssueCountry),
		IssueDate:    issue,
		ExpiryDate:   *expiry,
		EntryCount:   entry,
		Status:       s.visaStatus(*expiry, now),
		Remarks:      strings.TrimSpace(req.Remarks),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.visas.Create(ctx, item); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "visa.create", "visa", item.ID, map[string]any{"passport_id": passportID.String()})
	return item, nil
}

func (s *Service) UpdateVisa(ctx context.Context, id string, req domain.UpdateVisaRequest) (*domain.Visa, error) {
	item, err := s.GetVisa(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.VisaType != nil {
		visaType := strings.TrimSpace(*req.VisaType)
		if visaType == "" {
			return nil, domain.ErrInvalidVisaType
		}
		updates["visa_type"] = visaType
	}
	if req.IssueCountry != nil {
		updates["issue_country"] = strings.TrimSpace(*req.IssueCountry)
	}
	if req.EntryCount != nil {
		entry := strings.ToLower(strings.TrimSpace(*req.EntryCount))
		if !domain.ValidEntryCount(entry) {
			return nil, domain.ErrInvalidEntryCount
		}
		updates["entry_count"] = entry
	}
	if req.Remarks != nil {
		updates["remarks"] = strings.TrimSpace(*req.Remarks)
	}

	issue := item.IssueDate
	expiry := item.ExpiryDate
	if req.IssueDate != nil {
		if issue, err = parseDate(*req.IssueDate); err != nil {
			return nil, err
		}
		updates["issue_date"] = dateValue(issue)
	}
	if req.ExpiryDate != nil {
		parsed, err := parseDate(*req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		if parsed == nil {
			return nil, domain.ErrInvalidDate
		}
		expiry = *parsed
		updates["expiry_date"] = expiry
	}
	if err := checkDateOrder(issue, &expiry); err != nil {
		return nil, err
	}

	now := s.now()
	// Status is re-derived on every write since the window may have moved.
	updates["status"] = s.visaStatus(expiry, now)
	updates["updated_at"] = now
	if err := s.visas.Update(ctx, item.ID, updates); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "visa.update", "visa", item.ID, nil)
	return s.visas.FindByID(ctx, item.ID)
}

func (s *Service) DeleteVisa(ctx context.Context, id string) error {
	item, err := s.GetVisa(ctx, id)
	if err != nil {
		return err
	}
	if err := s.visas.Delete(ctx, item.ID); err != nil {
		return err
	}
	s.emitAudit(ctx, "visa.delete", "visa", item.ID, nil)
	return nil
}

func (s *Service) visaStatus(expiry datatypes.Date, now time.Time) string {
	days := s.business.Get().Visa.ExpiringSoonDays
	return domain.DeriveVisaStatus(time.Time(expiry), now, days)
}
