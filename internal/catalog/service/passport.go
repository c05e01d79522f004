package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/pkg/db"
	"github.com/smallbiznis/visadesk/pkg/db/option"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
)

func (s *Service) ListPassports(ctx context.Context, req domain.ListPassportRequest) (pagination.Page[*domain.Passport], error) {
	filter := &domain.Passport{Gender: strings.ToLower(strings.TrimSpace(req.Gender))}
	return s.passports.Paginate(ctx, filter, req.Pagination,
		option.Search(req.Keyword, "name", "passport_no"),
		option.WithSortBy(option.WithQuerySortBy("created_at", "desc", sortable)),
	)
}

func (s *Service) GetPassport(ctx context.Context, id string) (*domain.Passport, error) {
	passportID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	item, err := s.passports.FindByID(ctx, passportID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrPassportNotFound
	}
	return item, nil
}

func (s *Service) CreatePassport(ctx context.Context, req domain.CreatePassportRequest) (*domain.Passport, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	passportNo := strings.ToUpper(strings.TrimSpace(req.PassportNo))
	if passportNo == "" {
		return nil, domain.ErrInvalidPassportNo
	}
	gender := strings.ToLower(strings.TrimSpace(req.Gender))
	if gender != "" && !domain.ValidGender(gender) {
		return nil, domain.ErrInvalidGender
	}

	birth, err := parseDate(req.BirthDate)
	if err != nil {
		return nil, err
	}
	issue, err := parseDate(req.IssueDate)
	if err != nil {
		return nil, err
	}
	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	if err := checkDateOrder(issue, expiry); err != nil {
		return nil, err
	}

	existing, err := s.passports.FindOne(ctx, &domain.Passport{PassportNo: passportNo})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrPassportNoTaken
	}

	now := s.now()
	item := &domain.Passport{
		ID:          s.genID.Generate(),
		Name:        name,
		PassportNo:  passportNo,
		Nationality: strings.TrimSpace(req.Nationality),
		BirthDate:   birth,
		Gender:      gender,
		IssueDate:   issue,
		ExpiryDate:  expiry,
		Remarks:     strings.TrimSpace(req.Remarks),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.passports.Create(ctx, item); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrPassportNoTaken
		}
		return nil, err
	}

	s.emitAudit(ctx, "passport.create", "passport", item.ID, map[string]any{"passport_no": passportNo})
	return item, nil
}

func (s *Service) UpdatePassport(ctx context.Context, id string, req domain.UpdatePassportRequest) (*domain.Passport, error) {
	item, err := s.GetPassport(ctx, id)
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
	if req.PassportNo != nil {
		passportNo := strings.ToUpper(strings.TrimSpace(*req.PassportNo))
		if passportNo == "" {
			return nil, domain.ErrInvalidPassportNo
		}
		if passportNo != item.PassportNo {
			existing, err := s.passports.FindOne(ctx, &domain.Passport{PassportNo: passportNo})
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != item.ID {
				return nil, domain.ErrPassportNoTaken
			}
		}
		updates["passport_no"] = passportNo
	}
	if req.Nationality != nil {
		updates["nationality"] = strings.TrimSpace(*req.Nationality)
	}
	if req.Gender != nil {
		gender := strings.ToLower(strings.TrimSpace(*req.Gender))
		if gender != "" && !domain.ValidGender(gender) {
			return nil, domain.ErrInvalidGender
		}
		updates["gender"] = gender
	}
	if req.Remarks != nil {
		updates["remarks"] = strings.TrimSpace(*req.Remarks)
	}

	issue, expiry := item.IssueDate, item.ExpiryDate
	if req.BirthDate != nil {
		birth, err := parseDate(*req.BirthDate)
		if err != nil {
			return nil, err
		}
		updates["birth_date"] = dateValue(birth)
	}
	if req.IssueDate != nil {
		if issue, err = parseDate(*req.IssueDate); err != nil {
			return nil, err
		}
		updates["issue_date"] = dateValue(issue)
	}
	if req.ExpiryDate != nil {
		if expiry, err = parseDate(*req.ExpiryDate); err != nil {
			return nil, err
		}
		updates["expiry_date"] = dateValue(expiry)
	}
	if err := checkDateOrder(issue, expiry); err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		updates["updated_at"] = s.now()
		if err := s.passports.Update(ctx, item.ID, updates); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return nil, domain.ErrPassportNoTaken
			}
			return nil, err
		}
		s.emitAudit(ctx, "passport.update", "passport", item.ID, nil)
	}
	return s.passports.FindByID(ctx, item.ID)
}

func (s *Service) DeletePassport(ctx context.Context, id string) error {
	item, err := s.GetPassport(ctx, id)
	if err != nil {
		return err
	}
	visas, err := s.visas.Count(ctx, &domain.Visa{PassportID: item.ID})
	if err != nil {
		return err
	}
	if visas > 0 {
		return domain.ErrPassportHasVisas
	}
	if err := s.passports.Delete(ctx, item.ID); err != nil {
		return err
	}
	s.emitAudit(ctx, "passport.delete", "passport", item.ID, map[string]any{"passport_no": item.PassportNo})
	return nil
}
