package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/visadesk/internal/audit/domain"
	"github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/internal/clock"
	"github.com/smallbiznis/visadesk/internal/config"
	"github.com/smallbiznis/visadesk/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Business *config.BusinessConfigHolder
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	business *config.BusinessConfigHolder
	auditSvc auditdomain.Service

	passports   repository.Repository[domain.Passport]
	visas       repository.Repository[domain.Visa]
	suppliers   repository.Repository[domain.Supplier]
	agents      repository.Repository[domain.Agent]
	products    repository.Repository[domain.Product]
	quotes      repository.Repository[domain.ProductQuote]
	agentPrices repository.Repository[domain.AgentProductPrice]
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("catalog.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		business: p.Business,
		auditSvc: p.AuditSvc,

		passports:   repository.ProvideStore[domain.Passport](p.DB),
		visas:       repository.ProvideStore[domain.Visa](p.DB),
		suppliers:   repository.ProvideStore[domain.Supplier](p.DB),
		agents:      repository.ProvideStore[domain.Agent](p.DB),
		products:    repository.ProvideStore[domain.Product](p.DB),
		quotes:      repository.ProvideStore[domain.ProductQuote](p.DB),
		agentPrices: repository.ProvideStore[domain.AgentProductPrice](p.DB),
	}
}

var sortable = map[string]bool{"created_at": true, "updated_at": true, "name": true}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Service) emitAudit(ctx context.Context, action, targetType string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, action, targetType, targetID.String(), metadata); err != nil {
		s.log.Warn("operation log failed", zap.String("action", action), zap.Error(err))
	}
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}

// parseOptionalID returns 0 for an empty value.
func parseOptionalID(value string, invalid error) (snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return parseID(value, invalid)
}

const dateLayout = "2006-01-02"

// parseDate returns nil for an empty value.
func parseDate(value string) (*datatypes.Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return nil, domain.ErrInvalidDate
	}
	d := datatypes.Date(t)
	return &d, nil
}

func dateValue(d *datatypes.Date) any {
	if d == nil {
		return nil
	}
	return *d
}

func checkDateOrder(issue, expiry *datatypes.Date) error {
	if issue == nil || expiry == nil {
		return nil
	}
	if time.Time(*expiry).Before(time.Time(*issue)) {
		return domain.ErrInvalidDateRange
	}
	return nil
}

func normalizeStatus(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return domain.StatusActive, nil
	}
	if !domain.ValidStatus(value) {
		return "", domain.ErrInvalidStatus
	}
	return value, nil
}
