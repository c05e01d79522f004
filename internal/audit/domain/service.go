package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/visadesk/pkg/db/pagination"
)

type ListOperationLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
}

type Service interface {
	// Record writes an entry; actor, client ip and user agent are taken from ctx.
	Record(ctx context.Context, action string, targetType string, targetID string, metadata map[string]any) error
	List(ctx context.Context, req ListOperationLogRequest) (pagination.Page[OperationLog], error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
