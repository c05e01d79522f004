package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/visadesk/pkg/db/option"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository is a generic gorm store for simple reference entities.
// Non-zero fields of the query struct become equality filters.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	FindByID(ctx context.Context, id snowflake.ID) (*T, error)
	Paginate(ctx context.Context, query *T, p pagination.Pagination, opts ...option.QueryOption) (pagination.Page[*T], error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, id snowflake.ID, values map[string]any) error
	Delete(ctx context.Context, id snowflake.ID) error
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
	BatchCreate(ctx context.Context, resources []*T) error
}
