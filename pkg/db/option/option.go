package option

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/visadesk/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a query before it is executed.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		p = p.Normalize()
		return db.Offset(p.Offset()).Limit(p.Limit)
	})
}

// QuerySortBy orders by Field when it is in Allow; otherwise by created_at desc.
type QuerySortBy struct {
	Field string
	Order string
	Allow map[string]bool
}

func WithQuerySortBy(field, order string, allow map[string]bool) QuerySortBy {
	return QuerySortBy{Field: field, Order: order, Allow: allow}
}

func WithSortBy(s QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(s.Field)
		if field == "" || !s.Allow[field] {
			field = "created_at"
		}
		desc := !strings.EqualFold(strings.TrimSpace(s.Order), "asc")
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: field}, Desc: desc}).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
	})
}

type Operator string

const (
	EQ   Operator = "="
	GTE  Operator = ">="
	LTE  Operator = "<="
	LIKE Operator = "LIKE"
	IN   Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a where clause; Field must be a trusted column name.
func ApplyOperator(c Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		switch c.Operator {
		case LIKE:
			return db.Where(fmt.Sprintf("LOWER(%s) LIKE ?", c.Field), "%"+strings.ToLower(fmt.Sprint(c.Value))+"%")
		case IN:
			return db.Where(fmt.Sprintf("%s IN ?", c.Field), c.Value)
		case GTE, LTE, EQ:
			return db.Where(fmt.Sprintf("%s %s ?", c.Field, c.Operator), c.Value)
		default:
			return db
		}
	})
}

// Search matches term case-insensitively against any of fields.
func Search(term string, fields ...string) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || len(fields) == 0 {
			return db
		}
		clauses := make([]string, 0, len(fields))
		args := make([]any, 0, len(fields))
		for _, f := range fields {
			clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ?", f))
			args = append(args, "%"+term+"%")
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	})
}
