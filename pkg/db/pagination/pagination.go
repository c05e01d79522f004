package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination is a 1-based offset page request.
type Pagination struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

// Normalize clamps page to >= 1 and limit to [1, MaxLimit].
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Page is the list envelope returned by every collection endpoint.
type Page[T any] struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Data  []T   `json:"data"`
}

func NewPage[T any](p Pagination, total int64, data []T) Page[T] {
	p = p.Normalize()
	if data == nil {
		data = []T{}
	}
	return Page[T]{Total: total, Page: p.Page, Limit: p.Limit, Data: data}
}

// Map converts the items of a page, keeping its counters.
func Map[T, R any](page Page[T], fn func(T) R) Page[R] {
	out := make([]R, 0, len(page.Data))
	for _, item := range page.Data {
		out = append(out, fn(item))
	}
	return Page[R]{Total: page.Total, Page: page.Page, Limit: page.Limit, Data: out}
}
