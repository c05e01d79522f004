package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, Limit: DefaultLimit}, Pagination{}.Normalize())
	assert.Equal(t, Pagination{Page: 3, Limit: MaxLimit}, Pagination{Page: 3, Limit: 1000}.Normalize())
	assert.Equal(t, 40, Pagination{Page: 3, Limit: 20}.Offset())
}

func TestNewPageNeverReturnsNilData(t *testing.T) {
	page := NewPage[int](Pagination{Page: 2, Limit: 5}, 0, nil)
	assert.NotNil(t, page.Data)
	assert.Equal(t, 2, page.Page)

	mapped := Map(NewPage(Pagination{}, 2, []int{1, 2}), func(v int) string { return string(rune('a' + v)) })
	assert.Equal(t, []string{"b", "c"}, mapped.Data)
	assert.Equal(t, int64(2), mapped.Total)
}
