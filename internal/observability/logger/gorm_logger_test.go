package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM orders":                   "SELECT",
		"  update invoices SET paid_amount = ?":   "UPDATE",
		"WITH x AS (SELECT 1) DELETE FROM orders": "SELECT",
		"INSERT INTO payments (id) VALUES (?)":    "INSERT",
		"":                                        "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

func TestParamsFilterDropsValues(t *testing.T) {
	l := NewGormLogger(DefaultGormLoggerConfig())
	sql, params := l.ParamsFilter(context.Background(), "SELECT 1 WHERE a = ?", "secret")
	assert.Equal(t, "SELECT 1 WHERE a = ?", sql)
	assert.Nil(t, params)
}
