package docnumber

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/visadesk/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&DocumentSequence{}))
	return db
}

func next(t *testing.T, db *gorm.DB, g *Generator, kind Kind, prefix string) string {
	t.Helper()
	var out string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = g.Next(context.Background(), tx, kind, prefix)
		return err
	})
	require.NoError(t, err)
	return out
}

func TestNextIsSequentialPerKindAndDay(t *testing.T) {
	db := setupDB(t)
	fc := clock.NewFakeClock(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	g := New(fc)

	assert.Equal(t, "ORD202403150001", next(t, db, g, KindOrder, "ORD"))
	assert.Equal(t, "ORD202403150002", next(t, db, g, KindOrder, "ORD"))
	assert.Equal(t, "INV202403150001", next(t, db, g, KindInvoice, "INV"))

	fc.Advance(24 * time.Hour)
	assert.Equal(t, "ORD202403160001", next(t, db, g, KindOrder, "ORD"))
}

func TestNextRollsBackWithCaller(t *testing.T) {
	db := setupDB(t)
	g := New(clock.NewFakeClock(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)))

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := g.Next(context.Background(), tx, KindOrder, "ORD")
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, "ORD202403150001", next(t, db, g, KindOrder, "ORD"))
}

func TestNextExhausted(t *testing.T) {
	db := setupDB(t)
	day := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	g := New(clock.NewFakeClock(day))
	require.NoError(t, db.Create(&DocumentSequence{Kind: string(KindOrder), Period: "20240315", LastValue: 9999, UpdatedAt: day}).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := g.Next(context.Background(), tx, KindOrder, "ORD")
		return err
	})
	assert.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestNextRejectsEmptyPrefix(t *testing.T) {
	db := setupDB(t)
	_, err := New(nil).Next(context.Background(), db, KindOrder, " ")
	assert.ErrorIs(t, err, ErrInvalidPrefix)
}
