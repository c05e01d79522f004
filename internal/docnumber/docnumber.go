// Package docnumber issues human-readable document numbers of the form
// PREFIX + YYYYMMDD + 4-digit daily sequence.
package docnumber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/visadesk/internal/clock"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Kind string

const (
	KindOrder   Kind = "order"
	KindInvoice Kind = "invoice"
)

const (
	periodLayout = "20060102"
	maxPerPeriod = 9999
)

var (
	ErrSequenceExhausted = errors.New("sequence_exhausted")
	ErrInvalidPrefix     = errors.New("invalid_prefix")
)

// DocumentSequence is the per-kind, per-day counter row.
type DocumentSequence struct {
	Kind      string    `gorm:"primaryKey;size:16"`
	Period    string    `gorm:"primaryKey;size:8"`
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (DocumentSequence) TableName() string { return "document_sequences" }

type Generator struct {
	clock clock.Clock
}

func New(c clock.Clock) *Generator {
	if c == nil {
		c = clock.New()
	}
	return &Generator{clock: c}
}

var Module = fx.Module("docnumber",
	fx.Provide(New),
)

// Next reserves the next number for kind. It must run inside tx so the
// reservation rolls back with the caller's work.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB, kind Kind, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrInvalidPrefix
	}

	now := g.clock.Now().UTC()
	period := now.Format(periodLayout)

	seed := DocumentSequence{Kind: string(kind), Period: period, UpdatedAt: now}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error; err != nil {
		return "", err
	}

	var seq DocumentSequence
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("kind = ? AND period = ?", string(kind), period).
		First(&seq).Error; err != nil {
		return "", err
	}

	next := seq.LastValue + 1
	if next > maxPerPeriod {
		return "", ErrSequenceExhausted
	}

	if err := tx.WithContext(ctx).
		Model(&DocumentSequence{}).
		Where("kind = ? AND period = ?", string(kind), period).
		Updates(map[string]any{"last_value": next, "updated_at": now}).Error; err != nil {
		return "", err
	}

	return Format(prefix, now, next), nil
}

func Format(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", prefix, day.UTC().Format(periodLayout), seq)
}
