package sequence

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/backoffice/pkg/db"
	"gorm.io/gorm"
)

const maxCounterCAS = 32

// Sequence is the counter row backing GormCounter.
type Sequence struct {
	Name      string `gorm:"primaryKey;size:64"`
	LastValue int64  `gorm:"not null"`
	Version   int64  `gorm:"not null"`
	UpdatedAt time.Time
}

func (Sequence) TableName() string { return "sequences" }

// SeedFunc returns the highest value already in use for a sequence. It runs
// once, when the counter row is first created, so a database that already
// holds codes continues after them.
type SeedFunc func(ctx context.Context) (int64, error)

// GormCounter keeps one row per sequence and advances it with a
// compare-and-swap on version.
type GormCounter struct {
	db    *gorm.DB
	seeds map[string]SeedFunc
}

func NewGormCounter(conn *gorm.DB) *GormCounter {
	return &GormCounter{db: conn, seeds: map[string]SeedFunc{}}
}

// WithSeed registers the seed used when name's row does not exist yet.
func (c *GormCounter) WithSeed(name string, seed SeedFunc) *GormCounter {
	c.seeds[name] = seed
	return c
}

func (c *GormCounter) Next(ctx context.Context, name string) (int64, error) {
	for i := 0; i < maxCounterCAS; i++ {
		var row Sequence
		err := c.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			value, created, err := c.create(ctx, name)
			if err != nil {
				return 0, err
			}
			if created {
				return value, nil
			}
			continue
		}
		if err != nil {
			return 0, err
		}

		next := row.LastValue + 1
		res := c.db.WithContext(ctx).Model(&Sequence{}).
			Where("name = ? AND version = ?", name, row.Version).
			Updates(map[string]any{
				"last_value": next,
				"version":    row.Version + 1,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 1 {
			return next, nil
		}
	}
	return 0, ErrCounterContention
}

func (c *GormCounter) create(ctx context.Context, name string) (int64, bool, error) {
	var start int64
	if seed, ok := c.seeds[name]; ok {
		current, err := seed(ctx)
		if err != nil {
			return 0, false, err
		}
		start = current
	}

	row := Sequence{Name: name, LastValue: start + 1, Version: 1, UpdatedAt: time.Now().UTC()}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return row.LastValue, true, nil
}
