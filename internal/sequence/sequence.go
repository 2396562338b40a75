// Package sequence issues human-readable sequential codes (OS-000001,
// FAT-000001) from an explicit atomic counter.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"github.com/smallbiznis/backoffice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	OrderCodes     = "service_order_code"
	InvoiceNumbers = "invoice_number"

	OrderCodeTemplate     = "OS-{SEQ6}"
	InvoiceNumberTemplate = "FAT-{SEQ6}"
)

var (
	ErrCodeGenerationExhausted = errors.New("code_generation_exhausted")
	ErrCounterContention       = errors.New("sequence_counter_contention")
)

// Counter hands out strictly increasing values per sequence name.
type Counter interface {
	Next(ctx context.Context, name string) (int64, error)
}

// InsertFunc persists an entity carrying code. A duplicate-key error makes
// the generator draw a new value and call it again.
type InsertFunc func(ctx context.Context, code string) error

type Params struct {
	fx.In

	Counter Counter
	Policy  *config.PolicyHolder `optional:"true"`
	Metrics *metrics.Metrics     `optional:"true"`
	Log     *zap.Logger
}

type Generator struct {
	counter Counter
	policy  *config.PolicyHolder
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewGenerator(p Params) *Generator {
	return &Generator{
		counter: p.Counter,
		policy:  p.Policy,
		metrics: p.Metrics,
		log:     p.Log.Named("sequence.generator"),
	}
}

// Generate draws the next value of name, renders it with template and hands
// it to insert. Only duplicate-key failures are retried; once every attempt
// collides ErrCodeGenerationExhausted is returned and insert has not succeeded.
func (g *Generator) Generate(ctx context.Context, name, template string, insert InsertFunc) (string, error) {
	attempts := g.policy.Get().CodeMaxAttempts

	for attempt := 1; attempt <= attempts; attempt++ {
		n, err := g.counter.Next(ctx, name)
		if err != nil {
			return "", fmt.Errorf("next %s: %w", name, err)
		}
		code, err := Format(template, n)
		if err != nil {
			return "", err
		}

		err = insert(ctx, code)
		if err == nil {
			return code, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return "", err
		}

		g.metrics.RecordSequenceRetry(ctx, name)
		g.log.Warn("code collision, retrying",
			zap.String("sequence", name),
			zap.String("code", code),
			zap.Int("attempt", attempt),
		)
	}

	g.log.Error("code generation exhausted",
		zap.String("sequence", name),
		zap.Int("attempts", attempts),
	)
	return "", ErrCodeGenerationExhausted
}
