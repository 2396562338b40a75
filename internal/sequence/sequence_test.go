package sequence

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type codeRow struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex"`
}

func TestFormatAndParse(t *testing.T) {
	code, err := Format(OrderCodeTemplate, 42)
	require.NoError(t, err)
	assert.Equal(t, "OS-000042", code)

	code, err = Format(InvoiceNumberTemplate, 1234567)
	require.NoError(t, err)
	assert.Equal(t, "FAT-1234567", code)

	_, err = Format(OrderCodeTemplate, 0)
	assert.Error(t, err)
	_, err = Format("OS-{NOPE}", 1)
	assert.Error(t, err)

	n, err := Parse("FAT", "FAT-000077")
	require.NoError(t, err)
	assert.Equal(t, int64(77), n)

	_, err = Parse("OS", "FAT-000077")
	assert.Error(t, err)
	_, err = Parse("OS", "OS-abc")
	assert.Error(t, err)
}

func TestGormCounter(t *testing.T) {
	ctx := context.Background()

	t.Run("increments per name", func(t *testing.T) {
		conn := dbtest.Open(t, &Sequence{})
		counter := NewGormCounter(conn)

		for want := int64(1); want <= 3; want++ {
			got, err := counter.Next(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		got, err := counter.Next(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("seeds from existing codes", func(t *testing.T) {
		conn := dbtest.Open(t, &Sequence{}, &codeRow{})
		require.NoError(t, conn.Create(&codeRow{ID: 1, Code: "OS-000009"}).Error)
		require.NoError(t, conn.Create(&codeRow{ID: 2, Code: "OS-000041"}).Error)

		counter := NewGormCounter(conn).WithSeed(OrderCodes, MaxCodeSeed(conn, "code_rows", "code", "OS"))
		got, err := counter.Next(ctx, OrderCodes)
		require.NoError(t, err)
		assert.Equal(t, int64(42), got)
	})

	t.Run("concurrent callers never share a value", func(t *testing.T) {
		conn := dbtest.Open(t, &Sequence{})
		counter := NewGormCounter(conn)

		const workers = 4
		const perWorker = 5
		var (
			mu   sync.Mutex
			seen = map[int64]bool{}
			wg   sync.WaitGroup
		)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					n, err := counter.Next(ctx, "c")
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					assert.False(t, seen[n], "duplicate value %d", n)
					seen[n] = true
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Len(t, seen, workers*perWorker)
	})
}

type fixedCounter struct {
	mu     sync.Mutex
	values []int64
}

func (c *fixedCounter) Next(context.Context, string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.values) == 0 {
		return 0, errors.New("exhausted test values")
	}
	v := c.values[0]
	c.values = c.values[1:]
	return v, nil
}

func newTestGenerator(counter Counter) *Generator {
	return NewGenerator(Params{
		Counter: counter,
		Policy:  config.NewStaticPolicyHolder(config.PolicyConfig{CodeMaxAttempts: 3}),
		Log:     zap.NewNop(),
	})
}

func TestGenerator(t *testing.T) {
	ctx := context.Background()

	insertInto := func(conn *gorm.DB, id *int64) InsertFunc {
		return func(ctx context.Context, code string) error {
			*id++
			return conn.WithContext(ctx).Create(&codeRow{ID: *id, Code: code}).Error
		}
	}

	t.Run("retries on collision", func(t *testing.T) {
		conn := dbtest.Open(t, &codeRow{})
		require.NoError(t, conn.Create(&codeRow{ID: 100, Code: "OS-000001"}).Error)

		var id int64
		gen := newTestGenerator(&fixedCounter{values: []int64{1, 2}})
		code, err := gen.Generate(ctx, OrderCodes, OrderCodeTemplate, insertInto(conn, &id))
		require.NoError(t, err)
		assert.Equal(t, "OS-000002", code)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		conn := dbtest.Open(t, &codeRow{})
		require.NoError(t, conn.Create(&codeRow{ID: 100, Code: "OS-000001"}).Error)

		var id int64
		calls := 0
		gen := newTestGenerator(&fixedCounter{values: []int64{1, 1, 1, 2}})
		_, err := gen.Generate(ctx, OrderCodes, OrderCodeTemplate, func(ctx context.Context, code string) error {
			calls++
			return insertInto(conn, &id)(ctx, code)
		})
		assert.ErrorIs(t, err, ErrCodeGenerationExhausted)
		assert.Equal(t, 3, calls)

		var count int64
		require.NoError(t, conn.Model(&codeRow{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		gen := newTestGenerator(&fixedCounter{values: []int64{1, 2, 3}})
		_, err := gen.Generate(ctx, InvoiceNumbers, InvoiceNumberTemplate, func(context.Context, string) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}

// TestRedisCounter runs against a real server when REDIS_ADDRESS is set.
func TestRedisCounter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	name := "test:" + t.Name() + ":" + time.Now().Format("150405.000000000")
	defer client.Del(ctx, redisKeyPrefix+name)

	counter := NewRedisCounter(client).WithSeed(name, func(context.Context) (int64, error) { return 10, nil })
	first, err := counter.Next(ctx, name)
	require.NoError(t, err)
	second, err := counter.Next(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, int64(11), first)
	assert.Equal(t, int64(12), second)
}
