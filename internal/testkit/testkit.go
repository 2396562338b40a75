// Package testkit assembles the lower layers (parties, commitments, code
// sequences) on a throwaway database for service tests.
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	commitmentdomain "github.com/smallbiznis/backoffice/internal/commitment/domain"
	commitmentrepo "github.com/smallbiznis/backoffice/internal/commitment/repository"
	commitmentservice "github.com/smallbiznis/backoffice/internal/commitment/service"
	"github.com/smallbiznis/backoffice/internal/config"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	partyrepo "github.com/smallbiznis/backoffice/internal/party/repository"
	partyservice "github.com/smallbiznis/backoffice/internal/party/service"
	"github.com/smallbiznis/backoffice/internal/sequence"
	serviceorderdomain "github.com/smallbiznis/backoffice/internal/serviceorder/domain"
	"github.com/smallbiznis/backoffice/pkg/db/dbtest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Now is the fixed instant every Env clock starts at.
var Now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type Env struct {
	DB          *gorm.DB
	Log         *zap.Logger
	Node        *snowflake.Node
	Clock       *clock.FakeClock
	Policy      *config.PolicyHolder
	Parties     partydomain.Service
	Commitments commitmentdomain.Service
	Counter     sequence.Counter
	Codes       *sequence.Generator
}

type Option func(*options)

type options struct {
	counter sequence.Counter
	models  []any
}

// WithCounter replaces the database counter, typically with a stub that
// forces code collisions.
func WithCounter(c sequence.Counter) Option {
	return func(o *options) { o.counter = c }
}

// WithModels migrates additional tables.
func WithModels(models ...any) Option {
	return func(o *options) { o.models = append(o.models, models...) }
}

func New(t testing.TB, opts ...Option) *Env {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	models := []any{
		&partydomain.Client{},
		&partydomain.Supplier{},
		&commitmentdomain.Contract{},
		&commitmentdomain.Addendum{},
		&commitmentdomain.CommitmentLine{},
		&serviceorderdomain.ServiceOrder{},
		&sequence.Sequence{},
	}
	conn := dbtest.Open(t, append(models, o.models...)...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fc := clock.NewFakeClock(Now)
	policy := config.NewStaticPolicyHolder(config.PolicyConfig{CASMaxAttempts: 20})

	counter := o.counter
	if counter == nil {
		counter = sequence.NewGormCounter(conn)
	}

	return &Env{
		DB:     conn,
		Log:    log,
		Node:   node,
		Clock:  fc,
		Policy: policy,
		Parties: partyservice.New(partyservice.Params{
			DB:    conn,
			Log:   log,
			GenID: node,
			Repo:  partyrepo.Provide(),
		}),
		Commitments: commitmentservice.NewService(commitmentservice.Params{
			DB:     conn,
			Log:    log,
			GenID:  node,
			Repo:   commitmentrepo.Provide(),
			Clock:  fc,
			Policy: policy,
		}),
		Counter: counter,
		Codes: sequence.NewGenerator(sequence.Params{
			Counter: counter,
			Policy:  policy,
			Log:     log,
		}),
	}
}

func D(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (e *Env) Client(t testing.TB, req partydomain.CreateClientRequest) partydomain.Client {
	t.Helper()
	if req.Name == "" {
		req.Name = "Fleet Client"
	}
	c, err := e.Parties.CreateClient(context.Background(), req)
	require.NoError(t, err)
	return c
}

func (e *Env) Supplier(t testing.TB, req partydomain.CreateSupplierRequest) partydomain.Supplier {
	t.Helper()
	if req.Name == "" {
		req.Name = "Garage Supplier"
	}
	s, err := e.Parties.CreateSupplier(context.Background(), req)
	require.NoError(t, err)
	return s
}

// Contract creates a contract valid for a year around Now.
func (e *Env) Contract(t testing.TB, clientID snowflake.ID, value string) commitmentdomain.Contract {
	t.Helper()
	c, err := e.Commitments.CreateContract(context.Background(), commitmentdomain.CreateContractRequest{
		ClientID:   clientID,
		Value:      D(value),
		ValidFrom:  Now.AddDate(0, -1, 0),
		ValidUntil: Now.AddDate(1, 0, 0),
	})
	require.NoError(t, err)
	return c
}

func (e *Env) Line(t testing.TB, contractID snowflake.ID, lineType commitmentdomain.LineType, authorized string) commitmentdomain.CommitmentLine {
	t.Helper()
	l, err := e.Commitments.CreateCommitmentLine(context.Background(), commitmentdomain.CreateLineRequest{
		ContractID: contractID,
		Type:       lineType,
		Authorized: D(authorized),
	})
	require.NoError(t, err)
	return l
}

func (e *Env) Available(t testing.TB, lineID snowflake.ID) decimal.Decimal {
	t.Helper()
	v, err := e.Commitments.Available(context.Background(), lineID)
	require.NoError(t, err)
	return v
}

// StubCounter returns the given values in order and repeats the last one.
type StubCounter struct {
	values []int64
	calls  int
}

func NewStubCounter(values ...int64) *StubCounter {
	return &StubCounter{values: values}
}

func (c *StubCounter) Next(ctx context.Context, name string) (int64, error) {
	i := c.calls
	if i >= len(c.values) {
		i = len(c.values) - 1
	}
	c.calls++
	return c.values[i], nil
}

func (c *StubCounter) Calls() int { return c.calls }
