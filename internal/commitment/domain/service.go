package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateContractRequest struct {
	ClientID   snowflake.ID    `json:"client_id" validate:"required"`
	Reference  string          `json:"reference"`
	Value      decimal.Decimal `json:"value" validate:"dgt0"`
	ValidFrom  time.Time       `json:"valid_from" validate:"required"`
	ValidUntil time.Time       `json:"valid_until" validate:"required,gtfield=ValidFrom"`
}

type AddAddendumRequest struct {
	ContractID snowflake.ID    `json:"contract_id" validate:"required"`
	Value      decimal.Decimal `json:"value" validate:"dgt0"`
	ValidFrom  time.Time       `json:"valid_from" validate:"required"`
	ValidUntil time.Time       `json:"valid_until" validate:"required,gtfield=ValidFrom"`
}

type CreateLineRequest struct {
	ContractID snowflake.ID    `json:"contract_id" validate:"required"`
	Type       LineType        `json:"type" validate:"required,oneof=parts labor both"`
	Authorized decimal.Decimal `json:"authorized" validate:"dgt0"`
}

type CancelCommitmentRequest struct {
	LineID    snowflake.ID    `json:"line_id" validate:"required"`
	Cancelled decimal.Decimal `json:"cancelled" validate:"dgte0"`
}

// ReserveRequest consumes Amount from a commitment line.
type ReserveRequest struct {
	LineID snowflake.ID    `json:"line_id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"dgte0"`
}

// ReleaseRequest returns Amount to a commitment line.
type ReleaseRequest struct {
	LineID snowflake.ID    `json:"line_id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"dgte0"`
}

type Service interface {
	CreateContract(context.Context, CreateContractRequest) (Contract, error)
	AddAddendum(context.Context, AddAddendumRequest) (Addendum, error)
	CreateCommitmentLine(context.Context, CreateLineRequest) (CommitmentLine, error)
	CancelCommitment(context.Context, CancelCommitmentRequest) (CommitmentLine, error)

	Reserve(context.Context, ReserveRequest) (CommitmentLine, error)
	Release(context.Context, ReleaseRequest) (CommitmentLine, error)

	GetContract(context.Context, snowflake.ID) (Contract, error)
	GetLine(context.Context, snowflake.ID) (CommitmentLine, error)
	Available(context.Context, snowflake.ID) (decimal.Decimal, error)
	ContractCapacity(context.Context, snowflake.ID) (Capacity, error)
}
