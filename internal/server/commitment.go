package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	commitmentdomain "github.com/smallbiznis/backoffice/internal/commitment/domain"
)

func (s *Server) CreateContract(c *gin.Context) {
	var req commitmentdomain.CreateContractRequest
	if !bindJSON(c, &req) {
		return
	}

	contract, err := s.commitmentSvc.CreateContract(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": contract})
}

func (s *Server) GetContract(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	contract, err := s.commitmentSvc.GetContract(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": contract})
}

func (s *Server) GetContractCapacity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	capacity, err := s.commitmentSvc.ContractCapacity(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": capacity})
}

func (s *Server) AddAddendum(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req commitmentdomain.AddAddendumRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ContractID = id

	addendum, err := s.commitmentSvc.AddAddendum(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": addendum})
}

func (s *Server) CreateCommitmentLine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req commitmentdomain.CreateLineRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ContractID = id

	line, err := s.commitmentSvc.CreateCommitmentLine(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": line})
}

func (s *Server) GetCommitmentLine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	line, err := s.commitmentSvc.GetLine(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	available, err := s.commitmentSvc.Available(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": line, "available": available})
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) ReserveCommitment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req amountRequest
	if !bindJSON(c, &req) {
		return
	}

	line, err := s.commitmentSvc.Reserve(c.Request.Context(), commitmentdomain.ReserveRequest{
		LineID: id,
		Amount: req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": line})
}

func (s *Server) ReleaseCommitment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req amountRequest
	if !bindJSON(c, &req) {
		return
	}

	line, err := s.commitmentSvc.Release(c.Request.Context(), commitmentdomain.ReleaseRequest{
		LineID: id,
		Amount: req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": line})
}

func (s *Server) CancelCommitment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req commitmentdomain.CancelCommitmentRequest
	if !bindJSON(c, &req) {
		return
	}
	req.LineID = id

	line, err := s.commitmentSvc.CancelCommitment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": line})
}
