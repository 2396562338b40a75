package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	advancedomain "github.com/smallbiznis/backoffice/internal/advance/domain"
)

type advanceRequest struct {
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	DesiredDate     string          `json:"desired_date"`
	Note            string          `json:"note"`
}

func (s *Server) PreviewAdvance(c *gin.Context) {
	var req advanceRequest
	if !bindJSON(c, &req) {
		return
	}
	desired, ok := requiredDate(c, "desired_date", req.DesiredDate)
	if !ok {
		return
	}

	preview, err := s.advanceSvc.CalculateAdvancePreview(c.Request.Context(), advancedomain.PreviewCommand{
		SupplierID:      supplierFromContext(c),
		RequestedAmount: req.RequestedAmount,
		DesiredDate:     desired,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": preview})
}

func (s *Server) CreateAdvance(c *gin.Context) {
	var req advanceRequest
	if !bindJSON(c, &req) {
		return
	}
	desired, ok := requiredDate(c, "desired_date", req.DesiredDate)
	if !ok {
		return
	}

	advance, err := s.advanceSvc.CreateAdvanceRequest(c.Request.Context(), advancedomain.CreateAdvanceCommand{
		SupplierID:      supplierFromContext(c),
		RequestedAmount: req.RequestedAmount,
		DesiredDate:     desired,
		Note:            req.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": advance})
}

func (s *Server) ListAdvances(c *gin.Context) {
	supplierID, ok := queryID(c, "supplier_id")
	if !ok {
		return
	}

	advances, err := s.advanceSvc.ListAdvances(c.Request.Context(), advancedomain.ListFilter{
		SupplierID: supplierID,
		Status:     advancedomain.Status(c.Query("status")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": advances})
}

func (s *Server) GetAdvance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	advance, err := s.advanceSvc.GetAdvance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": advance})
}

func (s *Server) ApproveAdvance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	advance, err := s.advanceSvc.ApproveAdvance(c.Request.Context(), advancedomain.ApproveAdvanceCommand{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": advance})
}

type rejectAdvanceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RejectAdvance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req rejectAdvanceRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	advance, err := s.advanceSvc.RejectAdvance(c.Request.Context(), advancedomain.RejectAdvanceCommand{
		ID:     id,
		Reason: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": advance})
}

func (s *Server) PayAdvance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	advance, err := s.advanceSvc.PayAdvance(c.Request.Context(), advancedomain.PayAdvanceCommand{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": advance})
}

func (s *Server) CancelAdvance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	advance, err := s.advanceSvc.CancelAdvance(c.Request.Context(), advancedomain.CancelAdvanceCommand{
		ID:         id,
		SupplierID: supplierFromContext(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": advance})
}
