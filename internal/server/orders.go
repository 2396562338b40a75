package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	serviceorderdomain "github.com/smallbiznis/backoffice/internal/serviceorder/domain"
	"github.com/smallbiznis/backoffice/pkg/validation"
)

func (s *Server) ListOrders(c *gin.Context) {
	clientID, ok := queryID(c, "client_id")
	if !ok {
		return
	}
	supplierID, ok := queryID(c, "supplier_id")
	if !ok {
		return
	}

	filter := serviceorderdomain.ListFilter{
		ClientID:   clientID,
		SupplierID: supplierID,
		Status:     serviceorderdomain.Status(c.Query("status")),
	}
	if raw := c.Query("unclaimed"); raw != "" {
		claim := serviceorderdomain.Claim(raw)
		if !claim.Valid() {
			AbortWithError(c, validation.New("unclaimed", "oneof", "must be supplier or client"))
			return
		}
		filter.Unclaimed = claim
	}

	orders, err := s.orderSvc.ListOrders(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func (s *Server) CreateOrder(c *gin.Context) {
	var cmd serviceorderdomain.CreateOrderCommand
	if !bindJSON(c, &cmd) {
		return
	}

	order, err := s.orderSvc.CreateOrder(c.Request.Context(), cmd)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := s.orderSvc.GetOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) UpdateOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var cmd serviceorderdomain.UpdateOrderCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.ID = id

	order, err := s.orderSvc.UpdateOrder(c.Request.Context(), cmd)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) DeleteOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.orderSvc.DeleteOrder(c.Request.Context(), serviceorderdomain.DeleteOrderCommand{ID: id}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
