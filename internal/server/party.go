package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
)

func (s *Server) CreateClient(c *gin.Context) {
	var req partydomain.CreateClientRequest
	if !bindJSON(c, &req) {
		return
	}

	client, err := s.partySvc.CreateClient(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": client})
}

func (s *Server) GetClient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	client, err := s.partySvc.GetClient(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": client})
}

func (s *Server) CreateSupplier(c *gin.Context) {
	var req partydomain.CreateSupplierRequest
	if !bindJSON(c, &req) {
		return
	}

	supplier, err := s.partySvc.CreateSupplier(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": supplier})
}

func (s *Server) GetSupplier(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	supplier, err := s.partySvc.GetSupplier(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": supplier})
}
