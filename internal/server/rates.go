package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	taxdomain "github.com/smallbiznis/backoffice/internal/tax/domain"
)

func (s *Server) ListTaxConfigs(c *gin.Context) {
	configs, err := s.taxSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": configs})
}

func (s *Server) GetActiveTaxConfig(c *gin.Context) {
	cfg, err := s.taxSvc.Active(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

func (s *Server) PublishTaxConfig(c *gin.Context) {
	var req taxdomain.PublishRequest
	if !bindJSON(c, &req) {
		return
	}

	cfg, err := s.taxSvc.Publish(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": cfg})
}

func (s *Server) ListFeeConfigs(c *gin.Context) {
	configs, err := s.feeSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": configs})
}

func (s *Server) GetActiveFeeConfig(c *gin.Context) {
	cfg, err := s.feeSvc.Active(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

func (s *Server) PublishFeeConfig(c *gin.Context) {
	var req feedomain.PublishRequest
	if !bindJSON(c, &req) {
		return
	}

	cfg, err := s.feeSvc.Publish(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": cfg})
}
