package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/backoffice/internal/observability/context"
)

const (
	HeaderSupplier       = "X-Supplier-ID"
	contextSupplierIDKey = "supplier_id"
)

// SupplierRequired resolves the calling supplier from the X-Supplier-ID
// header. Authentication happens upstream of this service.
func (s *Server) SupplierRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderSupplier))
		if raw == "" {
			AbortWithError(c, ErrForbidden)
			return
		}
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			AbortWithError(c, ErrForbidden)
			return
		}

		c.Set(contextSupplierIDKey, id.String())
		ctx := obscontext.WithActor(c.Request.Context(), "supplier", id.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func supplierFromContext(c *gin.Context) snowflake.ID {
	id, _ := snowflake.ParseString(c.GetString(contextSupplierIDKey))
	return id
}
