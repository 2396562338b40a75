package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	"github.com/smallbiznis/backoffice/pkg/validation"
)

type createInvoiceRequest struct {
	Type          invoicedomain.Type        `json:"type"`
	CounterpartID snowflake.ID              `json:"counterpart_id"`
	OrderIDs      []snowflake.ID            `json:"order_ids"`
	PeriodStart   string                    `json:"period_start"`
	PeriodEnd     string                    `json:"period_end"`
	PaymentTiming partydomain.PaymentTiming `json:"payment_timing"`
}

func (s *Server) ListInvoices(c *gin.Context) {
	supplierID, ok := queryID(c, "supplier_id")
	if !ok {
		return
	}
	clientID, ok := queryID(c, "client_id")
	if !ok {
		return
	}
	onlyActive, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, validation.New("active", "invalid_bool", "must be true or false"))
		return
	}

	filter := invoicedomain.ListFilter{
		Type:       invoicedomain.Type(c.Query("type")),
		SupplierID: supplierID,
		ClientID:   clientID,
		Status:     invoicedomain.Status(c.Query("status")),
		OnlyActive: onlyActive != nil && *onlyActive,
	}

	invoices, err := s.invoiceSvc.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	start, ok := requiredDate(c, "period_start", req.PeriodStart)
	if !ok {
		return
	}
	end, ok := requiredDate(c, "period_end", req.PeriodEnd)
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.CreateInvoice(c.Request.Context(), invoicedomain.CreateInvoiceCommand{
		Type:          req.Type,
		CounterpartID: req.CounterpartID,
		OrderIDs:      req.OrderIDs,
		PeriodStart:   start,
		PeriodEnd:     end,
		PaymentTiming: req.PaymentTiming,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.GetInvoice(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

type deactivateInvoiceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) DeactivateInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req deactivateInvoiceRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	invoice, err := s.invoiceSvc.DeactivateInvoice(c.Request.Context(), invoicedomain.DeactivateInvoiceCommand{
		InvoiceID: id,
		Reason:    req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) RemoveOrderFromInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.RemoveOrderFromInvoice(c.Request.Context(), invoicedomain.RemoveOrderCommand{
		InvoiceID: id,
		OrderID:   orderID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

type markOrderPaidRequest struct {
	PaidAt string `json:"paid_at"`
}

func (s *Server) MarkOrderPaid(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}

	var req markOrderPaidRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	paidAt, err := parseOptionalTime(req.PaidAt)
	if err != nil {
		AbortWithError(c, validation.New("paid_at", "invalid_time", "must be a date or RFC 3339 timestamp"))
		return
	}

	invoice, err := s.invoiceSvc.MarkOrderPaid(c.Request.Context(), invoicedomain.MarkOrderPaidCommand{
		InvoiceID: id,
		OrderID:   orderID,
		PaidAt:    paidAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}
