package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	advancedomain "github.com/smallbiznis/backoffice/internal/advance/domain"
	commitmentdomain "github.com/smallbiznis/backoffice/internal/commitment/domain"
	"github.com/smallbiznis/backoffice/internal/config"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	"github.com/smallbiznis/backoffice/internal/observability"
	obsmiddleware "github.com/smallbiznis/backoffice/internal/observability/logger"
	obstracing "github.com/smallbiznis/backoffice/internal/observability/tracing"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	serviceorderdomain "github.com/smallbiznis/backoffice/internal/serviceorder/domain"
	taxdomain "github.com/smallbiznis/backoffice/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(classifyErrorForLog))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	partySvc      partydomain.Service
	commitmentSvc commitmentdomain.Service
	orderSvc      serviceorderdomain.Service
	taxSvc        taxdomain.Service
	feeSvc        feedomain.Service
	invoiceSvc    invoicedomain.Service
	advanceSvc    advancedomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	PartySvc      partydomain.Service
	CommitmentSvc commitmentdomain.Service
	OrderSvc      serviceorderdomain.Service
	TaxSvc        taxdomain.Service
	FeeSvc        feedomain.Service
	InvoiceSvc    invoicedomain.Service
	AdvanceSvc    advancedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		partySvc:      p.PartySvc,
		commitmentSvc: p.CommitmentSvc,
		orderSvc:      p.OrderSvc,
		taxSvc:        p.TaxSvc,
		feeSvc:        p.FeeSvc,
		invoiceSvc:    p.InvoiceSvc,
		advanceSvc:    p.AdvanceSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Parties --------
	api.POST("/clients", s.CreateClient)
	api.GET("/clients/:id", s.GetClient)
	api.POST("/suppliers", s.CreateSupplier)
	api.GET("/suppliers/:id", s.GetSupplier)

	// -------- Contracts & commitment lines --------
	api.POST("/contracts", s.CreateContract)
	api.GET("/contracts/:id", s.GetContract)
	api.GET("/contracts/:id/capacity", s.GetContractCapacity)
	api.POST("/contracts/:id/addenda", s.AddAddendum)
	api.POST("/contracts/:id/lines", s.CreateCommitmentLine)
	api.GET("/commitment_lines/:id", s.GetCommitmentLine)
	api.POST("/commitment_lines/:id/reserve", s.ReserveCommitment)
	api.POST("/commitment_lines/:id/release", s.ReleaseCommitment)
	api.POST("/commitment_lines/:id/cancel", s.CancelCommitment)

	// -------- Service orders --------
	api.GET("/orders", s.ListOrders)
	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:id", s.GetOrder)
	api.PUT("/orders/:id", s.UpdateOrder)
	api.DELETE("/orders/:id", s.DeleteOrder)

	// -------- Rate tables --------
	api.GET("/tax_configs", s.ListTaxConfigs)
	api.GET("/tax_configs/active", s.GetActiveTaxConfig)
	api.POST("/tax_configs", s.PublishTaxConfig)
	api.GET("/fee_configs", s.ListFeeConfigs)
	api.GET("/fee_configs/active", s.GetActiveFeeConfig)
	api.POST("/fee_configs", s.PublishFeeConfig)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:id", s.GetInvoice)
	api.POST("/invoices/:id/deactivate", s.DeactivateInvoice)
	api.DELETE("/invoices/:id/orders/:orderId", s.RemoveOrderFromInvoice)
	api.POST("/invoices/:id/orders/:orderId/paid", s.MarkOrderPaid)

	// -------- Advances --------
	// Supplier-issued calls identify the requester with the X-Supplier-ID header.
	api.GET("/advances", s.ListAdvances)
	api.POST("/advances/preview", s.SupplierRequired(), s.PreviewAdvance)
	api.POST("/advances", s.SupplierRequired(), s.CreateAdvance)
	api.GET("/advances/:id", s.GetAdvance)
	api.POST("/advances/:id/approve", s.ApproveAdvance)
	api.POST("/advances/:id/reject", s.RejectAdvance)
	api.POST("/advances/:id/pay", s.PayAdvance)
	api.POST("/advances/:id/cancel", s.SupplierRequired(), s.CancelAdvance)
}
