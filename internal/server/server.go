package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/visadesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/visadesk/internal/auth/domain"
	"github.com/smallbiznis/visadesk/internal/authorization"
	catalogdomain "github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/internal/config"
	invoicedomain "github.com/smallbiznis/visadesk/internal/invoice/domain"
	"github.com/smallbiznis/visadesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/visadesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/visadesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/visadesk/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/visadesk/internal/order/domain"
	paymentdomain "github.com/smallbiznis/visadesk/internal/payment/domain"
	"github.com/smallbiznis/visadesk/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(RunHTTP),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(obsmetrics.GinMiddleware(httpMetrics))
	}
	r.Use(ErrorHandlingMiddleware(!cfg.IsProduction()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", headerAccessToken},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Request-Id"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
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
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	authSvc    authdomain.Service
	authzSvc   authorization.Service
	auditSvc   auditdomain.Service
	catalogSvc catalogdomain.Service
	orderSvc   orderdomain.Service
	invoiceSvc invoicedomain.Service
	paymentSvc paymentdomain.Service
	business   *config.BusinessConfigHolder
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	AuthSvc    authdomain.Service
	AuthzSvc   authorization.Service
	AuditSvc   auditdomain.Service
	CatalogSvc catalogdomain.Service
	OrderSvc   orderdomain.Service
	InvoiceSvc invoicedomain.Service
	PaymentSvc paymentdomain.Service
	Business   *config.BusinessConfigHolder
	Uploads    *storage.LocalStore `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http"),
		authSvc:    p.AuthSvc,
		authzSvc:   p.AuthzSvc,
		auditSvc:   p.AuditSvc,
		catalogSvc: p.CatalogSvc,
		orderSvc:   p.OrderSvc,
		invoiceSvc: p.InvoiceSvc,
		paymentSvc: p.PaymentSvc,
		business:   p.Business,
	}

	if p.Uploads != nil {
		svc.engine.Static(storage.PublicPrefix, p.Uploads.Root())
	}
	svc.registerAuthRoutes()
	svc.registerCatalogRoutes()
	svc.registerOrderRoutes()
	svc.registerInvoiceRoutes()
	svc.registerPaymentRoutes()
	svc.registerSystemRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/api/auth")

	auth.POST("/login", s.Login)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.PUT("/me", s.AuthRequired(), s.UpdateProfile)
	auth.PUT("/password", s.AuthRequired(), s.ChangePassword)
}

func (s *Server) registerCatalogRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())
	perm := s.RequirePermission

	api.GET("/passports", perm(authorization.PermPassportView), s.ListPassports)
	api.POST("/passports", perm(authorization.PermPassportCreate), s.CreatePassport)
	api.GET("/passports/:id", perm(authorization.PermPassportView), s.GetPassport)
	api.PUT("/passports/:id", perm(authorization.PermPassportUpdate), s.UpdatePassport)
	api.DELETE("/passports/:id", perm(authorization.PermPassportDelete), s.DeletePassport)

	api.GET("/visas", perm(authorization.PermVisaView), s.ListVisas)
	api.POST("/visas", perm(authorization.PermVisaCreate), s.CreateVisa)
	api.GET("/visas/:id", perm(authorization.PermVisaView), s.GetVisa)
	api.PUT("/visas/:id", perm(authorization.PermVisaUpdate), s.UpdateVisa)
	api.DELETE("/visas/:id", perm(authorization.PermVisaDelete), s.DeleteVisa)

	api.GET("/suppliers", perm(authorization.PermSupplierView), s.ListSuppliers)
	api.POST("/suppliers", perm(authorization.PermSupplierCreate), s.CreateSupplier)
	api.GET("/suppliers/:id", perm(authorization.PermSupplierView), s.GetSupplier)
	api.PUT("/suppliers/:id", perm(authorization.PermSupplierUpdate), s.UpdateSupplier)
	api.DELETE("/suppliers/:id", perm(authorization.PermSupplierDelete), s.DeleteSupplier)

	api.GET("/agents", perm(authorization.PermAgentView), s.ListAgents)
	api.POST("/agents", perm(authorization.PermAgentCreate), s.CreateAgent)
	api.GET("/agents/:id", perm(authorization.PermAgentView), s.GetAgent)
	api.PUT("/agents/:id", perm(authorization.PermAgentUpdate), s.UpdateAgent)
	api.DELETE("/agents/:id", perm(authorization.PermAgentDelete), s.DeleteAgent)

	api.GET("/products", perm(authorization.PermProductView), s.ListProducts)
	api.POST("/products", perm(authorization.PermProductCreate), s.CreateProduct)
	api.GET("/products/:id", perm(authorization.PermProductView), s.GetProduct)
	api.PUT("/products/:id", perm(authorization.PermProductUpdate), s.UpdateProduct)
	api.DELETE("/products/:id", perm(authorization.PermProductDelete), s.DeleteProduct)

	api.GET("/product-quotes", perm(authorization.PermQuoteView), s.ListQuotes)
	api.POST("/product-quotes", perm(authorization.PermQuoteCreate), s.CreateQuote)
	api.GET("/product-quotes/:id", perm(authorization.PermQuoteView), s.GetQuote)
	api.PUT("/product-quotes/:id", perm(authorization.PermQuoteUpdate), s.UpdateQuote)
	api.DELETE("/product-quotes/:id", perm(authorization.PermQuoteDelete), s.DeleteQuote)

	api.GET("/agent-product-prices", perm(authorization.PermAgentPriceView), s.ListAgentPrices)
	api.POST("/agent-product-prices", perm(authorization.PermAgentPriceCreate), s.CreateAgentPrice)
	api.GET("/agent-product-prices/:id", perm(authorization.PermAgentPriceView), s.GetAgentPrice)
	api.PUT("/agent-product-prices/:id", perm(authorization.PermAgentPriceUpdate), s.UpdateAgentPrice)
	api.DELETE("/agent-product-prices/:id", perm(authorization.PermAgentPriceDelete), s.DeleteAgentPrice)
}

func (s *Server) registerOrderRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())
	perm := s.RequirePermission

	api.GET("/orders", perm(authorization.PermOrderView), s.ListOrders)
	api.POST("/orders", perm(authorization.PermOrderCreate), s.CreateOrder)
	api.GET("/orders/:id", perm(authorization.PermOrderView), s.GetOrder)
	api.PUT("/orders/:id", perm(authorization.PermOrderUpdate), s.UpdateOrder)
	api.PUT("/orders/:id/cancel", perm(authorization.PermOrderCancel), s.CancelOrder)

	api.GET("/order-items", perm(authorization.PermOrderItemView), s.ListOrderItems)
	api.POST("/order-items", perm(authorization.PermOrderItemCreate), s.CreateOrderItem)
	api.GET("/order-items/:id", perm(authorization.PermOrderItemView), s.GetOrderItem)
	api.PUT("/order-items/:id", perm(authorization.PermOrderItemUpdate), s.UpdateOrderItem)
	api.DELETE("/order-items/:id", perm(authorization.PermOrderItemDelete), s.DeleteOrderItem)
}

func (s *Server) registerInvoiceRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())
	perm := s.RequirePermission

	api.GET("/invoices", perm(authorization.PermInvoiceView), s.ListInvoices)
	api.POST("/invoices", perm(authorization.PermInvoiceCreate), s.CreateInvoice)
	api.GET("/invoices/:id", perm(authorization.PermInvoiceView), s.GetInvoice)
	api.PUT("/invoices/:id", perm(authorization.PermInvoiceUpdate), s.UpdateInvoice)
	api.DELETE("/invoices/:id", perm(authorization.PermInvoiceDelete), s.DeleteInvoice)
	api.PUT("/invoices/:id/status", perm(authorization.PermInvoiceStatus), s.SetInvoiceStatus)
	api.GET("/invoices/:id/pdf", perm(authorization.PermInvoiceView), s.InvoicePDF)

	api.GET("/invoices/:id/orders", perm(authorization.PermInvoiceView), s.ListInvoiceOrders)
	api.POST("/invoices/:id/orders", perm(authorization.PermInvoiceLink), s.LinkInvoiceOrders)
	api.DELETE("/invoices/:id/orders/:orderId", perm(authorization.PermInvoiceLink), s.UnlinkInvoiceOrder)
}

func (s *Server) registerPaymentRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())
	perm := s.RequirePermission

	api.GET("/invoices/:id/payments", perm(authorization.PermPaymentView), s.ListInvoicePayments)
	api.POST("/invoices/:id/payments", perm(authorization.PermPaymentCreate), s.CreatePayment)

	api.GET("/payments/:id", perm(authorization.PermPaymentView), s.GetPayment)
	api.PUT("/payments/:id", perm(authorization.PermPaymentUpdate), s.UpdatePayment)
	api.DELETE("/payments/:id", perm(authorization.PermPaymentDelete), s.DeletePayment)
	api.PUT("/payments/:id/review", perm(authorization.PermPaymentReview), s.ReviewPayment)
}

func (s *Server) registerSystemRoutes() {
	system := s.engine.Group("/api/system", s.AuthRequired())
	perm := s.RequirePermission

	system.GET("/users", perm(authorization.PermUserView), s.ListUsers)
	system.POST("/users", perm(authorization.PermUserCreate), s.CreateUser)
	system.GET("/users/:id", perm(authorization.PermUserView), s.GetUser)
	system.PUT("/users/:id", perm(authorization.PermUserUpdate), s.UpdateUser)
	system.PUT("/users/:id/status", perm(authorization.PermUserUpdate), s.SetUserStatus)
	system.PUT("/users/:id/password", perm(authorization.PermUserUpdate), s.ResetUserPassword)
	system.DELETE("/users/:id", perm(authorization.PermUserDelete), s.DeleteUser)

	system.GET("/roles", perm(authorization.PermRoleView), s.ListRoles)
	system.POST("/roles", perm(authorization.PermRoleCreate), s.CreateRole)
	system.GET("/roles/:id", perm(authorization.PermRoleView), s.GetRole)
	system.PUT("/roles/:id", perm(authorization.PermRoleUpdate), s.UpdateRole)
	system.DELETE("/roles/:id", perm(authorization.PermRoleDelete), s.DeleteRole)
	system.GET("/roles/:id/permissions", perm(authorization.PermRoleView), s.GetRolePermissions)
	system.PUT("/roles/:id/permissions", perm(authorization.PermRoleUpdate), s.SetRolePermissions)

	system.GET("/permissions", perm(authorization.PermRoleView), s.ListPermissions)
	system.GET("/operation-logs", perm(authorization.PermOperationLogView), s.ListOperationLogs)
}
