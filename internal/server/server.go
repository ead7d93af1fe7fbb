package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clinvia/clinvia/internal/config"
	customerdomain "github.com/clinvia/clinvia/internal/customer/domain"
	financedomain "github.com/clinvia/clinvia/internal/finance/domain"
	installmentdomain "github.com/clinvia/clinvia/internal/installment/domain"
	"github.com/clinvia/clinvia/internal/livefeed"
	paymentdomain "github.com/clinvia/clinvia/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	customerSvc    customerdomain.Service
	financeSvc     financedomain.Service
	paymentSvc     paymentdomain.Service
	installmentSvc installmentdomain.Service
	feed           *livefeed.Hub
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	CustomerSvc    customerdomain.Service
	FinanceSvc     financedomain.Service
	PaymentSvc     paymentdomain.Service
	InstallmentSvc installmentdomain.Service
	Feed           *livefeed.Hub `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		log:            p.Log.Named("http.server"),
		genID:          p.GenID,
		customerSvc:    p.CustomerSvc,
		financeSvc:     p.FinanceSvc,
		paymentSvc:     p.PaymentSvc,
		installmentSvc: p.InstallmentSvc,
		feed:           p.Feed,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/customers", s.CreateCustomer)
	v1.GET("/customers", s.ListCustomers)
	v1.GET("/customers/:id", s.GetCustomerByID)
	v1.GET("/customers/:id/finances", s.ListCustomerFinances)
	v1.GET("/customers/:id/finances/feed", s.StreamCustomerFeed)

	v1.POST("/finances", s.CreateFinance)
	v1.GET("/finances", s.ListFinances)
	v1.GET("/finances/:id", s.GetFinanceByID)
	v1.DELETE("/finances/:id", s.DeleteFinance)

	v1.POST("/finances/:id/payments", s.RecordPayment)
	v1.GET("/finances/:id/payments", s.ListFinancePayments)

	v1.GET("/installments", s.ListInstallments)
	v1.PATCH("/installments/:id", s.UpdateInstallmentStatus)
	v1.GET("/installments/overdue", s.ListOverdueInstallments)
	v1.GET("/installments/overdue/by-customer", s.ListOverdueByCustomer)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)
