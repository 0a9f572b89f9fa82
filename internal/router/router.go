package router

import (
	"time"

	"oticapos/internal/config"
	"oticapos/internal/handler"
	"oticapos/internal/infra"
	"oticapos/internal/middleware"
	"oticapos/internal/repository"
	"oticapos/internal/service"
	"oticapos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, directoryCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	directory := infra.NewDirectoryClient(cfg.DirectoryURL, directoryCB)

	// ── Repositories ─────────────────────────────────────────────────────────
	sessionRepo := repository.NewCashSessionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	clientRepo := repository.NewLegacyClientRepository(db)
	stockMoveRepo := repository.NewStockMovementRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	debtSvc := service.NewDebtService(clientRepo, rdb)
	paymentSvc := service.NewPaymentService(paymentRepo, sessionRepo, orderRepo, debtSvc,
		cfg.GatewayMethods, cfg.OperationTimeout())
	settlementSvc := service.NewSettlementService(orderRepo, productRepo, stockMoveRepo,
		sessionRepo, paymentSvc, cfg.OperationTimeout())
	sessionSvc := service.NewCashSessionService(sessionRepo, directory, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	sessionH := handler.NewCashSessionHandler(sessionSvc, paymentSvc)
	paymentH := handler.NewPaymentHandler(paymentSvc, dispatcher)
	settlementH := handler.NewSettlementHandler(settlementSvc)
	clientH := handler.NewLegacyClientHandler(debtSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Gateway webhook — authenticated by the gateway's shared secret upstream
	// (reverse proxy), throttled here since it carries no JWT.
	r.POST("/v1/payments/gateway-callback", middleware.WebhookRateLimiter(), paymentH.GatewayCallback)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: cashier, supervisor, admin — declared per-endpoint
		sessions := v1.Group("/cash-sessions")
		{
			sessions.POST("", middleware.RequireRole("cashier", "supervisor", "admin"), sessionH.Open)
			sessions.POST("/close", middleware.RequireRole("cashier", "supervisor", "admin"), sessionH.Close)
			sessions.GET("/current", middleware.RequireRole("cashier", "supervisor", "admin"), sessionH.GetCurrent)
			sessions.GET("/history", middleware.RequireRole("supervisor", "admin"), sessionH.History)
			sessions.GET("/:id/payments", middleware.RequireRole("cashier", "supervisor", "admin"), sessionH.ListPayments)
			sessions.GET("/:id/reconcile", middleware.RequireRole("supervisor", "admin"), sessionH.Reconcile)
		}

		v1.POST("/payments", middleware.RequireRole("cashier", "supervisor", "admin"), paymentH.Record)
		v1.DELETE("/payments/:id", middleware.RequireRole("supervisor", "admin"), paymentH.Cancel)

		v1.POST("/orders/:id/settle", middleware.RequireRole("cashier", "supervisor", "admin"), settlementH.Settle)
		v1.POST("/orders/:id/reverse", middleware.RequireRole("supervisor", "admin"), settlementH.Reverse)

		clients := v1.Group("/legacy-clients")
		{
			clients.GET("/:id/debt", middleware.RequireRole("cashier", "supervisor", "admin"), clientH.GetBalance)
			clients.GET("/:id/debt/history", middleware.RequireRole("cashier", "supervisor", "admin"), clientH.History)
			clients.POST("/:id/status", middleware.RequireRole("admin"), clientH.ToggleStatus)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
