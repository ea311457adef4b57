package router

import (
	"time"

	"tillpos/internal/config"
	"tillpos/internal/handler"
	"tillpos/internal/middleware"
	"tillpos/internal/model"
	"tillpos/internal/repository"
	"tillpos/internal/service"
	"tillpos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, dispatcher *worker.Dispatcher) *gin.Engine {
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

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	registerRepo := repository.NewRegisterRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	registerSvc := service.NewRegisterService(registerRepo, dispatcher)

	tax := model.FlatTaxRate(decimal.NewFromFloat(cfg.TaxRatePct))
	ticketSvc := service.NewTicketService(ticketRepo, registerRepo, registerSvc, tax)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usersH := handler.NewUsersHandler(authSvc)
	registersH := handler.NewRegisterHandler(registerSvc, ticketSvc)
	ticketsH := handler.NewTicketHandler(ticketSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: cashier, supervisor, admin — declared per-endpoint
		registers := v1.Group("/registers")
		{
			registers.GET("", middleware.RequireRole("cashier", "supervisor", "admin"), registersH.List)
			registers.POST("", middleware.RequireRole("admin"), registersH.Create)
			registers.DELETE("/:id", middleware.RequireRole("admin"), registersH.Delete)

			registers.GET("/open", middleware.RequireRole("cashier", "supervisor", "admin"), registersH.OpenByBranch)
			registers.GET("/sessions", middleware.RequireRole("supervisor", "admin"), registersH.Sessions)

			registers.POST("/:id/open", middleware.RequireRole("cashier", "supervisor", "admin"), registersH.Open)
			registers.POST("/:id/close", middleware.RequireRole("cashier", "supervisor", "admin"), registersH.Close)
			registers.POST("/:id/suspend", middleware.RequireRole("supervisor", "admin"), registersH.Suspend)
			registers.POST("/:id/resume", middleware.RequireRole("supervisor", "admin"), registersH.Resume)
			registers.POST("/:id/withdrawals", middleware.RequireRole("supervisor", "admin"), registersH.Withdraw)
			registers.GET("/:id/report", middleware.RequireRole("cashier", "supervisor", "admin"), registersH.Report)
			registers.GET("/:id/tickets", middleware.RequireRole("cashier", "supervisor", "admin"), registersH.Tickets)
		}

		tickets := v1.Group("/tickets", middleware.RequireRole("cashier", "supervisor", "admin"))
		{
			tickets.POST("", ticketsH.Create)
			tickets.GET("/:id", ticketsH.Get)
			tickets.POST("/:id/lines", ticketsH.AddLine)
			tickets.DELETE("/:id/lines/:lineId", ticketsH.RemoveLine)
			tickets.PUT("/:id/lines/:lineId", ticketsH.UpdateLineQuantity)
			tickets.POST("/:id/discount", ticketsH.ApplyDiscount)
			tickets.POST("/:id/pay", ticketsH.Pay)
			tickets.POST("/:id/fail", ticketsH.Fail)
			tickets.POST("/:id/cancel", ticketsH.Cancel)
		}
		// Refunds reverse money already counted — supervisors only.
		v1.POST("/tickets/:id/refund", middleware.RequireRole("supervisor", "admin"), ticketsH.Refund)

		users := v1.Group("/users", middleware.RequireRole("admin"))
		{
			users.POST("", usersH.Create)
			users.GET("", usersH.List)
			users.PUT("/:id", usersH.Update)
			users.DELETE("/:id", usersH.Deactivate)
			users.PATCH("/:id/reactivate", usersH.Reactivate)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
