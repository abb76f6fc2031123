package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mercaldo/pos-api/internal/application/auth"
	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/application/sales"
	"github.com/mercaldo/pos-api/internal/application/transfers"
	"github.com/mercaldo/pos-api/internal/application/usecase"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC      *auth.AuthUseCase
	ProductUC   *usecase.ProductUseCase
	BranchUC    *usecase.BranchUseCase
	StockLedger *ledger.StockLedger
	SalesEngine *sales.Engine
	Transfers   *transfers.Workflow
	Receipt     sales.ReceiptGenerator
	StockRepo   repository.StockRepository
	AuditRepo   repository.AuditRepository
	JWTSecret   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Operaciones de supervisión restringidas a admin y gerente
	elevated := RequireRole(entity.RoleAdmin, entity.RoleGerente)

	// Branches (protegido)
	branches := protected.Group("/branches")
	branchHandler := NewBranchHandler(deps.BranchUC)
	branches.Post("/", elevated, branchHandler.Create)
	branches.Get("/", branchHandler.List)
	branches.Get("/:id", branchHandler.GetByID)
	branches.Put("/:id", elevated, branchHandler.Update)

	// Products (protegido)
	products := protected.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC)
	products.Post("/", elevated, productHandler.Create)
	products.Get("/", productHandler.List)
	products.Get("/:id", productHandler.GetByID)
	products.Put("/:id", elevated, productHandler.Update)

	// Stock (protegido; el ajuste manual es operación de supervisión)
	stock := protected.Group("/stock")
	stockHandler := NewStockHandler(deps.StockLedger, deps.StockRepo)
	stock.Get("/branch/:branch_id", stockHandler.ListByBranch)
	stock.Get("/branch/:branch_id/low", stockHandler.ListLowStock)
	stock.Post("/adjust", elevated, stockHandler.ManualAdjust)

	// Sales (protegido)
	salesGroup := protected.Group("/sales")
	saleHandler := NewSaleHandler(deps.SalesEngine, deps.Receipt)
	salesGroup.Post("/", saleHandler.Create)
	salesGroup.Get("/", saleHandler.List)
	salesGroup.Get("/:id", saleHandler.GetByID)
	salesGroup.Get("/:id/receipt", saleHandler.Receipt)
	salesGroup.Post("/:id/reverse", elevated, saleHandler.Reverse)
	salesGroup.Post("/:id/payments", saleHandler.RecordPayment)

	// Transfers (protegido; aprobar, despachar y cancelar son de supervisión)
	transfersGroup := protected.Group("/transfers")
	transferHandler := NewTransferHandler(deps.Transfers)
	transfersGroup.Post("/", transferHandler.Create)
	transfersGroup.Get("/", transferHandler.List)
	transfersGroup.Get("/:id", transferHandler.GetByID)
	transfersGroup.Post("/:id/approve", elevated, transferHandler.Approve)
	transfersGroup.Post("/:id/pack", transferHandler.Pack)
	transfersGroup.Post("/:id/dispatch", elevated, transferHandler.Dispatch)
	transfersGroup.Post("/:id/receive", transferHandler.Receive)
	transfersGroup.Post("/:id/cancel", elevated, transferHandler.Cancel)

	// Audit (protegido, solo supervisión)
	audit := protected.Group("/audit", elevated)
	auditHandler := NewAuditHandler(deps.AuditRepo)
	audit.Get("/actor/:actor_id", auditHandler.ListByActor)
	audit.Get("/:entity_type/:entity_id", auditHandler.ListByEntity)
}
