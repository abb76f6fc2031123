package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mercaldo/pos-api/internal/application/auth"
	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/application/notify"
	"github.com/mercaldo/pos-api/internal/application/sales"
	"github.com/mercaldo/pos-api/internal/application/transfers"
	"github.com/mercaldo/pos-api/internal/application/usecase"
	"github.com/mercaldo/pos-api/internal/domain/event"
	"github.com/mercaldo/pos-api/internal/domain/repository"
	"github.com/mercaldo/pos-api/internal/infrastructure/memory"
	infrapdf "github.com/mercaldo/pos-api/internal/infrastructure/pdf"
	"github.com/mercaldo/pos-api/internal/infrastructure/postgres"
	httpRouter "github.com/mercaldo/pos-api/internal/interfaces/http"
	"github.com/mercaldo/pos-api/pkg/config"
	"github.com/mercaldo/pos-api/pkg/logger"
)

// repos agrupa los puertos de persistencia con su runner de transacciones.
type repos struct {
	stock    repository.StockRepository
	sale     repository.SaleRepository
	transfer repository.TransferRepository
	audit    repository.AuditRepository
	product  repository.ProductRepository
	branch   repository.BranchRepository
	user     repository.UserRepository

	ledgerTx   ledger.TxRunner
	saleTx     sales.TxRunner
	transferTx transfers.TxRunner
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()

	var r repos
	if cfg.DB.InMemory() {
		log.Warn().Msg("DB_MODE=memory: almacén en memoria, los datos no persisten")
		store := memory.NewStore()
		r = repos{
			stock:    store.Stock(),
			sale:     store.Sales(),
			transfer: store.Transfers(),
			audit:    store.Audit(),
			product:  store.Products(),
			branch:   store.Branches(),
			user:     store.Users(),

			ledgerTx:   store,
			saleTx:     store,
			transferTx: store,
		}
	} else {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()

		txRunner := postgres.NewTxRunner(pool)
		r = repos{
			stock:    postgres.NewStockRepository(pool),
			sale:     postgres.NewSaleRepository(pool),
			transfer: postgres.NewTransferRepository(pool),
			audit:    postgres.NewAuditRepository(pool),
			product:  postgres.NewProductRepository(pool),
			branch:   postgres.NewBranchRepository(pool),
			user:     postgres.NewUserRepository(pool),

			ledgerTx:   txRunner,
			saleTx:     txRunner,
			transferTx: txRunner,
		}
	}

	// Notificador in-process: entrega asíncrona, un fallo de suscriptor nunca
	// afecta la operación que originó el evento.
	notifier := notify.New(log)
	notifier.SubscribeAll(func(evt event.Event) {
		log.Debug().
			Str("type", evt.Type).
			Str("branch_id", evt.BranchID).
			Str("entity_id", evt.EntityID).
			Msg("evento de dominio")
	})
	notifier.Subscribe(event.TypeLowStockCrossed, func(evt event.Event) {
		log.Warn().
			Str("product_id", evt.ProductID).
			Str("branch_id", evt.BranchID).
			Msg("stock bajo: producto en o por debajo de su umbral")
	})

	stockLedger := ledger.NewStockLedger(r.ledgerTx, r.stock, r.product, notifier, log, ledger.RetryConfig{
		Attempts:   cfg.Ledger.RetryAttempts,
		BackoffMin: cfg.Ledger.BackoffMin(),
		BackoffMax: cfg.Ledger.BackoffMax(),
	})
	salesEngine := sales.NewEngine(r.saleTx, stockLedger, r.sale, r.product, r.branch, notifier, log)
	transferWorkflow := transfers.NewWorkflow(r.transferTx, stockLedger, r.transfer, r.branch, notifier, log)

	productUC := usecase.NewProductUseCase(r.product)
	branchUC := usecase.NewBranchUseCase(r.branch)
	authUC := auth.NewAuthUseCase(r.user, r.branch, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	receiptGen := infrapdf.NewMarotoReceiptGenerator()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Mercaldo POS API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:      authUC,
		ProductUC:   productUC,
		BranchUC:    branchUC,
		StockLedger: stockLedger,
		SalesEngine: salesEngine,
		Transfers:   transferWorkflow,
		Receipt:     receiptGen,
		StockRepo:   r.stock,
		AuditRepo:   r.audit,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
