// Package api exposes the ledger, applications and reference data over HTTP.
package api

import (
	"context"
	"time"

	"acquisition-ledger/internal/application"
	"acquisition-ledger/internal/common/config"
	httpx "acquisition-ledger/internal/common/http"
	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/common/observability"
	"acquisition-ledger/internal/ledger"
	"acquisition-ledger/internal/models"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	serviceName    = "M-PESA Acquisition Portal Backend"
	serviceVersion = "1.0.0"
)

type Ledger interface {
	CreateTransaction(ctx context.Context, req ledger.CreateRequest) (*models.Transaction, error)
	ReverseTransaction(ctx context.Context, req ledger.ReverseRequest) (*ledger.ReversalResult, error)
	History(ctx context.Context, accountNumber string) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)
}

type Applications interface {
	Submit(ctx context.Context, req application.SubmitRequest) (*models.Application, error)
	Get(ctx context.Context, id int64) (*models.Application, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*models.Application, error)
	List(ctx context.Context) ([]models.Application, error)
}

type Reference interface {
	ListBanks(ctx context.Context) ([]models.Bank, error)
	GetBank(ctx context.Context, id int64) (*models.Bank, error)
	ListBranches(ctx context.Context, bankID int64) ([]models.Branch, error)
	GetBranch(ctx context.Context, id int64) (*models.Branch, error)
}

type Dependencies struct {
	Ledger       Ledger
	Applications Applications
	Reference    Reference
	// Observability is optional; without it requests are not metered.
	Observability *observability.Observability
}

type Server struct {
	app    *fiber.App
	deps   Dependencies
	logger logger.Logger
	now    func() time.Time
}

func NewServer(cfg config.ServerConfig, deps Dependencies, log logger.Logger) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               serviceName,
			DisableStartupMessage: true,
			ErrorHandler:          httpx.ErrorHandler,
		}),
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
		now:    time.Now,
	}

	s.app.Use(fiberrecover.New())
	s.app.Use(httpx.WithCORS(cfg.AllowedOrigins))
	s.app.Use(httpx.WithRequestLogging(s.logger))
	if deps.Observability != nil {
		s.app.Use(httpx.WithRequestMetrics(deps.Observability))
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/", s.root)

	api := s.app.Group("/api")
	api.Get("/health", s.health)

	api.Post("/transaction", s.createTransaction)
	api.Post("/reverse", s.reverseTransaction)
	api.Get("/transactions/:accountNumber", s.transactionHistory)
	api.Get("/transaction/:transactionId", s.getTransaction)

	api.Post("/applications/submit", s.submitApplication)
	api.Get("/applications", s.listApplications)
	api.Get("/applications/account/:accountNumber", s.getApplicationByAccount)
	api.Get("/applications/:id", s.getApplication)

	api.Get("/banks", s.listBanks)
	api.Get("/banks/:id", s.getBank)
	api.Get("/branches", s.listBranches)
	api.Get("/branches/:id", s.getBranch)
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", map[string]interface{}{"address": addr})
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) root(c *fiber.Ctx) error {
	return httpx.OK(c, fiber.Map{
		"service": serviceName,
		"status":  "Running",
		"version": serviceVersion,
		"endpoints": []string{
			"/api/health",
			"/api/banks",
			"/api/branches?bank_id={id}",
			"/api/applications/submit",
			"/api/transaction",
			"/api/reverse",
			"/api/transactions/{accountNumber}",
		},
	})
}

func (s *Server) health(c *fiber.Ctx) error {
	return httpx.OK(c, fiber.Map{
		"status":    "UP",
		"message":   "Backend is running successfully",
		"timestamp": s.now().UnixMilli(),
	})
}
