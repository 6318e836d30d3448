// Package api exposes the ledger over HTTP. Every /api route authenticates a
// bearer token and acts only on that token's user.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Nate-Smithline/LedgerTerminal/internal/engine"
	"github.com/Nate-Smithline/LedgerTerminal/internal/ofx"
)

// Config wires the services behind the HTTP surface.
type Config struct {
	// Tokens maps bearer tokens to user ids.
	Tokens       map[string]string
	Orchestrator *engine.Orchestrator
	AutoSorter   *engine.AutoSorter
	Reviewer     *engine.Reviewer
	Ingester     *engine.Ingester
	Summaries    *engine.SummaryService
	Settings     *engine.Settings
	// Now returns the current time; the summary defaults to its year.
	Now func() time.Time
}

// Server is the HTTP API.
type Server struct {
	app          *fiber.App
	tokens       map[string]string
	orchestrator *engine.Orchestrator
	autoSorter   *engine.AutoSorter
	reviewer     *engine.Reviewer
	ingester     *engine.Ingester
	summaries    *engine.SummaryService
	settings     *engine.Settings
	ofx          *ofx.Parser
	now          func() time.Time
}

// New builds the server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		tokens:       cfg.Tokens,
		orchestrator: cfg.Orchestrator,
		autoSorter:   cfg.AutoSorter,
		reviewer:     cfg.Reviewer,
		ingester:     cfg.Ingester,
		summaries:    cfg.Summaries,
		settings:     cfg.Settings,
		ofx:          ofx.NewParser(),
		now:          cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "ledger",
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
		BodyLimit:             16 << 20,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(requestContext)
	s.app.Get("/healthz", s.health)

	api := s.app.Group("/api", s.authenticate)

	api.Get("/transactions", s.listTransactions)
	api.Post("/transactions", s.addTransaction)
	api.Post("/transactions/analyze", s.analyze)
	api.Post("/transactions/auto-sort", s.autoSort)
	api.Get("/auto-sort-rules", s.listAutoSortRules)
	api.Post("/transactions/upload", s.upload)
	api.Post("/transactions/upload/ofx", s.uploadOFX)
	api.Patch("/transactions/update", s.updateTransaction)
	api.Post("/transactions/update", s.updateTransaction)
	api.Get("/transactions/:id/similar", s.similarTransactions)

	api.Get("/deductions", s.listDeductions)
	api.Post("/deductions", s.createDeduction)
	api.Get("/tax-year-settings", s.getTaxYearSettings)
	api.Post("/tax-year-settings", s.saveTaxYearSettings)
	api.Get("/org-settings", s.getOrgSettings)
	api.Put("/org-settings", s.saveOrgSettings)
	api.Get("/tax-details/summary", s.taxSummary)
}

// App returns the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests,
// including open analysis streams, until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
