package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vaidashi/backoffice-api/internal/config"
	"github.com/vaidashi/backoffice-api/pkg/logger"
	"github.com/vaidashi/backoffice-api/pkg/middleware"
)

// Dependencies are the collaborators the HTTP layer serves. Optional ones
// may be nil.
type Dependencies struct {
	Orders          OrderService
	PurchaseOrders  PurchaseOrderService
	InventoryChecks InventoryCheckService
	SupportRequests SupportRequestService
	Variants        VariantService
	DeadLetters     DeadLetterService
	Health          HealthChecker

	Breaker         Breaker
	RateLimiter     *middleware.RateLimiterMiddleware
	Actor           *middleware.ActorMiddleware
	Metrics         http.Handler
	ObserveRequests middleware.RequestObserver
}

type Server struct {
	config     *config.Config
	logger     logger.Logger
	router     *mux.Router
	httpServer *http.Server
	deps       Dependencies
}

// NewServer creates a new API server with the given configuration and logger.
func NewServer(cfg *config.Config, deps Dependencies, logger logger.Logger) *Server {
	r := mux.NewRouter()

	server := &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		logger: logger,
		config: cfg,
		deps:   deps,
	}

	server.setupRoutes()
	return server
}

// Handler returns the routed handler with every middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps.RateLimiter != nil {
		s.deps.RateLimiter.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	// The actor must be known before logging and rate limiting run.
	if s.deps.Actor != nil {
		s.router.Use(s.deps.Actor.Middleware)
	}
	s.router.Use(middleware.RequestLogging(s.logger, s.deps.ObserveRequests))
	if s.deps.RateLimiter != nil {
		s.router.Use(s.deps.RateLimiter.Middleware)
	}

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	api.HandleFunc("/variants/{id}", s.getVariantHandler).Methods(http.MethodGet)

	api.HandleFunc("/orders", s.getOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.createOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.getOrderByIDHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/history", s.historyHandler(s.orderHistory)).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/status", s.statusHandler(s.updateOrderStatus)).Methods(http.MethodPatch)

	api.HandleFunc("/purchase-orders", s.getPurchaseOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/purchase-orders", s.createPurchaseOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/purchase-orders/{id}", s.getPurchaseOrderByIDHandler).Methods(http.MethodGet)
	api.HandleFunc("/purchase-orders/{id}/details", s.addPurchaseOrderDetailHandler).Methods(http.MethodPost)
	api.HandleFunc("/purchase-orders/{id}/details/{detailID}", s.updatePurchaseOrderDetailHandler).Methods(http.MethodPut)
	api.HandleFunc("/purchase-orders/{id}/details/{detailID}", s.deletePurchaseOrderDetailHandler).Methods(http.MethodDelete)
	api.HandleFunc("/purchase-orders/{id}/history", s.historyHandler(s.purchaseOrderHistory)).Methods(http.MethodGet)
	api.HandleFunc("/purchase-orders/{id}/status", s.statusHandler(s.updatePurchaseOrderStatus)).Methods(http.MethodPatch)

	api.HandleFunc("/inventory-checks", s.createInventoryCheckHandler).Methods(http.MethodPost)
	api.HandleFunc("/inventory-checks/{id}", s.getInventoryCheckByIDHandler).Methods(http.MethodGet)
	api.HandleFunc("/inventory-checks/{id}/details/{detailID}", s.updateInventoryCheckDetailHandler).Methods(http.MethodPut)
	api.HandleFunc("/inventory-checks/{id}/history", s.historyHandler(s.inventoryCheckHistory)).Methods(http.MethodGet)
	api.HandleFunc("/inventory-checks/{id}/status", s.statusHandler(s.updateInventoryCheckStatus)).Methods(http.MethodPatch)

	api.HandleFunc("/support-requests", s.getSupportRequestsHandler).Methods(http.MethodGet)
	api.HandleFunc("/support-requests", s.createSupportRequestHandler).Methods(http.MethodPost)
	api.HandleFunc("/support-requests/{id}", s.getSupportRequestByIDHandler).Methods(http.MethodGet)
	api.HandleFunc("/support-requests/{id}/history", s.historyHandler(s.supportRequestHistory)).Methods(http.MethodGet)
	api.HandleFunc("/support-requests/{id}/status", s.statusHandler(s.updateSupportRequestStatus)).Methods(http.MethodPatch)

	// Admin API for monitoring and management
	admin := s.router.PathPrefix("/api/v1/admin").Subrouter()
	admin.HandleFunc("/dead-letters", s.getDeadLettersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/dead-letters/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/dead-letters/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/circuit-breaker", s.getCircuitBreakerStatusHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
	admin.HandleFunc("/rate-limits", s.getRateLimitsHandler).Methods(http.MethodGet)
}
