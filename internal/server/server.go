// Package server is the authoritative REST backend: it enforces role
// authorization, status transition legality, and the append-only audit
// trail that the optimistic client reconciles against.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/vendorpay/expenseflow/internal/server/repository"
	"github.com/vendorpay/expenseflow/pkg/database"
	"go.uber.org/zap"
)

// Server wires the HTTP handlers to persistence and token issuance
type Server struct {
	db         *database.DB
	users      *repository.UserRepository
	vendors    *repository.VendorRepository
	invoices   *repository.InvoiceRepository
	activities *repository.ActivityRepository
	tokens     *TokenService
	logger     *zap.Logger
}

// New creates a server
func New(db *database.DB, tokens *TokenService, logger *zap.Logger) *Server {
	return &Server{
		db:         db,
		users:      repository.NewUserRepository(db.DB, logger),
		vendors:    repository.NewVendorRepository(db.DB, logger),
		invoices:   repository.NewInvoiceRepository(db.DB, logger),
		activities: repository.NewActivityRepository(db.DB, logger),
		tokens:     tokens,
		logger:     logger,
	}
}

// Router builds the gin engine with all routes mounted
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(s.logger))
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy", "service": "expenseflow"})
	})

	auth := router.Group("/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
	}

	api := router.Group("/", authRequired(s.tokens))
	{
		api.GET("/invoice", s.handleListInvoices)
		api.POST("/invoice", s.handleCreateInvoice)
		api.GET("/invoice/:id", s.handleGetInvoice)
		api.PUT("/invoice/:id", s.handleUpdateInvoice)
		api.DELETE("/invoice/:id", s.handleDeleteInvoice)
		api.GET("/invoice/:id/activity", s.handleListActivity)
		api.PATCH("/invoice/:id/status", reviewerOnly(), s.handleUpdateStatus)
		api.POST("/invoice/:id/withdraw", s.handleWithdraw)
		api.POST("/invoice/bulk-status", reviewerOnly(), s.handleBulkStatus)

		api.GET("/vendor", s.handleListVendors)
		api.GET("/vendor/:id", s.handleGetVendor)
		api.POST("/vendor", reviewerOnly(), s.handleCreateVendor)
		api.PUT("/vendor/:id", reviewerOnly(), s.handleUpdateVendor)
		api.DELETE("/vendor/:id", reviewerOnly(), s.handleDeleteVendor)
	}

	return router
}
