package server

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"github.com/vendorpay/expenseflow/internal/server/repository"
	"go.uber.org/zap"
)

type invoiceRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Description string  `json:"description" binding:"required"`
	VendorID    string  `json:"vendor_id"`
	VendorName  string  `json:"vendor_name"`
}

type statusRequest struct {
	Status          entity.Status `json:"status" binding:"required"`
	RejectionReason string        `json:"rejection_reason"`
}

type bulkStatusRequest struct {
	InvoiceIDs      []string      `json:"invoice_ids" binding:"required,min=1"`
	Status          entity.Status `json:"status" binding:"required"`
	RejectionReason string        `json:"rejection_reason"`
}

// resolveVendor resolves a vendor reference by id or, failing that, by
// name against the active set.
func (s *Server) resolveVendor(vendorID, vendorName string) (*entity.Vendor, error) {
	if vendorID != "" {
		return s.vendors.GetByID(vendorID)
	}
	if vendorName != "" {
		return s.vendors.GetActiveByName(vendorName)
	}
	return nil, repository.ErrNotFound
}

func (s *Server) handleListInvoices(c *gin.Context) {
	filter := repository.ListFilter{
		Status:    entity.Status(c.Query("status")),
		Search:    c.Query("search"),
		FromDate:  c.Query("fromDate"),
		ToDate:    c.Query("toDate"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	// Employees see their own invoices; reviewers see everything
	if !currentRole(c).CanReview() {
		filter.OwnerID = currentUserID(c)
	}

	invoices, err := s.invoices.List(filter)
	if err != nil {
		s.logger.Error("Failed to list invoices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invoices"})
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	invoice, ok := s.visibleInvoice(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) handleCreateInvoice(c *gin.Context) {
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.VendorID == "" && req.VendorName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id or vendor_name is required"})
		return
	}

	vendor, err := s.resolveVendor(req.VendorID, req.VendorName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve vendor"})
		return
	}
	if vendor.Status != entity.VendorActive {
		c.JSON(http.StatusConflict, gin.H{"error": "vendor is inactive"})
		return
	}

	now := time.Now().UTC()
	invoice := &entity.Invoice{
		ID:          uuid.NewString(),
		Amount:      req.Amount,
		Description: req.Description,
		VendorID:    vendor.ID,
		VendorName:  vendor.Name,
		Status:      entity.StatusPending,
		OwnerID:     currentUserID(c),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.invoices.Create(tx, invoice); err != nil {
			return err
		}
		return s.activities.Append(tx, s.newActivity(c, invoice.ID, entity.ActionCreated, ""))
	})
	if err != nil {
		s.logger.Error("Failed to create invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create invoice"})
		return
	}

	created, err := s.invoices.GetByID(invoice.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoice"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateInvoice(c *gin.Context) {
	invoice, ok := s.visibleInvoice(c)
	if !ok {
		return
	}
	if invoice.OwnerID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may edit an invoice"})
		return
	}
	if !invoice.Editable() {
		c.JSON(http.StatusConflict, gin.H{"error": "only Pending invoices may be edited"})
		return
	}

	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.VendorID == "" && req.VendorName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id or vendor_name is required"})
		return
	}

	vendor, err := s.resolveVendor(req.VendorID, req.VendorName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve vendor"})
		return
	}

	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.invoices.UpdateFields(tx, invoice.ID, req.Amount, req.Description, vendor.ID, time.Now().UTC()); err != nil {
			return err
		}
		return s.activities.Append(tx, s.newActivity(c, invoice.ID, entity.ActionUpdated, ""))
	})
	if err != nil {
		s.logger.Error("Failed to update invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update invoice"})
		return
	}

	updated, err := s.invoices.GetByID(invoice.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoice"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != entity.StatusApproved && req.Status != entity.StatusRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be Approved or Rejected"})
		return
	}
	if req.Status == entity.StatusRejected && req.RejectionReason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rejection_reason is required when rejecting"})
		return
	}

	invoice, err := s.invoices.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoice"})
		return
	}
	if !invoice.Status.CanTransitionTo(req.Status) {
		c.JSON(http.StatusConflict, gin.H{"error": "invoice is not Pending"})
		return
	}

	action := entity.ActionApproved
	if req.Status == entity.StatusRejected {
		action = entity.ActionRejected
	}
	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.invoices.UpdateStatus(tx, invoice.ID, req.Status, req.RejectionReason, time.Now().UTC()); err != nil {
			return err
		}
		return s.activities.Append(tx, s.newActivity(c, invoice.ID, action, req.RejectionReason))
	})
	if err != nil {
		s.logger.Error("Failed to update status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}

	updated, err := s.invoices.GetByID(invoice.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoice"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleWithdraw(c *gin.Context) {
	invoice, ok := s.visibleInvoice(c)
	if !ok {
		return
	}
	if invoice.OwnerID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may withdraw an invoice"})
		return
	}
	if !invoice.Status.CanTransitionTo(entity.StatusWithdrawn) {
		c.JSON(http.StatusConflict, gin.H{"error": "invoice is not Pending"})
		return
	}

	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.invoices.UpdateStatus(tx, invoice.ID, entity.StatusWithdrawn, "", time.Now().UTC()); err != nil {
			return err
		}
		return s.activities.Append(tx, s.newActivity(c, invoice.ID, entity.ActionWithdrawn, ""))
	})
	if err != nil {
		s.logger.Error("Failed to withdraw invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to withdraw invoice"})
		return
	}

	updated, err := s.invoices.GetByID(invoice.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoice"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteInvoice(c *gin.Context) {
	invoice, ok := s.visibleInvoice(c)
	if !ok {
		return
	}
	if invoice.OwnerID != currentUserID(c) && !currentRole(c).CanReview() {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to delete this invoice"})
		return
	}
	if invoice.Status == entity.StatusApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "approved invoices cannot be deleted"})
		return
	}

	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.invoices.Delete(tx, invoice.ID); err != nil {
			return err
		}
		return s.activities.Append(tx, s.newActivity(c, invoice.ID, entity.ActionDeleted, ""))
	})
	if err != nil {
		s.logger.Error("Failed to delete invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete invoice"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "invoice deleted"})
}

func (s *Server) handleBulkStatus(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != entity.StatusApproved && req.Status != entity.StatusRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be Approved or Rejected"})
		return
	}
	if req.Status == entity.StatusRejected && req.RejectionReason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rejection_reason is required when rejecting"})
		return
	}

	action := entity.ActionApproved
	if req.Status == entity.StatusRejected {
		action = entity.ActionRejected
	}

	count := 0
	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		for _, id := range req.InvoiceIDs {
			invoice, err := s.invoices.GetByIDTx(tx, id)
			if errors.Is(err, repository.ErrNotFound) {
				continue // absent ids are skipped, not an error
			}
			if err != nil {
				return err
			}
			if !invoice.Status.CanTransitionTo(req.Status) {
				continue
			}
			if err := s.invoices.UpdateStatus(tx, id, req.Status, req.RejectionReason, time.Now().UTC()); err != nil {
				return err
			}
			if err := s.activities.Append(tx, s.newActivity(c, id, action, req.RejectionReason)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to bulk update status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to bulk update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "status updated", "count": count})
}

func (s *Server) handleListActivity(c *gin.Context) {
	id := c.Param("id")
	// Employees may only read the trail of invoices they can see
	if !currentRole(c).CanReview() {
		invoice, err := s.invoices.GetByID(id)
		if err != nil || invoice.OwnerID != currentUserID(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return
		}
	}

	activities, err := s.activities.ListByInvoice(id)
	if err != nil {
		s.logger.Error("Failed to list activity", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list activity"})
		return
	}
	c.JSON(http.StatusOK, activities)
}

// visibleInvoice loads the requested invoice and hides other owners'
// invoices from non-reviewers behind a 404.
func (s *Server) visibleInvoice(c *gin.Context) (*entity.Invoice, bool) {
	invoice, err := s.invoices.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoice"})
		return nil, false
	}
	if invoice.OwnerID != currentUserID(c) && !currentRole(c).CanReview() {
		c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		return nil, false
	}
	return invoice, true
}

func (s *Server) newActivity(c *gin.Context, invoiceID string, action entity.Action, metadata string) *entity.Activity {
	return &entity.Activity{
		ID:          uuid.NewString(),
		InvoiceID:   invoiceID,
		Action:      action,
		PerformedBy: currentUserID(c),
		Metadata:    metadata,
		Timestamp:   time.Now().UTC(),
	}
}
