package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"github.com/vendorpay/expenseflow/internal/server/repository"
	"go.uber.org/zap"
)

type vendorRequest struct {
	Name         string              `json:"name" binding:"required"`
	Category     string              `json:"category"`
	Status       entity.VendorStatus `json:"status"`
	ContactEmail string              `json:"contact_email" binding:"omitempty,email"`
	ContactPhone string              `json:"contact_phone"`
}

func (s *Server) handleListVendors(c *gin.Context) {
	vendors, err := s.vendors.List()
	if err != nil {
		s.logger.Error("Failed to list vendors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list vendors"})
		return
	}
	c.JSON(http.StatusOK, vendors)
}

func (s *Server) handleGetVendor(c *gin.Context) {
	vendor, err := s.vendors.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load vendor"})
		return
	}
	c.JSON(http.StatusOK, vendor)
}

func (s *Server) handleCreateVendor(c *gin.Context) {
	var req vendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := req.Status
	if status == "" {
		status = entity.VendorActive
	}
	if !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vendor status"})
		return
	}

	now := time.Now().UTC()
	vendor := &entity.Vendor{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Category:     req.Category,
		Status:       status,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.vendors.Create(vendor); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "an active vendor with this name already exists"})
			return
		}
		s.logger.Error("Failed to create vendor", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create vendor"})
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func (s *Server) handleUpdateVendor(c *gin.Context) {
	vendor, err := s.vendors.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load vendor"})
		return
	}

	var req vendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vendor.Name = req.Name
	vendor.Category = req.Category
	if req.Status != "" {
		if !req.Status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vendor status"})
			return
		}
		vendor.Status = req.Status
	}
	vendor.ContactEmail = req.ContactEmail
	vendor.ContactPhone = req.ContactPhone
	vendor.UpdatedAt = time.Now().UTC()

	if err := s.vendors.Update(vendor); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "an active vendor with this name already exists"})
			return
		}
		s.logger.Error("Failed to update vendor", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update vendor"})
		return
	}
	c.JSON(http.StatusOK, vendor)
}

func (s *Server) handleDeleteVendor(c *gin.Context) {
	id := c.Param("id")

	count, err := s.invoices.CountByVendor(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check vendor usage"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "vendor has invoices and cannot be deleted"})
		return
	}

	if err := s.vendors.Delete(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
			return
		}
		s.logger.Error("Failed to delete vendor", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete vendor"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "vendor deleted"})
}
