package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mkravets/safedesk/internal/service"
)

// Handler handles admin API requests
type Handler struct {
	adminService *service.AdminService
}

// NewHandler creates a new admin handler
func NewHandler(adminService *service.AdminService) *Handler {
	return &Handler{adminService: adminService}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/documents/reload", h.ReloadDocuments)
	r.GET("/documents", h.ListDocuments)
	r.GET("/stats", h.GetStats)
}

// ReloadDocuments rebuilds the index from the knowledge directory.
func (h *Handler) ReloadDocuments(c *gin.Context) {
	count, err := h.adminService.ReloadDocuments()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "documents reloaded", "documents": count})
}

// ListDocuments returns the indexed source files.
func (h *Handler) ListDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"documents":   h.adminService.ListDocuments(),
		"description": h.adminService.DescribeDocuments(),
	})
}

// GetStats returns usage statistics.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.adminService.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
