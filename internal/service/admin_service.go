package service

import (
	"github.com/mkravets/safedesk/internal/domain"
	"github.com/mkravets/safedesk/internal/index"
	"github.com/mkravets/safedesk/internal/repository"
	"go.uber.org/zap"
)

// AdminService handles admin operations: corpus reloads and usage stats.
type AdminService struct {
	store        *index.Store
	interactions *repository.InteractionRepository
	logger       *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(store *index.Store, interactions *repository.InteractionRepository, logger *zap.Logger) *AdminService {
	return &AdminService{store: store, interactions: interactions, logger: logger}
}

// ReloadDocuments rebuilds the document index from disk.
func (s *AdminService) ReloadDocuments() (int, error) {
	if err := s.store.Reload(); err != nil {
		return 0, err
	}
	return s.store.DocumentCount(), nil
}

// DescribeDocuments lists the indexed source files.
func (s *AdminService) DescribeDocuments() string {
	return s.store.Describe()
}

// ListDocuments returns the indexed source file paths.
func (s *AdminService) ListDocuments() []string {
	return s.store.ListFiles()
}

// Stats aggregates usage statistics for the admin view.
func (s *AdminService) Stats() (*domain.AdminStats, error) {
	stats, err := s.interactions.Stats(5, 5, 5)
	if err != nil {
		return nil, err
	}
	stats.IndexedDocuments = s.store.DocumentCount()
	return stats, nil
}
