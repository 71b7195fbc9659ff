package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type batchRepository interface {
	batchAssignmentChecker
	List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error)
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	Create(ctx context.Context, batch *models.Batch) error
	Update(ctx context.Context, batch *models.Batch) error
	Delete(ctx context.Context, id string) error
	AdminIDs(ctx context.Context, batchID string) ([]string, error)
	SetAdmins(ctx context.Context, batchID string, adminIDs []string) error
	AssignedBatchIDs(ctx context.Context, adminID string) ([]string, error)
}

type batchAdminLookup interface {
	FindByID(ctx context.Context, id string) (*models.Admin, error)
}

type batchDepartmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

// BatchRequest is the payload for creating or updating a batch.
type BatchRequest struct {
	Name         string `json:"name" validate:"required,max=64"`
	Year         int    `json:"year" validate:"required,min=1900,max=2999"`
	DepartmentID string `json:"department_id" validate:"required"`
}

// AssignAdminsRequest replaces the admins managing a batch.
type AssignAdminsRequest struct {
	AdminIDs []string `json:"admin_ids" validate:"dive,required"`
}

// BatchService manages batches and their admin assignments.
type BatchService struct {
	repo        batchRepository
	roster      statsRosterRepository
	admins      batchAdminLookup
	departments batchDepartmentLookup
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewBatchService constructs the batch service.
func NewBatchService(repo batchRepository, roster statsRosterRepository, admins batchAdminLookup, departments batchDepartmentLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{repo: repo, roster: roster, admins: admins, departments: departments, cache: cache, validator: validate, logger: logger}
}

// List returns batches visible to the principal.
func (s *BatchService) List(ctx context.Context, principal *models.Principal, filter models.BatchFilter) ([]models.Batch, *models.Pagination, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, nil, err
	}
	if principal.BatchScoped() {
		filter.AdminID = principal.AdminID
	}
	batches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	return batches, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns the batch with its admins and the roster derived from active students.
func (s *BatchService) Get(ctx context.Context, principal *models.Principal, id string) (*models.BatchDetail, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "batch", "load batch")
	}
	if err := authorizeBatchRead(ctx, s.repo, principal, id, s.logger); err != nil {
		return nil, err
	}
	adminIDs, err := s.repo.AdminIDs(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch admins")
	}
	roster, err := s.roster.Roster(ctx, []string{id})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch roster")
	}
	if adminIDs == nil {
		adminIDs = []string{}
	}
	if roster == nil {
		roster = []models.RosterEntry{}
	}
	return &models.BatchDetail{Batch: *batch, AdminIDs: adminIDs, Roster: roster}, nil
}

// Create registers a new batch.
func (s *BatchService) Create(ctx context.Context, req BatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid batch payload")
	}
	if err := s.ensureDepartment(ctx, req.DepartmentID); err != nil {
		return nil, err
	}
	batch := &models.Batch{Name: strings.TrimSpace(req.Name), Year: req.Year, DepartmentID: req.DepartmentID}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, translateStoreError(err, "batch", "create batch")
	}
	return batch, nil
}

// Update renames or moves a batch.
func (s *BatchService) Update(ctx context.Context, id string, req BatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid batch payload")
	}
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "batch", "load batch")
	}
	if batch.DepartmentID != req.DepartmentID {
		if err := s.ensureDepartment(ctx, req.DepartmentID); err != nil {
			return nil, err
		}
	}
	batch.Name = strings.TrimSpace(req.Name)
	batch.Year = req.Year
	batch.DepartmentID = req.DepartmentID
	if err := s.repo.Update(ctx, batch); err != nil {
		return nil, translateStoreError(err, "batch", "update batch")
	}
	s.cache.InvalidateStats(ctx)
	return batch, nil
}

// Delete removes a batch without students or attendance.
func (s *BatchService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return translateStoreError(err, "batch", "load batch")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return translateStoreError(err, "batch", "delete batch")
	}
	s.cache.InvalidateStats(ctx)
	return nil
}

// SetAdmins replaces the batch assignment. Only active ADMIN accounts can be assigned.
func (s *BatchService) SetAdmins(ctx context.Context, id string, req AssignAdminsRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, translateStoreError(err, "batch", "load batch")
	}
	seen := make(map[string]struct{}, len(req.AdminIDs))
	ids := make([]string, 0, len(req.AdminIDs))
	for _, adminID := range req.AdminIDs {
		if _, dup := seen[adminID]; dup {
			continue
		}
		seen[adminID] = struct{}{}
		admin, err := s.admins.FindByID(ctx, adminID)
		if err != nil {
			return nil, translateStoreError(err, "admin "+adminID, "load admin")
		}
		if admin.Role != models.RoleAdmin || !admin.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "only active ADMIN accounts can be assigned to batches")
		}
		ids = append(ids, adminID)
	}
	if err := s.repo.SetAdmins(ctx, id, ids); err != nil {
		return nil, translateStoreError(err, "batch assignment", "assign admins")
	}
	s.logger.Info("batch admins updated", zap.String("batch_id", id), zap.Int("admins", len(ids)))
	return ids, nil
}

func (s *BatchService) ensureDepartment(ctx context.Context, id string) error {
	if _, err := s.departments.FindByID(ctx, id); err != nil {
		return translateStoreError(err, "department", "load department")
	}
	return nil
}
