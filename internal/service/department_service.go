package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type departmentRepository interface {
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id string) error
}

// DepartmentRequest is the payload for creating or updating a department.
type DepartmentRequest struct {
	Code string `json:"code" validate:"required,max=16"`
	Name string `json:"name" validate:"required,max=120"`
}

// DepartmentService manages departments.
type DepartmentService struct {
	repo      departmentRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs the department service.
func NewDepartmentService(repo departmentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns departments ordered by code.
func (s *DepartmentService) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, *models.Pagination, error) {
	departments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a department by ID.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "department", "load department")
	}
	return department, nil
}

// Create adds a department. Codes are stored upper-case and must be unique.
func (s *DepartmentService) Create(ctx context.Context, req DepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid department payload")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.ensureCodeFree(ctx, code, ""); err != nil {
		return nil, err
	}
	department := &models.Department{Code: code, Name: strings.TrimSpace(req.Name)}
	if err := s.repo.Create(ctx, department); err != nil {
		return nil, translateStoreError(err, "department", "create department")
	}
	return department, nil
}

// Update renames a department.
func (s *DepartmentService) Update(ctx context.Context, id string, req DepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid department payload")
	}
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "department", "load department")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.ensureCodeFree(ctx, code, id); err != nil {
		return nil, err
	}
	department.Code = code
	department.Name = strings.TrimSpace(req.Name)
	if err := s.repo.Update(ctx, department); err != nil {
		return nil, translateStoreError(err, "department", "update department")
	}
	// Department names are embedded in cached aggregates.
	s.cache.InvalidateStats(ctx)
	return department, nil
}

// Delete removes a department that no batch, student or admin references.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return translateStoreError(err, "department", "load department")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return translateStoreError(err, "department", "delete department")
	}
	return nil
}

func (s *DepartmentService) ensureCodeFree(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "department code already used")
	}
	return nil
}
