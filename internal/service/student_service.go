package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByRegNo(ctx context.Context, regNo string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type studentBatchRepository interface {
	batchAssignmentChecker
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	AssignedBatchIDs(ctx context.Context, adminID string) ([]string, error)
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	RegNo        string  `json:"reg_no" validate:"required,max=32"`
	Name         string  `json:"name" validate:"required,max=120"`
	DepartmentID string  `json:"department_id" validate:"required"`
	BatchID      *string `json:"batch_id"`
	Email        string  `json:"email" validate:"omitempty,email"`
	Mobile       string  `json:"mobile" validate:"omitempty,max=20"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	RegNo        string  `json:"reg_no" validate:"required,max=32"`
	Name         string  `json:"name" validate:"required,max=120"`
	DepartmentID string  `json:"department_id" validate:"required"`
	BatchID      *string `json:"batch_id"`
	Email        string  `json:"email" validate:"omitempty,email"`
	Mobile       string  `json:"mobile" validate:"omitempty,max=20"`
	Active       bool    `json:"active"`
}

// StudentService handles student use-cases. Writes invalidate cached attendance statistics.
type StudentService struct {
	repo      studentRepository
	batches   studentBatchRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, batches studentBatchRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, batches: batches, cache: cache, validator: validate, logger: logger}
}

// List returns students and pagination metadata. ADMIN principals only see students of their batches.
func (s *StudentService) List(ctx context.Context, principal *models.Principal, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, nil, err
	}
	if principal.BatchScoped() {
		assigned, err := s.batches.AssignedBatchIDs(ctx, principal.AdminID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assigned batches")
		}
		if len(assigned) == 0 {
			return []models.Student{}, paginate(filter.Page, filter.PageSize, 0), nil
		}
		filter.BatchIDs = assigned
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a student visible to the principal.
func (s *StudentService) Get(ctx context.Context, principal *models.Principal, id string) (*models.Student, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "student", "load student")
	}
	if principal.BatchScoped() {
		if err := authorizeBatchRead(ctx, s.batches, principal, deref(student.BatchID), s.logger); err != nil {
			return nil, err
		}
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, principal *models.Principal, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	batchID := normalizeOptional(req.BatchID)
	if err := authorizeBatchWrite(ctx, s.batches, principal, deref(batchID), s.logger); err != nil {
		return nil, err
	}
	if err := s.ensureBatch(ctx, batchID, req.DepartmentID); err != nil {
		return nil, err
	}
	regNo := strings.TrimSpace(req.RegNo)
	exists, err := s.repo.ExistsByRegNo(ctx, regNo, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate reg no")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "reg no already used")
	}
	student := &models.Student{
		RegNo:        regNo,
		Name:         strings.TrimSpace(req.Name),
		DepartmentID: req.DepartmentID,
		BatchID:      batchID,
		Email:        req.Email,
		Mobile:       req.Mobile,
		Active:       true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, translateStoreError(err, "student", "create student")
	}
	s.cache.InvalidateStats(ctx)
	return student, nil
}

// Update modifies an existing student. ADMIN principals must manage both the
// current and the target batch.
func (s *StudentService) Update(ctx context.Context, principal *models.Principal, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "student", "load student")
	}
	batchID := normalizeOptional(req.BatchID)
	if err := authorizeBatchWrite(ctx, s.batches, principal, deref(student.BatchID), s.logger); err != nil {
		return nil, err
	}
	if deref(batchID) != deref(student.BatchID) {
		if err := authorizeBatchWrite(ctx, s.batches, principal, deref(batchID), s.logger); err != nil {
			return nil, err
		}
	}
	if err := s.ensureBatch(ctx, batchID, req.DepartmentID); err != nil {
		return nil, err
	}
	regNo := strings.TrimSpace(req.RegNo)
	exists, err := s.repo.ExistsByRegNo(ctx, regNo, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate reg no")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "reg no already used")
	}
	student.RegNo = regNo
	student.Name = strings.TrimSpace(req.Name)
	student.DepartmentID = req.DepartmentID
	student.BatchID = batchID
	student.Email = req.Email
	student.Mobile = req.Mobile
	student.Active = req.Active
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, translateStoreError(err, "student", "update student")
	}
	s.cache.InvalidateStats(ctx)
	return student, nil
}

// Deactivate marks student inactive. Inactive students leave the derived batch roster.
func (s *StudentService) Deactivate(ctx context.Context, principal *models.Principal, id string) error {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return translateStoreError(err, "student", "load student")
	}
	if err := authorizeBatchWrite(ctx, s.batches, principal, deref(student.BatchID), s.logger); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.cache.InvalidateStats(ctx)
	return nil
}

func (s *StudentService) ensureBatch(ctx context.Context, batchID *string, departmentID string) error {
	if batchID == nil {
		return nil
	}
	batch, err := s.batches.FindByID(ctx, *batchID)
	if err != nil {
		return translateStoreError(err, "batch", "load batch")
	}
	if batch.DepartmentID != departmentID {
		return appErrors.Clone(appErrors.ErrValidation, "batch belongs to another department")
	}
	return nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
