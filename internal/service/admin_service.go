package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type adminRepository interface {
	List(ctx context.Context, filter models.AdminFilter) ([]models.Admin, int, error)
	FindByID(ctx context.Context, id string) (*models.Admin, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, admin *models.Admin) error
	Update(ctx context.Context, admin *models.Admin) error
	Deactivate(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateAdminRequest represents payload for creating accounts.
type CreateAdminRequest struct {
	Email        string           `json:"email" validate:"required,email"`
	FullName     string           `json:"full_name" validate:"required,max=120"`
	Role         models.AdminRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN GUEST"`
	DepartmentID *string          `json:"department_id"`
	Password     string           `json:"password" validate:"required,min=8"`
}

// UpdateAdminRequest payload for updating accounts.
type UpdateAdminRequest struct {
	Email        string           `json:"email" validate:"required,email"`
	FullName     string           `json:"full_name" validate:"required,max=120"`
	Role         models.AdminRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN GUEST"`
	DepartmentID *string          `json:"department_id"`
	Active       *bool            `json:"active"`
}

// AdminService handles account management. Only SUPERADMIN reaches it through the router.
type AdminService struct {
	repo      adminRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdminService creates an instance of AdminService.
func NewAdminService(repo adminRepository, validate *validator.Validate, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdminService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated accounts and pagination metadata.
func (s *AdminService) List(ctx context.Context, filter models.AdminFilter) ([]models.Admin, *models.Pagination, error) {
	admins, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admins")
	}
	return admins, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns an account by ID.
func (s *AdminService) Get(ctx context.Context, id string) (*models.Admin, error) {
	admin, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "admin", "load admin")
	}
	return admin, nil
}

// Create adds a new account.
func (s *AdminService) Create(ctx context.Context, req CreateAdminRequest, actorID string, meta models.LoginRequest) (*models.Admin, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid create admin payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	admin := &models.Admin{
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		DepartmentID: normalizeOptional(req.DepartmentID),
		Active:       true,
		PasswordHash: string(passwordHash),
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return nil, translateStoreError(err, "admin", "create admin")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"id": admin.ID, "email": admin.Email, "role": admin.Role})
	s.audit(ctx, models.AuditActionCreate, admin.ID, nil, newPayload, actorID, meta)
	return admin, nil
}

// Update modifies the account attributes.
func (s *AdminService) Update(ctx context.Context, id string, req UpdateAdminRequest, actorID string, meta models.LoginRequest) (*models.Admin, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update payload")
	}
	admin, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "admin", "load admin")
	}
	if id == actorID && (req.Role != admin.Role || (req.Active != nil && !*req.Active)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot change own role or deactivate own account")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureEmailFree(ctx, email, id); err != nil {
		return nil, err
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"email": admin.Email, "role": admin.Role, "active": admin.Active})

	admin.Email = email
	admin.FullName = strings.TrimSpace(req.FullName)
	admin.Role = req.Role
	admin.DepartmentID = normalizeOptional(req.DepartmentID)
	if req.Active != nil {
		admin.Active = *req.Active
	}
	if err := s.repo.Update(ctx, admin); err != nil {
		return nil, translateStoreError(err, "admin", "update admin")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"email": admin.Email, "role": admin.Role, "active": admin.Active})
	s.audit(ctx, models.AuditActionUpdate, admin.ID, oldPayload, newPayload, actorID, meta)
	return admin, nil
}

// Deactivate disables an account, drops its batch assignments and revokes its sessions.
func (s *AdminService) Deactivate(ctx context.Context, id string, actorID string, meta models.LoginRequest) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot deactivate own account")
	}
	admin, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return translateStoreError(err, "admin", "load admin")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate admin")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"active": admin.Active})
	s.audit(ctx, models.AuditActionDelete, admin.ID, oldPayload, []byte(`{"active":false}`), actorID, meta)
	return nil
}

func (s *AdminService) ensureEmailFree(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}
	return nil
}

func (s *AdminService) audit(ctx context.Context, action, resourceID string, oldValues, newValues []byte, actorID string, meta models.LoginRequest) {
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		AdminID:    actor,
		Action:     action,
		Resource:   "admins",
		ResourceID: &resourceID,
		OldValues:  models.AuditValues(oldValues),
		NewValues:  models.AuditValues(newValues),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record admin audit log", zap.String("action", action), zap.Error(err))
	}
}
