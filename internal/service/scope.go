package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type batchAssignmentChecker interface {
	IsAssigned(ctx context.Context, batchID, adminID string) (bool, error)
}

func requirePrincipal(principal *models.Principal) error {
	if principal == nil || principal.AdminID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	return nil
}

// authorizeBatchWrite allows SUPERADMIN everywhere and ADMIN on assigned batches only.
func authorizeBatchWrite(ctx context.Context, checker batchAssignmentChecker, principal *models.Principal, batchID string, logger *zap.Logger) error {
	if err := requirePrincipal(principal); err != nil {
		return err
	}
	if !principal.CanWrite() {
		return appErrors.Clone(appErrors.ErrForbidden, "read-only account")
	}
	if !principal.BatchScoped() {
		return nil
	}
	if batchID == "" {
		return appErrors.Clone(appErrors.ErrForbidden, "batch is not assigned to this admin")
	}
	return authorizeBatchRead(ctx, checker, principal, batchID, logger)
}

// authorizeBatchRead limits ADMIN principals to their assigned batches.
func authorizeBatchRead(ctx context.Context, checker batchAssignmentChecker, principal *models.Principal, batchID string, logger *zap.Logger) error {
	if err := requirePrincipal(principal); err != nil {
		return err
	}
	if !principal.BatchScoped() {
		return nil
	}
	assigned, err := checker.IsAssigned(ctx, batchID, principal.AdminID)
	if err != nil {
		logger.Error("failed to check batch assignment", zap.String("batch_id", batchID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check batch assignment")
	}
	if !assigned {
		return appErrors.Clone(appErrors.ErrForbidden, "batch is not assigned to this admin")
	}
	return nil
}
