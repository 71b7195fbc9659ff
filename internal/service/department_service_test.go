package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type mockDepartmentRepo struct {
	departments map[string]models.Department
	inUse       map[string]bool
}

func newMockDepartmentRepo() *mockDepartmentRepo {
	return &mockDepartmentRepo{
		departments: map[string]models.Department{"d1": {ID: "d1", Code: "CSE", Name: "Computer Science"}},
		inUse:       map[string]bool{"d1": true},
	}
}

func (m *mockDepartmentRepo) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error) {
	var out []models.Department
	for _, d := range m.departments {
		out = append(out, d)
	}
	return out, len(out), nil
}

func (m *mockDepartmentRepo) FindByID(ctx context.Context, id string) (*models.Department, error) {
	d, ok := m.departments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &d, nil
}

func (m *mockDepartmentRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	for id, d := range m.departments {
		if d.Code == code && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDepartmentRepo) Create(ctx context.Context, department *models.Department) error {
	department.ID = "d-new"
	m.departments[department.ID] = *department
	return nil
}

func (m *mockDepartmentRepo) Update(ctx context.Context, department *models.Department) error {
	m.departments[department.ID] = *department
	return nil
}

func (m *mockDepartmentRepo) Delete(ctx context.Context, id string) error {
	if m.inUse[id] {
		return repository.ErrReferenced
	}
	delete(m.departments, id)
	return nil
}

func TestDepartmentServiceCreateNormalizesCode(t *testing.T) {
	svc := NewDepartmentService(newMockDepartmentRepo(), nil, nil, zap.NewNop())

	department, err := svc.Create(context.Background(), DepartmentRequest{Code: " ece ", Name: "Electronics"})
	require.NoError(t, err)
	assert.Equal(t, "ECE", department.Code)

	_, err = svc.Create(context.Background(), DepartmentRequest{Code: "cse", Name: "Again"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestDepartmentServiceUpdateInvalidatesStats(t *testing.T) {
	cache := newMemoryCacheRepo()
	cache.values["stats:k"] = "cached"
	svc := NewDepartmentService(newMockDepartmentRepo(), NewCacheService(cache, nil, 0, zap.NewNop(), true), nil, zap.NewNop())

	department, err := svc.Update(context.Background(), "d1", DepartmentRequest{Code: "CSE", Name: "Computer Science & Engg"})
	require.NoError(t, err)
	assert.Equal(t, "Computer Science & Engg", department.Name)
	assert.NotContains(t, cache.values, "stats:k")
}

func TestDepartmentServiceDelete(t *testing.T) {
	repo := newMockDepartmentRepo()
	repo.departments["d2"] = models.Department{ID: "d2", Code: "MEC"}
	svc := NewDepartmentService(repo, nil, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "d1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	require.NoError(t, svc.Delete(context.Background(), "d2"))
	assert.NotContains(t, repo.departments, "d2")

	err = svc.Delete(context.Background(), "d2")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
