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
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type mockStudentRepo struct {
	students    map[string]models.Student
	deactivated []string
	lastFilter  models.StudentFilter
}

func newMockStudentRepo() *mockStudentRepo {
	b1 := "b1"
	b2 := "b2"
	return &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", RegNo: "21CS001", Name: "Asha", DepartmentID: "d1", BatchID: &b1, Active: true},
		"s2": {ID: "s2", RegNo: "22EC001", Name: "Dev", DepartmentID: "d2", BatchID: &b2, Active: true},
	}}
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.lastFilter = filter
	var out []models.Student
	for _, s := range m.students {
		if len(filter.BatchIDs) > 0 && !containsString(filter.BatchIDs, deref(s.BatchID)) {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockStudentRepo) ExistsByRegNo(ctx context.Context, regNo string, excludeID string) (bool, error) {
	for id, s := range m.students {
		if s.RegNo == regNo && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = "generated"
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func newStudentService(repo *mockStudentRepo, cache *memoryCacheRepo) *StudentService {
	var cacheSvc *CacheService
	if cache != nil {
		cacheSvc = NewCacheService(cache, nil, 0, zap.NewNop(), true)
	}
	return NewStudentService(repo, newFakeBatchRepo(), cacheSvc, nil, zap.NewNop())
}

func strPtr(v string) *string { return &v }

func TestStudentServiceListScopesAdmins(t *testing.T) {
	repo := newMockStudentRepo()
	svc := newStudentService(repo, nil)

	students, pagination, err := svc.List(context.Background(), batchAdmin, models.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, repo.lastFilter.BatchIDs)
	require.Len(t, students, 1)
	assert.Equal(t, "21CS001", students[0].RegNo)
	assert.Equal(t, 20, pagination.PageSize)

	unassigned := &models.Principal{AdminID: "a9", Role: models.RoleAdmin}
	students, _, err = svc.List(context.Background(), unassigned, models.StudentFilter{})
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestStudentServiceCreate(t *testing.T) {
	repo := newMockStudentRepo()
	cache := newMemoryCacheRepo()
	cache.values["stats:abc"] = "cached"
	svc := newStudentService(repo, cache)

	student, err := svc.Create(context.Background(), batchAdmin, CreateStudentRequest{
		RegNo: " 21CS002 ", Name: "Bala", DepartmentID: "d1", BatchID: strPtr("b1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "21CS002", student.RegNo)
	assert.True(t, student.Active)
	assert.NotContains(t, cache.values, "stats:abc")
}

func TestStudentServiceCreateConflict(t *testing.T) {
	svc := newStudentService(newMockStudentRepo(), nil)

	_, err := svc.Create(context.Background(), superAdmin, CreateStudentRequest{RegNo: "21CS001", Name: "Dup", DepartmentID: "d1"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestStudentServiceCreateRejectsForeignBatch(t *testing.T) {
	svc := newStudentService(newMockStudentRepo(), nil)

	_, err := svc.Create(context.Background(), batchAdmin, CreateStudentRequest{
		RegNo: "22EC009", Name: "Esha", DepartmentID: "d2", BatchID: strPtr("b2"),
	})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(context.Background(), superAdmin, CreateStudentRequest{
		RegNo: "22EC009", Name: "Esha", DepartmentID: "d1", BatchID: strPtr("b2"),
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceGuestIsReadOnly(t *testing.T) {
	svc := newStudentService(newMockStudentRepo(), nil)
	guest := &models.Principal{AdminID: "g1", Role: models.RoleGuest}

	_, err := svc.Get(context.Background(), guest, "s2")
	require.NoError(t, err)

	err = svc.Deactivate(context.Background(), guest, "s2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := newMockStudentRepo()
	svc := newStudentService(repo, nil)

	updated, err := svc.Update(context.Background(), batchAdmin, "s1", UpdateStudentRequest{
		RegNo: "21CS001", Name: "Asha K", DepartmentID: "d1", BatchID: strPtr("b1"), Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha K", updated.Name)

	_, err = svc.Update(context.Background(), batchAdmin, "s1", UpdateStudentRequest{
		RegNo: "22EC001", Name: "Asha", DepartmentID: "d1", BatchID: strPtr("b1"), Active: true,
	})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Update(context.Background(), superAdmin, "missing", UpdateStudentRequest{RegNo: "X", Name: "Y", DepartmentID: "d1"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := newMockStudentRepo()
	svc := newStudentService(repo, nil)

	require.NoError(t, svc.Deactivate(context.Background(), batchAdmin, "s1"))
	assert.Equal(t, []string{"s1"}, repo.deactivated)
}
