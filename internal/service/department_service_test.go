package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type mockDepartmentStore struct {
	departments map[string]*models.Department
}

func (m *mockDepartmentStore) List(ctx context.Context) ([]models.DepartmentDetail, error) {
	var list []models.DepartmentDetail
	for _, dept := range m.departments {
		list = append(list, models.DepartmentDetail{Department: *dept})
	}
	return list, nil
}

func (m *mockDepartmentStore) FindByCode(ctx context.Context, code string) (*models.Department, error) {
	if dept, ok := m.departments[code]; ok {
		return dept, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDepartmentStore) Exists(ctx context.Context, code string) (bool, error) {
	_, ok := m.departments[code]
	return ok, nil
}

func (m *mockDepartmentStore) Create(ctx context.Context, department *models.Department) error {
	m.departments[department.Code] = department
	return nil
}

func (m *mockDepartmentStore) UpdateHead(ctx context.Context, code string, head *string) error {
	if dept, ok := m.departments[code]; ok {
		dept.Head = head
		return nil
	}
	return sql.ErrNoRows
}

func newDepartmentFixture() (*DepartmentService, *mockDepartmentStore, *mockPersonReader) {
	departments := &mockDepartmentStore{departments: map[string]*models.Department{
		"BET": {Code: "BET", Name: "Engineering Technology"},
	}}
	persons := &mockPersonReader{persons: map[string]*models.Person{
		"P001":       professor("P001"),
		"24BET10001": student("24BET10001"),
	}}
	svc := NewDepartmentService(departments, persons, nil, zap.NewNop())
	return svc, departments, persons
}

func TestDepartmentCreate(t *testing.T) {
	svc, departments, _ := newDepartmentFixture()

	created, err := svc.Create(context.Background(), CreateDepartmentRequest{Code: "BAC", Name: "Accounting"})
	require.NoError(t, err)
	assert.Equal(t, "BAC", created.Code)
	assert.Contains(t, departments.departments, "BAC")
}

func TestDepartmentCreateDuplicate(t *testing.T) {
	svc, _, _ := newDepartmentFixture()

	_, err := svc.Create(context.Background(), CreateDepartmentRequest{Code: "BET", Name: "Again"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "department code already exists", appErr.Message)
}

func TestDepartmentCreateInvalidCode(t *testing.T) {
	svc, _, _ := newDepartmentFixture()

	_, err := svc.Create(context.Background(), CreateDepartmentRequest{Code: "toolong", Name: "Nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDepartmentAssignHead(t *testing.T) {
	svc, departments, _ := newDepartmentFixture()

	head := "P001"
	err := svc.AssignHead(context.Background(), "BET", &head)
	require.NoError(t, err)
	require.NotNil(t, departments.departments["BET"].Head)
	assert.Equal(t, "P001", *departments.departments["BET"].Head)
}

func TestDepartmentAssignHeadRejectsStudent(t *testing.T) {
	svc, _, _ := newDepartmentFixture()

	head := "24BET10001"
	err := svc.AssignHead(context.Background(), "BET", &head)
	require.Error(t, err)
	assert.Equal(t, "department head must be a professor", appErrors.FromError(err).Message)
}

func TestDepartmentGetNotFound(t *testing.T) {
	svc, _, _ := newDepartmentFixture()

	_, err := svc.Get(context.Background(), "ZZZ")
	require.Error(t, err)
	assert.Equal(t, "department not found", appErrors.FromError(err).Message)
}
