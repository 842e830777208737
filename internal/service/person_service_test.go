package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type mockPersonStore struct {
	persons map[string]*models.Person
	audits  []models.AuditLog
}

func (m *mockPersonStore) FindByID(ctx context.Context, id string) (*models.Person, error) {
	if person, ok := m.persons[id]; ok {
		return person, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPersonStore) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	var list []models.Person
	for _, person := range m.persons {
		list = append(list, *person)
	}
	return list, len(list), nil
}

func (m *mockPersonStore) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := m.persons[id]
	return ok, nil
}

func (m *mockPersonStore) Create(ctx context.Context, person *models.Person) error {
	m.persons[person.ID] = person
	return nil
}

func (m *mockPersonStore) Delete(ctx context.Context, id string) error {
	delete(m.persons, id)
	return nil
}

func (m *mockPersonStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

type mockStudentRegistrations struct {
	byStudent map[string][]models.RegistrationDetail
}

func (m *mockStudentRegistrations) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	return m.byStudent[studentID], nil
}

func newPersonFixture() (*PersonService, *mockPersonStore, *mockStudentRegistrations) {
	persons := &mockPersonStore{persons: map[string]*models.Person{}}
	departments := &mockDepartmentChecker{codes: map[string]bool{"BET": true, "BAC": true}}
	registrations := &mockStudentRegistrations{byStudent: map[string][]models.RegistrationDetail{}}
	svc := NewPersonService(persons, departments, registrations, nil, zap.NewNop())
	return svc, persons, registrations
}

func TestCreateStudentDerivesFieldsFromID(t *testing.T) {
	svc, persons, _ := newPersonFixture()

	created, err := svc.CreateStudent(context.Background(), CreateStudentRequest{
		ID:       "24BET10001",
		FullName: "Ada Lovelace",
		Email:    "ada@example.edu",
		Password: "s3cret!",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, created.Role)
	require.NotNil(t, created.AdmissionYear)
	assert.Equal(t, 2024, *created.AdmissionYear)
	require.NotNil(t, created.DepartmentCode)
	assert.Equal(t, "BET", *created.DepartmentCode)
	assert.True(t, created.Active)

	stored := persons.persons["24BET10001"]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret!")))
}

func TestCreateStudentInvalidRegistrationNumber(t *testing.T) {
	svc, _, _ := newPersonFixture()

	_, err := svc.CreateStudent(context.Background(), CreateStudentRequest{
		ID:       "24XYZ10001",
		FullName: "Nobody",
		Email:    "nobody@example.edu",
		Password: "s3cret!",
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "Invalid department code 'XYZ'")
}

func TestCreateStudentUnknownDepartment(t *testing.T) {
	svc, _, _ := newPersonFixture()

	// BBA passes format validation but is not seeded in the directory.
	_, err := svc.CreateStudent(context.Background(), CreateStudentRequest{
		ID:       "24BBA10001",
		FullName: "Nobody",
		Email:    "nobody@example.edu",
		Password: "s3cret!",
	})
	require.Error(t, err)
	assert.Equal(t, "department not found: BBA", appErrors.FromError(err).Message)
}

func TestCreatePersonDuplicateID(t *testing.T) {
	svc, persons, _ := newPersonFixture()
	persons.persons["R001"] = &models.Person{ID: "R001", Role: models.RoleRegistrar}

	_, err := svc.CreateRegistrar(context.Background(), CreateRegistrarRequest{
		ID:       "R001",
		FullName: "Twice",
		Email:    "twice@example.edu",
		Password: "s3cret!",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "person id already exists", appErr.Message)
}

func TestCreateProfessor(t *testing.T) {
	svc, _, _ := newPersonFixture()

	created, err := svc.CreateProfessor(context.Background(), CreateProfessorRequest{
		ID:             "P001",
		FullName:       "Grace Hopper",
		Email:          "grace@example.edu",
		Password:       "s3cret!",
		DepartmentCode: "BAC",
		Specialization: "Compilers",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleProfessor, created.Role)
	require.NotNil(t, created.Specialization)
	assert.Equal(t, "Compilers", *created.Specialization)
}

func TestRemoveStudentWithActiveRegistrations(t *testing.T) {
	svc, persons, registrations := newPersonFixture()
	persons.persons["24BET10001"] = student("24BET10001")
	registrations.byStudent["24BET10001"] = []models.RegistrationDetail{
		{Registration: models.Registration{StudentID: "24BET10001", CourseCode: "CS101", Status: models.RegistrationStatusActive}},
	}

	err := svc.Remove(context.Background(), "R001", "24BET10001")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Equal(t, "student has active registrations", appErr.Message)
	assert.Contains(t, persons.persons, "24BET10001")
}

func TestRemoveStudentWithDroppedHistory(t *testing.T) {
	svc, persons, registrations := newPersonFixture()
	persons.persons["24BET10001"] = student("24BET10001")
	registrations.byStudent["24BET10001"] = []models.RegistrationDetail{
		{Registration: models.Registration{StudentID: "24BET10001", CourseCode: "CS101", Status: models.RegistrationStatusDropped}},
	}

	err := svc.Remove(context.Background(), "R001", "24BET10001")
	require.NoError(t, err)
	assert.NotContains(t, persons.persons, "24BET10001")
	require.Len(t, persons.audits, 1)
	assert.Equal(t, models.AuditActionPersonRemove, persons.audits[0].Action)
}

func TestRemoveUnknownPerson(t *testing.T) {
	svc, _, _ := newPersonFixture()

	err := svc.Remove(context.Background(), "R001", "ghost")
	require.Error(t, err)
	assert.Equal(t, "person not found", appErrors.FromError(err).Message)
}
