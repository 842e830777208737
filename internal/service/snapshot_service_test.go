package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/pkg/jobs"
	"github.com/noah-isme/unireg-api/pkg/storage"
)

type mockSnapshotPersons struct {
	persons map[string]*models.Person
	audits  []models.AuditLog
}

func (m *mockSnapshotPersons) ListAll(ctx context.Context) ([]models.Person, error) {
	var list []models.Person
	for _, person := range m.persons {
		list = append(list, *person)
	}
	return list, nil
}

func (m *mockSnapshotPersons) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := m.persons[id]
	return ok, nil
}

func (m *mockSnapshotPersons) Create(ctx context.Context, person *models.Person) error {
	m.persons[person.ID] = person
	return nil
}

func (m *mockSnapshotPersons) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

type mockSnapshotCourses struct {
	courses       map[string]*models.Course
	prerequisites map[string][]string
}

func (m *mockSnapshotCourses) ListAll(ctx context.Context) ([]models.Course, error) {
	var list []models.Course
	for _, course := range m.courses {
		list = append(list, *course)
	}
	return list, nil
}

func (m *mockSnapshotCourses) ListPrerequisites(ctx context.Context, courseCode string) ([]models.Prerequisite, error) {
	var list []models.Prerequisite
	for _, code := range m.prerequisites[courseCode] {
		list = append(list, models.Prerequisite{CourseCode: code})
	}
	return list, nil
}

func (m *mockSnapshotCourses) Exists(ctx context.Context, code string) (bool, error) {
	_, ok := m.courses[code]
	return ok, nil
}

func (m *mockSnapshotCourses) Create(ctx context.Context, course *models.Course) error {
	m.courses[course.Code] = course
	return nil
}

func (m *mockSnapshotCourses) AddPrerequisite(ctx context.Context, courseCode, prerequisiteCode string) error {
	m.prerequisites[courseCode] = append(m.prerequisites[courseCode], prerequisiteCode)
	return nil
}

type mockSnapshotDepartments struct {
	departments map[string]*models.Department
}

func (m *mockSnapshotDepartments) List(ctx context.Context) ([]models.DepartmentDetail, error) {
	var list []models.DepartmentDetail
	for _, dept := range m.departments {
		list = append(list, models.DepartmentDetail{Department: *dept})
	}
	return list, nil
}

func (m *mockSnapshotDepartments) Exists(ctx context.Context, code string) (bool, error) {
	_, ok := m.departments[code]
	return ok, nil
}

func (m *mockSnapshotDepartments) Create(ctx context.Context, department *models.Department) error {
	m.departments[department.Code] = department
	return nil
}

func newSnapshotFixture(t *testing.T, dir string) (*SnapshotService, *mockSnapshotPersons, *mockSnapshotCourses, *mockSnapshotDepartments) {
	t.Helper()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	persons := &mockSnapshotPersons{persons: map[string]*models.Person{}}
	courses := &mockSnapshotCourses{courses: map[string]*models.Course{}, prerequisites: map[string][]string{}}
	departments := &mockSnapshotDepartments{departments: map[string]*models.Department{}}
	svc := NewSnapshotService(persons, courses, departments, store, jobs.QueueConfig{Workers: 1, RetryDelay: 10 * time.Millisecond}, zap.NewNop())
	return svc, persons, courses, departments
}

func seedSnapshotFixture(persons *mockSnapshotPersons, courses *mockSnapshotCourses, departments *mockSnapshotDepartments) {
	dept := "BET"
	year := 2024
	spec := "Compilers"
	departments.departments["BET"] = &models.Department{Code: "BET", Name: "Engineering Technology"}
	persons.persons["24BET10001"] = &models.Person{ID: "24BET10001", FullName: "Ada Lovelace", Email: "ada@example.edu", PasswordHash: "hash-a", Role: models.RoleStudent, DepartmentCode: &dept, AdmissionYear: &year, Active: true}
	persons.persons["P001"] = &models.Person{ID: "P001", FullName: "Grace Hopper", Email: "grace@example.edu", PasswordHash: "hash-p", Role: models.RoleProfessor, DepartmentCode: &dept, Specialization: &spec, Active: true}
	persons.persons["R001"] = &models.Person{ID: "R001", FullName: "Rex Registrar", Email: "rex@example.edu", PasswordHash: "hash-r", Role: models.RoleRegistrar, Active: true}
	courses.courses["CS101"] = &models.Course{Code: "CS101", Name: "Intro to Computing", Credits: 3, DepartmentCode: "BET", Capacity: 30, Semester: "Fall", Year: 2024, Status: models.CourseStatusOpen}
	courses.courses["CS201"] = &models.Course{Code: "CS201", Name: "Data Structures", Credits: 4, DepartmentCode: "BET", Capacity: 30, Semester: "Spring", Year: 2025, Status: models.CourseStatusFull}
	courses.prerequisites["CS201"] = []string{"CS101"}
}

func TestSnapshotSaveWritesFile(t *testing.T) {
	dir := t.TempDir()
	svc, persons, courses, departments := newSnapshotFixture(t, dir)
	seedSnapshotFixture(persons, courses, departments)

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	snapshot, err := svc.Save(ctx, "R001")
	require.NoError(t, err)
	assert.Len(t, snapshot.Students, 1)
	assert.Len(t, snapshot.Professors, 1)
	assert.Len(t, snapshot.Registrars, 1)
	assert.Len(t, snapshot.Courses, 2)
	assert.Equal(t, []string{"CS101"}, snapshot.Courses["CS201"].Prerequisites)
	require.Len(t, persons.audits, 1)
	assert.Equal(t, models.AuditActionSnapshotSave, persons.audits[0].Action)

	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, err := store.Read(SnapshotFilename)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	data, err := store.Read(SnapshotFilename)
	require.NoError(t, err)
	var written models.Snapshot
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Contains(t, written.Students, "24BET10001")
}

func TestSnapshotRestore(t *testing.T) {
	dir := t.TempDir()
	source, persons, courses, departments := newSnapshotFixture(t, dir)
	seedSnapshotFixture(persons, courses, departments)

	ctx := context.Background()
	source.Start(ctx)
	_, err := source.Save(ctx, "R001")
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := store.Read(SnapshotFilename)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	source.Stop()

	target, targetPersons, targetCourses, targetDepartments := newSnapshotFixture(t, dir)
	restored, err := target.Restore(ctx, "R001")
	require.NoError(t, err)
	assert.Len(t, restored.Courses, 2)

	assert.Contains(t, targetDepartments.departments, "BET")
	assert.Contains(t, targetPersons.persons, "24BET10001")
	assert.Contains(t, targetPersons.persons, "P001")
	assert.Contains(t, targetPersons.persons, "R001")
	assert.Equal(t, "hash-a", targetPersons.persons["24BET10001"].PasswordHash)

	// Restored courses come back OPEN regardless of their saved status.
	require.Contains(t, targetCourses.courses, "CS201")
	assert.Equal(t, models.CourseStatusOpen, targetCourses.courses["CS201"].Status)
	assert.Equal(t, []string{"CS101"}, targetCourses.prerequisites["CS201"])
}

func TestSnapshotRestoreSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	source, persons, courses, departments := newSnapshotFixture(t, dir)
	seedSnapshotFixture(persons, courses, departments)

	ctx := context.Background()
	source.Start(ctx)
	_, err := source.Save(ctx, "R001")
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := store.Read(SnapshotFilename)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	source.Stop()

	target, targetPersons, _, _ := newSnapshotFixture(t, dir)
	existing := &models.Person{ID: "24BET10001", FullName: "Already Here", Role: models.RoleStudent}
	targetPersons.persons["24BET10001"] = existing

	_, err = target.Restore(ctx, "R001")
	require.NoError(t, err)
	assert.Equal(t, "Already Here", targetPersons.persons["24BET10001"].FullName)
}

func TestSnapshotRestoreMissingFile(t *testing.T) {
	svc, _, _, _ := newSnapshotFixture(t, t.TempDir())

	_, err := svc.Restore(context.Background(), "R001")
	require.Error(t, err)
}

func TestSnapshotSaveRequiresStartedQueue(t *testing.T) {
	svc, persons, courses, departments := newSnapshotFixture(t, t.TempDir())
	seedSnapshotFixture(persons, courses, departments)

	_, err := svc.Save(context.Background(), "R001")
	require.Error(t, err)
}
