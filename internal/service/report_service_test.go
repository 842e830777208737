package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/pkg/storage"
)

type mockReportPersons struct {
	persons map[string]*models.Person
	gpas    map[string]float64
	counts  map[models.Role]int
}

func (m *mockReportPersons) FindByID(ctx context.Context, id string) (*models.Person, error) {
	if person, ok := m.persons[id]; ok {
		return person, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportPersons) CountByRole(ctx context.Context, role models.Role) (int, error) {
	return m.counts[role], nil
}

func (m *mockReportPersons) UpdateGPA(ctx context.Context, id string, gpa float64) error {
	if m.gpas == nil {
		m.gpas = make(map[string]float64)
	}
	m.gpas[id] = gpa
	return nil
}

type mockReportCourses struct {
	details map[string]*models.CourseDetail
	total   int
}

func (m *mockReportCourses) FindDetailByCode(ctx context.Context, code string) (*models.CourseDetail, error) {
	if detail, ok := m.details[code]; ok {
		return detail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportCourses) Count(ctx context.Context) (int, error) {
	return m.total, nil
}

type mockReportRegistrations struct {
	byStudent map[string][]models.RegistrationDetail
	byCourse  map[string][]models.RegistrationDetail
	total     int
	active    int
}

func (m *mockReportRegistrations) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	return m.byStudent[studentID], nil
}

func (m *mockReportRegistrations) ListActiveByCourse(ctx context.Context, courseCode string) ([]models.RegistrationDetail, error) {
	return m.byCourse[courseCode], nil
}

func (m *mockReportRegistrations) Counts(ctx context.Context) (int, int, error) {
	return m.total, m.active, nil
}

type mockReportDepartments struct{ total int }

func (m *mockReportDepartments) Count(ctx context.Context) (int, error) {
	return m.total, nil
}

func gradedRow(courseCode string, credits int, grade models.Grade) models.RegistrationDetail {
	return models.RegistrationDetail{
		Registration: models.Registration{
			StudentID:  "24BET10001",
			CourseCode: courseCode,
			Semester:   "Fall",
			Grade:      &grade,
			Status:     models.RegistrationStatusActive,
		},
		CourseName: courseCode + " name",
		Credits:    credits,
	}
}

func newReportFixture(t *testing.T, registrations *mockReportRegistrations) (*ReportService, *mockReportPersons) {
	t.Helper()
	dept := "BET"
	persons := &mockReportPersons{persons: map[string]*models.Person{
		"24BET10001": {ID: "24BET10001", FullName: "Ada Lovelace", Role: models.RoleStudent, DepartmentCode: &dept, TotalCredits: 7, Active: true},
	}}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewReportService(persons, &mockReportCourses{}, registrations, &mockReportDepartments{}, nil, time.Minute, store, signer, zap.NewNop())
	return svc, persons
}

func TestGradeReportGPA(t *testing.T) {
	registrations := &mockReportRegistrations{byStudent: map[string][]models.RegistrationDetail{
		"24BET10001": {
			gradedRow("CS101", 3, models.GradeA),
			gradedRow("MA101", 4, models.GradeB),
		},
	}}
	svc, persons := newReportFixture(t, registrations)

	report, err := svc.GradeReport(context.Background(), "24BET10001")
	require.NoError(t, err)
	// (3*4.0 + 4*3.0) / 7 = 3.4285..., rounded to 2 decimals.
	assert.Equal(t, 3.43, report.GPA)
	assert.Equal(t, 3.43, persons.gpas["24BET10001"])
	assert.Equal(t, "BET", report.Department)
	assert.Len(t, report.Courses, 2)
}

func TestGradeReportEmptyRecord(t *testing.T) {
	registrations := &mockReportRegistrations{byStudent: map[string][]models.RegistrationDetail{}}
	svc, _ := newReportFixture(t, registrations)

	report, err := svc.GradeReport(context.Background(), "24BET10001")
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.GPA)
	assert.Empty(t, report.Courses)
}

func TestGradeReportExcludesNonLetterGrades(t *testing.T) {
	ungraded := models.RegistrationDetail{
		Registration: models.Registration{StudentID: "24BET10001", CourseCode: "PH101", Semester: "Fall", Status: models.RegistrationStatusActive},
		CourseName:   "Physics",
		Credits:      3,
	}
	registrations := &mockReportRegistrations{byStudent: map[string][]models.RegistrationDetail{
		"24BET10001": {
			gradedRow("CS101", 3, models.GradeA),
			gradedRow("MA101", 4, models.GradeWithdrawal),
			gradedRow("EE101", 3, models.GradeIncomplete),
			gradedRow("CH101", 3, models.GradeNotGraded),
			ungraded,
		},
	}}
	svc, _ := newReportFixture(t, registrations)

	report, err := svc.GradeReport(context.Background(), "24BET10001")
	require.NoError(t, err)
	// Only the A counts; W, I, NG and ungraded rows carry no points.
	assert.Equal(t, 4.0, report.GPA)
	assert.Len(t, report.Courses, 5)
	assert.Equal(t, "NG", report.Courses[4].Grade)
}

func TestGradeReportUnknownStudent(t *testing.T) {
	svc, _ := newReportFixture(t, &mockReportRegistrations{})

	_, err := svc.GradeReport(context.Background(), "24BET19999")
	require.Error(t, err)
}

func TestStatistics(t *testing.T) {
	registrations := &mockReportRegistrations{total: 12, active: 9}
	dept := "BET"
	persons := &mockReportPersons{
		persons: map[string]*models.Person{"24BET10001": {ID: "24BET10001", Role: models.RoleStudent, DepartmentCode: &dept}},
		counts:  map[models.Role]int{models.RoleStudent: 40, models.RoleProfessor: 5},
	}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewReportService(persons, &mockReportCourses{total: 7}, registrations, &mockReportDepartments{total: 3}, nil, time.Minute, store, storage.NewSignedURLSigner("s", time.Hour), zap.NewNop())

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, stats.TotalStudents)
	assert.Equal(t, 5, stats.TotalProfessors)
	assert.Equal(t, 7, stats.TotalCourses)
	assert.Equal(t, 3, stats.TotalDepartments)
	assert.Equal(t, 12, stats.TotalRegistrations)
	assert.Equal(t, 9, stats.ActiveRegistrations)
}

func TestExportGradeReportCSVRoundTrip(t *testing.T) {
	registrations := &mockReportRegistrations{byStudent: map[string][]models.RegistrationDetail{
		"24BET10001": {gradedRow("CS101", 3, models.GradeA)},
	}}
	svc, _ := newReportFixture(t, registrations)

	info, err := svc.ExportGradeReport(context.Background(), "24BET10001", "csv")
	require.NoError(t, err)
	assert.Equal(t, "csv", info.Format)
	assert.NotEmpty(t, info.Token)

	filename, data, err := svc.Download(info.Token)
	require.NoError(t, err)
	assert.Equal(t, info.Filename, filename)
	assert.Contains(t, string(data), "CS101")
	assert.Contains(t, string(data), "Course Code")
}

func TestExportUnsupportedFormat(t *testing.T) {
	registrations := &mockReportRegistrations{byStudent: map[string][]models.RegistrationDetail{
		"24BET10001": {gradedRow("CS101", 3, models.GradeA)},
	}}
	svc, _ := newReportFixture(t, registrations)

	_, err := svc.ExportGradeReport(context.Background(), "24BET10001", "xml")
	require.Error(t, err)
}

func TestEnrollmentReportSeats(t *testing.T) {
	instructor := "Prof P001"
	courses := &mockReportCourses{details: map[string]*models.CourseDetail{
		"CS101": {
			Course:         models.Course{Code: "CS101", Name: "Intro to Computing", Capacity: 30, Status: models.CourseStatusOpen},
			InstructorName: &instructor,
		},
	}}
	registrations := &mockReportRegistrations{byCourse: map[string][]models.RegistrationDetail{
		"CS101": {gradedRow("CS101", 3, models.GradeA)},
	}}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewReportService(&mockReportPersons{}, courses, registrations, &mockReportDepartments{}, nil, time.Minute, store, storage.NewSignedURLSigner("s", time.Hour), zap.NewNop())

	report, err := svc.EnrollmentReport(context.Background(), "CS101")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Enrolled)
	assert.Equal(t, 29, report.AvailableSeats)
	assert.Equal(t, "Prof P001", report.Instructor)
	require.Len(t, report.Students, 1)
}
