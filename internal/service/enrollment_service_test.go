package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type mockRegistrationStore struct {
	registrations []models.Registration
	credits       map[string]int
	nextID        int
	enrollErr     error
}

// Enroll mirrors the repository's all-or-nothing behavior: on an injected
// failure nothing is recorded.
func (m *mockRegistrationStore) Enroll(ctx context.Context, registration *models.Registration, course *models.Course) (models.CourseStatus, error) {
	if m.enrollErr != nil {
		return "", m.enrollErr
	}
	m.nextID++
	if registration.ID == "" {
		registration.ID = "reg-" + string(rune('0'+m.nextID))
	}
	if registration.Code == "" {
		registration.Code = models.RegistrationCode(registration.StudentID, registration.CourseCode)
	}
	if registration.Status == "" {
		registration.Status = models.RegistrationStatusActive
	}
	m.registrations = append(m.registrations, *registration)
	m.adjustCredits(registration.StudentID, course.Credits)
	return m.deriveStatus(course), nil
}

func (m *mockRegistrationStore) Withdraw(ctx context.Context, registration *models.Registration, course *models.Course) (models.CourseStatus, error) {
	for i := range m.registrations {
		if m.registrations[i].ID == registration.ID {
			m.registrations[i].Status = models.RegistrationStatusDropped
			w := models.GradeWithdrawal
			m.registrations[i].Grade = &w
			m.adjustCredits(registration.StudentID, -course.Credits)
			return m.deriveStatus(course), nil
		}
	}
	return "", sql.ErrNoRows
}

func (m *mockRegistrationStore) adjustCredits(studentID string, delta int) {
	if m.credits == nil {
		m.credits = make(map[string]int)
	}
	m.credits[studentID] += delta
}

func (m *mockRegistrationStore) deriveStatus(course *models.Course) models.CourseStatus {
	if course.Status == models.CourseStatusClosed {
		return course.Status
	}
	count := 0
	for _, reg := range m.registrations {
		if reg.CourseCode == course.Code && reg.Status == models.RegistrationStatusActive {
			count++
		}
	}
	if count >= course.Capacity {
		return models.CourseStatusFull
	}
	return models.CourseStatusOpen
}

func (m *mockRegistrationStore) FindActive(ctx context.Context, studentID, courseCode string) (*models.Registration, error) {
	for i := range m.registrations {
		reg := m.registrations[i]
		if reg.StudentID == studentID && reg.CourseCode == courseCode && reg.Status == models.RegistrationStatusActive {
			return &reg, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationStore) FindLatest(ctx context.Context, studentID, courseCode string) (*models.Registration, error) {
	for i := len(m.registrations) - 1; i >= 0; i-- {
		reg := m.registrations[i]
		if reg.StudentID == studentID && reg.CourseCode == courseCode {
			return &reg, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationStore) ExistsActive(ctx context.Context, studentID, courseCode string) (bool, error) {
	_, err := m.FindActive(ctx, studentID, courseCode)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (m *mockRegistrationStore) HasCompleted(ctx context.Context, studentID, courseCode string) (bool, error) {
	for _, reg := range m.registrations {
		if reg.StudentID == studentID && reg.CourseCode == courseCode && reg.Grade != nil && !reg.Grade.Failing() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRegistrationStore) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	var list []models.RegistrationDetail
	for _, reg := range m.registrations {
		if reg.StudentID == studentID {
			list = append(list, models.RegistrationDetail{Registration: reg})
		}
	}
	return list, nil
}

func (m *mockRegistrationStore) ListActiveByCourse(ctx context.Context, courseCode string) ([]models.RegistrationDetail, error) {
	var list []models.RegistrationDetail
	for _, reg := range m.registrations {
		if reg.CourseCode == courseCode && reg.Status == models.RegistrationStatusActive {
			list = append(list, models.RegistrationDetail{Registration: reg})
		}
	}
	return list, nil
}

func (m *mockRegistrationStore) UpdateGrade(ctx context.Context, id string, grade models.Grade) error {
	for i := range m.registrations {
		if m.registrations[i].ID == id {
			g := grade
			m.registrations[i].Grade = &g
			return nil
		}
	}
	return sql.ErrNoRows
}

type mockCourseReader struct {
	courses       map[string]*models.Course
	prerequisites map[string][]models.Prerequisite
	teaching      map[string][]models.Course
}

func (m *mockCourseReader) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	if course, ok := m.courses[code]; ok {
		return course, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseReader) ListPrerequisites(ctx context.Context, courseCode string) ([]models.Prerequisite, error) {
	return m.prerequisites[courseCode], nil
}

func (m *mockCourseReader) ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error) {
	return m.teaching[instructorID], nil
}

type mockPersonReader struct {
	persons map[string]*models.Person
	audits  []models.AuditLog
}

func (m *mockPersonReader) FindByID(ctx context.Context, id string) (*models.Person, error) {
	if person, ok := m.persons[id]; ok {
		return person, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPersonReader) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

func student(id string) *models.Person {
	return &models.Person{ID: id, FullName: "Student " + id, Role: models.RoleStudent, Active: true}
}

func professor(id string) *models.Person {
	return &models.Person{ID: id, FullName: "Prof " + id, Role: models.RoleProfessor, Active: true}
}

func newEnrollmentFixture(capacity int) (*EnrollmentService, *mockRegistrationStore, *mockCourseReader, *mockPersonReader) {
	registrations := &mockRegistrationStore{}
	courses := &mockCourseReader{
		courses: map[string]*models.Course{
			"CS101": {Code: "CS101", Name: "Intro to Computing", Credits: 3, Capacity: capacity, Status: models.CourseStatusOpen},
		},
		prerequisites: map[string][]models.Prerequisite{},
		teaching:      map[string][]models.Course{},
	}
	persons := &mockPersonReader{persons: map[string]*models.Person{
		"24BET10001": student("24BET10001"),
		"24BET10002": student("24BET10002"),
		"P001":       professor("P001"),
	}}
	svc := NewEnrollmentService(registrations, courses, persons, nil, validator.New(), zap.NewNop())
	return svc, registrations, courses, persons
}

func TestEnrollmentRegister(t *testing.T) {
	svc, registrations, courses, _ := newEnrollmentFixture(10)

	reg, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, "24BET10001_CS101", reg.Code)
	assert.Equal(t, models.RegistrationStatusActive, reg.Status)
	assert.Len(t, registrations.registrations, 1)
	assert.Equal(t, 3, registrations.credits["24BET10001"])
	assert.Equal(t, models.CourseStatusOpen, courses.courses["CS101"].Status)
}

func TestEnrollmentRegisterFillsCourse(t *testing.T) {
	svc, _, courses, _ := newEnrollmentFixture(1)

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusFull, courses.courses["CS101"].Status)

	_, err = svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10002", CourseCode: "CS101", Semester: "Fall"})
	require.Error(t, err)
	assert.Equal(t, "Course is full", appErrors.FromError(err).Message)
}

func TestEnrollmentRegisterFailedWriteLeavesNoRecord(t *testing.T) {
	svc, registrations, courses, _ := newEnrollmentFixture(1)
	registrations.enrollErr = errors.New("connection reset")

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.Error(t, err)

	// The failed enrollment leaves no registration behind and the course
	// still has its seat.
	assert.Empty(t, registrations.registrations)
	assert.Equal(t, 0, registrations.credits["24BET10001"])
	assert.Equal(t, models.CourseStatusOpen, courses.courses["CS101"].Status)

	registrations.enrollErr = nil
	_, err = svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10002", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusFull, courses.courses["CS101"].Status)

	_, err = svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.Error(t, err)
	assert.Equal(t, "Course is full", appErrors.FromError(err).Message)
	assert.Len(t, registrations.registrations, 1)
}

func TestEnrollmentRegisterClosedCourse(t *testing.T) {
	svc, _, courses, _ := newEnrollmentFixture(10)
	courses.courses["CS101"].Status = models.CourseStatusClosed

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.Error(t, err)
	assert.Equal(t, "Course is closed for registration", appErrors.FromError(err).Message)
}

func TestEnrollmentRegisterDuplicate(t *testing.T) {
	svc, _, _, _ := newEnrollmentFixture(10)

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "Already enrolled in this course", appErr.Message)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentRegisterPrerequisiteNotMet(t *testing.T) {
	svc, registrations, courses, _ := newEnrollmentFixture(10)
	courses.courses["CS201"] = &models.Course{Code: "CS201", Name: "Data Structures", Credits: 4, Capacity: 10, Status: models.CourseStatusOpen}
	courses.prerequisites["CS201"] = []models.Prerequisite{{CourseCode: "CS101", Name: "Intro to Computing"}}

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS201", Semester: "Fall"})
	require.Error(t, err)
	assert.Equal(t, "Prerequisite not met: Intro to Computing", appErrors.FromError(err).Message)

	// A failing or withdrawn grade still does not satisfy the prerequisite.
	f := models.GradeF
	registrations.registrations = append(registrations.registrations, models.Registration{
		ID: "old", StudentID: "24BET10001", CourseCode: "CS101", Status: models.RegistrationStatusDropped, Grade: &f,
	})
	_, err = svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS201", Semester: "Fall"})
	require.Error(t, err)

	passed := models.GradeBMinus
	registrations.registrations[0].Grade = &passed
	_, err = svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS201", Semester: "Fall"})
	require.NoError(t, err)
}

func TestEnrollmentDrop(t *testing.T) {
	svc, registrations, courses, _ := newEnrollmentFixture(1)

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)
	require.Equal(t, models.CourseStatusFull, courses.courses["CS101"].Status)

	reg, err := svc.Drop(context.Background(), "24BET10001", "CS101")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusDropped, reg.Status)
	require.NotNil(t, reg.Grade)
	assert.Equal(t, models.GradeWithdrawal, *reg.Grade)
	assert.Equal(t, 0, registrations.credits["24BET10001"])
	assert.Equal(t, models.CourseStatusOpen, courses.courses["CS101"].Status)
	assert.Equal(t, models.RegistrationStatusDropped, registrations.registrations[0].Status)
}

func TestEnrollmentDropNotEnrolled(t *testing.T) {
	svc, _, _, _ := newEnrollmentFixture(10)

	_, err := svc.Drop(context.Background(), "24BET10001", "CS101")
	require.Error(t, err)
	assert.Equal(t, "Not enrolled in this course", appErrors.FromError(err).Message)
}

func TestEnrollmentDropThenReregisterKeepsHistory(t *testing.T) {
	svc, registrations, _, _ := newEnrollmentFixture(10)

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)
	_, err = svc.Drop(context.Background(), "24BET10001", "CS101")
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Spring"})
	require.NoError(t, err)

	// Both the dropped and the new registration survive as distinct records.
	require.Len(t, registrations.registrations, 2)
	assert.NotEqual(t, registrations.registrations[0].ID, registrations.registrations[1].ID)
	assert.Equal(t, models.RegistrationStatusDropped, registrations.registrations[0].Status)
	assert.Equal(t, models.RegistrationStatusActive, registrations.registrations[1].Status)
}

func TestEnrollmentAssignGrade(t *testing.T) {
	svc, registrations, courses, _ := newEnrollmentFixture(10)
	courses.teaching["P001"] = []models.Course{*courses.courses["CS101"]}

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)

	reg, err := svc.AssignGrade(context.Background(), "P001", AssignGradeRequest{StudentID: "24BET10001", CourseCode: "CS101", Grade: "A"})
	require.NoError(t, err)
	require.NotNil(t, reg.Grade)
	assert.Equal(t, models.GradeA, *reg.Grade)
	require.NotNil(t, registrations.registrations[0].Grade)
	assert.Equal(t, models.GradeA, *registrations.registrations[0].Grade)
}

func TestEnrollmentAssignGradeUnauthorizedProfessor(t *testing.T) {
	svc, _, _, persons := newEnrollmentFixture(10)
	persons.persons["P002"] = professor("P002")

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)

	_, err = svc.AssignGrade(context.Background(), "P002", AssignGradeRequest{StudentID: "24BET10001", CourseCode: "CS101", Grade: "A"})
	require.Error(t, err)
	assert.Equal(t, "Professor not authorized to grade this course", appErrors.FromError(err).Message)
}

func TestEnrollmentAssignGradeUnknownGrade(t *testing.T) {
	svc, _, _, _ := newEnrollmentFixture(10)

	_, err := svc.AssignGrade(context.Background(), "P001", AssignGradeRequest{StudentID: "24BET10001", CourseCode: "CS101", Grade: "Z"})
	require.Error(t, err)
}

func TestEnrollmentAssignGradeStudentNotEnrolled(t *testing.T) {
	svc, _, courses, _ := newEnrollmentFixture(10)
	courses.teaching["P001"] = []models.Course{*courses.courses["CS101"]}

	_, err := svc.AssignGrade(context.Background(), "P001", AssignGradeRequest{StudentID: "24BET10001", CourseCode: "CS101", Grade: "A"})
	require.Error(t, err)
	assert.Equal(t, "Student not enrolled in course", appErrors.FromError(err).Message)
}

func TestEnrollmentRosterAccess(t *testing.T) {
	svc, _, courses, _ := newEnrollmentFixture(10)
	instructor := "P001"
	courses.courses["CS101"].InstructorID = &instructor

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)

	roster, err := svc.Roster(context.Background(), "P001", models.RoleProfessor, "CS101")
	require.NoError(t, err)
	assert.Len(t, roster, 1)

	_, err = svc.Roster(context.Background(), "P002", models.RoleProfessor, "CS101")
	require.Error(t, err)

	roster, err = svc.Roster(context.Background(), "R001", models.RoleRegistrar, "CS101")
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}

func TestEnrollmentDerivedStatusSequence(t *testing.T) {
	svc, _, courses, _ := newEnrollmentFixture(1)

	_, err := svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10001", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusFull, courses.courses["CS101"].Status)

	_, err = svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10002", CourseCode: "CS101", Semester: "Fall"})
	require.Error(t, err)

	_, err = svc.Drop(context.Background(), "24BET10001", "CS101")
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusOpen, courses.courses["CS101"].Status)

	_, err = svc.Register(context.Background(), RegisterRequest{StudentID: "24BET10002", CourseCode: "CS101", Semester: "Fall"})
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusFull, courses.courses["CS101"].Status)
}
