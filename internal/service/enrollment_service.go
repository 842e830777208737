package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type registrationStore interface {
	Enroll(ctx context.Context, registration *models.Registration, course *models.Course) (models.CourseStatus, error)
	Withdraw(ctx context.Context, registration *models.Registration, course *models.Course) (models.CourseStatus, error)
	FindActive(ctx context.Context, studentID, courseCode string) (*models.Registration, error)
	FindLatest(ctx context.Context, studentID, courseCode string) (*models.Registration, error)
	ExistsActive(ctx context.Context, studentID, courseCode string) (bool, error)
	HasCompleted(ctx context.Context, studentID, courseCode string) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error)
	ListActiveByCourse(ctx context.Context, courseCode string) ([]models.RegistrationDetail, error)
	UpdateGrade(ctx context.Context, id string, grade models.Grade) error
}

type courseReader interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	ListPrerequisites(ctx context.Context, courseCode string) ([]models.Prerequisite, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error)
}

type personReader interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RegisterRequest describes a course registration attempt.
type RegisterRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	CourseCode string `json:"course_code" validate:"required"`
	Semester   string `json:"semester" validate:"required"`
}

// AssignGradeRequest describes a grading request.
type AssignGradeRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	CourseCode string `json:"course_code" validate:"required"`
	Grade      string `json:"grade" validate:"required"`
}

// courseLocks serializes mutations per course code. Capacity checking is a
// check-then-act sequence, so registrations for the same course must not
// interleave.
type courseLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *courseLocks) acquire(code string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := l.locks[code]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[code] = lock
	}
	return lock
}

// EnrollmentService executes register, drop and grading operations against
// the registry, enforcing capacity, prerequisite and duplicate rules and the
// course status state machine.
type EnrollmentService struct {
	registrations registrationStore
	courses       courseReader
	persons       personReader
	cache         *CacheService
	validator     *validator.Validate
	logger        *zap.Logger
	locks         courseLocks
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(registrations registrationStore, courses courseReader, persons personReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{registrations: registrations, courses: courses, persons: persons, cache: cache, validator: validate, logger: logger}
}

// Register enrolls a student in a course for a semester. Preconditions are
// checked in a fixed order and the first failure wins.
func (s *EnrollmentService) Register(ctx context.Context, req RegisterRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	lock := s.locks.acquire(req.CourseCode)
	lock.Lock()
	defer lock.Unlock()

	student, err := s.persons.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can register for courses")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}

	course, err := s.courses.FindByCode(ctx, req.CourseCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if course.Status == models.CourseStatusClosed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "Course is closed for registration")
	}
	if course.Status == models.CourseStatusFull {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "Course is full")
	}

	enrolled, err := s.registrations.ExistsActive(ctx, req.StudentID, req.CourseCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "Already enrolled in this course")
	}

	prerequisites, err := s.courses.ListPrerequisites(ctx, req.CourseCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	for _, prereq := range prerequisites {
		completed, err := s.registrations.HasCompleted(ctx, req.StudentID, prereq.CourseCode)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate prerequisites")
		}
		if !completed {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "Prerequisite not met: "+prereq.Name)
		}
	}

	registration := &models.Registration{
		StudentID:  req.StudentID,
		CourseCode: req.CourseCode,
		Semester:   req.Semester,
		Status:     models.RegistrationStatusActive,
	}
	status, err := s.registrations.Enroll(ctx, registration, course)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	course.Status = status

	s.audit(ctx, req.StudentID, models.AuditActionRegister, req.CourseCode)
	s.invalidateReports(ctx, req.StudentID, req.CourseCode)
	return registration, nil
}

// Drop withdraws a student's active registration for a course. The
// registration record survives with a withdrawal grade.
func (s *EnrollmentService) Drop(ctx context.Context, studentID, courseCode string) (*models.Registration, error) {
	lock := s.locks.acquire(courseCode)
	lock.Lock()
	defer lock.Unlock()

	course, err := s.courses.FindByCode(ctx, courseCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	registration, err := s.registrations.FindActive(ctx, studentID, courseCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	status, err := s.registrations.Withdraw(ctx, registration, course)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop registration")
	}
	course.Status = status

	registration.Status = models.RegistrationStatusDropped
	withdrawal := models.GradeWithdrawal
	registration.Grade = &withdrawal

	s.audit(ctx, studentID, models.AuditActionDrop, courseCode)
	s.invalidateReports(ctx, studentID, courseCode)
	return registration, nil
}

// AssignGrade records a grade for a student's registration. The professor
// must carry the course on their teaching list.
func (s *EnrollmentService) AssignGrade(ctx context.Context, professorID string, req AssignGradeRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading payload")
	}
	grade := models.Grade(req.Grade)
	if !grade.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grade")
	}

	lock := s.locks.acquire(req.CourseCode)
	lock.Lock()
	defer lock.Unlock()

	professor, err := s.persons.FindByID(ctx, professorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	if !professor.IsProfessor() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only professors can assign grades")
	}

	teaching, err := s.courses.ListByInstructor(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teaching list")
	}
	authorized := false
	for _, course := range teaching {
		if course.Code == req.CourseCode {
			authorized = true
			break
		}
	}
	if !authorized {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Professor not authorized to grade this course")
	}

	registration, err := s.registrations.FindLatest(ctx, req.StudentID, req.CourseCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not enrolled in course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	if err := s.registrations.UpdateGrade(ctx, registration.ID, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign grade")
	}
	registration.Grade = &grade

	s.audit(ctx, professorID, models.AuditActionGradeAssign, registration.Code)
	s.invalidateReports(ctx, req.StudentID, req.CourseCode)
	return registration, nil
}

// ListByStudent returns a student's registrations in enrollment order.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	registrations, err := s.registrations.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return registrations, nil
}

// Roster returns the active roster of a course; only its instructor or a
// registrar may view it.
func (s *EnrollmentService) Roster(ctx context.Context, requesterID string, requesterRole models.Role, courseCode string) ([]models.RegistrationDetail, error) {
	course, err := s.courses.FindByCode(ctx, courseCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if requesterRole != models.RoleRegistrar {
		if course.InstructorID == nil || *course.InstructorID != requesterID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not the course instructor")
		}
	}
	roster, err := s.registrations.ListActiveByCourse(ctx, courseCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, nil
}

func (s *EnrollmentService) audit(ctx context.Context, actorID, action, resourceID string) {
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "registration",
		ResourceID: &resourceID,
	}
	if err := s.persons.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *EnrollmentService) invalidateReports(ctx context.Context, studentID, courseCode string) {
	if !s.cache.Enabled() {
		return
	}
	_ = s.cache.Invalidate(ctx, "report:student:"+studentID+"*")
	_ = s.cache.Invalidate(ctx, "report:course:"+courseCode+"*")
	_ = s.cache.Invalidate(ctx, "report:stats*")
}
