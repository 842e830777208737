package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	FindDetailByCode(ctx context.Context, code string) (*models.CourseDetail, error)
	Exists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, code string) error
	UpdateStatus(ctx context.Context, code string, status models.CourseStatus) error
	UpdateInstructor(ctx context.Context, code string, instructorID *string) error
	AddPrerequisite(ctx context.Context, courseCode, prerequisiteCode string) error
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error)
}

type departmentChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

type courseRegistrationCounter interface {
	CountActiveByCourse(ctx context.Context, courseCode string) (int, error)
}

// CreateCourseRequest describes a new course offering.
type CreateCourseRequest struct {
	Code           string   `json:"code" validate:"required,uppercase"`
	Name           string   `json:"name" validate:"required"`
	Credits        int      `json:"credits" validate:"required,min=1,max=10"`
	DepartmentCode string   `json:"department_code" validate:"required"`
	Capacity       int      `json:"capacity" validate:"required,min=1"`
	Semester       string   `json:"semester" validate:"required"`
	Year           int      `json:"year" validate:"required,min=2000"`
	InstructorID   *string  `json:"instructor_id,omitempty"`
	Prerequisites  []string `json:"prerequisites,omitempty"`
}

// OverrideStatusRequest moves a course to an explicit status.
type OverrideStatusRequest struct {
	Status models.CourseStatus `json:"status" validate:"required,oneof=OPEN FULL CLOSED"`
}

// CourseService manages the course catalog: creation, prerequisites,
// instructor assignment and registrar status overrides.
type CourseService struct {
	courses       courseStore
	departments   departmentChecker
	persons       personReader
	registrations courseRegistrationCounter
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(courses courseStore, departments departmentChecker, persons personReader, registrations courseRegistrationCounter, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, departments: departments, persons: persons, registrations: registrations, validator: validate, logger: logger}
}

// Create adds a course to the catalog. Prerequisites must already exist.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	exists, err := s.courses.Exists(ctx, req.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}

	deptExists, err := s.departments.Exists(ctx, req.DepartmentCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department")
	}
	if !deptExists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
	}

	if req.InstructorID != nil {
		if err := s.requireProfessor(ctx, *req.InstructorID); err != nil {
			return nil, err
		}
	}

	for _, prereq := range req.Prerequisites {
		if prereq == req.Code {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a course cannot be its own prerequisite")
		}
		prereqExists, err := s.courses.Exists(ctx, prereq)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prerequisite")
		}
		if !prereqExists {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "prerequisite course not found: "+prereq)
		}
	}

	course := &models.Course{
		Code:           req.Code,
		Name:           req.Name,
		Credits:        req.Credits,
		DepartmentCode: req.DepartmentCode,
		Capacity:       req.Capacity,
		Semester:       req.Semester,
		Year:           req.Year,
		InstructorID:   req.InstructorID,
		Status:         models.CourseStatusOpen,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	for _, prereq := range req.Prerequisites {
		if err := s.courses.AddPrerequisite(ctx, course.Code, prereq); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link prerequisite")
		}
	}

	return course, nil
}

// Get returns a course with department, instructor, enrollment and
// prerequisite detail.
func (s *CourseService) Get(ctx context.Context, code string) (*models.CourseDetail, error) {
	detail, err := s.courses.FindDetailByCode(ctx, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return detail, nil
}

// List returns courses matching the filter along with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Delete removes a course from the catalog. Courses with active enrollments
// cannot be removed.
func (s *CourseService) Delete(ctx context.Context, actorID, code string) error {
	if _, err := s.courses.FindByCode(ctx, code); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	active, err := s.registrations.CountActiveByCourse(ctx, code)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollment")
	}
	if active > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "course has active enrollments")
	}

	if err := s.courses.Delete(ctx, code); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// AddPrerequisite links an existing course as a prerequisite.
func (s *CourseService) AddPrerequisite(ctx context.Context, courseCode, prerequisiteCode string) error {
	if courseCode == prerequisiteCode {
		return appErrors.Clone(appErrors.ErrValidation, "a course cannot be its own prerequisite")
	}
	for _, code := range []string{courseCode, prerequisiteCode} {
		exists, err := s.courses.Exists(ctx, code)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course")
		}
		if !exists {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found: "+code)
		}
	}
	if err := s.courses.AddPrerequisite(ctx, courseCode, prerequisiteCode); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link prerequisite")
	}
	return nil
}

// AssignInstructor sets the course instructor. The assignment is a single
// update, so the professor's teaching list can never disagree with the
// course record.
func (s *CourseService) AssignInstructor(ctx context.Context, courseCode string, instructorID *string) error {
	if _, err := s.courses.FindByCode(ctx, courseCode); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if instructorID != nil {
		if err := s.requireProfessor(ctx, *instructorID); err != nil {
			return err
		}
	}
	if err := s.courses.UpdateInstructor(ctx, courseCode, instructorID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign instructor")
	}
	return nil
}

// TeachingList returns the courses a professor currently teaches.
func (s *CourseService) TeachingList(ctx context.Context, professorID string) ([]models.Course, error) {
	if err := s.requireProfessor(ctx, professorID); err != nil {
		return nil, err
	}
	courses, err := s.courses.ListByInstructor(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teaching courses")
	}
	return courses, nil
}

// OverrideStatus moves a course to an explicit status regardless of the
// derived OPEN/FULL state. Overriding back from CLOSED re-derives the status
// from current enrollment, so a still-full course lands on FULL, not OPEN.
// A registrar who wants to stop enrollment with seats remaining uses CLOSED;
// a forced FULL would be rewritten by the next register or drop anyway.
func (s *CourseService) OverrideStatus(ctx context.Context, actorID, courseCode string, req OverrideStatusRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	course, err := s.courses.FindByCode(ctx, courseCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	next := req.Status
	if next != models.CourseStatusClosed {
		count, err := s.registrations.CountActiveByCourse(ctx, courseCode)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollment")
		}
		next = models.CourseStatusOpen
		if count >= course.Capacity {
			next = models.CourseStatusFull
		}
	}

	if next != course.Status {
		if err := s.courses.UpdateStatus(ctx, courseCode, next); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course status")
		}
	}

	values, _ := json.Marshal(map[string]models.CourseStatus{"from": course.Status, "to": next})
	if err := s.persons.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStatusOverride,
		Resource:   "course",
		ResourceID: &courseCode,
		NewValues:  values,
	}); err != nil {
		s.logger.Warn("failed to record status override audit log", zap.Error(err))
	}

	course.Status = next
	return course, nil
}

func (s *CourseService) requireProfessor(ctx context.Context, id string) error {
	person, err := s.persons.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	if !person.IsProfessor() {
		return appErrors.Clone(appErrors.ErrValidation, "person is not a professor")
	}
	return nil
}
