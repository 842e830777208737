package service

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type personStore interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, person *models.Person) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type studentRegistrationLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error)
}

// CreateStudentRequest describes a new student record. The id is the
// registration number and carries the admission year and department.
type CreateStudentRequest struct {
	ID       string `json:"id" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// CreateProfessorRequest describes a new professor record.
type CreateProfessorRequest struct {
	ID             string `json:"id" validate:"required"`
	FullName       string `json:"full_name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	DepartmentCode string `json:"department_code" validate:"required"`
	Specialization string `json:"specialization" validate:"required"`
}

// CreateRegistrarRequest describes a new registrar record.
type CreateRegistrarRequest struct {
	ID       string `json:"id" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// PersonService manages the person directory: students, professors and
// registrars.
type PersonService struct {
	persons       personStore
	departments   departmentChecker
	registrations studentRegistrationLister
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewPersonService constructs PersonService.
func NewPersonService(persons personStore, departments departmentChecker, registrations studentRegistrationLister, validate *validator.Validate, logger *zap.Logger) *PersonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonService{persons: persons, departments: departments, registrations: registrations, validator: validate, logger: logger}
}

// CreateStudent registers a new student. The registration number is fully
// validated and its year and department segments become the admission year
// and department of record.
func (s *PersonService) CreateStudent(ctx context.Context, req CreateStudentRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if err := ValidateRegistrationNumber(req.ID); err != nil {
		return nil, err
	}

	yearCode, _ := strconv.Atoi(req.ID[:2])
	admissionYear := 2000 + yearCode
	departmentCode := req.ID[2:5]

	deptExists, err := s.departments.Exists(ctx, departmentCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department")
	}
	if !deptExists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found: "+departmentCode)
	}

	person := &models.Person{
		ID:             req.ID,
		FullName:       req.FullName,
		Email:          req.Email,
		Role:           models.RoleStudent,
		DepartmentCode: &departmentCode,
		AdmissionYear:  &admissionYear,
		Active:         true,
	}
	return s.create(ctx, person, req.Password)
}

// CreateProfessor registers a new professor.
func (s *PersonService) CreateProfessor(ctx context.Context, req CreateProfessorRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid professor payload")
	}

	deptExists, err := s.departments.Exists(ctx, req.DepartmentCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department")
	}
	if !deptExists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found: "+req.DepartmentCode)
	}

	person := &models.Person{
		ID:             req.ID,
		FullName:       req.FullName,
		Email:          req.Email,
		Role:           models.RoleProfessor,
		DepartmentCode: &req.DepartmentCode,
		Specialization: &req.Specialization,
		Active:         true,
	}
	return s.create(ctx, person, req.Password)
}

// CreateRegistrar registers a new registrar.
func (s *PersonService) CreateRegistrar(ctx context.Context, req CreateRegistrarRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registrar payload")
	}

	person := &models.Person{
		ID:       req.ID,
		FullName: req.FullName,
		Email:    req.Email,
		Role:     models.RoleRegistrar,
		Active:   true,
	}
	return s.create(ctx, person, req.Password)
}

// Get returns a person by id.
func (s *PersonService) Get(ctx context.Context, id string) (*models.Person, error) {
	person, err := s.persons.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return person, nil
}

// List returns persons matching the filter along with pagination metadata.
func (s *PersonService) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, *models.Pagination, error) {
	persons, total, err := s.persons.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list persons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return persons, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Remove deletes a person from the directory. Students keep their enrollment
// history, so a student with active registrations cannot be removed.
func (s *PersonService) Remove(ctx context.Context, actorID, id string) error {
	person, err := s.persons.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}

	if person.IsStudent() {
		registrations, err := s.registrations.ListByStudent(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registrations")
		}
		for _, reg := range registrations {
			if reg.Status == models.RegistrationStatusActive {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "student has active registrations")
			}
		}
	}

	if err := s.persons.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete person")
	}

	if err := s.persons.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionPersonRemove,
		Resource:   "person",
		ResourceID: &id,
	}); err != nil {
		s.logger.Warn("failed to record person removal audit log", zap.Error(err))
	}
	return nil
}

func (s *PersonService) create(ctx context.Context, person *models.Person, password string) (*models.Person, error) {
	exists, err := s.persons.Exists(ctx, person.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check person id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "person id already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	person.PasswordHash = string(hash)

	if err := s.persons.Create(ctx, person); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create person")
	}
	return person, nil
}
