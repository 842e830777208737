package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

type departmentStore interface {
	List(ctx context.Context) ([]models.DepartmentDetail, error)
	FindByCode(ctx context.Context, code string) (*models.Department, error)
	Exists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, department *models.Department) error
	UpdateHead(ctx context.Context, code string, head *string) error
}

// CreateDepartmentRequest describes a new department.
type CreateDepartmentRequest struct {
	Code string  `json:"code" validate:"required,len=3,uppercase"`
	Name string  `json:"name" validate:"required"`
	Head *string `json:"head,omitempty"`
}

// DepartmentService manages the department catalog.
type DepartmentService struct {
	departments departmentStore
	persons     personReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDepartmentService constructs DepartmentService.
func NewDepartmentService(departments departmentStore, persons personReader, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{departments: departments, persons: persons, validator: validate, logger: logger}
}

// Create adds a department.
func (s *DepartmentService) Create(ctx context.Context, req CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}

	exists, err := s.departments.Exists(ctx, req.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "department code already exists")
	}

	department := &models.Department{
		Code: req.Code,
		Name: req.Name,
		Head: req.Head,
	}
	if err := s.departments.Create(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return department, nil
}

// Get returns a department by code.
func (s *DepartmentService) Get(ctx context.Context, code string) (*models.Department, error) {
	department, err := s.departments.FindByCode(ctx, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return department, nil
}

// List returns every department with its course count.
func (s *DepartmentService) List(ctx context.Context) ([]models.DepartmentDetail, error) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// AssignHead sets the department head to an existing professor.
func (s *DepartmentService) AssignHead(ctx context.Context, code string, head *string) error {
	exists, err := s.departments.Exists(ctx, code)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department")
	}
	if !exists {
		return appErrors.Clone(appErrors.ErrNotFound, "department not found")
	}

	if head != nil {
		person, err := s.persons.FindByID(ctx, *head)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "professor not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
		}
		if !person.IsProfessor() {
			return appErrors.Clone(appErrors.ErrValidation, "department head must be a professor")
		}
	}

	if err := s.departments.UpdateHead(ctx, code, head); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department head")
	}
	return nil
}
