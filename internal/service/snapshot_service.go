package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/jobs"
	"github.com/noah-isme/unireg-api/pkg/storage"
)

// SnapshotFilename is the single JSON file the registry persists to.
const SnapshotFilename = "registry.json"

const snapshotJobType = "snapshot.write"

type snapshotPersonStore interface {
	ListAll(ctx context.Context) ([]models.Person, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, person *models.Person) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type snapshotCourseStore interface {
	ListAll(ctx context.Context) ([]models.Course, error)
	ListPrerequisites(ctx context.Context, courseCode string) ([]models.Prerequisite, error)
	Exists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	AddPrerequisite(ctx context.Context, courseCode, prerequisiteCode string) error
}

type snapshotDepartmentStore interface {
	List(ctx context.Context) ([]models.DepartmentDetail, error)
	Exists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, department *models.Department) error
}

// SnapshotService persists the registry to a JSON file and restores it.
// Writes go through a background queue so request handlers never block on
// disk. Registrations are not part of the snapshot; see models.Snapshot.
type SnapshotService struct {
	persons     snapshotPersonStore
	courses     snapshotCourseStore
	departments snapshotDepartmentStore
	storage     *storage.LocalStorage
	queue       *jobs.Queue
	logger      *zap.Logger
}

// NewSnapshotService constructs SnapshotService. Start must be called before
// Save can enqueue writes.
func NewSnapshotService(persons snapshotPersonStore, courses snapshotCourseStore, departments snapshotDepartmentStore, store *storage.LocalStorage, cfg jobs.QueueConfig, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SnapshotService{
		persons:     persons,
		courses:     courses,
		departments: departments,
		storage:     store,
		logger:      logger,
	}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("snapshot", s.handleWrite, cfg)
	return s
}

// Start launches the snapshot write workers.
func (s *SnapshotService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the snapshot write workers.
func (s *SnapshotService) Stop() {
	s.queue.Stop()
}

// Save captures the current registry state and enqueues the file write.
func (s *SnapshotService) Save(ctx context.Context, actorID string) (*models.Snapshot, error) {
	snapshot, err := s.capture(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode snapshot")
	}

	if err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    snapshotJobType,
		Payload: data,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue snapshot write")
	}

	if err := s.persons.CreateAuditLog(ctx, &models.AuditLog{
		UserID:   &actorID,
		Action:   models.AuditActionSnapshotSave,
		Resource: "snapshot",
	}); err != nil {
		s.logger.Warn("failed to record snapshot audit log", zap.Error(err))
	}

	return snapshot, nil
}

// Restore loads the snapshot file and inserts missing records in dependency
// order: departments first, then persons, then courses, then prerequisite
// links. Records already present are left untouched.
func (s *SnapshotService) Restore(ctx context.Context, actorID string) (*models.Snapshot, error) {
	data, err := s.storage.Read(SnapshotFilename)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no snapshot file found")
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode snapshot")
	}

	for code, dept := range snapshot.Departments {
		exists, err := s.departments.Exists(ctx, code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department")
		}
		if exists {
			continue
		}
		if err := s.departments.Create(ctx, &models.Department{Code: code, Name: dept.Name, Head: dept.Head}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore department")
		}
	}

	for id, student := range snapshot.Students {
		dept := student.Department
		year := student.AdmissionYear
		person := &models.Person{
			ID:             id,
			FullName:       student.Name,
			Email:          student.Email,
			PasswordHash:   student.PasswordHash,
			Role:           models.RoleStudent,
			DepartmentCode: &dept,
			AdmissionYear:  &year,
			Active:         true,
		}
		if err := s.restorePerson(ctx, person); err != nil {
			return nil, err
		}
	}
	for id, professor := range snapshot.Professors {
		dept := professor.Department
		spec := professor.Specialization
		person := &models.Person{
			ID:             id,
			FullName:       professor.Name,
			Email:          professor.Email,
			PasswordHash:   professor.PasswordHash,
			Role:           models.RoleProfessor,
			DepartmentCode: &dept,
			Specialization: &spec,
			Active:         true,
		}
		if err := s.restorePerson(ctx, person); err != nil {
			return nil, err
		}
	}
	for id, registrar := range snapshot.Registrars {
		person := &models.Person{
			ID:           id,
			FullName:     registrar.Name,
			Email:        registrar.Email,
			PasswordHash: registrar.PasswordHash,
			Role:         models.RoleRegistrar,
			Active:       true,
		}
		if err := s.restorePerson(ctx, person); err != nil {
			return nil, err
		}
	}

	for code, course := range snapshot.Courses {
		exists, err := s.courses.Exists(ctx, code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course")
		}
		if exists {
			continue
		}
		if err := s.courses.Create(ctx, &models.Course{
			Code:           code,
			Name:           course.Name,
			Credits:        course.Credits,
			DepartmentCode: course.Department,
			Capacity:       course.Capacity,
			Semester:       course.Semester,
			Year:           course.Year,
			InstructorID:   course.Instructor,
			Status:         models.CourseStatusOpen,
		}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore course")
		}
	}
	for code, course := range snapshot.Courses {
		for _, prereq := range course.Prerequisites {
			if err := s.courses.AddPrerequisite(ctx, code, prereq); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore prerequisite")
			}
		}
	}

	if err := s.persons.CreateAuditLog(ctx, &models.AuditLog{
		UserID:   &actorID,
		Action:   models.AuditActionSnapshotLoad,
		Resource: "snapshot",
	}); err != nil {
		s.logger.Warn("failed to record snapshot audit log", zap.Error(err))
	}

	return &snapshot, nil
}

func (s *SnapshotService) capture(ctx context.Context) (*models.Snapshot, error) {
	snapshot := &models.Snapshot{
		TakenAt:     time.Now().UTC(),
		Departments: make(map[string]models.SnapshotDepartment),
		Students:    make(map[string]models.SnapshotStudent),
		Professors:  make(map[string]models.SnapshotProfessor),
		Registrars:  make(map[string]models.SnapshotRegistrar),
		Courses:     make(map[string]models.SnapshotCourse),
	}

	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	for _, dept := range departments {
		snapshot.Departments[dept.Code] = models.SnapshotDepartment{Name: dept.Name, Head: dept.Head}
	}

	persons, err := s.persons.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list persons")
	}
	for _, person := range persons {
		switch person.Role {
		case models.RoleStudent:
			record := models.SnapshotStudent{
				Name:         person.FullName,
				Email:        person.Email,
				PasswordHash: person.PasswordHash,
			}
			if person.DepartmentCode != nil {
				record.Department = *person.DepartmentCode
			}
			if person.AdmissionYear != nil {
				record.AdmissionYear = *person.AdmissionYear
			}
			snapshot.Students[person.ID] = record
		case models.RoleProfessor:
			record := models.SnapshotProfessor{
				Name:         person.FullName,
				Email:        person.Email,
				PasswordHash: person.PasswordHash,
			}
			if person.DepartmentCode != nil {
				record.Department = *person.DepartmentCode
			}
			if person.Specialization != nil {
				record.Specialization = *person.Specialization
			}
			snapshot.Professors[person.ID] = record
		case models.RoleRegistrar:
			snapshot.Registrars[person.ID] = models.SnapshotRegistrar{
				Name:         person.FullName,
				Email:        person.Email,
				PasswordHash: person.PasswordHash,
			}
		}
	}

	courses, err := s.courses.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	for _, course := range courses {
		prereqs, err := s.courses.ListPrerequisites(ctx, course.Code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prerequisites")
		}
		record := models.SnapshotCourse{
			Name:       course.Name,
			Credits:    course.Credits,
			Department: course.DepartmentCode,
			Capacity:   course.Capacity,
			Semester:   course.Semester,
			Year:       course.Year,
			Instructor: course.InstructorID,
		}
		for _, prereq := range prereqs {
			record.Prerequisites = append(record.Prerequisites, prereq.CourseCode)
		}
		snapshot.Courses[course.Code] = record
	}

	return snapshot, nil
}

func (s *SnapshotService) restorePerson(ctx context.Context, person *models.Person) error {
	exists, err := s.persons.Exists(ctx, person.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check person")
	}
	if exists {
		return nil
	}
	if err := s.persons.Create(ctx, person); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore person")
	}
	return nil
}

func (s *SnapshotService) handleWrite(_ context.Context, job jobs.Job) error {
	data, ok := job.Payload.([]byte)
	if !ok {
		return appErrors.Clone(appErrors.ErrInternal, "unexpected snapshot payload")
	}
	path, err := s.storage.Save(SnapshotFilename, data)
	if err != nil {
		return err
	}
	s.logger.Info("snapshot written", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}
