package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/export"
	"github.com/noah-isme/unireg-api/pkg/storage"
)

type reportPersonReader interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
	CountByRole(ctx context.Context, role models.Role) (int, error)
	UpdateGPA(ctx context.Context, id string, gpa float64) error
}

type reportCourseReader interface {
	FindDetailByCode(ctx context.Context, code string) (*models.CourseDetail, error)
	Count(ctx context.Context) (int, error)
}

type reportRegistrationReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error)
	ListActiveByCourse(ctx context.Context, courseCode string) ([]models.RegistrationDetail, error)
	Counts(ctx context.Context) (total, active int, err error)
}

type reportDepartmentReader interface {
	Count(ctx context.Context) (int, error)
}

// ReportService builds grade reports, enrollment reports and system
// statistics, caches them and exports them as CSV or PDF downloads.
type ReportService struct {
	persons       reportPersonReader
	courses       reportCourseReader
	registrations reportRegistrationReader
	departments   reportDepartmentReader
	cache         *CacheService
	cacheTTL      time.Duration
	csv           *export.CSVExporter
	pdf           *export.PDFExporter
	storage       *storage.LocalStorage
	signer        *storage.SignedURLSigner
	logger        *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(persons reportPersonReader, courses reportCourseReader, registrations reportRegistrationReader, departments reportDepartmentReader, cache *CacheService, cacheTTL time.Duration, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ReportService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		persons:       persons,
		courses:       courses,
		registrations: registrations,
		departments:   departments,
		cache:         cache,
		cacheTTL:      cacheTTL,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		storage:       store,
		signer:        signer,
		logger:        logger,
	}
}

// GradeReport assembles a student's full academic record. The computed GPA
// is written back onto the student row so directory listings stay current.
func (s *ReportService) GradeReport(ctx context.Context, studentID string) (*models.GradeReport, error) {
	cacheKey := "report:student:" + studentID
	var cached models.GradeReport
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	student, err := s.persons.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "person is not a student")
	}

	registrations, err := s.registrations.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registrations")
	}

	report := &models.GradeReport{
		StudentID:    student.ID,
		StudentName:  student.FullName,
		TotalCredits: student.TotalCredits,
	}
	if student.DepartmentCode != nil {
		report.Department = *student.DepartmentCode
	}

	var qualityPoints float64
	var gradedCredits int
	for _, reg := range registrations {
		grade := string(models.GradeNotGraded)
		if reg.Grade != nil {
			grade = string(*reg.Grade)
			if points, counted := models.GradePoints[*reg.Grade]; counted {
				qualityPoints += points * float64(reg.Credits)
				gradedCredits += reg.Credits
			}
		}
		report.Courses = append(report.Courses, models.GradeReportRow{
			CourseCode: reg.CourseCode,
			CourseName: reg.CourseName,
			Credits:    reg.Credits,
			Semester:   reg.Semester,
			Grade:      grade,
		})
	}
	if gradedCredits > 0 {
		report.GPA = math.Round(qualityPoints/float64(gradedCredits)*100) / 100
	}

	if err := s.persons.UpdateGPA(ctx, studentID, report.GPA); err != nil {
		s.logger.Warn("failed to cache gpa on student record", zap.Error(err))
	}

	s.cacheSet(ctx, cacheKey, report)
	return report, nil
}

// EnrollmentReport assembles a course roster summary.
func (s *ReportService) EnrollmentReport(ctx context.Context, courseCode string) (*models.EnrollmentReport, error) {
	cacheKey := "report:course:" + courseCode
	var cached models.EnrollmentReport
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	course, err := s.courses.FindDetailByCode(ctx, courseCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	roster, err := s.registrations.ListActiveByCourse(ctx, courseCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	report := &models.EnrollmentReport{
		CourseCode:     course.Code,
		CourseName:     course.Name,
		Capacity:       course.Capacity,
		Enrolled:       len(roster),
		AvailableSeats: course.Capacity - len(roster),
		Status:         course.Status,
	}
	if course.InstructorName != nil {
		report.Instructor = *course.InstructorName
	}
	for _, reg := range roster {
		grade := string(models.GradeNotGraded)
		if reg.Grade != nil {
			grade = string(*reg.Grade)
		}
		report.Students = append(report.Students, models.EnrollmentReportRow{
			StudentID:   reg.StudentID,
			StudentName: reg.StudentName,
			Grade:       grade,
		})
	}

	s.cacheSet(ctx, cacheKey, report)
	return report, nil
}

// Statistics aggregates system-wide counts.
func (s *ReportService) Statistics(ctx context.Context) (*models.SystemStatistics, error) {
	cacheKey := "report:stats"
	var cached models.SystemStatistics
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	stats := &models.SystemStatistics{}
	var err error
	if stats.TotalStudents, err = s.persons.CountByRole(ctx, models.RoleStudent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if stats.TotalProfessors, err = s.persons.CountByRole(ctx, models.RoleProfessor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count professors")
	}
	if stats.TotalCourses, err = s.courses.Count(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	if stats.TotalDepartments, err = s.departments.Count(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count departments")
	}
	total, active, err := s.registrations.Counts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}
	stats.TotalRegistrations = total
	stats.ActiveRegistrations = active

	s.cacheSet(ctx, cacheKey, stats)
	return stats, nil
}

// ExportGradeReport renders a student's grade report as CSV or PDF and
// stores it for signed-URL download.
func (s *ReportService) ExportGradeReport(ctx context.Context, studentID, format string) (*models.ExportInfo, error) {
	report, err := s.GradeReport(ctx, studentID)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Headers: []string{"Course Code", "Course Name", "Credits", "Semester", "Grade"},
	}
	for _, row := range report.Courses {
		table.Rows = append(table.Rows, []string{
			row.CourseCode, row.CourseName, strconv.Itoa(row.Credits), row.Semester, row.Grade,
		})
	}
	title := "Grade Report - " + report.StudentName
	subtitle := fmt.Sprintf("Student %s | GPA %.2f | %d credits", report.StudentID, report.GPA, report.TotalCredits)

	return s.export(table, title, subtitle, "grade_report_"+studentID, format)
}

// ExportEnrollmentReport renders a course roster as CSV or PDF and stores
// it for signed-URL download.
func (s *ReportService) ExportEnrollmentReport(ctx context.Context, courseCode, format string) (*models.ExportInfo, error) {
	report, err := s.EnrollmentReport(ctx, courseCode)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Headers: []string{"Student ID", "Student Name", "Grade"},
	}
	for _, row := range report.Students {
		table.Rows = append(table.Rows, []string{row.StudentID, row.StudentName, row.Grade})
	}
	title := "Enrollment Report - " + report.CourseName
	subtitle := fmt.Sprintf("Course %s | %d/%d enrolled | %s", report.CourseCode, report.Enrolled, report.Capacity, report.Status)

	return s.export(table, title, subtitle, "enrollment_report_"+courseCode, format)
}

// Download resolves a signed token to the stored export file.
func (s *ReportService) Download(token string) (string, []byte, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	data, err := s.storage.Read(relPath)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return relPath, data, nil
}

// StartCleanup periodically deletes expired export files until ctx is done.
func (s *ReportService) StartCleanup(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || s.storage == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.storage.CleanupOlderThan(ttl)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("removed expired exports", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func (s *ReportService) export(table export.Table, title, subtitle, baseName, format string) (*models.ExportInfo, error) {
	var data []byte
	var ext string
	var err error
	switch format {
	case "csv":
		ext = "csv"
		data, err = s.csv.Render(table)
	case "pdf":
		ext = "pdf"
		data, err = s.pdf.Render(table, title, subtitle)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	fileID := uuid.NewString()
	filename := fmt.Sprintf("%s_%s.%s", baseName, fileID, ext)
	if _, err := s.storage.Save(filename, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(fileID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	return &models.ExportInfo{
		FileID:    fileID,
		Filename:  filename,
		Format:    ext,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *ReportService) cacheSet(ctx context.Context, key string, value interface{}) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache report", zap.String("key", key), zap.Error(err))
	}
}
