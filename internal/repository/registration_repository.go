package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/unireg-api/internal/models"
)

const registrationColumns = `id, registration_code, student_id, course_code, semester, enrolled_at, grade, status`

// RegistrationRepository handles persistence of registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const adjustCreditsQuery = `UPDATE persons SET total_credits = total_credits + $2, updated_at = $3 WHERE id = $1`

// Enroll inserts a registration, adds the course credits to the student's
// total and re-derives the course status from the post-insert active count.
// The three writes commit or roll back together, so a failed enrollment never
// leaves a registration row behind with stale credits or a stale status.
func (r *RegistrationRepository) Enroll(ctx context.Context, registration *models.Registration, course *models.Course) (models.CourseStatus, error) {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	if registration.Code == "" {
		registration.Code = models.RegistrationCode(registration.StudentID, registration.CourseCode)
	}
	if registration.EnrolledAt.IsZero() {
		registration.EnrolledAt = time.Now().UTC()
	}
	if registration.Status == "" {
		registration.Status = models.RegistrationStatusActive
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin enrollment: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()
	const query = `INSERT INTO registrations (id, registration_code, student_id, course_code, semester, enrolled_at, grade, status)
        VALUES (:id, :registration_code, :student_id, :course_code, :semester, :enrolled_at, :grade, :status)`
	if _, err := tx.NamedExecContext(ctx, query, registration); err != nil {
		return "", fmt.Errorf("create registration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, adjustCreditsQuery, registration.StudentID, course.Credits, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("adjust total credits: %w", err)
	}
	status, err := deriveCourseStatus(ctx, tx, course)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit enrollment: %w", err)
	}
	commit = true
	return status, nil
}

// Withdraw marks the registration dropped with a withdrawal grade, refunds
// the course credits and re-derives the course status, all in one
// transaction.
func (r *RegistrationRepository) Withdraw(ctx context.Context, registration *models.Registration, course *models.Course) (models.CourseStatus, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin withdrawal: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()
	const query = `UPDATE registrations SET status = $2, grade = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, registration.ID, models.RegistrationStatusDropped, models.GradeWithdrawal); err != nil {
		return "", fmt.Errorf("mark registration dropped: %w", err)
	}
	if _, err := tx.ExecContext(ctx, adjustCreditsQuery, registration.StudentID, -course.Credits, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("adjust total credits: %w", err)
	}
	status, err := deriveCourseStatus(ctx, tx, course)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit withdrawal: %w", err)
	}
	commit = true
	return status, nil
}

// deriveCourseStatus recomputes OPEN/FULL from the active count seen inside
// the transaction. CLOSED is sticky and is never rewritten here.
func deriveCourseStatus(ctx context.Context, tx *sqlx.Tx, course *models.Course) (models.CourseStatus, error) {
	if course.Status == models.CourseStatusClosed {
		return course.Status, nil
	}
	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM registrations WHERE course_code = $1 AND status = $2`, course.Code, models.RegistrationStatusActive); err != nil {
		return "", fmt.Errorf("count active registrations: %w", err)
	}
	next := models.CourseStatusOpen
	if count >= course.Capacity {
		next = models.CourseStatusFull
	}
	if next != course.Status {
		if _, err := tx.ExecContext(ctx, `UPDATE courses SET status = $2, updated_at = $3 WHERE code = $1`, course.Code, next, time.Now().UTC()); err != nil {
			return "", fmt.Errorf("update course status: %w", err)
		}
	}
	return next, nil
}

// FindActive returns the active registration for a student/course pair.
func (r *RegistrationRepository) FindActive(ctx context.Context, studentID, courseCode string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE student_id = $1 AND course_code = $2 AND status = $3 LIMIT 1`, registrationColumns)
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, studentID, courseCode, models.RegistrationStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active registration: %w", err)
	}
	return &registration, nil
}

// FindLatest returns the most recent registration for a student/course pair
// regardless of status.
func (r *RegistrationRepository) FindLatest(ctx context.Context, studentID, courseCode string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE student_id = $1 AND course_code = $2 ORDER BY enrolled_at DESC LIMIT 1`, registrationColumns)
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, studentID, courseCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find latest registration: %w", err)
	}
	return &registration, nil
}

// ExistsActive checks if an active registration exists for the pair.
func (r *RegistrationRepository) ExistsActive(ctx context.Context, studentID, courseCode string) (bool, error) {
	const query = `SELECT 1 FROM registrations WHERE student_id = $1 AND course_code = $2 AND status = $3 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, studentID, courseCode, models.RegistrationStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active registration: %w", err)
	}
	return true, nil
}

// ListByStudent returns a student's registrations in enrollment order.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	const query = `SELECT reg.id, reg.registration_code, reg.student_id, reg.course_code, reg.semester, reg.enrolled_at, reg.grade, reg.status,
        p.full_name AS student_name, c.name AS course_name, c.credits
        FROM registrations reg
        LEFT JOIN persons p ON p.id = reg.student_id
        LEFT JOIN courses c ON c.code = reg.course_code
        WHERE reg.student_id = $1
        ORDER BY reg.enrolled_at ASC`
	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, studentID); err != nil {
		return nil, fmt.Errorf("list registrations by student: %w", err)
	}
	return registrations, nil
}

// ListActiveByCourse returns the active roster of a course in enrollment order.
func (r *RegistrationRepository) ListActiveByCourse(ctx context.Context, courseCode string) ([]models.RegistrationDetail, error) {
	const query = `SELECT reg.id, reg.registration_code, reg.student_id, reg.course_code, reg.semester, reg.enrolled_at, reg.grade, reg.status,
        p.full_name AS student_name, c.name AS course_name, c.credits
        FROM registrations reg
        LEFT JOIN persons p ON p.id = reg.student_id
        LEFT JOIN courses c ON c.code = reg.course_code
        WHERE reg.course_code = $1 AND reg.status = $2
        ORDER BY reg.enrolled_at ASC`
	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, courseCode, models.RegistrationStatusActive); err != nil {
		return nil, fmt.Errorf("list active registrations by course: %w", err)
	}
	return registrations, nil
}

// CountActiveByCourse counts active registrations for a course.
func (r *RegistrationRepository) CountActiveByCourse(ctx context.Context, courseCode string) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE course_code = $1 AND status = $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, courseCode, models.RegistrationStatusActive); err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return total, nil
}

// HasCompleted reports whether the student holds any registration for the
// course whose grade is set and is not failing (F, I, W). An ungraded
// registration does not count as completion.
func (r *RegistrationRepository) HasCompleted(ctx context.Context, studentID, courseCode string) (bool, error) {
	const query = `SELECT 1 FROM registrations WHERE student_id = $1 AND course_code = $2 AND grade IS NOT NULL AND grade NOT IN ('F', 'I', 'W') LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, studentID, courseCode); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check completed prerequisite: %w", err)
	}
	return true, nil
}

// UpdateGrade sets the grade on a registration.
func (r *RegistrationRepository) UpdateGrade(ctx context.Context, id string, grade models.Grade) error {
	const query = `UPDATE registrations SET grade = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, grade); err != nil {
		return fmt.Errorf("update registration grade: %w", err)
	}
	return nil
}

// Counts returns total and active registration counts.
func (r *RegistrationRepository) Counts(ctx context.Context) (total, active int, err error) {
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM registrations`); err != nil {
		return 0, 0, fmt.Errorf("count registrations: %w", err)
	}
	if err := r.db.GetContext(ctx, &active, `SELECT COUNT(*) FROM registrations WHERE status = $1`, models.RegistrationStatusActive); err != nil {
		return 0, 0, fmt.Errorf("count active registrations: %w", err)
	}
	return total, active, nil
}
