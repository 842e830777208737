package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/unireg-api/internal/models"
)

// CourseRepository handles persistence of courses and their prerequisites.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c
LEFT JOIN departments d ON d.code = c.department_code
LEFT JOIN persons p ON p.id = c.instructor_id
LEFT JOIN registrations reg ON reg.course_code = c.code AND reg.status = 'ACTIVE'`
	var conditions []string
	var args []interface{}

	if filter.Keyword != "" {
		conditions = append(conditions, fmt.Sprintf("(c.name ILIKE $%d OR c.code ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Keyword+"%")
	}
	if filter.DepartmentCode != "" {
		conditions = append(conditions, fmt.Sprintf("c.department_code = $%d", len(args)+1))
		args = append(args, filter.DepartmentCode)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("c.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"code":    "c.code",
		"name":    "c.name",
		"credits": "c.credits",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	group := ` GROUP BY c.code, c.name, c.credits, c.department_code, c.capacity, c.semester, c.year, c.instructor_id, c.status, c.created_at, c.updated_at, d.name, p.full_name`
	query := fmt.Sprintf(`SELECT c.code, c.name, c.credits, c.department_code, c.capacity, c.semester, c.year, c.instructor_id, c.status, c.created_at, c.updated_at,
        d.name AS department_name, p.full_name AS instructor_name, COUNT(reg.id) AS enrolled_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause+group, orderBy, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := "SELECT COUNT(DISTINCT c.code) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByCode returns a course by its code.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	const query = `SELECT code, name, credits, department_code, capacity, semester, year, instructor_id, status, created_at, updated_at FROM courses WHERE code = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// FindDetailByCode returns a course with derived lookups and prerequisites.
func (r *CourseRepository) FindDetailByCode(ctx context.Context, code string) (*models.CourseDetail, error) {
	const query = `SELECT c.code, c.name, c.credits, c.department_code, c.capacity, c.semester, c.year, c.instructor_id, c.status, c.created_at, c.updated_at,
        d.name AS department_name, p.full_name AS instructor_name,
        (SELECT COUNT(*) FROM registrations reg WHERE reg.course_code = c.code AND reg.status = 'ACTIVE') AS enrolled_count
        FROM courses c
        LEFT JOIN departments d ON d.code = c.department_code
        LEFT JOIN persons p ON p.id = c.instructor_id
        WHERE c.code = $1`
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course detail: %w", err)
	}
	prereqs, err := r.ListPrerequisites(ctx, code)
	if err != nil {
		return nil, err
	}
	detail.Prerequisites = prereqs
	return &detail, nil
}

// ListAll returns every course without pagination, for snapshot export.
func (r *CourseRepository) ListAll(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT code, name, credits, department_code, capacity, semester, year, instructor_id, status, created_at, updated_at FROM courses ORDER BY code`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list all courses: %w", err)
	}
	return courses, nil
}

// Exists reports whether a course with the code is present.
func (r *CourseRepository) Exists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM courses WHERE code = $1 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course exists: %w", err)
	}
	return true, nil
}

// Create persists a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	if course.Status == "" {
		course.Status = models.CourseStatusOpen
	}
	const query = `INSERT INTO courses (code, name, credits, department_code, capacity, semester, year, instructor_id, status, created_at, updated_at)
        VALUES (:code, :name, :credits, :department_code, :capacity, :semester, :year, :instructor_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Delete removes a course and its prerequisite links.
func (r *CourseRepository) Delete(ctx context.Context, code string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_code = $1 OR prerequisite_code = $1`, code); err != nil {
		return fmt.Errorf("delete course prerequisites: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE code = $1`, code); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// UpdateStatus sets a course status.
func (r *CourseRepository) UpdateStatus(ctx context.Context, code string, status models.CourseStatus) error {
	const query = `UPDATE courses SET status = $2, updated_at = $3 WHERE code = $1`
	if _, err := r.db.ExecContext(ctx, query, code, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	return nil
}

// UpdateInstructor assigns the instructor in a single statement, keeping the
// professor's teaching list and the course's instructor field the same fact.
func (r *CourseRepository) UpdateInstructor(ctx context.Context, code string, instructorID *string) error {
	const query = `UPDATE courses SET instructor_id = $2, updated_at = $3 WHERE code = $1`
	if _, err := r.db.ExecContext(ctx, query, code, instructorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course instructor: %w", err)
	}
	return nil
}

// AddPrerequisite links a prerequisite to a course.
func (r *CourseRepository) AddPrerequisite(ctx context.Context, courseCode, prerequisiteCode string) error {
	const query = `INSERT INTO course_prerequisites (course_code, prerequisite_code) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, courseCode, prerequisiteCode); err != nil {
		return fmt.Errorf("add prerequisite: %w", err)
	}
	return nil
}

// ListPrerequisites returns the prerequisites of a course in link order.
func (r *CourseRepository) ListPrerequisites(ctx context.Context, courseCode string) ([]models.Prerequisite, error) {
	const query = `SELECT cp.prerequisite_code, c.name
        FROM course_prerequisites cp
        JOIN courses c ON c.code = cp.prerequisite_code
        WHERE cp.course_code = $1
        ORDER BY cp.prerequisite_code`
	var prereqs []models.Prerequisite
	if err := r.db.SelectContext(ctx, &prereqs, query, courseCode); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return prereqs, nil
}

// ListByInstructor returns the professor's teaching list.
func (r *CourseRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error) {
	const query = `SELECT code, name, credits, department_code, capacity, semester, year, instructor_id, status, created_at, updated_at FROM courses WHERE instructor_id = $1 ORDER BY code`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, instructorID); err != nil {
		return nil, fmt.Errorf("list courses by instructor: %w", err)
	}
	return courses, nil
}

// Count returns the number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM courses`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}
