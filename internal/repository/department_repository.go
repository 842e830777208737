package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/unireg-api/internal/models"
)

// DepartmentRepository handles persistence of departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns all departments with their course counts.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.DepartmentDetail, error) {
	const query = `SELECT d.code, d.name, d.head, d.created_at, d.updated_at,
        COUNT(c.code) AS course_count
        FROM departments d
        LEFT JOIN courses c ON c.department_code = d.code
        GROUP BY d.code, d.name, d.head, d.created_at, d.updated_at
        ORDER BY d.code`
	var departments []models.DepartmentDetail
	if err := r.db.SelectContext(ctx, &departments, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindByCode returns a department by its code.
func (r *DepartmentRepository) FindByCode(ctx context.Context, code string) (*models.Department, error) {
	const query = `SELECT code, name, head, created_at, updated_at FROM departments WHERE code = $1 LIMIT 1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &department, nil
}

// Exists reports whether a department with the code is present.
func (r *DepartmentRepository) Exists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM departments WHERE code = $1 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check department exists: %w", err)
	}
	return true, nil
}

// Create persists a new department record.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	now := time.Now().UTC()
	if department.CreatedAt.IsZero() {
		department.CreatedAt = now
	}
	department.UpdatedAt = now
	const query = `INSERT INTO departments (code, name, head, created_at, updated_at) VALUES (:code, :name, :head, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// UpdateHead sets the department head.
func (r *DepartmentRepository) UpdateHead(ctx context.Context, code string, head *string) error {
	const query = `UPDATE departments SET head = $2, updated_at = $3 WHERE code = $1`
	if _, err := r.db.ExecContext(ctx, query, code, head, time.Now().UTC()); err != nil {
		return fmt.Errorf("update department head: %w", err)
	}
	return nil
}

// Count returns the number of departments.
func (r *DepartmentRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM departments`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count departments: %w", err)
	}
	return total, nil
}
