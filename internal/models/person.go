package models

import "time"

// Role represents the capability class of a person.
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleProfessor Role = "PROFESSOR"
	RoleRegistrar Role = "REGISTRAR"
)

// Person is the common record for every system user. Role-specific fields
// are nullable columns on the same row: students carry department,
// admission year and credit totals; professors carry department and
// specialization; registrars carry neither.
type Person struct {
	ID             string     `db:"id" json:"id"`
	FullName       string     `db:"full_name" json:"full_name"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Role           Role       `db:"role" json:"role"`
	DepartmentCode *string    `db:"department_code" json:"department_code,omitempty"`
	AdmissionYear  *int       `db:"admission_year" json:"admission_year,omitempty"`
	Specialization *string    `db:"specialization" json:"specialization,omitempty"`
	TotalCredits   int        `db:"total_credits" json:"total_credits"`
	GPA            float64    `db:"gpa" json:"gpa"`
	Active         bool       `db:"active" json:"active"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// IsStudent reports whether the person holds the student role.
func (p *Person) IsStudent() bool { return p.Role == RoleStudent }

// IsProfessor reports whether the person holds the professor role.
func (p *Person) IsProfessor() bool { return p.Role == RoleProfessor }

// IsRegistrar reports whether the person holds the registrar role.
func (p *Person) IsRegistrar() bool { return p.Role == RoleRegistrar }

// PersonFilter captures filtering criteria for listing persons.
type PersonFilter struct {
	Role           Role
	DepartmentCode string
	Active         *bool
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
