package models

import "time"

// CourseStatus represents the enrollment state of a course.
type CourseStatus string

// Course state machine: OPEN and FULL flip as the active enrollment count
// crosses capacity; CLOSED is entered and left only by registrar override.
const (
	CourseStatusOpen   CourseStatus = "OPEN"
	CourseStatusFull   CourseStatus = "FULL"
	CourseStatusClosed CourseStatus = "CLOSED"
)

// Course represents an academic course offering.
type Course struct {
	Code           string       `db:"code" json:"code"`
	Name           string       `db:"name" json:"name"`
	Credits        int          `db:"credits" json:"credits"`
	DepartmentCode string       `db:"department_code" json:"department_code"`
	Capacity       int          `db:"capacity" json:"capacity"`
	Semester       string       `db:"semester" json:"semester"`
	Year           int          `db:"year" json:"year"`
	InstructorID   *string      `db:"instructor_id" json:"instructor_id,omitempty"`
	Status         CourseStatus `db:"status" json:"status"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with derived lookups.
type CourseDetail struct {
	Course
	DepartmentName string  `db:"department_name" json:"department_name"`
	InstructorName *string `db:"instructor_name" json:"instructor_name,omitempty"`
	EnrolledCount  int     `db:"enrolled_count" json:"enrolled_count"`
	Prerequisites  []Prerequisite `json:"prerequisites,omitempty"`
}

// Prerequisite names a course that must be completed before enrolling.
type Prerequisite struct {
	CourseCode string `db:"prerequisite_code" json:"course_code"`
	Name       string `db:"name" json:"name"`
}

// CourseFilter encapsulates search parameters for listing courses.
type CourseFilter struct {
	Keyword        string
	DepartmentCode string
	Status         CourseStatus
	InstructorID   string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
