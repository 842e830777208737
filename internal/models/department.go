package models

import "time"

// Department represents an academic department identified by its code.
type Department struct {
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Head      *string   `db:"head" json:"head,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentDetail enriches Department with derived course information.
type DepartmentDetail struct {
	Department
	CourseCount int `db:"course_count" json:"course_count"`
}
