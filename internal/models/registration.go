package models

import (
	"fmt"
	"time"
)

// RegistrationStatus represents the lifecycle of a registration.
type RegistrationStatus string

// Registrations are never deleted; a drop marks the record DROPPED and a
// later re-register creates a fresh row.
const (
	RegistrationStatusActive  RegistrationStatus = "ACTIVE"
	RegistrationStatusDropped RegistrationStatus = "DROPPED"
)

// Grade is a letter grade recorded against a registration.
type Grade string

const (
	GradeAPlus      Grade = "A+"
	GradeA          Grade = "A"
	GradeAMinus     Grade = "A-"
	GradeBPlus      Grade = "B+"
	GradeB          Grade = "B"
	GradeBMinus     Grade = "B-"
	GradeCPlus      Grade = "C+"
	GradeC          Grade = "C"
	GradeCMinus     Grade = "C-"
	GradeD          Grade = "D"
	GradeF          Grade = "F"
	GradeIncomplete Grade = "I"
	GradeWithdrawal Grade = "W"
	GradeNotGraded  Grade = "NG"
)

// GradePoints maps letter grades to GPA points. Grades absent from the map
// (I, W, NG) are excluded from GPA entirely.
var GradePoints = map[Grade]float64{
	GradeAPlus:  4.0,
	GradeA:      4.0,
	GradeAMinus: 3.7,
	GradeBPlus:  3.3,
	GradeB:      3.0,
	GradeBMinus: 2.7,
	GradeCPlus:  2.3,
	GradeC:      2.0,
	GradeCMinus: 1.7,
	GradeD:      1.0,
	GradeF:      0.0,
}

// Valid reports whether the grade is one of the recognised letter grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeAPlus, GradeA, GradeAMinus, GradeBPlus, GradeB, GradeBMinus,
		GradeCPlus, GradeC, GradeCMinus, GradeD, GradeF,
		GradeIncomplete, GradeWithdrawal, GradeNotGraded:
		return true
	}
	return false
}

// Failing reports whether the grade disqualifies a course from counting as
// a completed prerequisite.
func (g Grade) Failing() bool {
	return g == GradeF || g == GradeIncomplete || g == GradeWithdrawal
}

// Registration captures one student's enrollment in one course for one
// semester.
type Registration struct {
	ID         string             `db:"id" json:"id"`
	Code       string             `db:"registration_code" json:"registration_code"`
	StudentID  string             `db:"student_id" json:"student_id"`
	CourseCode string             `db:"course_code" json:"course_code"`
	Semester   string             `db:"semester" json:"semester"`
	EnrolledAt time.Time          `db:"enrolled_at" json:"enrolled_at"`
	Grade      *Grade             `db:"grade" json:"grade,omitempty"`
	Status     RegistrationStatus `db:"status" json:"status"`
}

// RegistrationCode derives the composite display identity used by the
// registry: student id joined with course code.
func RegistrationCode(studentID, courseCode string) string {
	return fmt.Sprintf("%s_%s", studentID, courseCode)
}

// RegistrationDetail enriches Registration with student and course info.
type RegistrationDetail struct {
	Registration
	StudentName string `db:"student_name" json:"student_name"`
	CourseName  string `db:"course_name" json:"course_name"`
	Credits     int    `db:"credits" json:"credits"`
}
