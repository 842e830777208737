package models

// GradeReportRow is one course line in a student's grade report.
type GradeReportRow struct {
	CourseCode string `json:"course_code"`
	CourseName string `json:"course_name"`
	Credits    int    `json:"credits"`
	Semester   string `json:"semester"`
	Grade      string `json:"grade"`
}

// GradeReport summarises a student's academic record.
type GradeReport struct {
	StudentID    string           `json:"student_id"`
	StudentName  string           `json:"student_name"`
	Department   string           `json:"department"`
	GPA          float64          `json:"gpa"`
	TotalCredits int              `json:"total_credits"`
	Courses      []GradeReportRow `json:"courses"`
}

// EnrollmentReportRow is one student line in a course enrollment report.
type EnrollmentReportRow struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Grade       string `json:"grade"`
}

// EnrollmentReport summarises a course's roster.
type EnrollmentReport struct {
	CourseCode     string                `json:"course_code"`
	CourseName     string                `json:"course_name"`
	Instructor     string                `json:"instructor"`
	Capacity       int                   `json:"capacity"`
	Enrolled       int                   `json:"enrolled"`
	AvailableSeats int                   `json:"available_seats"`
	Status         CourseStatus          `json:"status"`
	Students       []EnrollmentReportRow `json:"students"`
}

// SystemStatistics aggregates system-wide counts.
type SystemStatistics struct {
	TotalStudents       int `json:"total_students" db:"total_students"`
	TotalProfessors     int `json:"total_professors" db:"total_professors"`
	TotalCourses        int `json:"total_courses" db:"total_courses"`
	TotalDepartments    int `json:"total_departments" db:"total_departments"`
	TotalRegistrations  int `json:"total_registrations" db:"total_registrations"`
	ActiveRegistrations int `json:"active_registrations" db:"active_registrations"`
}

// ExportInfo describes a generated report export available for download.
type ExportInfo struct {
	FileID    string `json:"file_id"`
	Filename  string `json:"filename"`
	Format    string `json:"format"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}
