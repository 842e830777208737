package models

import "time"

// Snapshot is the JSON persistence record for the registry. Registrations
// are deliberately absent: the original system never persisted them, and the
// gap is preserved here as a known limitation rather than silently fixed.
type Snapshot struct {
	TakenAt     time.Time                     `json:"taken_at"`
	Departments map[string]SnapshotDepartment `json:"departments"`
	Students    map[string]SnapshotStudent    `json:"students"`
	Professors  map[string]SnapshotProfessor  `json:"professors"`
	Registrars  map[string]SnapshotRegistrar  `json:"registrars"`
	Courses     map[string]SnapshotCourse     `json:"courses"`
}

// SnapshotDepartment is a persisted department record keyed by code.
type SnapshotDepartment struct {
	Name string  `json:"name"`
	Head *string `json:"head,omitempty"`
}

// SnapshotStudent is a persisted student record keyed by id.
type SnapshotStudent struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	PasswordHash  string `json:"password_hash"`
	Department    string `json:"department"`
	AdmissionYear int    `json:"admission_year"`
}

// SnapshotProfessor is a persisted professor record keyed by id.
type SnapshotProfessor struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	PasswordHash   string `json:"password_hash"`
	Department     string `json:"department"`
	Specialization string `json:"specialization"`
}

// SnapshotRegistrar is a persisted registrar record keyed by id.
type SnapshotRegistrar struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

// SnapshotCourse is a persisted course record keyed by code.
type SnapshotCourse struct {
	Name          string   `json:"name"`
	Credits       int      `json:"credits"`
	Department    string   `json:"department"`
	Capacity      int      `json:"capacity"`
	Semester      string   `json:"semester"`
	Year          int      `json:"year"`
	Instructor    *string  `json:"instructor,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}
