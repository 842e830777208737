package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/service"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/response"
)

// EnrollmentHandler wires HTTP endpoints to the enrollment service.
type EnrollmentHandler struct {
	service *service.EnrollmentService
	metrics *service.MetricsService
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(svc *service.EnrollmentService, metrics *service.MetricsService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc, metrics: metrics}
}

// Register godoc
// @Summary Register for a course
// @Description Enroll a student in a course. Students register themselves; registrars may register any student.
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param payload body service.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /registrations [post]
func (h *EnrollmentHandler) Register(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	if claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}

	registration, err := h.service.Register(c.Request.Context(), req)
	h.record("register", err)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Result(c, http.StatusCreated, registration, "Successfully registered for "+req.CourseCode)
}

// Drop godoc
// @Summary Drop a course
// @Description Withdraw the student's active registration. The record survives with a W grade.
// @Tags Enrollment
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/{code} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	courseCode := c.Param("code")
	studentID := claims.UserID
	if claims.Role == models.RoleRegistrar {
		if requested := c.Query("student_id"); requested != "" {
			studentID = requested
		}
	}

	registration, err := h.service.Drop(c.Request.Context(), studentID, courseCode)
	h.record("drop", err)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Result(c, http.StatusOK, registration, "Successfully dropped "+courseCode)
}

// AssignGrade godoc
// @Summary Assign a grade
// @Description Record a grade for a student's registration. Professors may only grade courses they teach.
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param payload body service.AssignGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades [post]
func (h *EnrollmentHandler) AssignGrade(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AssignGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grading payload"))
		return
	}

	registration, err := h.service.AssignGrade(c.Request.Context(), claims.UserID, req)
	h.record("assign_grade", err)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Result(c, http.StatusOK, registration, "Grade "+req.Grade+" assigned")
}

// ListByStudent godoc
// @Summary List a student's registrations
// @Description Returns every registration, including dropped ones, in enrollment order
// @Tags Enrollment
// @Produce json
// @Param id path string true "Student id"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/registrations [get]
func (h *EnrollmentHandler) ListByStudent(c *gin.Context) {
	registrations, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, nil)
}

// Roster godoc
// @Summary List a course roster
// @Description Returns active registrations for a course; restricted to its instructor and registrars
// @Tags Enrollment
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{code}/roster [get]
func (h *EnrollmentHandler) Roster(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	roster, err := h.service.Roster(c.Request.Context(), claims.UserID, claims.Role, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

func (h *EnrollmentHandler) record(operation string, err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordEnrollment(operation, err == nil)
}
