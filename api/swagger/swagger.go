package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "University Registry API",
        "description": "Course registration, grading and reporting service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Sessions and credentials"},
        {"name": "Persons", "description": "Student, professor and registrar directory"},
        {"name": "Departments", "description": "Department catalog"},
        {"name": "Courses", "description": "Course catalog and state machine"},
        {"name": "Enrollment", "description": "Registrations, drops and grading"},
        {"name": "Reports", "description": "Grade and enrollment reporting"},
        {"name": "Snapshots", "description": "JSON persistence of the registry"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate by id and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed registration number"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate the refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke the refresh token",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "User info"}
                }
            }
        },
        "/students": {
            "post": {
                "tags": ["Persons"],
                "summary": "Add a student",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Invalid registration number"},
                    "409": {"description": "Duplicate id"}
                }
            }
        },
        "/professors": {
            "post": {
                "tags": ["Persons"],
                "summary": "Add a professor",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Duplicate id"}
                }
            }
        },
        "/registrars": {
            "post": {
                "tags": ["Persons"],
                "summary": "Add a registrar",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/persons": {
            "get": {
                "tags": ["Persons"],
                "summary": "List persons",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Person list", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/persons/{id}": {
            "get": {
                "tags": ["Persons"],
                "summary": "Get a person",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Person"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Persons"],
                "summary": "Remove a person",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Removed"},
                    "422": {"description": "Student has active registrations"}
                }
            }
        },
        "/departments": {
            "get": {
                "tags": ["Departments"],
                "summary": "List departments",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Department list"}
                }
            },
            "post": {
                "tags": ["Departments"],
                "summary": "Create a department",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Duplicate code"}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "Search the course catalog",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["OPEN", "FULL", "CLOSED"]}
                ],
                "responses": {
                    "200": {"description": "Course list"}
                }
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create a course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Duplicate course code"}
                }
            }
        },
        "/courses/{code}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Course detail with prerequisites",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "code", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Course detail"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Delete a course",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "code", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "422": {"description": "Course has active enrollments"}
                }
            }
        },
        "/courses/{code}/status": {
            "put": {
                "tags": ["Courses"],
                "summary": "Registrar status override",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "code", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Status updated"}
                }
            }
        },
        "/courses/{code}/roster": {
            "get": {
                "tags": ["Enrollment"],
                "summary": "Active course roster",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "code", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Roster"},
                    "403": {"description": "Not the course instructor"}
                }
            }
        },
        "/registrations": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Register for a course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Registered"},
                    "409": {"description": "Already enrolled"},
                    "422": {"description": "Course closed, full or prerequisite not met"}
                }
            }
        },
        "/registrations/{code}": {
            "delete": {
                "tags": ["Enrollment"],
                "summary": "Drop a course",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "code", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Dropped with W grade"},
                    "404": {"description": "Not enrolled"}
                }
            }
        },
        "/grades": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Assign a grade",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Grade recorded"},
                    "403": {"description": "Professor not authorized for course"}
                }
            }
        },
        "/reports/students/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Student grade report with GPA",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Grade report"}
                }
            }
        },
        "/reports/courses/{code}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Course enrollment report",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "code", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Enrollment report"}
                }
            }
        },
        "/reports/statistics": {
            "get": {
                "tags": ["Reports"],
                "summary": "System statistics",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Counts"}
                }
            }
        },
        "/reports/download": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download an export with a signed token",
                "parameters": [{"name": "token", "in": "query", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "File"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/snapshots": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Save a registry snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Write scheduled"}
                }
            }
        },
        "/snapshots/restore": {
            "post": {
                "tags": ["Snapshots"],
                "summary": "Restore the registry snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Restored"},
                    "404": {"description": "No snapshot file"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["user_id", "password"],
            "properties": {
                "user_id": {"type": "string", "example": "24BET10001"},
                "password": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "message": {"type": "string"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
