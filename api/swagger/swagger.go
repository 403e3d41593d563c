package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CFP Admin API",
        "description": "Enrollment and billing backend for a vocational training centre",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Staff login and sessions"},
        {"name": "Students", "description": "Learner records"},
        {"name": "Levels", "description": "Fee and duration templates"},
        {"name": "Waves", "description": "Dated offerings with schedules"},
        {"name": "Enrollments", "description": "Student to wave registration"},
        {"name": "Billing", "description": "Ledgers, payments and receipts"},
        {"name": "Reference", "description": "Rooms, days, time slots, teachers"},
        {"name": "Public", "description": "Unauthenticated self-enrollment"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/levels/{id}/fee-schedule": {
            "get": {
                "tags": ["Levels"],
                "summary": "Resolve the fee schedule of a level",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Level not found"}
                }
            }
        },
        "/waves/availability": {
            "get": {
                "tags": ["Waves"],
                "summary": "Check resource availability",
                "parameters": [
                    {"name": "kind", "in": "query", "required": true, "type": "string"},
                    {"name": "resource_id", "in": "query", "required": true, "type": "string"},
                    {"name": "day_id", "in": "query", "required": true, "type": "string"},
                    {"name": "time_slot_id", "in": "query", "required": true, "type": "string"},
                    {"name": "exclude_wave_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student into a wave",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate or full wave"}
                }
            }
        },
        "/ledgers/{id}/payments": {
            "post": {
                "tags": ["Billing"],
                "summary": "Record a payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyPaymentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid amount"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "EnrollRequest": {
            "type": "object",
            "required": ["wave_id", "student"],
            "properties": {
                "wave_id": {"type": "string"},
                "student": {"type": "object"},
                "notes": {"type": "string"},
                "initial_payment": {"type": "object"}
            }
        },
        "ApplyPaymentRequest": {
            "type": "object",
            "required": ["amount", "category", "method"],
            "properties": {
                "amount": {"type": "string"},
                "category": {"type": "string", "enum": ["REGISTRATION", "TUITION", "BOOK"]},
                "method": {"type": "string"},
                "payment_date": {"type": "string"},
                "reference": {"type": "string"},
                "notes": {"type": "string"}
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
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
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
