package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "PrepShare Claims API",
        "description": "Damage claim lifecycle service for kitchen and storage bookings",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Login and token management"},
        {"name": "Claims", "description": "Manager damage claim workflow"},
        {"name": "Evidence", "description": "Evidence upload and registration"},
        {"name": "Chef", "description": "Chef response window"},
        {"name": "Admin", "description": "Admin adjudication"},
        {"name": "Exports", "description": "Statement and listing exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate the refresh token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/manager/damage-claims/recent-bookings": {
            "get": {
                "tags": ["Claims"],
                "summary": "List bookings eligible for a damage claim",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/manager/damage-claims": {
            "get": {
                "tags": ["Claims"],
                "summary": "List damage claims",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "includeAll", "in": "query", "type": "boolean"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Claims"],
                "summary": "Create a draft damage claim",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateClaimRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/manager/damage-claims/{id}": {
            "get": {
                "tags": ["Claims"],
                "summary": "Get one claim with projection",
                "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Claims"],
                "summary": "Delete a draft claim",
                "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Claim is not draft"}
                }
            }
        },
        "/manager/damage-claims/{id}/submit": {
            "post": {
                "tags": ["Claims"],
                "summary": "Submit a draft claim",
                "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Claim is not draft"},
                    "412": {"description": "Insufficient evidence"}
                }
            }
        },
        "/manager/damage-claims/{id}/charge": {
            "post": {
                "tags": ["Claims"],
                "summary": "Request the chef charge",
                "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Claim is not chargeable"}
                }
            }
        },
        "/manager/damage-claims/{id}/history": {
            "get": {
                "tags": ["Claims"],
                "summary": "Get the claim transition history",
                "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/manager/damage-claims/{id}/damaged-items": {
            "post": {
                "tags": ["Claims"],
                "summary": "Attach a damaged equipment reference",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DamagedItemRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/manager/damage-claims/evidence-files": {
            "post": {
                "tags": ["Evidence"],
                "summary": "Upload an evidence file",
                "consumes": ["multipart/form-data"],
                "parameters": [{"name": "file", "in": "formData", "type": "file", "required": true}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "File too large or mime not allowed"}
                }
            }
        },
        "/manager/damage-claims/{id}/evidence": {
            "post": {
                "tags": ["Evidence"],
                "summary": "Register an uploaded file as evidence",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddEvidenceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Claim is not draft"}
                }
            }
        },
        "/manager/damage-claims/{id}/evidence/{evidenceId}": {
            "delete": {
                "tags": ["Evidence"],
                "summary": "Remove evidence from a draft claim",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "evidenceId", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Claim is not draft"}
                }
            }
        },
        "/chef/damage-claims/pending": {
            "get": {
                "tags": ["Chef"],
                "summary": "List claims awaiting this chef's response",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/chef/damage-claims/{id}/respond": {
            "post": {
                "tags": ["Chef"],
                "summary": "Accept or dispute a submitted claim",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChefRespondRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Response window closed"}
                }
            }
        },
        "/admin/damage-claims/review-queue": {
            "get": {
                "tags": ["Admin"],
                "summary": "List disputed and in-review claims",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/damage-claims/{id}/decision": {
            "post": {
                "tags": ["Admin"],
                "summary": "Apply a review decision",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewDecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a generated export",
                "parameters": [{"name": "token", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
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
        "CreateClaimRequest": {
            "type": "object",
            "required": ["bookingType", "claimTitle", "claimDescription", "damageDate", "claimedAmountCents"],
            "properties": {
                "bookingType": {"type": "string", "enum": ["kitchen", "storage"]},
                "kitchenBookingId": {"type": "integer"},
                "storageBookingId": {"type": "integer"},
                "claimTitle": {"type": "string"},
                "claimDescription": {"type": "string"},
                "damageDate": {"type": "string", "format": "date"},
                "claimedAmountCents": {"type": "integer"}
            }
        },
        "AddEvidenceRequest": {
            "type": "object",
            "required": ["evidenceType", "fileUrl"],
            "properties": {
                "evidenceType": {"type": "string"},
                "fileUrl": {"type": "string"},
                "fileName": {"type": "string"},
                "description": {"type": "string"},
                "amountCents": {"type": "integer"},
                "vendorName": {"type": "string"}
            }
        },
        "ChefRespondRequest": {
            "type": "object",
            "required": ["action"],
            "properties": {
                "action": {"type": "string", "enum": ["accept", "dispute"]},
                "response": {"type": "string"}
            }
        },
        "ReviewDecisionRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {
                "decision": {"type": "string", "enum": ["start_review", "approve", "partially_approve", "reject", "escalate"]},
                "approvedAmountCents": {"type": "integer"},
                "notes": {"type": "string"}
            }
        },
        "DamagedItemRequest": {
            "type": "object",
            "required": ["equipmentId", "equipmentName"],
            "properties": {
                "equipmentId": {"type": "string"},
                "equipmentName": {"type": "string"}
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
