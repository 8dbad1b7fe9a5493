package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "marksvault API",
        "description": "Local command surface over the encrypted student marks store",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Session", "description": "Unlock, lock and rekey the record store"},
        {"name": "Students", "description": "Student records, marks, results and overrides"},
        {"name": "Modules", "description": "Module catalogue"},
        {"name": "Imports", "description": "Spreadsheet ingestion"},
        {"name": "Exports", "description": "Award reports"}
    ],
    "paths": {
        "/session": {
            "get": {
                "tags": ["Session"],
                "summary": "Report whether the record store is unlocked",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/session/unlock": {
            "post": {
                "tags": ["Session"],
                "summary": "Unlock the record store",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/UnlockRequest"}}
                ],
                "responses": {
                    "200": {"description": "Unlocked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Wrong passphrase or corrupt vault", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/session/lock": {
            "post": {
                "tags": ["Session"],
                "summary": "Seal the working copy and close the session",
                "responses": {"200": {"description": "Locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/session/password": {
            "put": {
                "tags": ["Session"],
                "summary": "Rekey the vault under a new passphrase",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "Rekeyed"},
                    "401": {"description": "Current passphrase is incorrect", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Store is locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "calcModel", "type": "string"},
                    {"in": "query", "name": "borderline", "type": "boolean"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"},
                    {"in": "query", "name": "sort", "type": "string", "enum": ["id", "last_name", "final_mark", "updated_at"]},
                    {"in": "query", "name": "order", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Store is locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student detail with override history",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/marks": {
            "get": {
                "tags": ["Students"],
                "summary": "List marks ordered by academic year and module code",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/results": {
            "get": {
                "tags": ["Students"],
                "summary": "List yearly results ordered by academic year",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/overrides": {
            "post": {
                "tags": ["Students"],
                "summary": "Record a manual override",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/OverrideRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/reclassify": {
            "post": {
                "tags": ["Students"],
                "summary": "Rederive the classification from stored results",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Calculation model unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/modules": {
            "get": {
                "tags": ["Modules"],
                "summary": "List modules",
                "parameters": [
                    {"in": "query", "name": "term", "type": "string", "enum": ["AUTUMN", "SPRING"]},
                    {"in": "query", "name": "search", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Modules"],
                "summary": "Register a module",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ModuleRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Module exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/modules/{code}": {
            "put": {
                "tags": ["Modules"],
                "summary": "Update a module",
                "description": "A credit or term change recomputes every stored result that took the module.",
                "parameters": [
                    {"in": "path", "name": "code", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ModuleRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/imports": {
            "post": {
                "tags": ["Imports"],
                "summary": "Import a results, resit, award or module spreadsheet",
                "consumes": ["multipart/form-data", "application/json"],
                "parameters": [
                    {"in": "formData", "name": "data_type", "required": true, "type": "string", "enum": ["result", "resit-may", "resit-aug", "award", "modules"]},
                    {"in": "formData", "name": "academic_year", "required": true, "type": "string"},
                    {"in": "formData", "name": "file", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Ingestion report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid request or unreadable file", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/awards": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download the award report",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]},
                    {"in": "query", "name": "year", "type": "string"}
                ],
                "responses": {"200": {"description": "Report file", "schema": {"type": "file"}}}
            }
        }
    },
    "definitions": {
        "UnlockRequest": {
            "type": "object",
            "required": ["passphrase"],
            "properties": {"passphrase": {"type": "string"}}
        },
        "ChangePasswordRequest": {
            "type": "object",
            "required": ["new_passphrase"],
            "properties": {
                "current_passphrase": {"type": "string"},
                "new_passphrase": {"type": "string"}
            }
        },
        "OverrideRequest": {
            "type": "object",
            "required": ["reason", "note"],
            "properties": {
                "reason": {"type": "string"},
                "note": {"type": "string"},
                "award": {"type": "string"},
                "final_mark": {"type": "integer", "minimum": 0, "maximum": 100}
            }
        },
        "ModuleRequest": {
            "type": "object",
            "required": ["credit"],
            "properties": {
                "code": {"type": "string"},
                "credit": {"type": "integer", "minimum": 1},
                "name": {"type": "string"},
                "term": {"type": "string", "enum": ["AUTUMN", "SPRING"]}
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
