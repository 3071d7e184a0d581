package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Biblio API",
        "description": "School library loan and return service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session management"},
        {"name": "Books", "description": "Catalog management"},
        {"name": "Loans", "description": "Loan lifecycle"},
        {"name": "Reservations", "description": "Claims on unavailable books"},
        {"name": "Penalties", "description": "Late-return charges"},
        {"name": "Policy", "description": "Lending policy parameters"},
        {"name": "Dashboard", "description": "Operational summary"},
        {"name": "Exports", "description": "Register exports"},
        {"name": "Notifications", "description": "SMS outbox and reminders"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate and obtain tokens",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/books": {
            "get": {
                "tags": ["Books"],
                "summary": "List books",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Books"],
                "summary": "Register a new title",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/books/{id}": {
            "get": {
                "tags": ["Books"],
                "summary": "Get book detail",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Books"],
                "summary": "Update descriptive fields",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/loans": {
            "get": {
                "tags": ["Loans"],
                "summary": "List loans",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Loans"],
                "summary": "Lend a book to a borrower",
                "responses": {
                    "201": {"description": "Loan created"},
                    "409": {"description": "No copy available or borrow limit reached"}
                }
            }
        },
        "/loans/{id}/return": {
            "post": {
                "tags": ["Loans"],
                "summary": "Return a borrowed book",
                "responses": {
                    "200": {"description": "Loan closed"},
                    "404": {"description": "Loan not found or already returned"}
                }
            }
        },
        "/loans/{id}/extend": {
            "post": {
                "tags": ["Loans"],
                "summary": "Move the due date of an active loan",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/loans/{id}/lost": {
            "post": {
                "tags": ["Loans"],
                "summary": "Flag an active loan as lost",
                "responses": {"204": {"description": "Flagged"}}
            }
        },
        "/reservations": {
            "get": {
                "tags": ["Reservations"],
                "summary": "List reservations",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Reservations"],
                "summary": "Place a reservation on an unavailable book",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Book available or duplicate reservation"}
                }
            }
        },
        "/penalties": {
            "get": {
                "tags": ["Penalties"],
                "summary": "List penalties",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/penalties/{id}/pay": {
            "post": {
                "tags": ["Penalties"],
                "summary": "Settle an unpaid penalty",
                "responses": {
                    "200": {"description": "Paid"},
                    "409": {"description": "Already paid"}
                }
            }
        },
        "/policy": {
            "get": {
                "tags": ["Policy"],
                "summary": "Current lending policy",
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Policy"],
                "summary": "Update lending policy parameters",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Library dashboard summary",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/exports/{report}": {
            "post": {
                "tags": ["Exports"],
                "summary": "Generate a register export",
                "responses": {"200": {"description": "Signed download link"}}
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a generated export",
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/notifications/outbox": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Recent SMS outbox entries",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
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
