// Package docs registers the OpenAPI document served by the Swagger UI.
// Regenerate with: swag init -g cmd/server/main.go -o internal/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/auth/register": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Register a password user",
				"operationId": "registerUser",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Credentials",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/login": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Log in with username or email",
				"operationId": "login",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/x-www-form-urlencoded",
					"application/json"
				],
				"parameters": [
					{
						"description": "Credentials",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/exchange": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Exchange a provider access token",
				"operationId": "exchangeToken",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Provider and access token",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/auth/providers": {
			"get": {
				"tags": [
					"auth"
				],
				"summary": "List sign-in providers",
				"operationId": "listProviders",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/users/me": {
			"get": {
				"tags": [
					"auth"
				],
				"summary": "Current user",
				"operationId": "getMe",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/health": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Health check",
				"operationId": "health",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/requests": {
			"get": {
				"tags": [
					"requests"
				],
				"summary": "List requests",
				"operationId": "listRequests",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Offset",
						"name": "skip",
						"in": "query",
						"required": false
					},
					{
						"type": "integer",
						"description": "Page size",
						"name": "limit",
						"in": "query",
						"required": false
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"requests"
				],
				"summary": "Create a request",
				"operationId": "createRequest",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Idempotency key",
						"name": "Idempotency-Key",
						"in": "header"
					},
					{
						"description": "Request",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/requests/{id}": {
			"get": {
				"tags": [
					"requests"
				],
				"summary": "Get a request",
				"operationId": "getRequest",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			},
			"put": {
				"tags": [
					"requests"
				],
				"summary": "Update a request",
				"operationId": "updateRequest",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Fields to change",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"delete": {
				"tags": [
					"requests"
				],
				"summary": "Delete a request",
				"operationId": "deleteRequest",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/requests/{id}/status": {
			"patch": {
				"tags": [
					"requests"
				],
				"summary": "Change request status",
				"operationId": "updateRequestStatus",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "New status",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/offers": {
			"get": {
				"tags": [
					"offers"
				],
				"summary": "List offers",
				"operationId": "listOffers",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Offset",
						"name": "skip",
						"in": "query",
						"required": false
					},
					{
						"type": "integer",
						"description": "Page size",
						"name": "limit",
						"in": "query",
						"required": false
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"offers"
				],
				"summary": "Create an offer",
				"operationId": "createOffer",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Offer",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/offers/{id}": {
			"get": {
				"tags": [
					"offers"
				],
				"summary": "Get an offer",
				"operationId": "getOffer",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			},
			"put": {
				"tags": [
					"offers"
				],
				"summary": "Update an offer",
				"operationId": "updateOffer",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Fields to change",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"delete": {
				"tags": [
					"offers"
				],
				"summary": "Delete an offer",
				"operationId": "deleteOffer",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/offers/{id}/requests": {
			"get": {
				"tags": [
					"offers"
				],
				"summary": "Requests placed on an offer",
				"operationId": "listOfferRequests",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/marketplace": {
			"get": {
				"tags": [
					"offers"
				],
				"summary": "Search the marketplace",
				"operationId": "searchMarketplace",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Search text",
						"name": "q",
						"in": "query",
						"required": false
					},
					{
						"type": "integer",
						"description": "Max results",
						"name": "limit",
						"in": "query",
						"required": false
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/my-orders": {
			"get": {
				"tags": [
					"requests"
				],
				"summary": "Requests placed by a user",
				"operationId": "myOrders",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Buyer email",
						"name": "email",
						"in": "query",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/my-carry-orders": {
			"get": {
				"tags": [
					"offers"
				],
				"summary": "Offers of a carrier with request counts",
				"operationId": "myCarryOrders",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Carrier email",
						"name": "email",
						"in": "query",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/my-carry-orders/{id}": {
			"get": {
				"tags": [
					"offers"
				],
				"summary": "One offer of a carrier",
				"operationId": "myCarryOrder",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"description": "Owner id",
						"name": "user_id",
						"in": "query",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/routes": {
			"get": {
				"tags": [
					"routes"
				],
				"summary": "List routes",
				"operationId": "listRoutes",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "Offset",
						"name": "skip",
						"in": "query",
						"required": false
					},
					{
						"type": "integer",
						"description": "Page size",
						"name": "limit",
						"in": "query",
						"required": false
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"routes"
				],
				"summary": "Create a route",
				"operationId": "createRoute",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Route",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/routes/{id}": {
			"delete": {
				"tags": [
					"routes"
				],
				"summary": "Delete a route",
				"operationId": "deleteRoute",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/notifications": {
			"get": {
				"tags": [
					"notifications"
				],
				"summary": "List notifications",
				"operationId": "listNotifications",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Recipient email",
						"name": "user_email",
						"in": "query",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/notifications/longpoll": {
			"get": {
				"tags": [
					"notifications"
				],
				"summary": "Wait for new notifications",
				"operationId": "longPollNotifications",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Recipient email",
						"name": "user_email",
						"in": "query",
						"required": true
					},
					{
						"type": "string",
						"description": "Only newer than this timestamp",
						"name": "last_time",
						"in": "query",
						"required": false
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		},
		"/uploads": {
			"post": {
				"tags": [
					"uploads"
				],
				"summary": "Upload an image",
				"operationId": "uploadImage",
				"produces": [
					"application/json"
				],
				"consumes": [
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "file",
						"description": "Image",
						"name": "file",
						"in": "formData",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handlers.ErrorResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"handlers.ErrorResponse": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string",
					"example": "not_found"
				},
				"message": {
					"type": "string",
					"example": "request not found"
				},
				"request_id": {
					"type": "string"
				},
				"details": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/handlers.FieldError"
					}
				}
			}
		},
		"handlers.FieldError": {
			"type": "object",
			"properties": {
				"field": {
					"type": "string"
				},
				"rule": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and the token.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Carry Backend API",
	Description:      "Carry-request marketplace: requests, offers, routes and notification long-poll.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
