// Package docs holds the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "http://www.example.com/support",
            "email": "support@example.com"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/audience/size": {
            "post": {
                "description": "Count the customers matching an ordered list of segmentation rules",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["audience"],
                "summary": "Calculate audience size",
                "parameters": [
                    {
                        "description": "Segmentation rules",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/audience.SizeRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/audience.SizeResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/audience/filter": {
            "post": {
                "description": "Validate the rules and return the MongoDB filter they compile to, without querying",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["audience"],
                "summary": "Compile rules to a store filter",
                "parameters": [
                    {
                        "description": "Segmentation rules",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/audience.SizeRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/audience.FilterResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "audience.Rule": {
            "type": "object",
            "properties": {
                "condition": {"type": "string", "example": "AND"},
                "field": {"type": "string", "example": "visits"},
                "operator": {"type": "string", "example": ">"},
                "value": {"type": "string", "example": "5"}
            }
        },
        "audience.SizeRequest": {
            "type": "object",
            "properties": {
                "rules": {"type": "array", "items": {"$ref": "#/definitions/audience.Rule"}}
            }
        },
        "audience.SizeResponse": {
            "type": "object",
            "properties": {
                "size": {"type": "integer", "example": 42}
            }
        },
        "audience.FilterResponse": {
            "type": "object",
            "properties": {
                "collapsed": {"type": "boolean"},
                "filter": {"type": "object"},
                "policy": {"type": "string", "example": "legacy"},
                "rules": {"type": "integer", "example": 2}
            }
        },
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "details": {"type": "object", "additionalProperties": true},
                "error": {"type": "string"},
                "error_code": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Audience Service API",
	Description:      "Calculates the size of a customer audience described by segmentation rules",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
