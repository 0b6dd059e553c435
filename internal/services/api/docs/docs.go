// Package docs holds the agent OpenAPI document registered with swag
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "openapi": "3.0.3",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "servers": [{"url": "{{.BasePath}}"}],
    "paths": {
        "/scans": {
            "post": {
                "tags": ["Scan"],
                "summary": "Recognize text on a label image",
                "requestBody": {
                    "required": true,
                    "content": {
                        "multipart/form-data": {
                            "schema": {
                                "type": "object",
                                "required": ["file"],
                                "properties": {"file": {"type": "string", "format": "binary"}}
                            }
                        }
                    }
                },
                "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/ScanResp"}}}}}
            }
        },
        "/scans/engine": {
            "get": {
                "tags": ["Scan"],
                "summary": "Local engine status",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/cache": {
            "get": {
                "tags": ["Cache"],
                "summary": "Cache controller status",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/cache/install": {
            "post": {
                "tags": ["Cache"],
                "summary": "Install the configured manifest as a new generation",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/cache/activate": {
            "post": {
                "tags": ["Cache"],
                "summary": "Activate the waiting generation now",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/cache/messages": {
            "post": {
                "tags": ["Cache"],
                "summary": "Send a control message to the controller",
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object",
                                "required": ["type"],
                                "properties": {"type": {"type": "string", "enum": ["skip-waiting", "activate-now"]}}
                            }
                        }
                    }
                },
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/cache/clients": {
            "post": {
                "tags": ["Cache"],
                "summary": "Attach a client to the active generation",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/cache/clients/{id}": {
            "delete": {
                "tags": ["Cache"],
                "summary": "Detach a client",
                "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}],
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/network": {
            "get": {
                "tags": ["Network"],
                "summary": "Current network state",
                "responses": {"200": {"description": "ok"}}
            },
            "put": {
                "tags": ["Network"],
                "summary": "Record an online or offline transition",
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object",
                                "required": ["online"],
                                "properties": {"online": {"type": "boolean"}}
                            }
                        }
                    }
                },
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/meta/health": {"get": {"tags": ["Meta"], "summary": "Liveness", "responses": {"200": {"description": "ok"}}}},
        "/meta/ready": {"get": {"tags": ["Meta"], "summary": "Readiness of the cache and network", "responses": {"200": {"description": "ok"}}}},
        "/meta/version": {"get": {"tags": ["Meta"], "summary": "Build information", "responses": {"200": {"description": "ok"}}}},
        "/meta/service": {"get": {"tags": ["Meta"], "summary": "Service name and uptime", "responses": {"200": {"description": "ok"}}}}
    },
    "components": {
        "schemas": {
            "ScanResp": {
                "type": "object",
                "properties": {
                    "scan_id": {"type": "string"},
                    "text": {"type": "string"},
                    "source": {"type": "string", "enum": ["remote", "local"]},
                    "fields": {"type": "object"},
                    "progress": {"type": "array", "items": {"type": "string"}}
                }
            }
        }
    }
}`

// SwaggerInfo carries the values rendered into docTemplate
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "labelscan agent",
	Description:      "Offline first label OCR agent",
	InfoInstanceName: "api",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
