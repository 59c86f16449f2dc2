// Package docs registers the OpenAPI description served at /swagger.
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
        "/api/health": {
            "get": {"tags": ["system"], "summary": "Service health", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/api/auth/login": {
            "post": {"tags": ["auth"], "summary": "Log in", "consumes": ["application/json"], "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/api/integrations": {
            "get": {"tags": ["integration"], "summary": "List integrations", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["integration"], "summary": "Create integration", "responses": {"201": {"description": "Created"}}}
        },
        "/api/kpis": {
            "get": {"tags": ["kpi"], "summary": "List KPIs", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["kpi"], "summary": "Create KPI", "responses": {"201": {"description": "Created"}}}
        },
        "/api/kpis/{id}/history": {
            "get": {"tags": ["kpi"], "summary": "KPI history",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "period", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/dashboards": {
            "get": {"tags": ["dashboard"], "summary": "List dashboards", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["dashboard"], "summary": "Create dashboard", "responses": {"201": {"description": "Created"}}}
        },
        "/api/dashboards/{id}/data": {
            "get": {"tags": ["dashboard"], "summary": "Get dashboard data",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "period", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/sharing": {
            "get": {"tags": ["sharing"], "summary": "List share links", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["sharing"], "summary": "Create share link", "responses": {"201": {"description": "Created"}}}
        },
        "/api/shared/{token}": {
            "get": {"tags": ["sharing"], "summary": "Open a share link",
                "parameters": [{"type": "string", "name": "token", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "not_found"}, "410": {"description": "expired or inactive"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "go-kpi API",
	Description:      "KPI dashboards over connected data integrations.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
