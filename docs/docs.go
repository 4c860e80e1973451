// Package docs registers the swagger document for the admin API.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "Compliance Scheduler",
    "description": "Admin API for the workforce compliance rule scheduler",
    "version": "1.0"
  },
  "basePath": "/",
  "paths": {
    "/healthz": {"get": {"tags": ["health"], "summary": "Health check", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "503": {"description": "Store unavailable"}}}},
    "/api/jobs": {"get": {"tags": ["jobs"], "summary": "List jobs", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
    "/api/jobs/{name}/run": {"post": {"tags": ["jobs"], "summary": "Trigger a job", "produces": ["application/json"],
      "parameters": [{"name": "name", "in": "path", "required": true, "type": "string"}],
      "responses": {"202": {"description": "Queued"}, "401": {"description": "Invalid admin key"}, "404": {"description": "Unknown job"}, "409": {"description": "Already queued"}}}},
    "/api/runs/latest": {"get": {"tags": ["jobs"], "summary": "Latest run", "produces": ["application/json"],
      "parameters": [{"name": "job", "in": "query", "required": true, "type": "string"}],
      "responses": {"200": {"description": "OK"}, "404": {"description": "No runs found"}}}},
    "/api/alerts": {"get": {"tags": ["alerts"], "summary": "List alerts", "produces": ["application/json"],
      "parameters": [
        {"name": "agencyId", "in": "query", "required": true, "type": "string"},
        {"name": "category", "in": "query", "type": "string"},
        {"name": "unread", "in": "query", "type": "boolean"},
        {"name": "since", "in": "query", "type": "string", "format": "date-time"},
        {"name": "limit", "in": "query", "type": "integer"}
      ],
      "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid query"}}}}
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
