package api

import (
	"encoding/json"
	"net/http"

	"github.com/swaggo/swag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const swaggerName = "shapebin"

// SwaggerInfo holds the exported Swagger info of the blob API
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "shapebin API",
	Description:      "Stores and inspects self-describing binary blobs.",
	InfoInstanceName: swaggerName,
	SwaggerTemplate:  swaggerTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

const swaggerUI = `<!DOCTYPE html>
<html>
<head>
	<title>shapebin API Documentation</title>
	<link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui.css" />
</head>
<body>
	<div id="swagger-ui"></div>
	<script src="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui-bundle.js"></script>
	<script>
	  window.onload = function() {
	    SwaggerUIBundle({
	      url: '/swagger/swagger.json',
	      dom_id: '#swagger-ui',
	      presets: [
	        SwaggerUIBundle.presets.apis,
	        SwaggerUIBundle.presets.standalone
	      ]
	    });
	  };
	</script>
</body>
</html>`

// handleSwagger serves the UI page and the JSON and YAML documents
func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/swagger/", "/swagger/index.html":
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerUI))
	case "/swagger/swagger.json":
		doc, err := swag.ReadDoc(swaggerName)
		if err != nil {
			s.log.Error("failed to render swagger doc", zap.Error(err))
			http.Error(w, "Failed to generate Swagger documentation", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	case "/swagger/swagger.yaml":
		doc, err := swaggerYAML()
		if err != nil {
			s.log.Error("failed to render swagger doc", zap.Error(err))
			http.Error(w, "Failed to generate Swagger documentation", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(doc)
	default:
		http.NotFound(w, r)
	}
}

func swaggerYAML() ([]byte, error) {
	doc, err := swag.ReadDoc(swaggerName)
	if err != nil {
		return nil, err
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, err
	}
	return yaml.Marshal(v)
}

const swaggerTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "in": "header", "name": "X-API-Key"}
    },
    "security": [{"ApiKeyAuth": []}],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {"200": {"description": "store is reachable"}}
            }
        },
        "/stats": {
            "get": {
                "summary": "Blob count and total size",
                "responses": {"200": {"description": "store statistics"}}
            }
        },
        "/inspect": {
            "post": {
                "summary": "Parse the header of a blob without storing it",
                "consumes": ["application/octet-stream"],
                "responses": {
                    "200": {"description": "header summary"},
                    "400": {"description": "blob header is malformed"},
                    "413": {"description": "blob exceeds the size limit"}
                }
            }
        },
        "/blobs": {
            "get": {
                "summary": "List blob ids",
                "responses": {"200": {"description": "blob ids"}}
            },
            "post": {
                "summary": "Store a blob",
                "consumes": ["application/octet-stream"],
                "responses": {
                    "201": {"description": "blob stored"},
                    "400": {"description": "blob header is malformed"},
                    "413": {"description": "blob exceeds the size limit"}
                }
            }
        },
        "/blobs/{id}": {
            "get": {
                "summary": "Fetch a blob",
                "produces": ["application/octet-stream"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "raw blob bytes"},
                    "400": {"description": "invalid id"},
                    "404": {"description": "blob not found"}
                }
            },
            "delete": {
                "summary": "Delete a blob",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "blob deleted"},
                    "404": {"description": "blob not found"}
                }
            }
        },
        "/blobs/{id}/header": {
            "get": {
                "summary": "Header summary of a stored blob",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "header summary"},
                    "404": {"description": "blob not found"}
                }
            }
        }
    }
}`
