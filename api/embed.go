// Package api provides the embedded description of the diagram service HTTP API.
package api

import _ "embed"

// OpenAPISpec contains the embedded OpenAPI 3.0 description of the service.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
