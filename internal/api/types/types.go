// Package types provides API request and response types.
package types

import (
	"time"

	"github.com/axonops/openapi-diagram/internal/diagram"
)

// DocumentResponse describes a stored document version.
type DocumentResponse struct {
	ID          string    `json:"id"`
	Package     string    `json:"package"`
	Version     string    `json:"version"`
	Title       string    `json:"title,omitempty"`
	OpenAPI     string    `json:"openapi,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	Content     string    `json:"content,omitempty"`
}

// PackageResponse is an entry of the package list.
type PackageResponse struct {
	Name          string    `json:"name"`
	VersionCount  int       `json:"version_count"`
	LatestVersion string    `json:"latest_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DiagramRequest is the request body for an ad-hoc diagram build.
type DiagramRequest struct {
	Document string `json:"document"`
	Scope    string `json:"scope,omitempty"`
}

// DiagramResponse is a built class diagram.
type DiagramResponse struct {
	Package     string                    `json:"package,omitempty"`
	Version     string                    `json:"version,omitempty"`
	Fingerprint string                    `json:"fingerprint"`
	Scope       string                    `json:"scope"`
	Cached      bool                      `json:"cached"`
	Classes     []ClassResponse           `json:"classes"`
	Relations   []*diagram.SchemaRelation `json:"relations"`
	Roots       []*diagram.RootReference  `json:"roots"`
	Navigation  *NavigationResponse       `json:"navigation,omitempty"`
}

// ClassResponse is a class of a diagram.
type ClassResponse struct {
	Key         string             `json:"key"`
	Name        string             `json:"name"`
	IsClass     bool               `json:"is_class"`
	Deprecated  bool               `json:"deprecated,omitempty"`
	SharedNames []string           `json:"shared_names,omitempty"`
	Origins     []string           `json:"origins,omitempty"`
	Properties  []PropertyResponse `json:"properties"`
}

// PropertyResponse is a property of a class.
type PropertyResponse struct {
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	Synthetic      bool     `json:"synthetic,omitempty"`
	Type           string   `json:"type"`
	Required       bool     `json:"required,omitempty"`
	Deprecated     bool     `json:"deprecated,omitempty"`
	TypeDeprecated bool     `json:"type_deprecated,omitempty"`
	SharedNames    []string `json:"shared_names,omitempty"`
}

// NavigationResponse reports the class a scope selects, or why none was selected.
type NavigationResponse struct {
	ClassKey   string   `json:"class_key,omitempty"`
	ClassName  string   `json:"class_name,omitempty"`
	Error      string   `json:"error,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

// Error codes
const (
	ErrorCodePackageNotFound     = 40401
	ErrorCodeVersionNotFound     = 40402
	ErrorCodeDocumentExists      = 40901
	ErrorCodeRequestTooLarge     = 41301
	ErrorCodeInvalidDocument     = 42201
	ErrorCodeInvalidScope        = 42202
	ErrorCodeInvalidPackage      = 42203
	ErrorCodeInvalidVersion      = 42204
	ErrorCodeInvalidRequest      = 42205
	ErrorCodeInternalServerError = 50001
	ErrorCodeStorageError        = 50002
	ErrorCodeBuildFailed         = 50003
)

// ServerVersionResponse is the response for getting server version.
type ServerVersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}
