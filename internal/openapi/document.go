// Package openapi loads and normalizes OpenAPI documents into schema node trees.
package openapi

import (
	"errors"

	"github.com/axonops/openapi-diagram/internal/schema"
)

// Common errors
var (
	ErrInvalidDocument = errors.New("invalid OpenAPI document")
	ErrUnsupportedRef  = errors.New("unsupported $ref")
	ErrRefCycle        = errors.New("$ref alias cycle")
)

// Document is a normalized OpenAPI document. Collections keep declaration order.
type Document struct {
	OpenAPI     string
	Title       string
	Version     string
	Paths       []*PathItem
	Components  []*NamedSchema
	Fingerprint string

	// raw is the JSON-compatible decoded document, kept for schema validation.
	raw map[string]interface{}
}

// PathItem is a single entry of "paths".
type PathItem struct {
	Path       string
	Parameters []*Parameter
	Operations []*Operation
}

// Operation is an HTTP operation of a path item.
type Operation struct {
	Method      string
	OperationID string
	Deprecated  bool
	Parameters  []*Parameter
	RequestBody *RequestBody
	Responses   []*Response
}

// Parameter is an operation or path-level parameter.
type Parameter struct {
	Name       string
	In         string
	Required   bool
	Deprecated bool
	Schema     *schema.Node
	Content    []*MediaType
}

// RequestBody is an operation request body.
type RequestBody struct {
	Required bool
	Content  []*MediaType
}

// Response is an operation response keyed by status code.
type Response struct {
	Code        string
	Description string
	Headers     []*Header
	Content     []*MediaType
}

// Header is a response header.
type Header struct {
	Name       string
	Deprecated bool
	Schema     *schema.Node
}

// MediaType is an entry of a "content" map.
type MediaType struct {
	Name   string
	Schema *schema.Node
}

// NamedSchema is an entry of "components.schemas". Alias entries share the
// Schema pointer of the component they alias.
type NamedSchema struct {
	Name   string
	Schema *schema.Node
}

// Component returns the named component schema, or nil.
func (d *Document) Component(name string) *schema.Node {
	for _, c := range d.Components {
		if c.Name == name {
			return c.Schema
		}
	}
	return nil
}

// Operation returns the operation for path and method, or nil.
func (d *Document) Operation(path, method string) *Operation {
	for _, p := range d.Paths {
		if p.Path != path {
			continue
		}
		for _, op := range p.Operations {
			if op.Method == method {
				return op
			}
		}
	}
	return nil
}

// LoadOptions controls normalization.
type LoadOptions struct {
	// MergeAllOf folds allOf lists whose branches are all plain objects into a single object.
	MergeAllOf bool
	// Validate compiles every component schema with a JSON Schema compiler.
	Validate bool
}

// DefaultLoadOptions returns the options used when none are configured.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{MergeAllOf: true}
}
