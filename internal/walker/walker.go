// Package walker traverses a normalized OpenAPI document and reports every
// declaration and schema element through enter/exit callbacks.
//
// Every Start callback is paired with exactly one End callback, called after
// the element's children. A Start callback returning false suppresses descent
// into that element. Nil callbacks descend by default.
package walker

import (
	"strconv"

	"github.com/axonops/openapi-diagram/internal/openapi"
	"github.com/axonops/openapi-diagram/internal/schema"
)

// Callbacks holds the enter/exit hooks of a walk. Pointers passed to the
// declaration hooks are JSON pointers into the source document.
type Callbacks struct {
	ParameterStart   func(ptr string, p *openapi.Parameter) bool
	ParameterEnd     func(ptr string, p *openapi.Parameter)
	RequestBodyStart func(ptr string, b *openapi.RequestBody) bool
	RequestBodyEnd   func(ptr string, b *openapi.RequestBody)
	ResponseStart    func(ptr string, r *openapi.Response) bool
	ResponseEnd      func(ptr string, r *openapi.Response)
	HeaderStart      func(ptr string, h *openapi.Header) bool
	HeaderEnd        func(ptr string, h *openapi.Header)
	MediaTypeStart   func(ptr string, m *openapi.MediaType) bool
	MediaTypeEnd     func(ptr string, m *openapi.MediaType)
	ComponentStart   func(ptr string, c *openapi.NamedSchema) bool
	ComponentEnd     func(ptr string, c *openapi.NamedSchema)

	SchemaRootStart func(ptr string, s *schema.Node) bool
	SchemaRootEnd   func(ptr string, s *schema.Node)

	ItemsStart        func(parent, items *schema.Node) bool
	ItemsEnd          func(parent, items *schema.Node)
	PropertyStart     func(owner *schema.Node, p *schema.Property) bool
	PropertyEnd       func(owner *schema.Node, p *schema.Property)
	CombinerStart     func(owner *schema.Node, kind schema.Combiner) bool
	CombinerEnd       func(owner *schema.Node, kind schema.Combiner)
	CombinerItemStart func(owner *schema.Node, kind schema.Combiner, index int, branch *schema.Node) bool
	CombinerItemEnd   func(owner *schema.Node, kind schema.Combiner, index int, branch *schema.Node)
}

// Walker performs depth-first walks using a fixed set of callbacks.
type Walker struct {
	cb     Callbacks
	active map[*schema.Node]bool
}

// New creates a walker.
func New(cb Callbacks) *Walker {
	return &Walker{cb: cb, active: make(map[*schema.Node]bool)}
}

// Walk visits paths in declaration order (path-level parameters, then each
// operation's parameters, request body and responses), followed by the
// component schemas. Alias components are skipped.
func (w *Walker) Walk(doc *openapi.Document) {
	for _, item := range doc.Paths {
		ptr := openapi.JoinPointer("", "paths", item.Path)
		w.parameters(openapi.JoinPointer(ptr, "parameters"), item.Parameters)
		for _, op := range item.Operations {
			w.operation(openapi.JoinPointer(ptr, op.Method), op)
		}
	}

	seen := make(map[*schema.Node]bool)
	for _, c := range doc.Components {
		if c.Schema == nil || seen[c.Schema] {
			continue
		}
		seen[c.Schema] = true
		ptr := openapi.JoinPointer("", "components", "schemas", c.Name)
		if w.cb.ComponentStart == nil || w.cb.ComponentStart(ptr, c) {
			w.SchemaRoot(ptr, c.Schema)
		}
		if w.cb.ComponentEnd != nil {
			w.cb.ComponentEnd(ptr, c)
		}
	}
}

func (w *Walker) operation(ptr string, op *openapi.Operation) {
	w.parameters(openapi.JoinPointer(ptr, "parameters"), op.Parameters)

	if op.RequestBody != nil {
		bptr := openapi.JoinPointer(ptr, "requestBody")
		if w.cb.RequestBodyStart == nil || w.cb.RequestBodyStart(bptr, op.RequestBody) {
			w.content(openapi.JoinPointer(bptr, "content"), op.RequestBody.Content)
		}
		if w.cb.RequestBodyEnd != nil {
			w.cb.RequestBodyEnd(bptr, op.RequestBody)
		}
	}

	for _, resp := range op.Responses {
		rptr := openapi.JoinPointer(ptr, "responses", resp.Code)
		if w.cb.ResponseStart == nil || w.cb.ResponseStart(rptr, resp) {
			for _, h := range resp.Headers {
				w.header(openapi.JoinPointer(rptr, "headers", h.Name), h)
			}
			w.content(openapi.JoinPointer(rptr, "content"), resp.Content)
		}
		if w.cb.ResponseEnd != nil {
			w.cb.ResponseEnd(rptr, resp)
		}
	}
}

// parameters addresses each parameter by its array index; names are only
// unique together with their location.
func (w *Walker) parameters(ptr string, params []*openapi.Parameter) {
	for i, p := range params {
		pptr := openapi.JoinPointer(ptr, strconv.Itoa(i))
		if w.cb.ParameterStart == nil || w.cb.ParameterStart(pptr, p) {
			if p.Schema != nil {
				w.SchemaRoot(openapi.JoinPointer(pptr, "schema"), p.Schema)
			}
			w.content(openapi.JoinPointer(pptr, "content"), p.Content)
		}
		if w.cb.ParameterEnd != nil {
			w.cb.ParameterEnd(pptr, p)
		}
	}
}

func (w *Walker) header(ptr string, h *openapi.Header) {
	if w.cb.HeaderStart == nil || w.cb.HeaderStart(ptr, h) {
		if h.Schema != nil {
			w.SchemaRoot(openapi.JoinPointer(ptr, "schema"), h.Schema)
		}
	}
	if w.cb.HeaderEnd != nil {
		w.cb.HeaderEnd(ptr, h)
	}
}

func (w *Walker) content(ptr string, content []*openapi.MediaType) {
	for _, mt := range content {
		mptr := openapi.JoinPointer(ptr, mt.Name)
		if w.cb.MediaTypeStart == nil || w.cb.MediaTypeStart(mptr, mt) {
			if mt.Schema != nil {
				w.SchemaRoot(openapi.JoinPointer(mptr, "schema"), mt.Schema)
			}
		}
		if w.cb.MediaTypeEnd != nil {
			w.cb.MediaTypeEnd(mptr, mt)
		}
	}
}

// SchemaRoot walks a single schema root found at ptr.
func (w *Walker) SchemaRoot(ptr string, s *schema.Node) {
	if w.cb.SchemaRootStart == nil || w.cb.SchemaRootStart(ptr, s) {
		w.schemaContent(s)
	}
	if w.cb.SchemaRootEnd != nil {
		w.cb.SchemaRootEnd(ptr, s)
	}
}

// schemaContent visits items, then properties, then combiners in
// oneOf, anyOf, allOf order. A node already on the descent path is not
// re-entered.
func (w *Walker) schemaContent(s *schema.Node) {
	if s == nil || w.active[s] {
		return
	}
	w.active[s] = true
	defer delete(w.active, s)

	if s.Items != nil {
		if w.cb.ItemsStart == nil || w.cb.ItemsStart(s, s.Items) {
			w.schemaContent(s.Items)
		}
		if w.cb.ItemsEnd != nil {
			w.cb.ItemsEnd(s, s.Items)
		}
	}

	for _, p := range s.Properties {
		if w.cb.PropertyStart == nil || w.cb.PropertyStart(s, p) {
			w.schemaContent(p.Schema)
		}
		if w.cb.PropertyEnd != nil {
			w.cb.PropertyEnd(s, p)
		}
	}

	for _, kind := range schema.Combiners {
		branches := s.Branches(kind)
		if len(branches) == 0 {
			continue
		}
		if w.cb.CombinerStart == nil || w.cb.CombinerStart(s, kind) {
			for i, b := range branches {
				if w.cb.CombinerItemStart == nil || w.cb.CombinerItemStart(s, kind, i, b) {
					w.schemaContent(b)
				}
				if w.cb.CombinerItemEnd != nil {
					w.cb.CombinerItemEnd(s, kind, i, b)
				}
			}
		}
		if w.cb.CombinerEnd != nil {
			w.cb.CombinerEnd(s, kind)
		}
	}
}
