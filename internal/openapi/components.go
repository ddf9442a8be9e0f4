package openapi

import (
	"github.com/axonops/openapi-diagram/internal/schema"
)

// ComponentResolver maps inlined-ref names back to the document's component schemas.
type ComponentResolver struct {
	components map[string]*schema.Node
}

// NewComponentResolver creates a resolver over the components of doc.
func NewComponentResolver(doc *Document) *ComponentResolver {
	r := &ComponentResolver{components: make(map[string]*schema.Node, len(doc.Components))}
	for _, c := range doc.Components {
		r.components[c.Name] = c.Schema
	}
	return r
}

// SharedSchemas returns the named component schemas n was inlined from.
func (r *ComponentResolver) SharedSchemas(n *schema.Node) []schema.SharedSchema {
	if n == nil || len(n.InlinedRefs) == 0 {
		return nil
	}
	out := make([]schema.SharedSchema, 0, len(n.InlinedRefs))
	for _, name := range n.InlinedRefs {
		if c, ok := r.components[name]; ok {
			out = append(out, schema.SharedSchema{Name: name, Schema: c})
		}
	}
	return out
}
