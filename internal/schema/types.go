// Package schema provides the normalized schema node model consumed by the diagram builder.
package schema

// Combiner identifies a JSON Schema composition keyword.
type Combiner string

const (
	CombinerOneOf Combiner = "oneOf"
	CombinerAnyOf Combiner = "anyOf"
	CombinerAllOf Combiner = "allOf"
)

// Combiners lists the composition keywords in visitation order.
var Combiners = []Combiner{CombinerOneOf, CombinerAnyOf, CombinerAllOf}

// Primitive and structural JSON Schema type names.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeNull    = "null"
)

// SharedSchema is a named component schema a node was inlined from.
type SharedSchema struct {
	Name   string
	Schema *Node
}

// Property is a named entry of an object schema's "properties".
// Deprecated is the flag declared at the property site (e.g. next to a $ref),
// which is independent of the referenced schema's own flag.
type Property struct {
	Name       string
	Schema     *Node
	Deprecated bool
}

// Node is a single normalized schema. Nodes reached through a $ref are shared
// pointers, so recursive schemas form pointer cycles.
type Node struct {
	Type       string
	Title      string
	Format     string
	Deprecated bool
	Items      *Node
	Properties []*Property
	Required   []string
	OneOf      []*Node
	AnyOf      []*Node
	AllOf      []*Node

	// Extra holds the remaining keywords (enum, pattern, minimum, ...) that
	// participate in structural hashing.
	Extra map[string]interface{}

	// Hash is the tolerant structural hash assigned by the normalizer.
	Hash string
	// SyntheticTitle is the component name assigned where Title is absent.
	// Like Title it takes part in the dedup key.
	SyntheticTitle string
	// TitleHint is a context-derived name (e.g. the owning property) used only
	// for display.
	TitleHint string
	// InlinedRefs names the component schemas this node was inlined from.
	InlinedRefs []string
	// Origins lists the JSON pointers at which this node occurs in the document.
	Origins []string
}

// IsArray reports whether the node describes an array with an items schema.
func (n *Node) IsArray() bool {
	return n != nil && n.Items != nil
}

// IsObject reports whether the node describes an object shape.
func (n *Node) IsObject() bool {
	return n != nil && (n.Type == TypeObject || len(n.Properties) > 0)
}

// Branches returns the sub-schemas of the given combiner.
func (n *Node) Branches(kind Combiner) []*Node {
	if n == nil {
		return nil
	}
	switch kind {
	case CombinerOneOf:
		return n.OneOf
	case CombinerAnyOf:
		return n.AnyOf
	case CombinerAllOf:
		return n.AllOf
	}
	return nil
}

// Combiner returns the first combiner present on the node, if any.
func (n *Node) Combiner() (Combiner, bool) {
	for _, kind := range Combiners {
		if len(n.Branches(kind)) > 0 {
			return kind, true
		}
	}
	return "", false
}

// IsCombiner reports whether the node carries a oneOf, anyOf or allOf list.
func (n *Node) IsCombiner() bool {
	_, ok := n.Combiner()
	return ok
}

// IsShared reports whether the node was inlined from a named component schema.
func (n *Node) IsShared() bool {
	return n != nil && len(n.InlinedRefs) > 0
}

// DisplayTitle returns the explicit title, falling back to the synthetic one.
func (n *Node) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	return n.SyntheticTitle
}

// Property returns the named property, or nil.
func (n *Node) Property(name string) *Property {
	for _, p := range n.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// IsRequired reports whether name appears in the node's required list.
func (n *Node) IsRequired(name string) bool {
	for _, r := range n.Required {
		if r == name {
			return true
		}
	}
	return false
}

// AddOrigin records a JSON pointer at which the node occurs.
func (n *Node) AddOrigin(pointer string) {
	for _, o := range n.Origins {
		if o == pointer {
			return
		}
	}
	n.Origins = append(n.Origins, pointer)
}
