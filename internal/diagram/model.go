// Package diagram turns normalized OpenAPI schemas into a deduplicated graph of
// classes, properties and relations suitable for class-diagram rendering.
package diagram

import (
	"github.com/axonops/openapi-diagram/internal/schema"
)

// SchemaClass is a graph node representing one distinct schema.
type SchemaClass struct {
	// Key is the structural hash of the schema plus its display title.
	Key  string `json:"key"`
	Name string `json:"name"`
	// IsClass is false for primitive wrappers and root arrays.
	IsClass    bool              `json:"is_class"`
	Deprecated bool              `json:"deprecated,omitempty"`
	Properties []*SchemaProperty `json:"properties"`

	// SameHashObjects lists every source node merged into this class.
	SameHashObjects     []*schema.Node        `json:"-"`
	SharedSchemaObjects []schema.SharedSchema `json:"-"`
}

// Origins returns the JSON pointers of every merged source node.
func (c *SchemaClass) Origins() []string {
	var out []string
	seen := make(map[string]bool)
	for _, n := range c.SameHashObjects {
		for _, o := range n.Origins {
			if !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}
	return out
}

// SharedNames returns the names of the component schemas the class stands for.
func (c *SchemaClass) SharedNames() []string {
	return sharedNames(c.SharedSchemaObjects)
}

// Property returns the named property, or nil.
func (c *SchemaClass) Property(name string) *SchemaProperty {
	for _, p := range c.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// addOccurrence merges n into the class. Deprecation is not part of the hash,
// so a flag set on any occurrence carries over to the class and its properties.
func (c *SchemaClass) addOccurrence(n *schema.Node) {
	if n.Deprecated {
		c.Deprecated = true
	}
	for _, p := range n.Properties {
		if !p.Deprecated {
			continue
		}
		if existing := c.Property(p.Name); existing != nil && !existing.FooName {
			existing.Deprecated = true
		}
	}
	for _, existing := range c.SameHashObjects {
		if existing == n {
			return
		}
	}
	c.SameHashObjects = append(c.SameHashObjects, n)
}

// deprecates reports whether any merged source node marks property name deprecated.
func (c *SchemaClass) deprecates(name string) bool {
	for _, n := range c.SameHashObjects {
		for _, p := range n.Properties {
			if p.Name == name && p.Deprecated {
				return true
			}
		}
	}
	return false
}

// requires reports whether any merged source node lists name as required.
func (c *SchemaClass) requires(name string) bool {
	for _, n := range c.SameHashObjects {
		if n.IsRequired(name) {
			return true
		}
	}
	return false
}

// SchemaProperty is a named slot of a class.
type SchemaProperty struct {
	// Key is ownerKey[name].
	Key  string `json:"key"`
	Name string `json:"name"`
	// FooName marks synthetic properties (primitive wrappers, root array
	// items, combiner alternatives) whose name is not shown.
	FooName      bool   `json:"foo_name,omitempty"`
	PropertyType string `json:"type"`
	Required     bool   `json:"required,omitempty"`
	// Deprecated is the flag declared at the property site.
	Deprecated bool `json:"deprecated,omitempty"`
	// PropertyTypeDeprecated is set when the referenced shared schema is deprecated.
	PropertyTypeDeprecated bool `json:"type_deprecated,omitempty"`

	SchemaObject        *schema.Node          `json:"-"`
	SharedSchemaObjects []schema.SharedSchema `json:"-"`
}

// SharedNames returns the names of the component schemas the property type refers to.
func (p *SchemaProperty) SharedNames() []string {
	return sharedNames(p.SharedSchemaObjects)
}

// SchemaRelation is a directed edge from a property to the class it references.
// Exactly one incoming relation per class is Primary: the one that created it.
type SchemaRelation struct {
	LeafPropertyKey   string `json:"leaf_property_key"`
	ReferenceClassKey string `json:"reference_class_key"`
	Primary           bool   `json:"primary"`
}

// RootReference links a schema root of the document to its class.
type RootReference struct {
	Pointer  string `json:"pointer"`
	ClassKey string `json:"class_key"`
}

// Graph is the result of a build. Collections keep creation order.
type Graph struct {
	Classes   []*SchemaClass    `json:"classes"`
	Relations []*SchemaRelation `json:"relations"`
	Roots     []*RootReference  `json:"roots"`
}

// Class returns the class with the given key, or nil.
func (g *Graph) Class(key string) *SchemaClass {
	for _, c := range g.Classes {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// ClassByName returns the first class with the given display name, or nil.
func (g *Graph) ClassByName(name string) *SchemaClass {
	for _, c := range g.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// RelationsFrom returns the relations leaving the given class.
func (g *Graph) RelationsFrom(classKey string) []*SchemaRelation {
	c := g.Class(classKey)
	if c == nil {
		return nil
	}
	keys := make(map[string]bool, len(c.Properties))
	for _, p := range c.Properties {
		keys[p.Key] = true
	}
	var out []*SchemaRelation
	for _, r := range g.Relations {
		if keys[r.LeafPropertyKey] {
			out = append(out, r)
		}
	}
	return out
}

func sharedNames(shared []schema.SharedSchema) []string {
	if len(shared) == 0 {
		return nil
	}
	out := make([]string, len(shared))
	for i, s := range shared {
		out[i] = s.Name
	}
	return out
}
