package diagram

import (
	"fmt"
	"strings"

	"github.com/axonops/openapi-diagram/internal/schema"
)

// valuePropertyName names the implicit property of primitive wrappers and root arrays.
const valuePropertyName = "value"

// unboundedSuffix marks an array type whose nesting depth is cyclic.
const unboundedSuffix = "[]..."

// SharedSchemaResolver maps a node to the component schemas it was inlined from.
type SharedSchemaResolver interface {
	SharedSchemas(n *schema.Node) []schema.SharedSchema
}

type classEntry struct {
	class *SchemaClass
	// primitive is the implicit property of a class wrapping a non-object schema.
	primitive *SchemaProperty
}

type container struct {
	class  *SchemaClass
	schema *schema.Node
	root   bool
	entry  *classEntry
}

// GraphBuilder is the state machine driven by the document walker. Every
// Create/Enter call pushes exactly one rollback entry, and Back undoes the
// most recent one. Calls that return false ask the caller not to descend.
//
// A GraphBuilder is not safe for concurrent use.
type GraphBuilder struct {
	resolver SharedSchemaResolver

	classes    []*SchemaClass
	relations  []*SchemaRelation
	roots      []*RootReference
	hashToNode map[string]*classEntry

	containerStack []*container
	propertyStack  []*SchemaProperty
	combinerStack  []schema.Combiner
	rollbackStack  []func()
}

// NewGraphBuilder creates an empty builder.
func NewGraphBuilder(resolver SharedSchemaResolver) *GraphBuilder {
	return &GraphBuilder{
		resolver:   resolver,
		hashToNode: make(map[string]*classEntry),
	}
}

// CreateRootSchema registers a schema root found at ptr and opens its class.
// altTitle names the class when the schema has no title of its own.
// It returns true when the class was created by this call.
func (b *GraphBuilder) CreateRootSchema(ptr string, s *schema.Node, altTitle string) bool {
	e, isNew := b.getOrCreateSchema(s, altTitle)
	b.roots = append(b.roots, &RootReference{Pointer: ptr, ClassKey: e.class.Key})
	b.pushRollback(b.pushContainer(e, s, true))
	return isNew
}

// EnterProperty adds p to the open class and links it to the class of its type.
func (b *GraphBuilder) EnterProperty(p *schema.Property) bool {
	return b.createPropertyAndConnection(p.Name, p.Schema, false, 0, p.Deprecated)
}

// EnterItems handles the items of an array. Items of a root array become the
// implicit value property of the root class; other items pass through.
func (b *GraphBuilder) EnterItems(parent, items *schema.Node) bool {
	top := b.currentContainer()
	if top.root && top.schema == parent {
		if top.entry.primitive != nil {
			b.pushRollback(nil)
			return false
		}
		return b.createRootArrayPropertyAndConnection(items)
	}
	b.pushRollback(nil)
	return true
}

// EnterCombiner opens a oneOf, anyOf or allOf list. allOf contributes no
// alternatives and is not descended.
func (b *GraphBuilder) EnterCombiner(kind schema.Combiner) bool {
	b.combinerStack = append(b.combinerStack, kind)
	b.pushRollback(func() {
		b.combinerStack = b.combinerStack[:len(b.combinerStack)-1]
	})
	return kind != schema.CombinerAllOf
}

// EnterCombinerItem adds the index-th branch of the open combiner as an
// alternative property.
func (b *GraphBuilder) EnterCombinerItem(index int, branch *schema.Node) bool {
	return b.CreateAlternativeCombinerPropertyAndConnection(index, branch)
}

// CreateAlternativeCombinerPropertyAndConnection adds a synthetic property
// named after the open combiner and the branch index, e.g. "oneOf-0".
func (b *GraphBuilder) CreateAlternativeCombinerPropertyAndConnection(index int, branch *schema.Node) bool {
	if len(b.combinerStack) == 0 {
		panic(&ContractError{Reason: "combiner item outside of a combiner", Origins: originsOf(branch)})
	}
	kind := b.combinerStack[len(b.combinerStack)-1]
	name := fmt.Sprintf("%s-%d", kind, index)
	return b.createPropertyAndConnection(name, branch, true, 0, false)
}

// Back undoes the most recent Create/Enter call.
func (b *GraphBuilder) Back() {
	n := len(b.rollbackStack)
	if n == 0 {
		panic(&ContractError{Reason: "back called without a matching enter"})
	}
	undo := b.rollbackStack[n-1]
	b.rollbackStack = b.rollbackStack[:n-1]
	if undo != nil {
		undo()
	}
}

// Build returns the graph built so far. All entered elements must have been left.
func (b *GraphBuilder) Build() (*Graph, error) {
	if len(b.rollbackStack) != 0 {
		return nil, &ContractError{Reason: fmt.Sprintf("%d elements were entered but not left", len(b.rollbackStack))}
	}
	return &Graph{
		Classes:   append([]*SchemaClass(nil), b.classes...),
		Relations: append([]*SchemaRelation(nil), b.relations...),
		Roots:     append([]*RootReference(nil), b.roots...),
	}, nil
}

func (b *GraphBuilder) getOrCreateSchema(s *schema.Node, altTitle string) (*classEntry, bool) {
	key := classKey(s)
	if e, ok := b.hashToNode[key]; ok {
		e.class.addOccurrence(s)
		return e, false
	}

	target, depth, unbounded := unwrap(s)
	c := &SchemaClass{
		Key:                 key,
		Name:                className(s, target, altTitle),
		IsClass:             !unbounded && target.IsObject(),
		SharedSchemaObjects: b.sharedSchemas(s),
	}
	c.addOccurrence(s)
	e := &classEntry{class: c}

	if unbounded || !(target.IsObject() || target.IsCombiner()) {
		e.primitive = &SchemaProperty{
			Key:                 propertyKey(key, valuePropertyName),
			Name:                valuePropertyName,
			FooName:             true,
			PropertyType:        typeString(baseTypeName(target), depth, unbounded),
			SchemaObject:        s,
			SharedSchemaObjects: b.sharedSchemas(target),
		}
		c.Properties = append(c.Properties, e.primitive)
	}

	b.classes = append(b.classes, c)
	b.hashToNode[key] = e
	return e, true
}

func (b *GraphBuilder) createPropertyAndConnection(name string, s *schema.Node, synthetic bool, extraDepth int, deprecated bool) bool {
	owner := b.currentContainer()
	if s == nil {
		panic(&ContractError{Reason: fmt.Sprintf("property %q has no schema", name), Origins: originsOf(owner.schema)})
	}
	target, depth, unbounded := unwrap(s)

	shared := b.sharedSchemas(s)
	if len(shared) == 0 {
		shared = b.sharedSchemas(target)
	}
	prop := &SchemaProperty{
		Key:                    propertyKey(owner.class.Key, name),
		Name:                   name,
		FooName:                synthetic,
		Required:               !synthetic && owner.class.requires(name),
		Deprecated:             deprecated || (!synthetic && owner.class.deprecates(name)),
		PropertyTypeDeprecated: target.IsShared() && target.Deprecated,
		SchemaObject:           s,
		SharedSchemaObjects:    shared,
	}
	owner.class.Properties = append(owner.class.Properties, prop)
	b.propertyStack = append(b.propertyStack, prop)

	class, descend := b.createNestedSchemaAndConnection(s, func() {
		b.propertyStack = b.propertyStack[:len(b.propertyStack)-1]
	})

	base := baseTypeName(target)
	if class != nil {
		base = class.Name
	}
	prop.PropertyType = typeString(base, depth+extraDepth, unbounded)
	return descend
}

// createRootArrayPropertyAndConnection turns the open root class into an
// array wrapper whose value property holds the items type.
func (b *GraphBuilder) createRootArrayPropertyAndConnection(items *schema.Node) bool {
	b.currentContainer().class.IsClass = false
	return b.createPropertyAndConnection(valuePropertyName, items, true, 1, false)
}

// createNestedSchemaAndConnection links the current property to the class of
// s when s unwraps to an object, a combiner or a shared schema, opening that
// class when it is new. It pushes a single rollback entry that also runs undo.
func (b *GraphBuilder) createNestedSchemaAndConnection(s *schema.Node, undo func()) (*SchemaClass, bool) {
	target, _, unbounded := unwrap(s)
	if unbounded || !linkable(target) {
		b.pushRollback(undo)
		return nil, false
	}

	e, isNew := b.getOrCreateSchema(target, "")
	if leaf := b.currentProperty(); leaf != nil {
		b.relations = append(b.relations, &SchemaRelation{
			LeafPropertyKey:   leaf.Key,
			ReferenceClassKey: e.class.Key,
			Primary:           isNew,
		})
	}
	if !isNew {
		b.pushRollback(undo)
		return e.class, false
	}

	pop := b.pushContainer(e, target, false)
	b.pushRollback(func() {
		pop()
		if undo != nil {
			undo()
		}
	})
	return e.class, true
}

func (b *GraphBuilder) pushContainer(e *classEntry, s *schema.Node, root bool) func() {
	b.containerStack = append(b.containerStack, &container{class: e.class, schema: s, root: root, entry: e})
	if e.primitive != nil {
		b.propertyStack = append(b.propertyStack, e.primitive)
	}
	return func() {
		b.containerStack = b.containerStack[:len(b.containerStack)-1]
		if e.primitive != nil {
			b.propertyStack = b.propertyStack[:len(b.propertyStack)-1]
		}
	}
}

func (b *GraphBuilder) pushRollback(undo func()) {
	b.rollbackStack = append(b.rollbackStack, undo)
}

func (b *GraphBuilder) currentContainer() *container {
	if len(b.containerStack) == 0 {
		panic(&ContractError{Reason: "no open class"})
	}
	return b.containerStack[len(b.containerStack)-1]
}

func (b *GraphBuilder) currentProperty() *SchemaProperty {
	if len(b.propertyStack) == 0 {
		return nil
	}
	return b.propertyStack[len(b.propertyStack)-1]
}

func (b *GraphBuilder) sharedSchemas(n *schema.Node) []schema.SharedSchema {
	if b.resolver == nil || !n.IsShared() {
		return nil
	}
	return b.resolver.SharedSchemas(n)
}

// classKey is the dedup key of a schema: its hash plus its display title.
func classKey(s *schema.Node) string {
	if s == nil {
		panic(&ContractError{Reason: "nil schema"})
	}
	if s.Hash == "" {
		panic(&ContractError{Reason: "schema was not hashed", Origins: s.Origins})
	}
	return s.Hash + s.DisplayTitle()
}

func propertyKey(ownerKey, name string) string {
	return ownerKey + "[" + name + "]"
}

// linkable reports whether a property type gets its own class.
func linkable(target *schema.Node) bool {
	return target.IsObject() || target.IsCombiner() || target.IsShared()
}

// unwrap follows array items to the element schema, counting the depth.
// A chain that revisits an array is reported as unbounded.
func unwrap(s *schema.Node) (target *schema.Node, depth int, unbounded bool) {
	var chain []*schema.Node
	for s.IsArray() {
		for _, seen := range chain {
			if seen == s {
				return s, depth, true
			}
		}
		chain = append(chain, s)
		s = s.Items
		depth++
	}
	return s, depth, false
}

func className(s, target *schema.Node, altTitle string) string {
	if title := s.DisplayTitle(); title != "" {
		return title
	}
	if altTitle != "" {
		return altTitle
	}
	if s.TitleHint != "" {
		return s.TitleHint
	}
	if target.TitleHint != "" {
		return target.TitleHint
	}
	if kind, ok := target.Combiner(); ok {
		return string(kind)
	}
	if name := primitiveTypeName(target); name != "" {
		return name
	}
	return "unknown"
}

// baseTypeName names a property type that has no class of its own.
func baseTypeName(target *schema.Node) string {
	if title := target.DisplayTitle(); title != "" {
		return title
	}
	if name := primitiveTypeName(target); name != "" {
		return name
	}
	if kind, ok := target.Combiner(); ok {
		return string(kind)
	}
	return "unknown"
}

func primitiveTypeName(n *schema.Node) string {
	if n.Type == "" {
		return ""
	}
	if n.Format != "" {
		return n.Type + "(" + n.Format + ")"
	}
	return n.Type
}

func typeString(base string, depth int, unbounded bool) string {
	if unbounded {
		return base + unboundedSuffix
	}
	return base + strings.Repeat("[]", depth)
}

func originsOf(n *schema.Node) []string {
	if n == nil {
		return nil
	}
	return n.Origins
}
