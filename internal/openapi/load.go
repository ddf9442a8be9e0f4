package openapi

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/axonops/openapi-diagram/internal/schema"
)

const componentSchemaPrefix = "#/components/schemas/"

// maxDeclRefHops bounds $ref chains between non-schema components.
const maxDeclRefHops = 32

var httpMethods = map[string]bool{
	"get":     true,
	"put":     true,
	"post":    true,
	"delete":  true,
	"options": true,
	"head":    true,
	"patch":   true,
	"trace":   true,
}

// Load parses a JSON or YAML OpenAPI 3.x document and normalizes its schemas:
// local component refs are resolved by pointer sharing, synthetic titles and
// origins are recorded, and every schema node receives a tolerant hash.
func Load(data []byte, opts LoadOptions) (*Document, error) {
	root, err := decodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be an object", ErrInvalidDocument)
	}

	var decoded interface{}
	if err := root.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	raw, _ := jsonCompatible(decoded).(map[string]interface{})

	l := newLoader(root)
	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	doc.raw = raw
	doc.Fingerprint = schema.Fingerprint(raw)

	if opts.MergeAllOf {
		mergeAllOf(doc)
	}
	assignTitleHints(doc)
	assignHashes(doc)

	if opts.Validate {
		if err := ValidateComponents(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// decodeNode returns the top-level YAML node of data. JSON input is decoded
// with an order-preserving reader so tab-indented files are accepted.
func decodeNode(data []byte) (*yaml.Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if trimmed[0] == '{' {
		return decodeJSONNode(trimmed)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	return resolveAlias(doc.Content[0]), nil
}

type loader struct {
	root        *yaml.Node
	components  *yaml.Node
	schemaOrder []string
	schemaRaw   map[string]*yaml.Node
	nodes       map[string]*schema.Node
}

func newLoader(root *yaml.Node) *loader {
	return &loader{
		root:      root,
		schemaRaw: make(map[string]*yaml.Node),
		nodes:     make(map[string]*schema.Node),
	}
}

func (l *loader) load() (*Document, error) {
	version := mappingValue(l.root, "openapi")
	if version == nil {
		return nil, fmt.Errorf("%w: missing openapi version field", ErrInvalidDocument)
	}
	doc := &Document{OpenAPI: version.Value}
	if info := mappingValue(l.root, "info"); info != nil {
		doc.Title = scalarString(mappingValue(info, "title"))
		doc.Version = scalarString(mappingValue(info, "version"))
	}

	l.components = mappingValue(l.root, "components")
	err := eachPair(mappingValue(l.components, "schemas"), func(name string, v *yaml.Node) error {
		l.schemaOrder = append(l.schemaOrder, name)
		l.schemaRaw[name] = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, name := range l.schemaOrder {
		n, err := l.component(name)
		if err != nil {
			return nil, err
		}
		doc.Components = append(doc.Components, &NamedSchema{Name: name, Schema: n})
	}

	err = eachPair(mappingValue(l.root, "paths"), func(path string, v *yaml.Node) error {
		item, err := l.parsePathItem(path, v)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		doc.Paths = append(doc.Paths, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// finalName follows pure-$ref alias components to the component that declares a schema.
func (l *loader) finalName(name string) (string, error) {
	seen := make(map[string]bool)
	cur := name
	for {
		if seen[cur] {
			return "", fmt.Errorf("%w: %s", ErrRefCycle, name)
		}
		seen[cur] = true
		raw, ok := l.schemaRaw[cur]
		if !ok {
			return "", fmt.Errorf("%w: component schema %q not found", ErrUnsupportedRef, cur)
		}
		ref, ok := pureRef(raw)
		if !ok {
			return cur, nil
		}
		target, err := componentSchemaName(ref)
		if err != nil {
			return "", err
		}
		cur = target
	}
}

// component returns the shared node of a component schema, creating it on first use.
// The node is registered before it is filled so recursive refs resolve to it.
func (l *loader) component(name string) (*schema.Node, error) {
	final, err := l.finalName(name)
	if err != nil {
		return nil, err
	}
	if n, ok := l.nodes[final]; ok {
		return n, nil
	}

	n := &schema.Node{InlinedRefs: []string{final}}
	n.AddOrigin(componentPointer(final))
	for _, decl := range l.schemaOrder {
		if decl == final {
			continue
		}
		if f, err := l.finalName(decl); err == nil && f == final {
			n.InlinedRefs = append(n.InlinedRefs, decl)
			n.AddOrigin(componentPointer(decl))
		}
	}
	l.nodes[final] = n

	if err := l.fillSchema(n, resolveAlias(l.schemaRaw[final]), componentPointer(final)); err != nil {
		return nil, fmt.Errorf("component schema %s: %w", final, err)
	}
	if n.Title == "" {
		n.SyntheticTitle = final
	}
	return n, nil
}

func (l *loader) parseSchema(y *yaml.Node, ptr string) (*schema.Node, error) {
	y = resolveAlias(y)
	if y == nil {
		return nil, fmt.Errorf("%w: missing schema at %s", ErrInvalidDocument, ptr)
	}
	switch y.Kind {
	case yaml.ScalarNode:
		// boolean schema
		n := &schema.Node{}
		n.AddOrigin(ptr)
		return n, nil
	case yaml.MappingNode:
	default:
		return nil, fmt.Errorf("%w: schema at %s must be an object", ErrInvalidDocument, ptr)
	}

	if ref := mappingValue(y, "$ref"); ref != nil {
		name, err := componentSchemaName(ref.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ptr, err)
		}
		n, err := l.component(name)
		if err != nil {
			return nil, err
		}
		n.AddOrigin(ptr)
		return n, nil
	}

	n := &schema.Node{}
	n.AddOrigin(ptr)
	if err := l.fillSchema(n, y, ptr); err != nil {
		return nil, err
	}
	return n, nil
}

func (l *loader) fillSchema(n *schema.Node, y *yaml.Node, ptr string) error {
	if y.Kind != yaml.MappingNode {
		return nil
	}
	return eachPair(y, func(key string, v *yaml.Node) error {
		switch key {
		case "type":
			t, nullable := schemaType(v)
			n.Type = t
			if nullable {
				setExtra(n, "nullable", true)
			}
		case "title":
			n.Title = scalarString(v)
		case "format":
			n.Format = scalarString(v)
		case "deprecated":
			n.Deprecated = scalarBool(v)
		case "required":
			n.Required = scalarStrings(v)
		case "items":
			items, err := l.parseSchema(v, JoinPointer(ptr, "items"))
			if err != nil {
				return err
			}
			n.Items = items
		case "properties":
			return eachPair(v, func(name string, pv *yaml.Node) error {
				ps, err := l.parseSchema(pv, JoinPointer(ptr, "properties", name))
				if err != nil {
					return err
				}
				n.Properties = append(n.Properties, &schema.Property{
					Name:       name,
					Schema:     ps,
					Deprecated: scalarBool(mappingValue(resolveAlias(pv), "deprecated")),
				})
				return nil
			})
		case "oneOf", "anyOf", "allOf":
			var branches []*schema.Node
			for i, bv := range resolveAlias(v).Content {
				b, err := l.parseSchema(bv, JoinPointer(ptr, key, fmt.Sprint(i)))
				if err != nil {
					return err
				}
				branches = append(branches, b)
			}
			switch schema.Combiner(key) {
			case schema.CombinerOneOf:
				n.OneOf = branches
			case schema.CombinerAnyOf:
				n.AnyOf = branches
			case schema.CombinerAllOf:
				n.AllOf = branches
			}
		case "description", "example", "examples", "default", "externalDocs", "xml",
			"$schema", "$id", "$comment", "readOnly", "writeOnly":
			// cosmetic
		default:
			if strings.HasPrefix(key, "x-") {
				return nil
			}
			var val interface{}
			if err := v.Decode(&val); err != nil {
				return fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, ptr, key, err)
			}
			setExtra(n, key, jsonCompatible(val))
		}
		return nil
	})
}

func (l *loader) parsePathItem(path string, y *yaml.Node) (*PathItem, error) {
	ptr := JoinPointer("", "paths", path)
	item := &PathItem{Path: path}
	err := eachPair(resolveAlias(y), func(key string, v *yaml.Node) error {
		switch {
		case key == "$ref":
			return fmt.Errorf("%w: path item reference %s", ErrUnsupportedRef, scalarString(v))
		case key == "parameters":
			params, err := l.parseParameters(v, JoinPointer(ptr, "parameters"))
			if err != nil {
				return err
			}
			item.Parameters = params
		case httpMethods[key]:
			op, err := l.parseOperation(key, v, JoinPointer(ptr, key))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			item.Operations = append(item.Operations, op)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (l *loader) parseOperation(method string, y *yaml.Node, ptr string) (*Operation, error) {
	y = resolveAlias(y)
	op := &Operation{
		Method:      method,
		OperationID: scalarString(mappingValue(y, "operationId")),
		Deprecated:  scalarBool(mappingValue(y, "deprecated")),
	}

	if pv := mappingValue(y, "parameters"); pv != nil {
		params, err := l.parseParameters(pv, JoinPointer(ptr, "parameters"))
		if err != nil {
			return nil, err
		}
		op.Parameters = params
	}

	if bv := mappingValue(y, "requestBody"); bv != nil {
		bv, err := l.resolveDecl(bv, "requestBodies")
		if err != nil {
			return nil, err
		}
		bptr := JoinPointer(ptr, "requestBody")
		content, err := l.parseContent(mappingValue(bv, "content"), JoinPointer(bptr, "content"))
		if err != nil {
			return nil, err
		}
		op.RequestBody = &RequestBody{
			Required: scalarBool(mappingValue(bv, "required")),
			Content:  content,
		}
	}

	err := eachPair(mappingValue(y, "responses"), func(code string, rv *yaml.Node) error {
		rv, err := l.resolveDecl(rv, "responses")
		if err != nil {
			return err
		}
		rptr := JoinPointer(ptr, "responses", code)
		resp := &Response{
			Code:        code,
			Description: scalarString(mappingValue(rv, "description")),
		}
		err = eachPair(mappingValue(rv, "headers"), func(name string, hv *yaml.Node) error {
			hv, err := l.resolveDecl(hv, "headers")
			if err != nil {
				return err
			}
			header := &Header{Name: name, Deprecated: scalarBool(mappingValue(hv, "deprecated"))}
			if sv := mappingValue(hv, "schema"); sv != nil {
				header.Schema, err = l.parseSchema(sv, JoinPointer(rptr, "headers", name, "schema"))
				if err != nil {
					return err
				}
			}
			resp.Headers = append(resp.Headers, header)
			return nil
		})
		if err != nil {
			return err
		}
		resp.Content, err = l.parseContent(mappingValue(rv, "content"), JoinPointer(rptr, "content"))
		if err != nil {
			return err
		}
		op.Responses = append(op.Responses, resp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (l *loader) parseParameters(y *yaml.Node, ptr string) ([]*Parameter, error) {
	y = resolveAlias(y)
	if y == nil || y.Kind != yaml.SequenceNode {
		return nil, nil
	}
	params := make([]*Parameter, 0, len(y.Content))
	for i, pv := range y.Content {
		pv, err := l.resolveDecl(pv, "parameters")
		if err != nil {
			return nil, err
		}
		p := &Parameter{
			Name:       scalarString(mappingValue(pv, "name")),
			In:         scalarString(mappingValue(pv, "in")),
			Required:   scalarBool(mappingValue(pv, "required")),
			Deprecated: scalarBool(mappingValue(pv, "deprecated")),
		}
		pptr := JoinPointer(ptr, strconv.Itoa(i))
		if sv := mappingValue(pv, "schema"); sv != nil {
			p.Schema, err = l.parseSchema(sv, JoinPointer(pptr, "schema"))
			if err != nil {
				return nil, err
			}
		}
		p.Content, err = l.parseContent(mappingValue(pv, "content"), JoinPointer(pptr, "content"))
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func (l *loader) parseContent(y *yaml.Node, ptr string) ([]*MediaType, error) {
	var content []*MediaType
	err := eachPair(y, func(name string, mv *yaml.Node) error {
		mt := &MediaType{Name: name}
		if sv := mappingValue(resolveAlias(mv), "schema"); sv != nil {
			s, err := l.parseSchema(sv, JoinPointer(ptr, name, "schema"))
			if err != nil {
				return err
			}
			mt.Schema = s
		}
		content = append(content, mt)
		return nil
	})
	return content, err
}

// resolveDecl follows a "#/components/<kind>/<name>" reference of a non-schema declaration.
func (l *loader) resolveDecl(y *yaml.Node, kind string) (*yaml.Node, error) {
	y = resolveAlias(y)
	prefix := "#/components/" + kind + "/"
	for hops := 0; hops < maxDeclRefHops; hops++ {
		ref := mappingValue(y, "$ref")
		if ref == nil {
			return y, nil
		}
		if !strings.HasPrefix(ref.Value, prefix) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref.Value)
		}
		target := mappingValue(mappingValue(l.components, kind), unescapeToken(strings.TrimPrefix(ref.Value, prefix)))
		if target == nil {
			return nil, fmt.Errorf("%w: %s not found", ErrUnsupportedRef, ref.Value)
		}
		y = resolveAlias(target)
	}
	return nil, fmt.Errorf("%w: too many hops resolving %s", ErrRefCycle, kind)
}

func componentSchemaName(ref string) (string, error) {
	if !strings.HasPrefix(ref, componentSchemaPrefix) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	rest := strings.TrimPrefix(ref, componentSchemaPrefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	return unescapeToken(rest), nil
}

func componentPointer(name string) string {
	return JoinPointer("", "components", "schemas", name)
}

// pureRef reports whether y is a mapping holding only a $ref.
func pureRef(y *yaml.Node) (string, bool) {
	y = resolveAlias(y)
	if y == nil || y.Kind != yaml.MappingNode || len(y.Content) != 2 {
		return "", false
	}
	if y.Content[0].Value != "$ref" {
		return "", false
	}
	return y.Content[1].Value, true
}

func schemaType(v *yaml.Node) (string, bool) {
	v = resolveAlias(v)
	if v.Kind == yaml.ScalarNode {
		return v.Value, false
	}
	var first string
	nullable := false
	for _, t := range v.Content {
		if t.Value == schema.TypeNull {
			nullable = true
			continue
		}
		if first == "" {
			first = t.Value
		}
	}
	if first == "" && nullable {
		return schema.TypeNull, false
	}
	return first, nullable
}

func setExtra(n *schema.Node, key string, val interface{}) {
	if n.Extra == nil {
		n.Extra = make(map[string]interface{})
	}
	n.Extra[key] = val
}
