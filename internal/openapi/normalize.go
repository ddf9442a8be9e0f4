package openapi

import (
	"github.com/axonops/openapi-diagram/internal/schema"
)

// roots returns every schema root of the document in declaration order.
func roots(doc *Document) []*schema.Node {
	var out []*schema.Node
	add := func(n *schema.Node) {
		if n != nil {
			out = append(out, n)
		}
	}
	addContent := func(content []*MediaType) {
		for _, mt := range content {
			add(mt.Schema)
		}
	}
	addParams := func(params []*Parameter) {
		for _, p := range params {
			add(p.Schema)
			addContent(p.Content)
		}
	}

	for _, c := range doc.Components {
		add(c.Schema)
	}
	for _, item := range doc.Paths {
		addParams(item.Parameters)
		for _, op := range item.Operations {
			addParams(op.Parameters)
			if op.RequestBody != nil {
				addContent(op.RequestBody.Content)
			}
			for _, resp := range op.Responses {
				for _, h := range resp.Headers {
					add(h.Schema)
				}
				addContent(resp.Content)
			}
		}
	}
	return out
}

// children returns the direct sub-schemas of n.
func children(n *schema.Node) []*schema.Node {
	var out []*schema.Node
	if n.Items != nil {
		out = append(out, n.Items)
	}
	for _, p := range n.Properties {
		out = append(out, p.Schema)
	}
	out = append(out, n.OneOf...)
	out = append(out, n.AnyOf...)
	out = append(out, n.AllOf...)
	return out
}

// visitAll calls fn once for every schema node reachable from the document.
func visitAll(doc *Document, fn func(*schema.Node)) {
	visited := make(map[*schema.Node]bool)
	var visit func(n *schema.Node)
	visit = func(n *schema.Node) {
		if n == nil || visited[n] {
			return
		}
		visited[n] = true
		fn(n)
		for _, c := range children(n) {
			visit(c)
		}
	}
	for _, r := range roots(doc) {
		visit(r)
	}
}

type visitState uint8

const (
	stateVisiting visitState = iota + 1
	stateDone
)

// mergeAllOf folds allOf lists whose branches are all plain objects into their
// owner. Branches still being visited (recursive allOf) are left unmerged.
func mergeAllOf(doc *Document) {
	states := make(map[*schema.Node]visitState)

	var visit func(n *schema.Node)
	visit = func(n *schema.Node) {
		if n == nil || states[n] != 0 {
			return
		}
		states[n] = stateVisiting
		for _, c := range children(n) {
			visit(c)
		}
		if len(n.AllOf) > 0 && mergeable(n.AllOf, states) {
			mergeInto(n)
		}
		states[n] = stateDone
	}

	for _, r := range roots(doc) {
		visit(r)
	}
}

func mergeable(branches []*schema.Node, states map[*schema.Node]visitState) bool {
	for _, b := range branches {
		if states[b] != stateDone {
			return false
		}
		if !b.IsObject() || b.IsCombiner() || b.IsArray() {
			return false
		}
	}
	return true
}

func mergeInto(n *schema.Node) {
	own := n.Properties
	n.Properties = nil
	add := func(p *schema.Property) {
		for i, existing := range n.Properties {
			if existing.Name == p.Name {
				n.Properties[i] = p
				return
			}
		}
		n.Properties = append(n.Properties, p)
	}
	required := make(map[string]bool)
	addRequired := func(names []string) {
		for _, r := range names {
			if !required[r] {
				required[r] = true
				n.Required = append(n.Required, r)
			}
		}
	}

	ownRequired := n.Required
	n.Required = nil
	for _, b := range n.AllOf {
		for _, p := range b.Properties {
			add(p)
		}
		addRequired(b.Required)
		if b.Deprecated {
			n.Deprecated = true
		}
	}
	for _, p := range own {
		add(p)
	}
	addRequired(ownRequired)

	n.Type = schema.TypeObject
	n.AllOf = nil
}

// unwrapItems follows array items to the first non-array schema.
func unwrapItems(n *schema.Node) *schema.Node {
	seen := make(map[*schema.Node]bool)
	for n.IsArray() && !seen[n] {
		seen[n] = true
		n = n.Items
	}
	return n
}

// assignTitleHints names untitled inline object and combiner schemas after the
// property that declares them.
func assignTitleHints(doc *Document) {
	visitAll(doc, func(n *schema.Node) {
		for _, p := range n.Properties {
			target := unwrapItems(p.Schema)
			if target.DisplayTitle() != "" || target.TitleHint != "" || target.IsShared() {
				continue
			}
			if target.IsObject() || target.IsCombiner() {
				target.TitleHint = p.Name
			}
		}
	})
}
