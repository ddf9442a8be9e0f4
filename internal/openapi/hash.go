package openapi

import (
	"fmt"
	"math"
	"sort"

	"github.com/axonops/openapi-diagram/internal/schema"
)

// hasher computes tolerant structural hashes over a possibly cyclic node graph.
// A reference back to a node that is still on the stack is written as its
// relative stack distance, so the result does not depend on where the walk
// started. Hashes are memoized only for subtrees that never reach above
// themselves.
type hasher struct {
	memo    map[*schema.Node]string
	onStack map[*schema.Node]int
	depth   int
}

func newHasher() *hasher {
	return &hasher{
		memo:    make(map[*schema.Node]string),
		onStack: make(map[*schema.Node]int),
	}
}

// Hash returns the tolerant hash of n as if n were the root of the walk.
func (h *hasher) Hash(n *schema.Node) string {
	sum, _ := h.visit(n)
	return sum
}

func (h *hasher) visit(n *schema.Node) (string, int) {
	if sum, ok := h.memo[n]; ok {
		return sum, math.MaxInt
	}
	if idx, ok := h.onStack[n]; ok {
		return fmt.Sprintf("cycle:%d", h.depth-idx), idx
	}

	depth := h.depth
	h.onStack[n] = depth
	h.depth++
	low := math.MaxInt

	ref := func(c *schema.Node) string {
		sum, l := h.visit(c)
		if l < low {
			low = l
		}
		if title := c.DisplayTitle(); title != "" {
			return sum + "|" + title
		}
		return sum
	}

	shape := make(map[string]interface{})
	if n.Type != "" {
		shape["type"] = n.Type
	}
	if n.Format != "" {
		shape["format"] = n.Format
	}
	if n.Items != nil {
		shape["items"] = ref(n.Items)
	}
	if len(n.Properties) > 0 {
		props := make(map[string]interface{}, len(n.Properties))
		for _, p := range n.Properties {
			props[p.Name] = ref(p.Schema)
		}
		shape["properties"] = props
	}
	if len(n.Required) > 0 {
		required := append([]string(nil), n.Required...)
		sort.Strings(required)
		shape["required"] = required
	}
	for _, kind := range schema.Combiners {
		branches := n.Branches(kind)
		if len(branches) == 0 {
			continue
		}
		refs := make([]interface{}, len(branches))
		for i, b := range branches {
			refs[i] = ref(b)
		}
		shape[string(kind)] = refs
	}
	for k, v := range n.Extra {
		if k == "enum" {
			v = sortedEnum(v)
		}
		shape[k] = v
	}

	delete(h.onStack, n)
	h.depth--

	sum := schema.Fingerprint(shape)
	if low >= depth {
		h.memo[n] = sum
		low = math.MaxInt
	}
	return sum, low
}

// sortedEnum orders enum values by their canonical form.
func sortedEnum(v interface{}) interface{} {
	values, ok := v.([]interface{})
	if !ok {
		return v
	}
	keys := make([]string, len(values))
	for i, item := range values {
		keys[i] = schema.Canonicalize(item)
	}
	sort.Strings(keys)
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

// assignHashes stores the tolerant hash on every reachable node.
func assignHashes(doc *Document) {
	h := newHasher()
	visitAll(doc, func(n *schema.Node) {
		n.Hash = h.Hash(n)
	})
}
