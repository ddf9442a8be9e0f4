package diagram

// Navigate returns the single root class selected by scope. Roots declared at
// or below the scope are considered first; when there are none, classes with
// a source node at exactly the scope pointer are.
func Navigate(g *Graph, scope Scope) (*SchemaClass, error) {
	var keys []string
	seen := make(map[string]bool)
	add := func(key string) {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	for _, r := range g.Roots {
		if scope.Contains(r.Pointer) {
			add(r.ClassKey)
		}
	}
	if len(keys) == 0 && !scope.IsEmpty() {
		ptr := scope.String()
		for _, c := range g.Classes {
			for _, o := range c.Origins() {
				if o == ptr {
					add(c.Key)
					break
				}
			}
		}
	}

	switch len(keys) {
	case 0:
		return nil, &NavigationError{Reason: ReasonNoMatchedNodes, Scope: scope.String()}
	case 1:
		return g.Class(keys[0]), nil
	default:
		return nil, &NavigationError{Reason: ReasonMultipleMatchedNodes, Scope: scope.String(), Candidates: keys}
	}
}

// Subgraph returns the classes reachable from the class with the given key,
// and the relations between them. Order follows g.
func Subgraph(g *Graph, key string) *Graph {
	reachable := map[string]bool{key: true}
	queue := []string{key}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, r := range g.RelationsFrom(cur) {
			if !reachable[r.ReferenceClassKey] {
				reachable[r.ReferenceClassKey] = true
				queue = append(queue, r.ReferenceClassKey)
			}
		}
	}

	out := &Graph{}
	props := make(map[string]bool)
	for _, c := range g.Classes {
		if !reachable[c.Key] {
			continue
		}
		out.Classes = append(out.Classes, c)
		for _, p := range c.Properties {
			props[p.Key] = true
		}
	}
	for _, r := range g.Relations {
		if props[r.LeafPropertyKey] && reachable[r.ReferenceClassKey] {
			out.Relations = append(out.Relations, r)
		}
	}
	for _, r := range g.Roots {
		if r.ClassKey == key {
			out.Roots = append(out.Roots, r)
		}
	}
	return out
}
