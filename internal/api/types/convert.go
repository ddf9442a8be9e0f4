package types

import (
	"github.com/axonops/openapi-diagram/internal/diagram"
	"github.com/axonops/openapi-diagram/internal/registry"
)

// NewDiagramResponse converts a build result. With subgraph set and a selected
// root, only the classes reachable from the root are returned.
func NewDiagramResponse(res *registry.DiagramResult, subgraph bool) DiagramResponse {
	g := res.Graph
	if subgraph && res.Root != nil {
		g = diagram.Subgraph(g, res.Root.Key)
	}

	resp := DiagramResponse{
		Package:     res.Package,
		Version:     res.Version,
		Fingerprint: res.Fingerprint,
		Scope:       res.Scope.String(),
		Cached:      res.Cached,
		Classes:     make([]ClassResponse, 0, len(g.Classes)),
		Relations:   g.Relations,
		Roots:       g.Roots,
	}
	if resp.Relations == nil {
		resp.Relations = []*diagram.SchemaRelation{}
	}
	if resp.Roots == nil {
		resp.Roots = []*diagram.RootReference{}
	}

	for _, c := range g.Classes {
		cr := ClassResponse{
			Key:         c.Key,
			Name:        c.Name,
			IsClass:     c.IsClass,
			Deprecated:  c.Deprecated,
			SharedNames: c.SharedNames(),
			Origins:     c.Origins(),
			Properties:  make([]PropertyResponse, 0, len(c.Properties)),
		}
		for _, p := range c.Properties {
			cr.Properties = append(cr.Properties, PropertyResponse{
				Key:            p.Key,
				Name:           p.Name,
				Synthetic:      p.FooName,
				Type:           p.PropertyType,
				Required:       p.Required,
				Deprecated:     p.Deprecated,
				TypeDeprecated: p.PropertyTypeDeprecated,
				SharedNames:    p.SharedNames(),
			})
		}
		resp.Classes = append(resp.Classes, cr)
	}

	switch {
	case res.Root != nil:
		resp.Navigation = &NavigationResponse{ClassKey: res.Root.Key, ClassName: res.Root.Name}
	case res.Navigation != nil:
		resp.Navigation = &NavigationResponse{
			Error:      res.Navigation.Reason,
			Candidates: res.Navigation.Candidates,
		}
	}
	return resp
}
