package diagram

import (
	"log/slog"
	"strings"

	"github.com/axonops/openapi-diagram/internal/openapi"
	"github.com/axonops/openapi-diagram/internal/schema"
	"github.com/axonops/openapi-diagram/internal/walker"
)

// Option configures Transform.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	resolver SharedSchemaResolver
}

// WithLogger sets the logger used for build diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithResolver replaces the component resolver derived from the document.
func WithResolver(r SharedSchemaResolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// Transform walks doc and builds the class graph of the declarations selected
// by scope. Headers, parameters and media types outside the scope are skipped.
// Component schemas are diagrammed only when a non-empty scope selects them.
func Transform(doc *openapi.Document, scope Scope, opts ...Option) (graph *Graph, err error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = openapi.NewComponentResolver(doc)
	}

	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(*ContractError)
			if !ok {
				panic(r)
			}
			graph, err = nil, ce
		}
	}()

	t := &transformer{builder: NewGraphBuilder(o.resolver), scope: scope}
	walker.New(t.callbacks()).Walk(doc)

	graph, err = t.builder.Build()
	if err != nil {
		return nil, err
	}
	o.logger.Debug("diagram built",
		slog.String("scope", scope.String()),
		slog.Int("classes", len(graph.Classes)),
		slog.Int("relations", len(graph.Relations)),
		slog.Int("roots", len(graph.Roots)),
	)
	return graph, nil
}

// transformer adapts walker callbacks to builder calls and keeps the stack of
// synthetic names used to title anonymous schema roots.
type transformer struct {
	builder *GraphBuilder
	scope   Scope
	names   []string
}

func (t *transformer) enter(name string) {
	t.names = append(t.names, name)
}

func (t *transformer) exit() {
	t.names = t.names[:len(t.names)-1]
}

func (t *transformer) altTitle() string {
	return strings.Join(t.names, " ")
}

func (t *transformer) callbacks() walker.Callbacks {
	b := t.builder
	return walker.Callbacks{
		ParameterStart: func(ptr string, p *openapi.Parameter) bool {
			t.enter("Parameter " + p.Name)
			return t.scope.Overlaps(ptr)
		},
		ParameterEnd: func(string, *openapi.Parameter) { t.exit() },
		RequestBodyStart: func(ptr string, _ *openapi.RequestBody) bool {
			t.enter("Request Body")
			return t.scope.Overlaps(ptr)
		},
		RequestBodyEnd: func(string, *openapi.RequestBody) { t.exit() },
		ResponseStart: func(ptr string, r *openapi.Response) bool {
			t.enter("Response " + r.Code)
			return t.scope.Overlaps(ptr)
		},
		ResponseEnd: func(string, *openapi.Response) { t.exit() },
		HeaderStart: func(ptr string, h *openapi.Header) bool {
			t.enter("Header " + h.Name)
			return t.scope.Overlaps(ptr)
		},
		HeaderEnd: func(string, *openapi.Header) { t.exit() },
		MediaTypeStart: func(ptr string, m *openapi.MediaType) bool {
			t.enter("(" + m.Name + ")")
			return t.scope.Overlaps(ptr)
		},
		MediaTypeEnd: func(string, *openapi.MediaType) { t.exit() },
		ComponentStart: func(ptr string, c *openapi.NamedSchema) bool {
			t.enter("Component " + c.Name)
			return !t.scope.IsEmpty() && t.scope.Overlaps(ptr)
		},
		ComponentEnd: func(string, *openapi.NamedSchema) { t.exit() },

		SchemaRootStart: func(ptr string, s *schema.Node) bool {
			return b.CreateRootSchema(ptr, s, t.altTitle())
		},
		SchemaRootEnd: func(string, *schema.Node) { b.Back() },
		ItemsStart: func(parent, items *schema.Node) bool {
			return b.EnterItems(parent, items)
		},
		ItemsEnd: func(*schema.Node, *schema.Node) { b.Back() },
		PropertyStart: func(_ *schema.Node, p *schema.Property) bool {
			return b.EnterProperty(p)
		},
		PropertyEnd: func(*schema.Node, *schema.Property) { b.Back() },
		CombinerStart: func(_ *schema.Node, kind schema.Combiner) bool {
			return b.EnterCombiner(kind)
		},
		CombinerEnd: func(*schema.Node, schema.Combiner) { b.Back() },
		CombinerItemStart: func(_ *schema.Node, _ schema.Combiner, index int, branch *schema.Node) bool {
			return b.EnterCombinerItem(index, branch)
		},
		CombinerItemEnd: func(*schema.Node, schema.Combiner, int, *schema.Node) { b.Back() },
	}
}
