package engine

import "context"

// Definition is the model-facing description of a tool: a JSON-schema
// property map plus the required property names.
type Definition struct {
	Description string
	Parameters  map[string]any
	Required    []string
}

// Tool is a named function the model may invoke during a turn. Execute
// returns the payload serialized back to the model as the tool result.
type Tool interface {
	Name() string
	Definition() Definition
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// FuncTool adapts a plain function to the Tool interface.
type FuncTool struct {
	ToolName string
	Def      Definition
	Run      func(ctx context.Context, args map[string]any) (any, error)
}

func (t *FuncTool) Name() string           { return t.ToolName }
func (t *FuncTool) Definition() Definition { return t.Def }

func (t *FuncTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return t.Run(ctx, args)
}

// Registry holds the tools offered to the model, in registration order.
// Built once during session setup and read-only afterwards; not safe for
// concurrent registration.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the tool but keeps
// its original position.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Subset returns a registry restricted to the named tools, preserving the
// given order, plus the names that were not registered.
func (r *Registry) Subset(names []string) (*Registry, []string) {
	sub := NewRegistry()
	var missing []string
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		sub.Register(t)
	}
	return sub, missing
}
