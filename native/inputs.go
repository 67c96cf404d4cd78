package native

import "strconv"

// ArgMetadata describes one declared parameter of a traced function.
type ArgMetadata struct {
	Name string
	Type string
}

// Inputs are the actual arguments of one traced call together with the
// parameter metadata declared when the function was wrapped.
type Inputs struct {
	Args     []ArgMetadata
	Values   []any
	AsKwargs bool
}

// Positional returns the values in call order.
func (in Inputs) Positional() []any {
	out := make([]any, len(in.Values))
	copy(out, in.Values)

	return out
}

// Keyed returns the values keyed by parameter name. Values beyond the declared
// parameters are keyed "arg<index>".
func (in Inputs) Keyed() map[string]any {
	out := make(map[string]any, len(in.Values))

	for i, v := range in.Values {
		out[in.nameAt(i)] = v
	}

	return out
}

// Recorded returns the form a runtime should store: Keyed when the function was
// wrapped with kwargs, Positional otherwise.
func (in Inputs) Recorded() any {
	if in.AsKwargs {
		return in.Keyed()
	}

	return in.Positional()
}

func (in Inputs) nameAt(i int) string {
	if i < len(in.Args) && in.Args[i].Name != "" {
		return in.Args[i].Name
	}

	return "arg" + strconv.Itoa(i)
}
