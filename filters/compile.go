package filters

import "fmt"

type invalidDefinitionError string

func (e invalidDefinitionError) Error() string { return string(e) }

const (
	ErrUnknownFilter = invalidDefinitionError("unknown filter")
	ErrPhaseMismatch = invalidDefinitionError("filter used in the wrong phase")
)

// NamedFilter is a filter instance with the name of its spec and its
// position in the phase.
type NamedFilter struct {
	Filter
	Name  string
	Index int
}

// Compiled is an immutable filter chain, created once and shared by
// all the requests.
type Compiled struct {
	inbound  []NamedFilter
	endpoint *NamedFilter
	outbound []NamedFilter
}

func createFilter(r Registry, phase Phase, index int, def Def) (NamedFilter, error) {
	spec, ok := r.Get(def.Name)
	if !ok {
		return NamedFilter{}, fmt.Errorf("%w: '%s'", ErrUnknownFilter, def.Name)
	}

	if spec.Phase() != phase {
		return NamedFilter{}, fmt.Errorf(
			"%w: '%s' is an %v filter, used as %v",
			ErrPhaseMismatch,
			def.Name,
			spec.Phase(),
			phase,
		)
	}

	f, err := spec.CreateFilter(def.Args)
	if err != nil {
		return NamedFilter{}, fmt.Errorf("failed to create filter '%s': %w", def.Name, err)
	}

	return NamedFilter{Filter: f, Name: def.Name, Index: index}, nil
}

func createFilters(r Registry, phase Phase, defs []Def) ([]NamedFilter, error) {
	var fs []NamedFilter
	for i, def := range defs {
		f, err := createFilter(r, phase, i, def)
		if err != nil {
			return nil, err
		}

		fs = append(fs, f)
	}

	return fs, nil
}

// Compile creates the filter instances of a definition from the specs
// in the registry. It fails when a filter is not registered, when it is
// used in the wrong phase, or when its arguments are invalid.
func Compile(r Registry, d *Definition) (*Compiled, error) {
	if d == nil {
		d = &Definition{}
	}

	var (
		c   Compiled
		err error
	)

	if c.inbound, err = createFilters(r, Inbound, d.Inbound); err != nil {
		return nil, err
	}

	if d.Endpoint != nil {
		f, err := createFilter(r, Endpoint, 0, *d.Endpoint)
		if err != nil {
			return nil, err
		}

		c.endpoint = &f
	}

	if c.outbound, err = createFilters(r, Outbound, d.Outbound); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Compiled) Inbound() []NamedFilter { return c.inbound }

// Endpoint returns the endpoint filter, when the definition has one.
func (c *Compiled) Endpoint() (NamedFilter, bool) {
	if c.endpoint == nil {
		return NamedFilter{}, false
	}

	return *c.endpoint, true
}

func (c *Compiled) Outbound() []NamedFilter { return c.outbound }
