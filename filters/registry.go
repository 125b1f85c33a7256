package filters

// Registry maps filter names to specs. A registry is populated during
// startup and only read afterwards.
type Registry map[string]Spec

// Register adds specs to the registry. A spec with the same name as an
// already registered one replaces it.
func (r Registry) Register(specs ...Spec) {
	for _, s := range specs {
		r[s.Name()] = s
	}
}

func (r Registry) Get(name string) (Spec, bool) {
	s, ok := r[name]
	return s, ok
}

func (r Registry) Remove(name string) {
	delete(r, name)
}
