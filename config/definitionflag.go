package config

import (
	"os"

	"github.com/edgezuul/zuul/filters"
)

// definitionFlag holds a filter chain definition given inline, in the
// same YAML format as the filters file
type definitionFlag struct {
	value      string
	definition *filters.Definition
}

func (f *definitionFlag) Set(value string) error {
	d, err := filters.ParseDefinition([]byte(value))
	if err != nil {
		return err
	}

	f.value = value
	f.definition = d
	return nil
}

func (f *definitionFlag) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var d filters.Definition
	if err := unmarshal(&d); err != nil {
		return err
	}

	f.definition = &d
	return nil
}

func (f *definitionFlag) String() string {
	if f == nil {
		return ""
	}

	return f.value
}

func loadDefinition(path string) (*filters.Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return filters.ParseDefinition(b)
}
