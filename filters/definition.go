package filters

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// Def references a filter spec by name, with the arguments passed to
// CreateFilter.
type Def struct {
	Name string        `yaml:"name"`
	Args []interface{} `yaml:"args,omitempty"`
}

// Definition lists the filters of the three phases. Example in YAML:
//
//	inbound:
//	- name: flowId
//	- name: setRequestHeader
//	  args: [X-Gateway, zuul]
//	endpoint:
//	  name: upstream
//	  args: ["http://localhost:9090"]
//	outbound:
//	- name: compress
type Definition struct {
	Inbound  []Def `yaml:"inbound,omitempty"`
	Endpoint *Def  `yaml:"endpoint,omitempty"`
	Outbound []Def `yaml:"outbound,omitempty"`
}

// ParseDefinition parses a YAML filter chain definition. Unknown keys
// are rejected.
func ParseDefinition(b []byte) (*Definition, error) {
	var d Definition
	if err := yaml.UnmarshalStrict(b, &d); err != nil {
		return nil, fmt.Errorf("failed to parse filter definition: %w", err)
	}

	return &d, nil
}
