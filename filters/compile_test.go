package filters_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgezuul/zuul/filters"
)

func TestCompile(t *testing.T) {
	r := testRegistry(&prefixSpec{})

	for _, tc := range []struct {
		name string
		def  *filters.Definition
		err  error
	}{{
		name: "nil definition",
	}, {
		name: "full",
		def: &filters.Definition{
			Inbound:  []filters.Def{{Name: "in1"}, {Name: "prefixPath", Args: []interface{}{"/api"}}},
			Endpoint: &filters.Def{Name: "ok"},
			Outbound: defs("out1", "out2"),
		},
	}, {
		name: "unknown filter",
		def:  &filters.Definition{Inbound: defs("in1", "missing")},
		err:  filters.ErrUnknownFilter,
	}, {
		name: "outbound filter used inbound",
		def:  &filters.Definition{Inbound: defs("out1")},
		err:  filters.ErrPhaseMismatch,
	}, {
		name: "inbound filter used as endpoint",
		def:  &filters.Definition{Endpoint: &filters.Def{Name: "in1"}},
		err:  filters.ErrPhaseMismatch,
	}, {
		name: "invalid arguments",
		def:  &filters.Definition{Inbound: []filters.Def{{Name: "prefixPath"}}},
		err:  filters.ErrInvalidFilterParameters,
	}} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := filters.Compile(r, tc.def)
			if tc.err != nil {
				assert.Nil(t, c)
				assert.True(t, errors.Is(err, tc.err), "got: %v", err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, c)
		})
	}
}

func TestCompiledAccessors(t *testing.T) {
	c, err := filters.Compile(testRegistry(), &filters.Definition{
		Inbound:  defs("in1", "in2"),
		Outbound: defs("out1"),
	})
	require.NoError(t, err)

	in := c.Inbound()
	require.Len(t, in, 2)
	assert.Equal(t, "in2", in[1].Name)
	assert.Equal(t, 1, in[1].Index)

	_, ok := c.Endpoint()
	assert.False(t, ok)
	assert.Len(t, c.Outbound(), 1)
}

func TestParseDefinition(t *testing.T) {
	d, err := filters.ParseDefinition([]byte(`
inbound:
- name: setRequestHeader
  args: [X-Foo, bar]
- name: ratelimit
  args: [10.5, 20]
endpoint:
  name: upstream
  args: ["http://localhost:9090"]
outbound:
- name: compress
`))
	require.NoError(t, err)

	require.Len(t, d.Inbound, 2)
	assert.Equal(t, []interface{}{"X-Foo", "bar"}, d.Inbound[0].Args)
	assert.Equal(t, []interface{}{10.5, 20}, d.Inbound[1].Args)
	require.NotNil(t, d.Endpoint)
	assert.Equal(t, "upstream", d.Endpoint.Name)
	assert.Equal(t, []filters.Def{{Name: "compress"}}, d.Outbound)

	_, err = filters.ParseDefinition([]byte("inbound: []\nroutes: []\n"))
	assert.Error(t, err)
}
