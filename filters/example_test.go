package filters_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/filters/filtertest"
	"github.com/edgezuul/zuul/message"
	"github.com/edgezuul/zuul/pipeline"
)

type prefixSpec struct{}

type prefixFilter struct{ prefix string }

func (s *prefixSpec) Name() string         { return "prefixPath" }
func (s *prefixSpec) Phase() filters.Phase { return filters.Inbound }

// a spec can be used to create filter instances with different config
func (s *prefixSpec) CreateFilter(args []interface{}) (filters.Filter, error) {
	a := filters.Args(args)
	prefix := a.String()
	if err := a.Err(); err != nil {
		return nil, err
	}

	return &prefixFilter{prefix}, nil
}

// a filter prepending a prefix to the request path
func (f *prefixFilter) Apply(_ context.Context, m message.Message) (message.Message, error) {
	req := m.(*message.Request)
	req.Path = f.prefix + req.Path
	return req, nil
}

func Example() {
	r := make(filters.Registry)
	r.Register(&prefixSpec{}, &filtertest.Func{
		FilterName:  "echoPath",
		FilterPhase: filters.Endpoint,
		F: func(_ context.Context, m message.Message) (message.Message, error) {
			req := m.(*message.Request)
			rsp := message.NewResponse(req.Context(), req, 200)
			rsp.SetBody([]byte(req.Path))
			return rsp, nil
		},
	})

	d, err := filters.ParseDefinition([]byte(strings.Join([]string{
		"inbound:",
		"- name: prefixPath",
		"  args: [/api]",
		"endpoint:",
		"  name: echoPath",
	}, "\n")))
	if err != nil {
		log.Fatal(err)
	}

	c, err := filters.Compile(r, d)
	if err != nil {
		log.Fatal(err)
	}

	p := filters.NewProcessor(c, filters.ProcessorOptions{})
	rsp, err := pipeline.Compose(p, filtertest.NewRequest("GET", "/users")).Single(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(string(rsp.Body()))
	// Output: /api/users
}
