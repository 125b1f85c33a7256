package filtertest

import (
	"context"
	"net/http"
	"testing"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/message"
)

func TestFilterRecordsCalls(t *testing.T) {
	spec := &Filter{FilterName: "foo", FilterPhase: filters.Inbound}
	f, err := spec.CreateFilter([]interface{}{"bar", 42})
	if err != nil {
		t.Fatal(err)
	}

	if args := f.(*Filter).Args; len(args) != 2 {
		t.Errorf("expected the arguments to be kept, got: %v", args)
	}

	req := NewRequest("GET", "/foo?bar=baz")
	for i := 0; i < 2; i++ {
		if _, err := f.Apply(context.Background(), req); err != nil {
			t.Fatal(err)
		}
	}

	if calls := Calls(req.Context()); len(calls) != 2 || calls[0] != "foo" {
		t.Errorf("unexpected calls: %v", calls)
	}

	if req.Query.Get("bar") != "baz" {
		t.Errorf("failed to parse query: %v", req.Query)
	}
}

func TestRespond(t *testing.T) {
	req := NewRequest("GET", "/")
	m, err := Respond(http.StatusTeapot, "hello")(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	rsp, ok := m.(*message.Response)
	if !ok {
		t.Fatalf("expected response, got %T", m)
	}

	if rsp.StatusCode != http.StatusTeapot || string(rsp.Body()) != "hello" || rsp.Request() != req {
		t.Errorf("unexpected response: %d %q", rsp.StatusCode, rsp.Body())
	}
}
