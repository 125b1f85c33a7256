package message

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/edgezuul/zuul/session"
)

func TestRequestURI(t *testing.T) {
	for _, tt := range []struct {
		name  string
		path  string
		query url.Values
		want  string
	}{{
		name: "no query",
		path: "/some/where",
		want: "/some/where",
	}, {
		name:  "with query",
		path:  "/some/where",
		query: url.Values{"k1": []string{"v1"}},
		want:  "/some/where?k1=v1",
	}, {
		name:  "encoded",
		path:  "/",
		query: url.Values{"a b": []string{"c&d"}},
		want:  "/?a+b=c%26d",
	}} {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRequest(session.New(), "GET", tt.path, tt.query, nil)
			if got := r.URI(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRequestRaw(t *testing.T) {
	r := NewRequest(session.New(), "GET", "/files/a/b", url.Values{"z": {"1"}, "a": {"2"}}, nil)
	if got := r.EscapedPath(); got != "/files/a/b" {
		t.Errorf("expected escaped path %q, got %q", "/files/a/b", got)
	}

	if got := r.RawQuery(); got != "a=2&z=1" {
		t.Errorf("expected query %q, got %q", "a=2&z=1", got)
	}

	r.SetRaw("/files/a%2Fb", "z=1&a=2")
	if got := r.EscapedPath(); got != "/files/a%2Fb" {
		t.Errorf("expected escaped path %q, got %q", "/files/a%2Fb", got)
	}

	if got := r.RawQuery(); got != "z=1&a=2" {
		t.Errorf("expected query %q, got %q", "z=1&a=2", got)
	}

	r.Path = "/x y"
	r.Query.Del("z")
	if got := r.EscapedPath(); got != "/x%20y" {
		t.Errorf("expected escaped path %q, got %q", "/x%20y", got)
	}

	if got := r.RawQuery(); got != "a=2" {
		t.Errorf("expected query %q, got %q", "a=2", got)
	}
}

func TestRequestDefaults(t *testing.T) {
	ctx := session.New()
	r := NewRequest(ctx, "POST", "/", nil, nil)
	if r.Header() == nil || r.Query == nil {
		t.Fatal("expected initialized header and query")
	}

	if r.Context() != session.Context(ctx) {
		t.Error("expected the request to carry its context")
	}

	if r.HasBody() {
		t.Error("unexpected body")
	}

	r.SetBody([]byte("hello"))
	if !r.HasBody() || string(r.Body()) != "hello" {
		t.Error("failed to set body")
	}

	if r.Err() != nil {
		t.Error("unexpected error marker")
	}

	err := errors.New("bad query")
	r.SetErr(err)
	if r.Err() != err {
		t.Error("failed to set error marker")
	}
}

func TestResponse(t *testing.T) {
	ctx := session.New()
	req := NewRequest(ctx, "GET", "/", nil, http.Header{"X-Foo": []string{"bar"}})
	rsp := NewResponse(ctx, req, 299)

	if rsp.Request() != req {
		t.Error("expected the originating request")
	}

	if rsp.StatusCode != 299 || rsp.Header() == nil {
		t.Error("unexpected response state")
	}

	if rsp.HeadersCommitted() || rsp.BodyCommitted() {
		t.Error("a new response must not be committed")
	}

	rsp.CommitHeaders()
	rsp.CommitBody()
	if !rsp.HeadersCommitted() || !rsp.BodyCommitted() {
		t.Error("failed to commit")
	}

	if NewResponse(ctx, nil, http.StatusInternalServerError).StatusText() != "Internal Server Error" {
		t.Error("unexpected status text")
	}
}
