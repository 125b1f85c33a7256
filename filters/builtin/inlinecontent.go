package builtin

import (
	"net/http"
	"strconv"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/message"
)

type inlineContent struct {
	text string
	mime string
}

// NewInlineContent creates a filter spec for the inlineContent endpoint.
//
// Usage of the filter:
//
//	endpoint:
//	  name: inlineContent
//	  args: ["{\"foo\": 42}", application/json]
//
// It accepts two arguments: the content and the optional content type.
// When the content type is not set, it tries to detect it using
// http.DetectContentType.
//
// The filter answers the request with status code 200.
func NewInlineContent() filters.Spec {
	return &inlineContent{}
}

func (c *inlineContent) Name() string         { return InlineContentName }
func (c *inlineContent) Phase() filters.Phase { return filters.Endpoint }

func (c *inlineContent) CreateFilter(args []interface{}) (filters.Filter, error) {
	a := filters.Args(args)
	f := &inlineContent{text: a.String()}
	f.mime = a.OptionalString("")
	if err := a.Err(); err != nil {
		return nil, err
	}

	if f.mime == "" {
		f.mime = http.DetectContentType([]byte(f.text))
	}

	return requestFilter(f.request), nil
}

func (c *inlineContent) request(req *message.Request) message.Message {
	rsp := respond(req, http.StatusOK)
	rsp.Header().Set("Content-Type", c.mime)
	rsp.Header().Set("Content-Length", strconv.Itoa(len(c.text)))
	rsp.SetBody([]byte(c.text))
	return rsp
}
