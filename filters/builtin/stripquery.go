package builtin

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/message"
)

type stripQuery struct {
	preserveAsHeader bool
}

// NewStripQuery returns a filter Spec to strip query parameters from the request and
// optionally transpose them to request headers.
//
// It always removes the query parameters from the request, and if the
// first filter parameter is "true", preserves them in the form of
// X-Query-Param-<queryParamName>: <queryParamValue> headers, so that
// ?foo=bar becomes X-Query-Param-Foo: bar
//
// Name: "stripQuery".
func NewStripQuery() filters.Spec { return &stripQuery{} }

func (*stripQuery) Name() string         { return StripQueryName }
func (*stripQuery) Phase() filters.Phase { return filters.Inbound }

// copied from textproto/reader
func validHeaderFieldByte(b byte) bool {
	return ('A' <= b && b <= 'Z') ||
		('a' <= b && b <= 'z') ||
		('0' <= b && b <= '9') ||
		b == '-'
}

// make sure we don't generate invalid headers
func sanitize(input string) string {
	var s strings.Builder
	toASCII := strconv.QuoteToASCII(input)
	for _, i := range toASCII {
		if validHeaderFieldByte(byte(i)) {
			s.WriteRune(i)
		}
	}
	return s.String()
}

func (f *stripQuery) request(req *message.Request) message.Message {
	if f.preserveAsHeader {
		for k, vv := range req.Query {
			for _, v := range vv {
				req.Header().Add(fmt.Sprintf("X-Query-Param-%s", sanitize(k)), v)
			}
		}
	}

	req.Query = url.Values{}
	return req
}

// Creates instances of the stripQuery filter. Accepts one optional parameter:
// "true", in order to preserve the stripped parameters in the request header.
func (*stripQuery) CreateFilter(args []interface{}) (filters.Filter, error) {
	a := filters.Args(args)
	preserve := strings.ToLower(a.OptionalString("false")) == "true"
	if err := a.Err(); err != nil {
		return nil, err
	}

	f := &stripQuery{preserveAsHeader: preserve}
	return requestFilter(f.request), nil
}
