package builtin

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/message"
)

type headerType int

const (
	setRequestHeader headerType = iota
	appendRequestHeader
	dropRequestHeader
	setResponseHeader
	appendResponseHeader
	dropResponseHeader
)

// common structure for the request and response header specifications
// and filters
type headerFilter struct {
	typ              headerType
	name, key, value string
}

// Returns a filter specification that is used to set headers for requests.
// Instances expect two parameters: the header name and the header value.
// Setting the Host header changes the host of the request.
// Name: "setRequestHeader".
func NewSetRequestHeader() filters.Spec {
	return &headerFilter{typ: setRequestHeader, name: SetRequestHeaderName}
}

// Returns a filter specification that is used to append headers for requests.
// Instances expect two parameters: the header name and the header value.
// Name: "appendRequestHeader".
func NewAppendRequestHeader() filters.Spec {
	return &headerFilter{typ: appendRequestHeader, name: AppendRequestHeaderName}
}

// Returns a filter specification that is used to delete headers for requests.
// Instances expect one parameter: the header name.
// Name: "dropRequestHeader".
func NewDropRequestHeader() filters.Spec {
	return &headerFilter{typ: dropRequestHeader, name: DropRequestHeaderName}
}

// Returns a filter specification that is used to set headers for responses.
// Instances expect two parameters: the header name and the header value.
// Name: "setResponseHeader".
func NewSetResponseHeader() filters.Spec {
	return &headerFilter{typ: setResponseHeader, name: SetResponseHeaderName}
}

// Returns a filter specification that is used to append headers for responses.
// Instances expect two parameters: the header name and the header value.
// Name: "appendResponseHeader".
func NewAppendResponseHeader() filters.Spec {
	return &headerFilter{typ: appendResponseHeader, name: AppendResponseHeaderName}
}

// Returns a filter specification that is used to delete headers for responses.
// Instances expect one parameter: the header name.
// Name: "dropResponseHeader".
func NewDropResponseHeader() filters.Spec {
	return &headerFilter{typ: dropResponseHeader, name: DropResponseHeaderName}
}

func (spec *headerFilter) Name() string { return spec.name }

func (spec *headerFilter) Phase() filters.Phase {
	switch spec.typ {
	case setRequestHeader, appendRequestHeader, dropRequestHeader:
		return filters.Inbound
	default:
		return filters.Outbound
	}
}

func (spec *headerFilter) CreateFilter(args []interface{}) (filters.Filter, error) {
	a := filters.Args(args)
	f := &headerFilter{typ: spec.typ, name: spec.name, key: a.String()}
	switch spec.typ {
	case dropRequestHeader, dropResponseHeader:
	default:
		f.value = a.String()
	}

	if err := a.Err(); err != nil {
		return nil, err
	}

	if !httpguts.ValidHeaderFieldName(f.key) || !httpguts.ValidHeaderFieldValue(f.value) {
		return nil, filters.ErrInvalidFilterParameters
	}

	if spec.Phase() == filters.Inbound {
		return requestFilter(f.request), nil
	}

	return responseFilter(f.response), nil
}

func (f *headerFilter) apply(h http.Header) {
	switch f.typ {
	case setRequestHeader, setResponseHeader:
		h.Set(f.key, f.value)
	case appendRequestHeader, appendResponseHeader:
		h.Add(f.key, f.value)
	default:
		h.Del(f.key)
	}
}

func (f *headerFilter) request(req *message.Request) message.Message {
	if strings.EqualFold(f.key, "host") {
		switch f.typ {
		case dropRequestHeader:
			req.Host = ""
		default:
			req.Host = f.value
		}

		return req
	}

	f.apply(req.Header())
	return req
}

func (f *headerFilter) response(rsp *message.Response) message.Message {
	f.apply(rsp.Header())
	return rsp
}
