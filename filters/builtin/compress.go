package builtin

import (
	"bytes"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/message"
)

type encoding struct {
	name string
	q    float32
}

type encodings []*encoding

type compress struct {
	mime []string
}

var supportedEncodings = []string{"gzip", "deflate", "br"}

var defaultCompressMIME = []string{
	"text/plain",
	"text/html",
	"application/json",
	"application/javascript",
	"application/x-javascript",
	"text/javascript",
	"text/css",
	"image/svg+xml",
	"application/octet-stream",
}

func (e encodings) Len() int           { return len(e) }
func (e encodings) Less(i, j int) bool { return e[i].q > e[j].q } // higher first
func (e encodings) Swap(i, j int)      { e[i], e[j] = e[j], e[i] }

// Returns a filter specification that is used to compress the response content.
//
// Example:
//
//	outbound:
//	- name: compress
//
// The filter checks if the response entity can be compressed. To decide,
// it checks the Content-Encoding, the Cache-Control and the Content-Type
// headers. It doesn't compress the content if the Content-Encoding is set
// to other than identity, or the Cache-Control applies the no-transform
// pragma, or the Content-Type is set to an unsupported value.
//
// The default set of MIME types can be reset or extended by passing in the desired
// types as filter arguments. When extending the defaults, the first argument needs
// to be "...". E.g. to compress tiff in addition to the defaults:
//
//	args: ["...", image/tiff]
//
// The filter also checks the originating request, if it accepts the
// supported encodings, explicitly stated in the Accept-Encoding header.
// The filter supports gzip, deflate and br.
//
// When compressing the response, it sets the Content-Length and the
// Content-Encoding to the compressed entity, and adds the Vary:
// Accept-Encoding header, if missing.
//
// Name: "compress".
func NewCompress() filters.Spec { return &compress{} }

func (c *compress) Name() string         { return CompressName }
func (c *compress) Phase() filters.Phase { return filters.Outbound }

func (c *compress) CreateFilter(args []interface{}) (filters.Filter, error) {
	f := &compress{}
	if len(args) == 0 {
		f.mime = defaultCompressMIME
		return responseFilter(f.response), nil
	}

	if args[0] == "..." {
		f.mime = defaultCompressMIME
		args = args[1:]
	}

	for _, a := range args {
		s, err := filters.StringArg(a)
		if err != nil {
			return nil, filters.ErrInvalidFilterParameters
		}

		f.mime = append(f.mime, s)
	}

	return responseFilter(f.response), nil
}

func stringsContain(ss []string, s string, transform ...func(string) string) bool {
	for _, si := range ss {
		for _, t := range transform {
			si = t(si)
		}

		if si == s {
			return true
		}
	}

	return false
}

func canEncodeEntity(h http.Header, mime []string) bool {
	if ce := h.Get("Content-Encoding"); ce != "" && ce != "identity" {
		return false
	}

	cc := strings.Split(h.Get("Cache-Control"), ",")
	if stringsContain(cc, "no-transform", strings.TrimSpace, strings.ToLower) {
		return false
	}

	ct := h.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}

	return stringsContain(mime, ct)
}

func acceptedEncoding(h http.Header) string {
	var encs encodings
	for _, s := range strings.Split(h.Get("Accept-Encoding"), ",") {
		sp := strings.Split(s, ";")
		name := strings.ToLower(strings.TrimSpace(sp[0]))
		if !stringsContain(supportedEncodings, name) {
			continue
		}

		enc := &encoding{name, 1}
		for _, spi := range sp[1:] {
			spi = strings.TrimSpace(spi)
			if !strings.HasPrefix(spi, "q=") {
				continue
			}

			q, err := strconv.ParseFloat(strings.TrimPrefix(spi, "q="), 32)
			if err != nil {
				continue
			}

			enc.q = float32(q)
			break
		}

		if enc.q > 0 {
			encs = append(encs, enc)
		}
	}

	if len(encs) == 0 {
		return ""
	}

	sort.Stable(encs)
	return encs[0].name
}

func encoder(enc string, w io.Writer) (io.WriteCloser, error) {
	switch enc {
	case "deflate":
		return flate.NewWriter(w, flate.DefaultCompression)
	case "br":
		return brotli.NewWriter(w), nil
	default:
		return gzip.NewWriter(w), nil
	}
}

func encode(b []byte, enc string) ([]byte, error) {
	var buf bytes.Buffer
	e, err := encoder(enc, &buf)
	if err != nil {
		return nil, err
	}

	if _, err := e.Write(b); err != nil {
		return nil, err
	}

	if err := e.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (c *compress) response(rsp *message.Response) message.Message {
	req := rsp.Request()
	if req == nil || !rsp.HasBody() || !canEncodeEntity(rsp.Header(), c.mime) {
		return rsp
	}

	enc := acceptedEncoding(req.Header())
	if enc == "" {
		return rsp
	}

	b, err := encode(rsp.Body(), enc)
	if err != nil {
		return rsp
	}

	rsp.SetBody(b)
	rsp.Header().Set("Content-Encoding", enc)
	rsp.Header().Set("Content-Length", strconv.Itoa(len(b)))
	if !stringsContain(rsp.Header()["Vary"], "Accept-Encoding", http.CanonicalHeaderKey) {
		rsp.Header().Add("Vary", "Accept-Encoding")
	}

	return rsp
}
