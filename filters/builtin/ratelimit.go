package builtin

import (
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/message"
)

const (
	RetryAfterHeader = "Retry-After"
	LimitHeader      = "X-Rate-Limit"
)

type rateLimit struct {
	limiter *rate.Limiter
	limit   rate.Limit
}

// NewRateLimit creates the spec of the ratelimit filter. It accepts the
// allowed number of requests per second and an optional burst size,
// defaulting to the rounded up rate. The limit is shared by all the
// requests passing the filter instance. Requests over the limit are
// answered with 429 Too Many Requests, and the remaining inbound
// filters and the endpoint are skipped.
//
// Example:
//
//	inbound:
//	- name: ratelimit
//	  args: [100, 150]
//
// Name: "ratelimit".
func NewRateLimit() filters.Spec { return &rateLimit{} }

func (*rateLimit) Name() string         { return RateLimitName }
func (*rateLimit) Phase() filters.Phase { return filters.Inbound }

func (*rateLimit) CreateFilter(args []interface{}) (filters.Filter, error) {
	a := filters.Args(args)
	rps := a.Float64()
	burst := a.OptionalInt(int(math.Ceil(rps)))
	if err := a.Err(); err != nil {
		return nil, err
	}

	if rps <= 0 || burst <= 0 {
		return nil, filters.ErrInvalidFilterParameters
	}

	f := &rateLimit{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		limit:   rate.Limit(rps),
	}

	return requestFilter(f.request), nil
}

func (f *rateLimit) request(req *message.Request) message.Message {
	r := f.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return req
	}

	r.Cancel()

	rsp := respond(req, http.StatusTooManyRequests)
	rsp.Header().Set(RetryAfterHeader, strconv.Itoa(int(math.Ceil(delay.Seconds()))))
	rsp.Header().Set(LimitHeader, strconv.FormatFloat(float64(f.limit), 'f', -1, 64))
	return rsp
}
