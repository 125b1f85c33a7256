package builtin

import (
	"io"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/message"
)

const (
	HeaderName = "X-Flow-Id"

	// ReuseParameterValue makes the filter keep a valid incoming flow
	// id.
	ReuseParameterValue = "reuse"

	// ULIDParameterValue makes the filter generate ULIDs instead of
	// random UUIDs.
	ULIDParameterValue = "ulid"

	// StateBagKey holds the flow id in the session context.
	StateBagKey = "flowid"
)

var validFlowID = regexp.MustCompile(`^[0-9a-zA-Z+_\-]{8,64}$`)

type flowID struct {
	reuse    bool
	generate func() string
}

var ulidEntropy = struct {
	sync.Mutex
	r io.Reader
}{r: rand.New(rand.NewSource(time.Now().UTC().UnixNano()))}

func newULID() string {
	ulidEntropy.Lock()
	defer ulidEntropy.Unlock()
	return ulid.MustNew(ulid.Now(), ulidEntropy.r).String()
}

// NewFlowID creates the spec of the flowId filter. The filter sets the
// X-Flow-Id request header to a new random id, and stores it in the
// session state bag. With the "reuse" argument, a valid incoming flow
// id is kept. With the "ulid" argument, the new ids are ULIDs, sortable
// by the time of the request.
//
// Name: "flowId".
func NewFlowID() filters.Spec { return &flowID{} }

func (*flowID) Name() string         { return FlowIDName }
func (*flowID) Phase() filters.Phase { return filters.Inbound }

func (*flowID) CreateFilter(args []interface{}) (filters.Filter, error) {
	f := &flowID{generate: uuid.NewString}
	for _, a := range args {
		s, err := filters.StringArg(a)
		if err != nil {
			return nil, filters.ErrInvalidFilterParameters
		}

		switch s {
		case ReuseParameterValue:
			f.reuse = true
		case ULIDParameterValue:
			f.generate = newULID
		default:
			return nil, filters.ErrInvalidFilterParameters
		}
	}

	return requestFilter(f.request), nil
}

func (f *flowID) request(req *message.Request) message.Message {
	id := req.Header().Get(HeaderName)
	if !f.reuse || !validFlowID.MatchString(id) {
		id = f.generate()
		req.Header().Set(HeaderName, id)
	}

	req.Context().Set(StateBagKey, id)
	return req
}
