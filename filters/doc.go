/*
Package filters contains the filter model of the gateway and the engine
executing it.

Filters are created from specs registered by name in a Registry. A
Definition lists, by name and arguments, the inbound filters, the
endpoint and the outbound filters applied to every request. Compile
turns a definition into an immutable Compiled chain, that can be shared
by all concurrent requests, and a Processor applies it to the lazy
message sequence of a request, one phase at a time.

To implement a filter, implement the Spec and Filter interfaces:

	type addHeaderSpec struct{}

	func (addHeaderSpec) Name() string         { return "addHeader" }
	func (addHeaderSpec) Phase() filters.Phase { return filters.Inbound }

	func (addHeaderSpec) CreateFilter(args []interface{}) (filters.Filter, error) {
		a := filters.Args(args)
		key, value := a.String(), a.String()
		if err := a.Err(); err != nil {
			return nil, err
		}

		return filters.FilterFunc(func(_ context.Context, m message.Message) (message.Message, error) {
			m.Header().Add(key, value)
			return m, nil
		}), nil
	}

Filters may return a different message than the one they receive. An
inbound filter returning a *message.Response answers the request
without calling the endpoint, e.g. when rejecting unauthorized or
rate limited requests.
*/
package filters
