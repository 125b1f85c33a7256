/*
Package zuul provides an HTTP gateway that runs every request through
a chain of filters.

The filters are organized in three phases. The inbound filters
inspect and modify the incoming request, and may answer it directly.
The endpoint filter turns the request into a response, typically by
forwarding it to a backend service. The outbound filters modify the
response before it is sent to the client. Every request is answered
with exactly one response: when the filters fail, the client receives
an empty 500 Internal Server Error.

The filter chain is defined in YAML:

	inbound:
	- name: flowId
	- name: ratelimit
	  args: [100, 150]
	endpoint:
	  name: upstream
	  args: ["http://localhost:9090"]
	outbound:
	- name: setResponseHeader
	  args: [X-Gateway, zuul]
	- name: compress

# Quickstart

Start the gateway with a filters file:

	zuul -filters-file filters.yaml

or with the chain defined inline:

	zuul -filters '{endpoint: {name: inlineContent, args: ["Hello, world!"]}}'

and check it:

	curl localhost:9090

# Extending

The gateway can be started from a custom program, with custom filters,
a decorator of the session contexts and request complete handlers:

	err := zuul.Run(zuul.Options{
		Address:       ":9090",
		Filters:       definition,
		CustomFilters: []filters.Spec{&myFilter{}},
	})

Custom filters implement filters.Spec. The spec names the phase that
the filter belongs to, and creates the filter instances from the
arguments in the definition. See the filters package for details.

# Operations

The support listener, when enabled, serves the metrics under /metrics
and a health check under /healthz. Circuit breakers can be enabled for
the backend hosts, see the circuit package. On SIGTERM, the gateway
stops accepting new connections and waits for the open requests to
complete.
*/
package zuul
