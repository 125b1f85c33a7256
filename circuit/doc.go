/*
Package circuit implements circuit breakers for the upstream endpoint.

The circuit breakers are always assigned to backend hosts, so that the outcome of requests to one host never
affects the circuit breaker behavior of another host. The registry object ensures synchronized access to the
active breakers and releases the idle ones.

Breaker Type - Consecutive Failures

This breaker opens when the gateway couldn't connect to a backend or received a >=500 status code at least N
times in a row. When open, the upstream endpoint answers with 503 - Service Unavailable during the configured
timeout. After the timeout, the breaker goes into half-open state, where it lets M requests through. If any of
them fails, the breaker goes back to open state. If all succeed, it closes again.

Breaker Type - Failure Rate

The rate breaker opens when the failures reach N out of the last M requests. The window is not time based, it
always tracks the last M requests, which gives the same breaker characteristics for low and high rate hosts.

Settings

The settings with an empty host are the defaults. The host settings are merged with the defaults, so that only
the differing fields need to be set:

	breakers:
	- type: consecutive
	  failures: 5
	  timeout: 30s
	- host: flaky.example.org
	  type: rate
	  window: 100
	  failures: 20
	- host: health.example.org
	  type: disabled

State changes are logged, and counted with the metrics key circuit.<host>.<state>, where the dots of the host
are replaced by underscores.
*/
package circuit
