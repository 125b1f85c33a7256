/*
Package metrics implements collection of common performance metrics.

Two backends are available. The Coda Hale backend uses the Go
implementation of the Coda Hale metrics library:

https://github.com/rcrowley/go-metrics

and exposes the current values as JSON, grouped by gauges, histograms,
timers and counters. The Prometheus backend exposes the metrics in the
Prometheus text format. With the "all" flavour, both are collected.

The collected metrics include the time spent with every single filter
and with all the filters of each phase, the time waiting for the
response from the backend services, the time of serving a request by
status code and the counters of the lifecycle errors: pipeline faults,
response write errors and failed completion notifications.

For the keys used by the Coda Hale backend, please, see the Key*
constants.

The metrics are served by the support listener, when it is configured.
*/
package metrics
