/*
Package logging implements application log instrumentation and Apache
combined access log.

# Application Log

The application log uses the logrus package:

https://github.com/sirupsen/logrus

To send messages to the application log, import this package and use its
methods. Example:

	import log "github.com/sirupsen/logrus"

	func doSomething() {
		log.Errorf("nothing to do")
	}

Components that accept a logger take a Logger. DefaultLog writes to the
logrus standard logger, optionally with additional fields.

During startup initialization, it is possible to redirect the log output
from the default /dev/stderr to another file, to set the level, to
switch to JSON, and to set a common prefix for each log entry. Setting
the prefix may be a good idea when the access log is enabled and its
output is the same as the one of the application log, to make it easier
to split the output for diagnostics.

# Access Log

The access log prints HTTP access information in the Apache combined
access log format, extended with the request duration, the requested
host and the request id. The proxy package provides a request complete
handler that creates the entries from the resolved responses.

During initialization, it is possible to redirect the access log output
from the default /dev/stderr to another file, to switch it to JSON, or
to completely disable it.
*/
package logging
