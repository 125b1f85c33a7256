/*
Package proxy implements the request lifecycle of the gateway.

For every incoming request the proxy:

1. creates the session context of the request and applies the
optional decorator to it;

2. builds the request message with the context factory;

3. starts the request timer and runs the request through the
inbound, endpoint and outbound filter phases;

4. resolves exactly one response from the phases. When the phases
fail, panic, yield no message or more than one, or yield something
other than a response, the proxy falls back to an empty 500 Internal
Server Error;

5. stores the response in the request attributes, when the caller
provided them with WithAttributes or AttributesHandler;

6. writes the response with the context factory;

7. stops the request timer and notifies the request complete handler.

Step 7 runs on every path where a response was resolved, including
write failures. Errors of the complete handler are logged and counted,
and never change the outcome of the request.

When the session context cannot be created, nothing is written by
Service, and ServeHTTP responds with a generic 500. When the response
cannot be written, ServeHTTP aborts the connection.

The filter phases are provided as a pipeline.Stages implementation,
typically a filters.Processor of a compiled filter chain:

	compiled, err := filters.Compile(registry, definition)
	if err != nil {
		return err
	}

	p := proxy.WithParams(proxy.Params{
		Stages: filters.NewProcessor(compiled, filters.ProcessorOptions{}),
		RequestCompleteHandler: proxy.CompleteHandlers(
			proxy.AccessLogHandler{},
			proxy.MetricsHandler{},
		),
	})

	log.Fatal(http.ListenAndServe(":9090", p))
*/
package proxy
