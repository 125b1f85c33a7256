/*
Package session provides the per-request state container of the
gateway, and the stopwatches used to time the request and its filter
phases.

A context is created for every incoming request, optionally passed to a
Decorator, and then embedded in every message flowing through the
filter phases. Filters share data through the context's state bag:

	func (f *myFilter) Apply(ctx context.Context, m message.Message) (message.Message, error) {
		m.Context().Set("my-key", "value")
		return m, nil
	}
*/
package session
