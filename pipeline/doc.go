/*
Package pipeline composes the three filter phases of a request into a
single deferred computation.

A Chain is a lazy sequence of messages. Building a chain and applying
the phases to it does not execute any filter; the filters run only when
the chain is forced with Collect or Single:

	c := pipeline.Compose(stages, req)
	m, err := c.Single(ctx)

Single succeeds only when the sequence yields exactly one message. Zero
or multiple messages, an error returned by a stage, a panic raised
while forcing, or a context that is done, all make Single fail. The
caller is expected to treat every such failure the same way.
*/
package pipeline
