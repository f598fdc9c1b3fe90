// Package provider defines the capability contracts that external backends
// implement (transcription, identity search, generation) and the plumbing
// shared by all of them: a factory registry, request/response middleware and
// an ordered fallback runner.
//
// Backends register a Factory by name; Registry.Build creates the configured
// names in order, each from its own Settings map:
//
//	reg := provider.NewRegistry[transcription.Backend]()
//	reg.RegisterFactory("assembly", assembly.Factory(keys, log))
//	backends, err := reg.Build([]string{"assembly", "whisper"}, settings)
//
// Middleware[I, O] wraps a RequestResponse provider. Use Chain to compose:
//
//	searcher := provider.Chain(
//	    provider.WithLogging[Query, []Match](log),
//	    provider.WithRetry[Query, []Match](retryCfg),
//	    provider.WithTracing[Query, []Match]("speaker"),
//	)(rawSearcher)
//
// RunFallback executes an ordered list of attempts. After each failure a
// Classifier decides whether the next attempt runs or the error is final:
//
//	out, err := provider.RunFallback(ctx, []provider.Attempt[Out]{
//	    {Name: "primary", Run: primary},
//	    {Name: "fallback", Run: fallback},
//	}, classify)
package provider
