// Package llm generates meeting artifacts (minutes, action items) from a
// diarized transcript.
//
// A [Generator] holds an ordered list of [Backend]s. Each backend is tried in
// turn: a credential is drawn from its key-quota pool, retryable errors are
// retried in place, and any other failure moves on to the next backend. A
// content-policy refusal ends generation immediately.
//
// Backends live in sub-packages:
//
//	llm/openai   Responses API (primary)
//	llm/gemini   Google Gen AI (fallback)
//
// Action items are requested as structured output; the schema is reflected
// from [ActionItems] with [SchemaFor].
package llm
