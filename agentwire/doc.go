// Package agentwire defines the typed event vocabulary emitted by the
// coding-agent endpoint and decodes its SSE framing.
//
// The upstream process streams newline-delimited "data: <json>" frames over a
// single HTTP response. Each frame carries a JSON object discriminated by a
// "type" field. The vocabulary is not closed: frames with an unrecognized
// type decode to RawEvent rather than being dropped, so new upstream event
// shapes stay visible to consumers for diagnosis.
//
// Decoding is resilient by policy: a single malformed frame is logged and
// skipped, never aborting an otherwise-healthy long-running agent session.
package agentwire
