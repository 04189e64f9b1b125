// Package relay implements the chat service core: request validation and
// normalization, timeout resolution, and the three delivery shapes (single
// answer, event stream, typewriter chunks) built on the upstream completion
// client.
//
// The package owns no transport concerns. HTTP handlers construct an
// api.ChatRequest, call the Service, and shape the result; the Service in
// turn owns everything between the wire request and the upstream call.
package relay
