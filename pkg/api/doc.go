// Package api defines the wire types for the relay's HTTP surface.
//
// This package provides all data types exchanged with clients: the chat
// request shape (prompt or multi-turn messages), the plain and enveloped
// response payloads, streaming events, error kinds, and request ID
// generation.
//
// The package has zero external dependencies (Go standard library only) and
// performs no I/O. Turn and Conversation use the upstream completion API's
// field names, so a message list supplied by a client can be forwarded
// without re-mapping.
//
// Core types:
//   - [ChatRequest]: client request (prompt or messages, stream flag, timeout)
//   - [Turn] / [Conversation]: ordered role-tagged messages
//   - [Envelope]: the {code, message, data} wrapper the mini-program
//     endpoints always return with HTTP 200
//   - [StreamEvent]: one event of the relay's SSE framing
//   - [Error]: structured error carrying a classified [ErrorKind]
package api
