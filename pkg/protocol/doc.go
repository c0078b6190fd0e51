// Package protocol defines the message vocabulary exchanged between the
// page extractor (agent), the coordinator and the summary CLI.
//
// Every message is an Envelope whose Type is one of the Kind constants.
// Kinds that expect a response are answered with an Envelope whose ReplyTo
// carries the request ID; all other kinds are fire-and-forget.
package protocol
