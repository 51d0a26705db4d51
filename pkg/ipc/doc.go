// Package ipc implements the agent's stdio protocol.
//
// Inbound commands are one JSON object per line:
//
//	{"id":"1","action":"ping"}
//
// Outbound envelopes are JSON objects each followed by a single NUL byte,
// since file contents in sync payloads may contain newlines:
//
//	{"type":"response","payload":{"id":"1","result":"pong","error":null},"timestamp":1700000000000}\x00
//
// Writes are serialized by the Writer's own mutex so a response and an
// asynchronous sync push never interleave. Write failures are swallowed;
// a vanished parent is not the agent's to escalate.
package ipc
