// Package uds lets the logisticsd CLI query a running agent over a
// Unix domain socket. The protocol is deliberately small: the client
// writes one JSON query on a single line, the agent answers with one
// JSON reply on a single line, and the connection closes.
package uds

import (
	"encoding/json"
	"fmt"
)

// Version guards against a CLI binary talking to an older agent.
const Version = 1

// MaxLineBytes bounds a single protocol line in either direction.
const MaxLineBytes = 1 << 20

// Query is the client's single-line request.
type Query struct {
	Version int    `json:"v"`
	Command string `json:"command"`
}

// Reply is the agent's single-line answer. Error is set iff OK is
// false.
type Reply struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Ok wraps data in a successful reply.
func Ok(data any) *Reply {
	r := &Reply{OK: true}
	if data == nil {
		return r
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Fail("encode reply: %v", err)
	}
	r.Data = raw
	return r
}

// Fail builds an error reply.
func Fail(format string, args ...any) *Reply {
	return &Reply{Error: fmt.Sprintf(format, args...)}
}
