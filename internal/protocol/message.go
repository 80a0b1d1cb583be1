// Package protocol implements the stream-json wire protocol spoken by the
// external CLI tool: UTF-8 text on stdout, one JSON object per line.
package protocol

import "encoding/json"

// MessageType discriminates the decoded protocol variants.
type MessageType string

const (
	// MessageContent is an incremental text fragment.
	MessageContent MessageType = "content"

	// MessageToolUse reports that the tool invoked a capability.
	MessageToolUse MessageType = "tool_use"

	// MessageMetadata carries auxiliary structured info.
	MessageMetadata MessageType = "metadata"

	// MessageEnd is the advisory terminal marker for a successful session.
	// Process exit remains authoritative for session completion.
	MessageEnd MessageType = "end"

	// MessageError is the terminal marker for a protocol-level failure.
	MessageError MessageType = "error"
)

// Message is one decoded unit of the wire protocol.
type Message struct {
	Type MessageType `json:"type"`

	// Content holds the text fragment for MessageContent, or the error
	// text for MessageError.
	Content string `json:"content,omitempty"`

	// Metadata holds the raw metadata payload for MessageToolUse and
	// MessageMetadata.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// Raw is the original line as received, before interpretation.
	Raw json.RawMessage `json:"-"`
}

// Terminal reports whether the message marks the end of the protocol
// exchange (MessageEnd or MessageError).
func (m Message) Terminal() bool {
	return m.Type == MessageEnd || m.Type == MessageError
}
