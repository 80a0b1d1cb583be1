package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caioniehues/clibridge/internal/metrics"
)

// errSkipLine signals a line that carries no message (blank or malformed).
var errSkipLine = errors.New("protocol: skip line")

// Decoder is a stateful line-buffering decoder for the stream-json protocol.
// It accepts arbitrary byte chunks and emits complete messages, retaining a
// partial trailing line between Feed calls. Not safe for concurrent use;
// each session owns its own Decoder.
type Decoder struct {
	pending []byte
}

// NewDecoder creates a Decoder with an empty pending buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the pending buffer and returns every complete
// message found, in stream order. A trailing fragment without its newline
// stays buffered until a later Feed completes it. Malformed lines are
// dropped and counted; they never stop processing of subsequent lines.
func (d *Decoder) Feed(chunk []byte) []Message {
	d.pending = append(d.pending, chunk...)

	var msgs []Message
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			break
		}
		line := d.pending[:i]
		d.pending = d.pending[i+1:]

		msg, err := parseLine(line)
		if err != nil {
			if !errors.Is(err, errSkipLine) {
				metrics.DecodeSkips.Inc()
				slog.Debug("dropping malformed protocol line", "error", err, "len", len(line))
			}
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// Reset discards any buffered partial line. Called by session finalization
// so a stale fragment never leaks into the next session.
func (d *Decoder) Reset() {
	d.pending = nil
}

// wireRecord is the on-the-wire shape of a protocol line.
type wireRecord struct {
	Type     string          `json:"type"`
	Content  string          `json:"content"`
	Error    string          `json:"error"`
	Metadata json.RawMessage `json:"metadata"`
}

// parseLine decodes a single complete line. Blank lines return errSkipLine;
// malformed JSON or an unknown/empty type returns a descriptive error that
// Feed absorbs.
func parseLine(line []byte) (Message, error) {
	if strings.TrimSpace(string(line)) == "" {
		return Message{}, errSkipLine
	}

	var rec wireRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return Message{}, err
	}

	msg := Message{Raw: append(json.RawMessage(nil), line...)}

	switch rec.Type {
	case "content":
		msg.Type = MessageContent
		msg.Content = rec.Content
	case "tool_use":
		msg.Type = MessageToolUse
		msg.Metadata = rec.Metadata
	case "metadata":
		msg.Type = MessageMetadata
		msg.Metadata = rec.Metadata
	case "end":
		msg.Type = MessageEnd
	case "error":
		msg.Type = MessageError
		msg.Content = rec.Error
	default:
		return Message{}, fmt.Errorf("protocol: unknown type %q", truncateType(rec.Type))
	}
	return msg, nil
}

// truncateType bounds unknown type values before they reach log output.
func truncateType(s string) string {
	const maxTypeLen = 64
	if len(s) > maxTypeLen {
		return s[:maxTypeLen]
	}
	return s
}
