// Package cli integrates the external AI CLI tool as a subprocess: command
// construction, single-flight process supervision, and the session façade.
package cli

import (
	"time"

	"github.com/caioniehues/clibridge/internal/protocol"
)

// DefaultTimeout bounds a session when Options.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Options configures one CLI session. A value is built per request and
// discarded after the call.
type Options struct {
	// Message is the payload sent to the tool. Required.
	Message string

	// SessionID is the conversation continuity token passed through to
	// the tool via --session-id. Empty means a fresh conversation.
	SessionID string

	// WorkingContextPath is a filesystem root the tool may read
	// (--add-dir). It is also used as the subprocess working directory.
	WorkingContextPath string

	// DisableStreaming suppresses the --output-format stream-json flag.
	// Streaming is enabled by default.
	DisableStreaming bool

	// AllowedCapabilities names the tool permissions to grant
	// (--allowedTools), joined by commas in the given order.
	AllowedCapabilities []string

	// Timeout is the hard wall-clock deadline from session start.
	// Zero means DefaultTimeout.
	Timeout time.Duration
}

// withDefaults returns a copy with unset fields filled in.
func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// MessageHandler receives decoded protocol messages synchronously, in
// stream order, before the next output chunk is processed.
type MessageHandler func(protocol.Message)

// CommandBuilder derives the executable and argument list for a session.
// Implementations must be pure and must not fail.
type CommandBuilder interface {
	Build(opts Options) (executable string, args []string)
}
