package cli

import (
	"runtime"
	"strings"
)

// executableSuffixes is the platform strategy table for the binary name.
// Windows is the only OS family carrying a suffix.
var executableSuffixes = map[string]string{
	"windows": ".exe",
}

// Builder is the default CommandBuilder for the external tool.
// The executable name is resolved once at construction; Build itself has
// no platform branches.
type Builder struct {
	executable string
}

// NewBuilder creates a Builder for the configured binary name or path,
// applying the suffix for the current OS.
func NewBuilder(binary string) *Builder {
	return NewBuilderFor(binary, runtime.GOOS)
}

// NewBuilderFor creates a Builder with an explicit GOOS key. Split out of
// NewBuilder so the suffix table is testable on every platform.
func NewBuilderFor(binary, goos string) *Builder {
	suffix := executableSuffixes[goos]
	if suffix != "" && !strings.HasSuffix(binary, suffix) {
		binary += suffix
	}
	return &Builder{executable: binary}
}

// Executable returns the resolved binary name.
func (b *Builder) Executable() string {
	return b.executable
}

// Build maps session options to the tool's argument grammar:
//
//	[--session-id <id>] [--add-dir <path>] [--output-format stream-json]
//	[--allowedTools <comma-joined>] <message>
//
// Argument order is deterministic and append-only. Absent optional fields
// emit nothing; the message is always the last positional argument.
func (b *Builder) Build(opts Options) (string, []string) {
	args := make([]string, 0, 9)

	if opts.SessionID != "" {
		args = append(args, "--session-id", opts.SessionID)
	}
	if opts.WorkingContextPath != "" {
		args = append(args, "--add-dir", opts.WorkingContextPath)
	}
	if !opts.DisableStreaming {
		args = append(args, "--output-format", "stream-json")
	}
	if len(opts.AllowedCapabilities) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedCapabilities, ","))
	}

	args = append(args, opts.Message)
	return b.executable, args
}
