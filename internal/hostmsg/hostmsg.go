// Package hostmsg defines the line-delimited JSON protocol an external
// front-end uses to drive the compiler and kernel: one envelope type in
// each direction, with a Type discriminator and a Payload carrying the
// variant-specific fields. This mirrors the original's wasm.rs
// #[serde(tag = "type", content = "payload")] InMessage/OutMessage enums,
// minus the actual WASM transport (that host is out of scope here; cmd/tci
// serve drives this protocol over stdin/stdout instead of a browser).
package hostmsg

import (
	"encoding/json"
	"fmt"

	"github.com/tci-lang/tci/internal/diag"
	"github.com/tci-lang/tci/internal/symtab"
)

// In is a message sent to the compiler/kernel.
type In struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	InRun   = "Run"
	InEcall = "Ecall"
)

// RunPayload is In's payload when Type is Run. On the wire the payload is a
// bare JSON object mapping source file name to its contents (the original's
// HashMap<String, String>); DecodeRun stores that map in Sources.
type RunPayload struct {
	Sources map[string]string `json:"sources"`
}

// EcallPayload is In's payload when Type is Ecall: the host's resolution of
// a previously reported blocking ecall (e.g. the bytes a terminal read
// produced), keyed by the ecall number it answers.
type EcallPayload struct {
	EcallNum int64    `json:"ecallNum"`
	Result   []uint64 `json:"result"`
}

// DecodeRun unmarshals msg.Payload as a RunPayload; callers should check
// msg.Type == InRun first.
func DecodeRun(msg In) (RunPayload, error) {
	var p RunPayload
	if err := json.Unmarshal(msg.Payload, &p.Sources); err != nil {
		return p, fmt.Errorf("hostmsg: decoding Run payload: %w", err)
	}
	return p, nil
}

// DecodeEcall unmarshals msg.Payload as an EcallPayload; callers should
// check msg.Type == InEcall first.
func DecodeEcall(msg In) (EcallPayload, error) {
	var p EcallPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return p, fmt.Errorf("hostmsg: decoding Ecall payload: %w", err)
	}
	return p, nil
}

// Out is a message sent back to the host.
type Out struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

const (
	OutStartup      = "Startup"
	OutCompiled     = "Compiled"
	OutFileIds      = "FileIds"
	OutCompileError = "CompileError"
	OutInvalidInput = "InvalidInput"
	OutJumpTo       = "JumpTo"
	OutDebug        = "Debug"
	OutStdout       = "Stdout"
	OutStderr       = "Stderr"
	OutStdlog       = "Stdlog"
	OutEcall        = "Ecall"
)

func Startup() Out  { return Out{Type: OutStartup} }
func Compiled() Out { return Out{Type: OutCompiled} }

// FileIds reports every loaded file's symtab.FileID alongside its display
// name, so a front-end can map diagnostic locations back to editor tabs.
func FileIds(names map[symtab.FileID]string) Out {
	return Out{Type: OutFileIds, Payload: names}
}

// CompileErrorPayload carries both the rendered plain-text diagnostic (for
// a terminal-like view) and the structured errors (for a front-end that
// wants to jump to each error's location itself).
type CompileErrorPayload struct {
	Rendered string        `json:"rendered"`
	Errors   []*diag.Error `json:"errors"`
}

func CompileError(rendered string, errs []*diag.Error) Out {
	return Out{Type: OutCompileError, Payload: CompileErrorPayload{Rendered: rendered, Errors: errs}}
}

func InvalidInput(raw string) Out { return Out{Type: OutInvalidInput, Payload: raw} }

func JumpTo(loc symtab.CodeLoc) Out { return Out{Type: OutJumpTo, Payload: loc} }

func Debug(s string) Out  { return Out{Type: OutDebug, Payload: s} }
func Stdout(s string) Out { return Out{Type: OutStdout, Payload: s} }
func Stderr(s string) Out { return Out{Type: OutStderr, Payload: s} }
func Stdlog(s string) Out { return Out{Type: OutStdlog, Payload: s} }

// EcallExt reports a blocking ecall the kernel needs the host to resolve
// before execution can resume (e.g. a terminal read waiting on input the
// host buffers outside the VM).
type EcallExt struct {
	ProcIdx  int   `json:"procIdx"`
	EcallNum int64 `json:"ecallNum"`
	Args     []uint64 `json:"args"`
}

func Ecall(req EcallExt) Out { return Out{Type: OutEcall, Payload: req} }
