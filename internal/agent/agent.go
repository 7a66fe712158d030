// Package agent implements the agent transport contract: one
// interface, a closed set of variants (process, library-call,
// sandboxed-remote, mock) selected by config.AgentConfig.Kind.
package agent

import (
	"context"
	"fmt"
	"time"
)

// Request is one phase dispatch turn.
type Request struct {
	ItemID           string
	Phase            string
	Prompt           string
	SessionID        string
	IsFirstTurn      bool
	AllowTools       []string
	WorkDir          string
	Env              map[string]string
	Timeout          time.Duration
	CompletionSignal string
}

// Result is the outcome of one turn.
type Result struct {
	ExitCode  int
	Output    string
	SessionID string
	Completed bool // true if CompletionSignal was observed in Output, or none was configured
}

// Transport dispatches one agent turn. Implementations must honor ctx
// cancellation: the orchestrator relies on this for graceful shutdown.
type Transport interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// LibraryFunc is the signature an embedding program registers for the
// library-call variant (spec.md's "sdk" case: no subprocess involved).
type LibraryFunc func(ctx context.Context, req Request) (*Result, error)

// New constructs the Transport selected by kind. kind must be one of the
// closed set: process, sdk (library-call), sandboxed-vm (sandboxed-remote),
// mock.
func New(kind, sandboxCommand, completionSignal string, libraryFn LibraryFunc) (Transport, error) {
	switch kind {
	case "process":
		return &processTransport{completionSignal: completionSignal}, nil
	case "sdk":
		if libraryFn == nil {
			return nil, fmt.Errorf("agent: kind \"sdk\" requires a registered library function")
		}
		return &libraryTransport{fn: libraryFn}, nil
	case "sandboxed-vm":
		if sandboxCommand == "" {
			return nil, fmt.Errorf("agent: kind \"sandboxed-vm\" requires agent.sandbox_command")
		}
		return &sandboxedTransport{
			processTransport: processTransport{completionSignal: completionSignal},
			sandboxCommand:   sandboxCommand,
		}, nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("agent: unknown kind %q", kind)
	}
}
