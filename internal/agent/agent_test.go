package agent

import (
	"context"
	"strings"
	"testing"
)

func TestNewRejectsUnknownKind(t *testing.T) {
	if _, err := New("telepathy", "", "", nil); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNewSDKRequiresLibraryFunc(t *testing.T) {
	if _, err := New("sdk", "", "", nil); err == nil {
		t.Fatal("expected error for sdk kind with no registered function")
	}
}

func TestNewSandboxedRequiresCommand(t *testing.T) {
	if _, err := New("sandboxed-vm", "", "", nil); err == nil {
		t.Fatal("expected error for sandboxed-vm kind with no sandbox_command")
	}
}

func TestLibraryTransportDelegates(t *testing.T) {
	fn := func(ctx context.Context, req Request) (*Result, error) {
		return &Result{Output: "handled:" + req.Prompt}, nil
	}
	tr, err := New("sdk", "", "", fn)
	if err != nil {
		t.Fatal(err)
	}
	res, err := tr.Run(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != "handled:hello" {
		t.Fatalf("output = %q", res.Output)
	}
}

func TestMockTransportScriptedInOrder(t *testing.T) {
	m := NewMock()
	m.Script(&Result{Output: "first"}, nil)
	m.Script(&Result{Output: "second"}, nil)

	r1, err := m.Run(context.Background(), Request{Prompt: "a"})
	if err != nil || r1.Output != "first" {
		t.Fatalf("first call: %v %+v", err, r1)
	}
	r2, err := m.Run(context.Background(), Request{Prompt: "b"})
	if err != nil || r2.Output != "second" {
		t.Fatalf("second call: %v %+v", err, r2)
	}
	if _, err := m.Run(context.Background(), Request{}); err == nil {
		t.Fatal("expected error once script is exhausted")
	}
	if len(m.Calls()) != 3 {
		t.Fatalf("expected 3 recorded calls, got %d", len(m.Calls()))
	}
}

func TestExpandVarsPrefersMapOverEnv(t *testing.T) {
	t.Setenv("NAME", "from-env")
	out := ExpandVars("hello ${NAME}", map[string]string{"NAME": "wreckit"})
	if out != "hello wreckit" {
		t.Fatalf("got %q", out)
	}
}

func TestParseStreamAccumulatesTextDeltas(t *testing.T) {
	lines := `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello, "}}}
{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"world"}}}
{"type":"result","session_id":"sess-1"}
`
	res, err := parseStream(context.Background(), strings.NewReader(lines))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Hello, world" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.SessionID != "sess-1" {
		t.Fatalf("session id = %q", res.SessionID)
	}
}
