package rollback

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/store"
)

func TestConfirm_AcceptsY(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("y\n"))
	if !Confirm(r, "001-x", "deadbeef") {
		t.Fatal("expected y to confirm")
	}
}

func TestConfirm_RejectsAnythingElse(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("no\n"))
	if Confirm(r, "001-x", "deadbeef") {
		t.Fatal("expected non-y to reject")
	}
}

func TestRun_RejectsNonDoneItem(t *testing.T) {
	s := store.Open(t.TempDir())
	it, _ := item.New("001-x", "x", "", nil)
	it.State = item.StateInPR

	if err := Run(context.Background(), s, nil, "main", it); err == nil {
		t.Fatal("expected error for a non-done item")
	}
}

func TestRun_RejectsMissingRollbackSHA(t *testing.T) {
	s := store.Open(t.TempDir())
	it, _ := item.New("001-x", "x", "", nil)
	it.State = item.StateDone

	if err := Run(context.Background(), s, nil, "main", it); err == nil {
		t.Fatal("expected error when rollback_sha is nil")
	}
}
