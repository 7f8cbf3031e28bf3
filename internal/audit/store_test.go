package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestWriter(t *testing.T) (*FileWriter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	w, err := NewFileWriter(FileWriterConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, path
}

func TestRecordAppendsNewlineDelimitedJSON(t *testing.T) {
	w, path := newTestWriter(t)
	ctx := context.Background()

	if err := w.Record(ctx, &Event{RequestID: "req-1", Server: "filesystem", Tool: "read_file", Verdict: VerdictAllow}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Record(ctx, &Event{RequestID: "req-2", Server: "git", Tool: "git_push", Verdict: VerdictEscalate}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Fatal("log must end in a newline")
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
}

func TestRecordChainsHashesAcrossEvents(t *testing.T) {
	w, path := newTestWriter(t)
	ctx := context.Background()

	e1 := &Event{RequestID: "req-1", Verdict: VerdictAllow}
	e2 := &Event{RequestID: "req-2", Verdict: VerdictDeny}
	if err := w.Record(ctx, e1); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Record(ctx, e2); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e2.PrevHash != e1.EventHash {
		t.Errorf("second event's PrevHash = %q, want %q", e2.PrevHash, e1.EventHash)
	}
	if e1.PrevHash != GenesisHash {
		t.Errorf("first event's PrevHash = %q, want genesis", e1.PrevHash)
	}

	events, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if brokenAt, err := VerifyChain(events); err != nil {
		t.Errorf("chain should verify, broken at %d: %v", brokenAt, err)
	}
}

func TestReadEventsToleratesPartialLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	w, err := NewFileWriter(FileWriterConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	if err := w.Record(context.Background(), &Event{RequestID: "req-1", Verdict: VerdictAllow}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	w.Close()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := f.Write([]byte(`{"request_id": "req-2", "verdict": "deny"`)); err != nil {
		t.Fatalf("write partial line: %v", err)
	}
	f.Close()

	events, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents should tolerate a partial last line: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 complete event, got %d", len(events))
	}
}

func TestRecordAssignsEventIDAndTimestampWhenAbsent(t *testing.T) {
	w, _ := newTestWriter(t)
	e := &Event{RequestID: "req-1"}
	if err := w.Record(context.Background(), e); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e.EventID == "" {
		t.Error("expected EventID to be assigned")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected Timestamp to be assigned")
	}
}

func TestLastHashDefaultsToGenesis(t *testing.T) {
	w, _ := newTestWriter(t)
	if got := w.LastHash(); got != GenesisHash {
		t.Errorf("LastHash() = %q, want genesis", got)
	}
}

func TestNewFileWriterRecoversHashChainAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	ctx := context.Background()

	w1, err := NewFileWriter(FileWriterConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	e1 := &Event{RequestID: "req-1", Verdict: VerdictAllow}
	if err := w1.Record(ctx, e1); err != nil {
		t.Fatalf("Record: %v", err)
	}
	w1.Close()

	// A fresh FileWriter against the same path simulates a process
	// restart: it must pick the chain back up from e1.EventHash rather
	// than restarting it at GenesisHash.
	w2, err := NewFileWriter(FileWriterConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileWriter on restart: %v", err)
	}
	t.Cleanup(func() { w2.Close() })

	if got := w2.LastHash(); got != e1.EventHash {
		t.Errorf("LastHash() after restart = %q, want %q (the pre-restart log's last event hash)", got, e1.EventHash)
	}

	e2 := &Event{RequestID: "req-2", Verdict: VerdictDeny}
	if err := w2.Record(ctx, e2); err != nil {
		t.Fatalf("Record after restart: %v", err)
	}
	if e2.PrevHash != e1.EventHash {
		t.Errorf("post-restart event's PrevHash = %q, want %q", e2.PrevHash, e1.EventHash)
	}

	events, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events across both writers, got %d", len(events))
	}
	if brokenAt, err := VerifyChain(events); err != nil {
		t.Errorf("chain across the restart boundary should verify, broken at %d: %v", brokenAt, err)
	}
}

func TestReadEventsPreservesFieldsAcrossTheRoundTrip(t *testing.T) {
	w, path := newTestWriter(t)
	ctx := context.Background()

	args, err := json.Marshal(map[string]string{"path": "/tmp/sbx/a.txt"})
	if err != nil {
		t.Fatalf("marshal fixture arguments: %v", err)
	}
	written := &Event{
		EventType:      EventTypeDecision,
		RequestID:      "req-1",
		Server:         "filesystem",
		Tool:           "read_file",
		Arguments:      args,
		Verdict:        VerdictEscalate,
		RuleName:       "escalate-read-outside-sandbox",
		Reason:         "path escapes the sandbox",
		Escalation:     &EscalationResolution{EscalationID: "esc-1", State: "approved"},
		DurationMillis: 42,
		Outcome:        OutcomeApprovedByHuman,
	}
	if err := w.Record(ctx, written); err != nil {
		t.Fatalf("Record: %v", err)
	}

	events, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	// EventID, Timestamp, and the hash-chain fields are assigned by
	// Record itself; everything the caller supplied must survive the
	// JSON round trip unchanged.
	if diff := cmp.Diff(*written, events[0], cmpopts.IgnoreFields(Event{}, "EventID", "Timestamp", "PrevHash", "EventHash")); diff != "" {
		t.Errorf("event changed across the round trip (-want +got):\n%s", diff)
	}
}
