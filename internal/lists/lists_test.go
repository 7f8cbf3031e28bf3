package lists

import (
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lists.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestEffectiveSetAppliesAdditionsAndRemovals(t *testing.T) {
	path := writeArtifact(t, `{
		"major-news": {
			"type": "domains",
			"values": ["nytimes.com", "bbc.co.uk"],
			"manual_additions": ["example-news.com"],
			"manual_removals": ["bbc.co.uk"],
			"input_hash": "h1"
		}
	}`)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	l, ok := store.Lookup("major-news")
	if !ok {
		t.Fatal("expected major-news list")
	}
	if !l.Contains("nytimes.com") {
		t.Error("nytimes.com should remain")
	}
	if !l.Contains("example-news.com") {
		t.Error("manual addition should be present")
	}
	if l.Contains("bbc.co.uk") {
		t.Error("manually removed value should not be present")
	}
}

func TestEmailsListIsCaseInsensitive(t *testing.T) {
	path := writeArtifact(t, `{
		"approved-senders": {
			"type": "emails",
			"values": ["Alice@Example.com"],
			"input_hash": "h2"
		}
	}`)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	l, _ := store.Lookup("approved-senders")
	if !l.Contains("alice@example.com") {
		t.Error("expected case-insensitive match for emails list")
	}
}

func TestDomainsListIsCaseSensitive(t *testing.T) {
	path := writeArtifact(t, `{
		"d": {"type": "domains", "values": ["Example.com"], "input_hash": "h3"}
	}`)
	store, _ := Load(path)
	l, _ := store.Lookup("d")
	if l.Contains("example.com") {
		t.Error("domains list should be case-sensitive")
	}
}

func TestLoadRejectsMissingInputHash(t *testing.T) {
	path := writeArtifact(t, `{"d": {"type": "domains", "values": ["x.com"]}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing input_hash")
	}
}

func TestTrimReference(t *testing.T) {
	if got := TrimReference("@major-news"); got != "major-news" {
		t.Errorf("got %q", got)
	}
	if got := TrimReference("major-news"); got != "major-news" {
		t.Errorf("got %q", got)
	}
}
