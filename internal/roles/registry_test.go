package roles

import (
	"context"
	"path/filepath"
	"testing"
)

func TestCanonicalizePathIdempotent(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b.txt")

	tests := []struct {
		name string
		raw  string
	}{
		{"existing-dir", dir},
		{"nonexistent-nested", sub},
		{"relative-dot", "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := canonicalizePath(String(tt.raw))
			twice := canonicalizePath(String(once))
			if once != twice {
				t.Errorf("canonicalize not idempotent: %q then %q", once, twice)
			}
		})
	}
}

func TestCanonicalizeURLStripsDefaultPortAndTrailingSlash(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"http-default-port", "http://example.com:80/path/", "http://example.com/path"},
		{"https-default-port", "https://example.com:443/path/", "https://example.com/path"},
		{"https-nondefault-port", "https://example.com:8443/path", "https://example.com:8443/path"},
		{"unparseable-falls-back", "://not a url", "://not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := canonicalizeURL(String(tt.raw))
			if got != tt.want {
				t.Errorf("canonicalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExtractHostnameIsIPAware(t *testing.T) {
	tests := []struct {
		name      string
		canonical string
		wantHost  string
		wantIP    bool
	}{
		{"hostname", "https://example.com/x", "example.com", false},
		{"ipv4-literal", "http://169.254.169.254/meta", "169.254.169.254", true},
		{"ipv6-literal", "http://[::1]/x", "::1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, ok := extractHostname(tt.canonical)
			if !ok {
				t.Fatalf("extractHostname(%q) failed", tt.canonical)
			}
			if host != tt.wantHost {
				t.Errorf("host = %q, want %q", host, tt.wantHost)
			}
			if IsIPLiteral(host) != tt.wantIP {
				t.Errorf("IsIPLiteral(%q) = %v, want %v", host, !tt.wantIP, tt.wantIP)
			}
		})
	}
}

func TestResolveGitRemoteFallsBackOnFailure(t *testing.T) {
	dir := t.TempDir() // not a git repo
	got := resolveGitRemote(context.Background(), String("origin"), Siblings{"path": String(dir)})
	if got.AsString() != "origin" {
		t.Errorf("expected fallback to raw value, got %q", got.AsString())
	}
}

func TestRegistryCoversClosedRoleSet(t *testing.T) {
	reg := New()
	want := []Name{
		ReadPath, WritePath, DeletePath, WriteHistory, DeleteHistory,
		FetchURL, GitRemoteURL, BranchName, CommitMessage, None,
	}
	for _, name := range want {
		if !reg.IsKnown(name) {
			t.Errorf("registry missing role %q", name)
		}
	}
	if reg.IsKnown(Name("not-a-role")) {
		t.Error("registry should not recognize an unregistered role name")
	}
}

func TestSandboxSafeRolesMatchSpec(t *testing.T) {
	for _, r := range []Name{ReadPath, WritePath, DeletePath} {
		if !SandboxSafe[r] {
			t.Errorf("%q should be sandbox-safe", r)
		}
	}
	for _, r := range []Name{WriteHistory, DeleteHistory} {
		if SandboxSafe[r] {
			t.Errorf("%q must not be sandbox-safe", r)
		}
	}
}
