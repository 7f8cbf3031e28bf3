package roles

import (
	"context"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// indirectionTimeout bounds every resolve-indirection subprocess, matching
// the teacher's external-binary invocation pattern (bounded timeout,
// Dir set, never a shell).
const indirectionTimeout = 5 * time.Second

// New builds the process-wide role registry from the fixed Go literal
// below. Roles are a closed set; this table is never mutated after
// construction.
func New() *Registry {
	return &Registry{defs: map[Name]Def{
		ReadPath: {
			Category:             CategoryPath,
			IsResourceIdentifier: true,
			Canonicalize:         canonicalizePath,
		},
		WritePath: {
			Category:             CategoryPath,
			IsResourceIdentifier: true,
			Canonicalize:         canonicalizePath,
		},
		DeletePath: {
			Category:             CategoryPath,
			IsResourceIdentifier: true,
			Canonicalize:         canonicalizePath,
		},
		WriteHistory: {
			Category:             CategoryPath,
			IsResourceIdentifier: true,
			Canonicalize:         canonicalizePath,
		},
		DeleteHistory: {
			Category:             CategoryPath,
			IsResourceIdentifier: true,
			Canonicalize:         canonicalizePath,
		},
		FetchURL: {
			Category:             CategoryURL,
			IsResourceIdentifier: true,
			Canonicalize:         canonicalizeURL,
			ExtractPolicyValue:   extractHostname,
		},
		GitRemoteURL: {
			Category:             CategoryURL,
			IsResourceIdentifier: true,
			Canonicalize:         canonicalizeURL,
			ExtractPolicyValue:   extractHostname,
			ResolveIndirection:   resolveGitRemote,
		},
		BranchName: {
			Category:   CategoryOpaque,
			Canonicalize: identity,
		},
		CommitMessage: {
			Category:   CategoryOpaque,
			Canonicalize: identity,
		},
		None: {
			Category:   CategoryOpaque,
			Canonicalize: identity,
		},
	}}
}

func identity(raw Value) string { return raw.AsString() }

// canonicalizePath expands '~', makes the path absolute, and resolves
// symlinks, falling back to the existing-parent-plus-basename shape when
// the path (or a component of it) does not exist yet — matching
// glossary's "Canonical path" definition and spec.md §4.1's contract that
// canonicalization is total.
func canonicalizePath(raw Value) string {
	p := raw.AsString()
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	if !filepath.IsAbs(p) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return filepath.Clean(resolved)
	}
	return bestEffortRealPath(p)
}

// bestEffortRealPath walks up from p until it finds an existing ancestor,
// resolves symlinks on that ancestor, then re-appends the remaining
// (non-existent) components, so a path to a not-yet-created file still
// canonicalizes deterministically.
func bestEffortRealPath(p string) string {
	clean := filepath.Clean(p)
	var tail []string
	dir := clean
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			full := filepath.Join(append([]string{resolved}, reverse(tail)...)...)
			return filepath.Clean(full)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return clean
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
	}
}

func reverse(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[len(ss)-1-i] = s
	}
	return out
}

// canonicalizeURL parses the URL, strips the default port for its scheme
// and any trailing slash on the path. Unparseable input falls back to the
// raw string, per spec.md §4.1's total-canonicalization contract.
func canonicalizeURL(raw Value) string {
	s := raw.AsString()
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	host := u.Hostname()
	port := u.Port()
	switch {
	case port == "80" && u.Scheme == "http":
		port = ""
	case port == "443" && u.Scheme == "https":
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func extractHostname(canonical string) (string, bool) {
	u, err := url.Parse(canonical)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}

// resolveGitRemote turns a named git remote (e.g. "origin") into its
// configured URL by running `git remote get-url <name>` in the sibling
// repository-path argument's directory, bounded by indirectionTimeout and
// never invoked through a shell. On any failure the raw value is returned
// unchanged, per spec.md §7's indirection-failure semantics: "escalate
// when we can't verify".
func resolveGitRemote(ctx context.Context, raw Value, siblings Siblings) Value {
	repoPath, ok := siblingPath(siblings)
	if !ok {
		return raw
	}
	name := raw.AsString()
	if name == "" {
		return raw
	}
	cctx, cancel := context.WithTimeout(ctx, indirectionTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "git", "remote", "get-url", name)
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return raw
	}
	url := strings.TrimSpace(string(out))
	if url == "" {
		return raw
	}
	return String(url)
}

// siblingPath finds the first sibling argument that looks like a
// filesystem path, used to locate the repository directory for
// resolve-indirection on git-remote-url. Real annotations name this
// argument explicitly (e.g. "path" or "repository"); this fallback scans
// for any sibling whose value is an absolute path to an existing directory.
func siblingPath(siblings Siblings) (string, bool) {
	for _, key := range []string{"path", "repository", "repo", "cwd", "directory"} {
		if v, ok := siblings[key]; ok {
			if s := v.AsString(); s != "" {
				return s, true
			}
		}
	}
	for _, v := range siblings {
		if s := v.AsString(); filepath.IsAbs(s) {
			if info, err := os.Stat(s); err == nil && info.IsDir() {
				return s, true
			}
		}
	}
	return "", false
}

// IsIPLiteral reports whether host is a literal IPv4 or IPv6 address,
// used by the SSRF guard (spec.md §4.2 invariant 5) to keep a wildcard
// domain pattern from ever matching an IP.
func IsIPLiteral(host string) bool {
	if net.ParseIP(host) != nil {
		return true
	}
	return strings.Contains(host, ":")
}
