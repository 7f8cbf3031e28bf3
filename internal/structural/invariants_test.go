package structural

import (
	"testing"

	"ironcurtain/internal/classify"
	"ironcurtain/internal/roles"
)

func obs(role roles.Name, arg, canonical string) classify.Observation {
	return classify.Observation{Argument: arg, Role: role, Canonical: canonical}
}

func TestEvaluateUnknownToolDenies(t *testing.T) {
	ctx := EvalContext{Classified: classify.Result{Unknown: true}}
	res, concluded, _ := Evaluate(ctx)
	if !concluded || res.Decision != Deny || res.RuleName != "structural-unknown-tool" {
		t.Errorf("got %+v, concluded=%v", res, concluded)
	}
}

func TestEvaluateIntrospectionAlwaysAllowed(t *testing.T) {
	ctx := EvalContext{
		Server:     "filesystem",
		Tool:       "list_allowed_directories",
		Classified: classify.Result{Observations: nil},
	}
	res, concluded, _ := Evaluate(ctx)
	if !concluded || res.Decision != Allow {
		t.Errorf("expected allow, got %+v", res)
	}
}

func TestEvaluateProtectedPathDenies(t *testing.T) {
	cfg := Config{ProtectedPaths: []string{"/etc/constitution.md", "/var/log/audit.jsonl"}}
	ctx := EvalContext{
		Server: "filesystem", Tool: "write_file",
		Config:     cfg,
		Classified: classify.Result{Observations: []classify.Observation{obs(roles.WritePath, "path", "/var/log/audit.jsonl")}},
	}
	res, concluded, _ := Evaluate(ctx)
	if !concluded || res.Decision != Deny || res.RuleName != "structural-protected-path" {
		t.Errorf("got %+v", res)
	}
}

func TestEvaluateProtectedPathAllowsReadPath(t *testing.T) {
	cfg := Config{ProtectedPaths: []string{"/var/log/audit.jsonl"}}
	ctx := EvalContext{
		Server: "filesystem", Tool: "read_file",
		Config:     cfg,
		Classified: classify.Result{Observations: []classify.Observation{obs(roles.ReadPath, "path", "/var/log/audit.jsonl")}},
	}
	_, concluded, unresolved := Evaluate(ctx)
	if concluded {
		t.Fatal("read-path must not trigger protected-path deny")
	}
	if len(unresolved) != 1 {
		t.Errorf("expected 1 unresolved observation, got %d", len(unresolved))
	}
}

func TestEvaluateSandboxContainmentResolvesRole(t *testing.T) {
	cfg := Config{SandboxDirectory: "/tmp/sbx"}
	ctx := EvalContext{
		Server: "filesystem", Tool: "read_file",
		Config:     cfg,
		Classified: classify.Result{Observations: []classify.Observation{obs(roles.ReadPath, "path", "/tmp/sbx/a.txt")}},
	}
	_, concluded, unresolved := Evaluate(ctx)
	if concluded {
		t.Fatal("sandbox containment must not itself emit a verdict")
	}
	if len(unresolved) != 0 {
		t.Errorf("expected read-path to be resolved out, got %+v", unresolved)
	}
}

func TestEvaluateSandboxDoesNotResolveHistoryRoles(t *testing.T) {
	cfg := Config{SandboxDirectory: "/tmp/sbx"}
	ctx := EvalContext{
		Classified: classify.Result{Observations: []classify.Observation{obs(roles.WriteHistory, "path", "/tmp/sbx/a.txt")}},
		Config:     cfg,
	}
	_, _, unresolved := Evaluate(ctx)
	if len(unresolved) != 1 {
		t.Error("write-history must continue to rule evaluation even inside the sandbox")
	}
}

func TestContainsBoundary(t *testing.T) {
	if !Contains("/tmp/sbx", "/tmp/sbx") {
		t.Error("sandbox directory itself must be contained")
	}
	if Contains("/tmp/sbx", "/tmp") {
		t.Error("parent directory must not be contained")
	}
	if Contains("/tmp/sbx", "/tmp/sbxevil") {
		t.Error("prefix without separator boundary must not match")
	}
	if !Contains("/tmp/sbx", "/tmp/sbx/a/b") {
		t.Error("nested descendant must be contained")
	}
}

func TestPerServerDomainGateDeniesNonMatchingHost(t *testing.T) {
	cfg := Config{ServerDomainAllowlists: map[string][]string{"git": {"github.com", "*.github.com"}}}
	ctx := EvalContext{
		Server: "git", Tool: "git_push",
		Config:     cfg,
		Classified: classify.Result{},
	}
	unresolved := []classify.Observation{{Argument: "remote", Role: roles.GitRemoteURL, PolicyValue: "evil.example", HasPolicyValue: true}}
	res, concluded := perServerDomainGate(ctx, unresolved)
	if !concluded || res.Decision != Deny {
		t.Errorf("expected deny, got %+v", res)
	}
}

func TestPerServerDomainGateDefersWithoutConfiguredAllowlist(t *testing.T) {
	ctx := EvalContext{Server: "git", Config: Config{}}
	unresolved := []classify.Observation{{Argument: "remote", Role: roles.GitRemoteURL, PolicyValue: "evil.example", HasPolicyValue: true}}
	_, concluded := perServerDomainGate(ctx, unresolved)
	if concluded {
		t.Error("server without configured allowlist must defer to rule evaluation")
	}
}

func TestMatchesAnyDomainPatternWildcardExcludesIP(t *testing.T) {
	if MatchesAnyDomainPattern("169.254.169.254", []string{"*"}) {
		t.Error("universal wildcard must never match an IP literal")
	}
	if !MatchesAnyDomainPattern("example.com", []string{"*"}) {
		t.Error("universal wildcard should match an ordinary hostname")
	}
}

func TestMatchesAnyDomainPatternSuffixWildcard(t *testing.T) {
	patterns := []string{"*.github.com"}
	if !MatchesAnyDomainPattern("github.com", patterns) {
		t.Error("suffix wildcard must also match the bare suffix")
	}
	if !MatchesAnyDomainPattern("api.github.com", patterns) {
		t.Error("suffix wildcard must match a subdomain")
	}
	if MatchesAnyDomainPattern("evilgithub.com", patterns) {
		t.Error("suffix wildcard must respect the dot boundary")
	}
}
