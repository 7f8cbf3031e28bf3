// Package main implements ironcurtaind, the policy mediation kernel's
// process entrypoint. It wires the Role Registry, Argument Classifier,
// Dynamic List Store, Policy Rule Set, Structural Invariant Layer, Policy
// Engine, Escalation Broker, Audit Log, and Mediation Driver together,
// then serves mediation requests as line-delimited JSON on stdio — a thin
// stand-in for "the agent loop calls the kernel", since the loop itself is
// out of scope (SPEC_FULL.md §4.6).
package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ironcurtain/internal/annotation"
	"ironcurtain/internal/audit"
	"ironcurtain/internal/config"
	"ironcurtain/internal/escalation"
	"ironcurtain/internal/lists"
	"ironcurtain/internal/mediator"
	"ironcurtain/internal/policy"
	"ironcurtain/internal/roles"
)

func main() {
	cfg := config.MustLoad(os.Args[1:])

	registry := roles.New()

	annotations, err := annotation.Load(cfg.AnnotationsFile, registry.IsKnownName)
	if err != nil {
		slog.Error("failed to load tool annotations", "path", cfg.AnnotationsFile, "err", err)
		os.Exit(1)
	}

	var listStore *lists.Store
	if cfg.ListsFile != "" {
		listStore, err = lists.Load(cfg.ListsFile)
		if err != nil {
			slog.Error("failed to load dynamic lists", "path", cfg.ListsFile, "err", err)
			os.Exit(1)
		}
	}

	ruleSet, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		slog.Error("failed to load compiled policy", "path", cfg.PolicyFile, "err", err)
		os.Exit(1)
	}
	engine := policy.New(policy.Config{Rules: *ruleSet, Lists: listStore, DryRun: cfg.PolicyDryRun})

	auditor, err := audit.NewFileWriter(audit.FileWriterConfig{Path: cfg.AuditLogPath})
	if err != nil {
		slog.Error("failed to open audit log", "path", cfg.AuditLogPath, "err", err)
		os.Exit(1)
	}
	defer auditor.Close()

	broker, err := escalation.New(cfg.EscalationDir, escalation.WithPollInterval(cfg.EscalationPollInterval))
	if err != nil {
		slog.Error("failed to initialize escalation broker", "dir", cfg.EscalationDir, "err", err)
		os.Exit(1)
	}
	defer broker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.EnforceOperatingMode(ctx, config.CheckEnforcingViolations(cfg), "ironcurtaind", auditor)

	driver := mediator.New(mediator.Config{
		Roles:             registry,
		Annotations:       annotations,
		Structural:        cfg.Structural,
		Engine:            engine,
		Broker:            broker,
		Auditor:           auditor,
		Forwarder:         unimplementedForwarder{},
		EscalationTimeout: cfg.EscalationTimeout,
	})

	server := NewServer(driver, cfg.SessionBudget)
	slog.Info("ironcurtaind ready", "operating_mode", cfg.OperatingMode, "policy_dry_run", cfg.PolicyDryRun)
	runStdioLoop(ctx, server)
}

// runStdioLoop reads one JSON request per line from stdin and writes one
// JSON outcome per line to stdout, until stdin closes or ctx is cancelled.
func runStdioLoop(ctx context.Context, server *Server) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		out, err := server.HandleLine(ctx, line)
		if err != nil {
			slog.Warn("failed to handle request line", "err", err)
			continue
		}
		writer.Write(out)
		writer.WriteByte('\n')
		writer.Flush()
	}
	if err := scanner.Err(); err != nil {
		slog.Error("stdin read error", "err", err)
	}
}

// unimplementedForwarder is the default ToolForwarder: cmd/ironcurtaind
// wires a full kernel but deliberately ships no real tool server, per
// SPEC_FULL.md's "the downstream 'tool server' ... is a narrow interface,
// implementations are the caller's concern." A deployment links in its own
// mediator.ToolForwarder in place of this one.
type unimplementedForwarder struct{}

func (unimplementedForwarder) Forward(ctx context.Context, req mediator.Request) (mediator.ToolResult, error) {
	return mediator.ToolResult{}, errUnimplementedForwarder
}

var errUnimplementedForwarder = &forwarderError{"no tool forwarder is wired into this deployment"}

type forwarderError struct{ msg string }

func (e *forwarderError) Error() string { return e.msg }
