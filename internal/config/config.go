// Package config loads the kernel's startup parameters: the process
// tunables and the Structural Configuration of spec.md §3, all read from
// IRONCURTAIN_* environment variables plus an optional structural-config
// JSON file, following the teacher's agentutil.MustLoadConfig convention
// of env-var loading with a fatal exit on missing required values.
package config

import (
	"log/slog"
	"os"
	"time"

	"ironcurtain/internal/logging"
	"ironcurtain/internal/structural"
)

// DefaultEscalationPollInterval mirrors escalation.DefaultPollInterval so
// config can set it without importing internal/escalation (which already
// depends on nothing in this package — avoiding the reverse edge keeps the
// dependency graph a DAG rooted at cmd/ironcurtaind).
const DefaultEscalationPollInterval = 300 * time.Millisecond

// DefaultEscalationTimeout is the per-turn timeout applied to an
// escalation wait absent IRONCURTAIN_ESCALATION_TIMEOUT (spec.md §4.6).
const DefaultEscalationTimeout = 5 * time.Minute

// DefaultSessionBudget is the per-session wall-clock budget absent
// IRONCURTAIN_SESSION_BUDGET (spec.md §5).
const DefaultSessionBudget = 15 * time.Minute

// OperatingMode gates whether EnforceOperatingMode refuses to start on a
// misconfigured governance module.
type OperatingMode string

const (
	ModeAdvisory  OperatingMode = "advisory"
	ModeEnforcing OperatingMode = "enforcing"
)

// Config is every startup parameter the kernel needs, assembled once by
// MustLoad and shared read-only across sessions (spec.md §5 "Shared
// resources").
type Config struct {
	Structural structural.Config

	PolicyFile      string
	AnnotationsFile string
	ListsFile       string // optional: dynamic lists artefact

	AuditLogPath    string
	EscalationDir   string

	EscalationPollInterval time.Duration
	EscalationTimeout      time.Duration
	SessionBudget          time.Duration

	PolicyDryRun  bool
	OperatingMode OperatingMode
}

// MustLoad reads IRONCURTAIN_* environment variables into a Config,
// initialising structured logging first (matching the teacher's
// MustLoadConfig, which calls logging.InitLogging before validating
// anything else). It exits the process via os.Exit(1) if a required
// variable is missing, per the teacher's convention.
func MustLoad(args []string) *Config {
	logging.Init(args)

	cfg := &Config{
		PolicyFile:      os.Getenv("IRONCURTAIN_POLICY_FILE"),
		AnnotationsFile: os.Getenv("IRONCURTAIN_ANNOTATIONS_FILE"),
		ListsFile:       os.Getenv("IRONCURTAIN_LISTS_FILE"),
		AuditLogPath:    os.Getenv("IRONCURTAIN_AUDIT_LOG"),
		EscalationDir:   os.Getenv("IRONCURTAIN_ESCALATION_DIR"),
		PolicyDryRun:    envBool("IRONCURTAIN_POLICY_DRY_RUN"),
		OperatingMode:   OperatingMode(os.Getenv("IRONCURTAIN_OPERATING_MODE")),
	}

	cfg.Structural.SandboxDirectory = os.Getenv("IRONCURTAIN_SANDBOX_DIR")

	if structuralPath := os.Getenv("IRONCURTAIN_STRUCTURAL_CONFIG"); structuralPath != "" {
		protectedPaths, allowlists, err := loadStructuralDocument(structuralPath)
		if err != nil {
			slog.Error("failed to load structural configuration", "path", structuralPath, "err", err)
			os.Exit(1)
		}
		cfg.Structural.ProtectedPaths = protectedPaths
		cfg.Structural.ServerDomainAllowlists = allowlists
	}

	cfg.EscalationPollInterval = envDuration("IRONCURTAIN_ESCALATION_POLL_INTERVAL", DefaultEscalationPollInterval)
	cfg.EscalationTimeout = envDuration("IRONCURTAIN_ESCALATION_TIMEOUT", DefaultEscalationTimeout)
	cfg.SessionBudget = envDuration("IRONCURTAIN_SESSION_BUDGET", DefaultSessionBudget)

	if cfg.OperatingMode == "" {
		cfg.OperatingMode = ModeAdvisory
	}

	var missing []string
	if cfg.Structural.SandboxDirectory == "" {
		missing = append(missing, "IRONCURTAIN_SANDBOX_DIR")
	}
	if cfg.PolicyFile == "" {
		missing = append(missing, "IRONCURTAIN_POLICY_FILE")
	}
	if cfg.AnnotationsFile == "" {
		missing = append(missing, "IRONCURTAIN_ANNOTATIONS_FILE")
	}
	if cfg.AuditLogPath == "" {
		missing = append(missing, "IRONCURTAIN_AUDIT_LOG")
	}
	if cfg.EscalationDir == "" {
		missing = append(missing, "IRONCURTAIN_ESCALATION_DIR")
	}
	if len(missing) > 0 {
		slog.Error("missing required environment variables", "vars", missing)
		os.Exit(1)
	}

	return cfg
}

func envBool(name string) bool {
	v := os.Getenv(name)
	return v == "true" || v == "1"
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration, using default", "var", name, "value", v, "default", def)
		return def
	}
	return d
}
