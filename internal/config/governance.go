package config

import (
	"context"
	"log/slog"
	"os"

	"ironcurtain/internal/audit"
)

// Violation describes a governance module that is required but not
// active when OperatingMode is ModeEnforcing, adapted from the teacher's
// agentutil.FixModeViolation.
type Violation struct {
	Module      string // "audit", "policy_engine", "escalation_broker"
	Severity    string // "fatal" or "warning"
	Description string
	Remediation string
}

// CheckEnforcingViolations validates that audit, policy, and escalation
// are all configured and enforcing (not dry-run) when cfg.OperatingMode
// is ModeEnforcing. Returns nil outside enforcing mode or when fully
// compliant (SPEC_FULL.md "Governance / fix-mode enforcement").
func CheckEnforcingViolations(cfg *Config) []Violation {
	if cfg.OperatingMode != ModeEnforcing {
		return nil
	}

	var v []Violation

	if cfg.AuditLogPath == "" {
		v = append(v, Violation{
			Module:      "audit",
			Severity:    "fatal",
			Description: "no audit log path is configured",
			Remediation: "set IRONCURTAIN_AUDIT_LOG",
		})
	}

	if cfg.PolicyFile == "" {
		v = append(v, Violation{
			Module:      "policy_engine",
			Severity:    "fatal",
			Description: "no compiled policy artefact is configured",
			Remediation: "set IRONCURTAIN_POLICY_FILE",
		})
	} else if cfg.PolicyDryRun {
		v = append(v, Violation{
			Module:      "policy_engine",
			Severity:    "fatal",
			Description: "policy engine is running in dry-run mode; decisions are computed but not enforced",
			Remediation: "unset IRONCURTAIN_POLICY_DRY_RUN",
		})
	}

	if cfg.EscalationDir == "" {
		v = append(v, Violation{
			Module:      "escalation_broker",
			Severity:    "fatal",
			Description: "no escalation directory is configured; escalate verdicts cannot be resolved",
			Remediation: "set IRONCURTAIN_ESCALATION_DIR",
		})
	}

	return v
}

// EnforceOperatingMode logs every violation, best-effort records a
// governance_violation audit event for each, and exits the process if any
// violation is fatal — adapted from the teacher's agentutil.EnforceFixMode,
// minus the HTTP incident-creation side channel (no gateway exists here).
func EnforceOperatingMode(ctx context.Context, violations []Violation, componentName string, auditor audit.Auditor) {
	if len(violations) == 0 {
		return
	}

	slog.Warn("enforcing-mode governance violations detected", "component", componentName, "count", len(violations))

	var hasFatal bool
	for _, v := range violations {
		attrs := []any{"component", componentName, "module", v.Module, "severity", v.Severity, "description", v.Description, "remediation", v.Remediation}
		if v.Severity == "fatal" {
			hasFatal = true
			slog.Error("governance violation", attrs...)
		} else {
			slog.Warn("governance violation", attrs...)
		}

		if auditor != nil {
			event := &audit.Event{
				EventType: audit.EventTypeGovernanceViolation,
				GovernanceViolation: &audit.GovernanceViolation{
					OperatingMode: string(ModeEnforcing),
					Module:        v.Module,
					Severity:      v.Severity,
					Description:   v.Description,
					Remediation:   v.Remediation,
				},
			}
			if err := auditor.Record(ctx, event); err != nil {
				slog.Warn("failed to record governance violation", "module", v.Module, "err", err)
			}
		}
	}

	if hasFatal {
		slog.Error("enforcing-mode governance check failed — process will not start", "component", componentName)
		os.Exit(1)
	}
}
