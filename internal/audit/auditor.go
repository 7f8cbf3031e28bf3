package audit

import "context"

// Auditor is the interface the mediation driver writes finalised request
// outcomes through. FileWriter is the only implementation the core ships;
// the interface exists so internal/mediator can be tested against a fake.
type Auditor interface {
	// Record persists an audit event.
	Record(ctx context.Context, event *Event) error

	// Close releases any resources held by the auditor.
	Close() error
}

var _ Auditor = (*FileWriter)(nil)
