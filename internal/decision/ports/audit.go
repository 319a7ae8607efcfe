package ports

import (
	"context"

	"kycbuster/pkg/platform/audit"
)

// AuditPort emits audit events. It matches audit.Emitter but is declared here
// so the finalizer does not depend on a concrete publisher.
type AuditPort interface {
	Emit(ctx context.Context, event audit.Event) error
}
