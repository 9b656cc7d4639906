package curation

import (
	"log"

	"github.com/mohammad-safakhou/personafeed/internal/telemetry"
)

// attempt runs primary and answers any error with the same-shape fallback,
// logging the failure and counting it against the named collaborator. The
// bool reports whether the primary result was used. Pipeline code never
// branches on collaborator errors anywhere else.
func attempt[T any](logger *log.Logger, collaborator string, primary func() (T, error), fallback func() T) (T, bool) {
	out, err := primary()
	if err != nil {
		logger.Printf("WARN: %s failed, using fallback: %v", collaborator, err)
		telemetry.RecordCollaboratorFailure(collaborator)
		return fallback(), false
	}
	return out, true
}
