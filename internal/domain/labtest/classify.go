package labtest

import (
	"errors"

	"github.com/labtrack/labtrack/pkg/optimistic"
)

// ClassifyFailure maps engine errors onto the coordinator's failure
// kinds: stale state and bad input roll back and go straight to the
// operator, everything else falls through to the default
// network-or-server split.
func ClassifyFailure(err error) optimistic.FailureKind {
	var (
		stale      *StaleStateError
		incomplete *IncompleteResultError
		perm       *PermissionError
		noActor    *ActorRequiredError
		invalid    *ValidationError
	)
	switch {
	case errors.As(err, &stale),
		errors.As(err, &incomplete),
		errors.As(err, &perm),
		errors.As(err, &noActor),
		errors.As(err, &invalid):
		return optimistic.FailureValidation
	default:
		return optimistic.DefaultClassifier(err)
	}
}
