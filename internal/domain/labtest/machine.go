package labtest

import "fmt"

// transitions defines the valid lifecycle edges. A transition request
// whose persisted source state is not listed here fails; there is no
// other path between states.
//
// REJECTED -> SAMPLE_COLLECTED is recollection after a sample rejection.
// IN_PROGRESS -> AWAITING_APPROVAL is re-entry after an approver sent
// results back. PRINTED -> COMPLETED closes the test out with the visit.
var transitions = map[Status][]Status{
	StatusPending:          {StatusSampleCollected, StatusCancelled},
	StatusSampleCollected:  {StatusRejected, StatusAwaitingApproval},
	StatusRejected:         {StatusSampleCollected},
	StatusInProgress:       {StatusAwaitingApproval},
	StatusAwaitingApproval: {StatusApproved, StatusInProgress},
	StatusApproved:         {StatusPrinted},
	StatusPrinted:          {StatusCompleted},
	StatusCompleted:        {},
	StatusCancelled:        {},
}

// ValidateTransition checks that from -> to is a defined lifecycle edge.
func ValidateTransition(from, to Status) error {
	allowed, ok := transitions[from]
	if !ok {
		return fmt.Errorf("unknown source status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s", from, to)
}

// CanTransition reports whether from -> to is a defined edge.
func CanTransition(from, to Status) bool {
	return ValidateTransition(from, to) == nil
}

// submitSources are the states result entry may start from: fresh entry
// after collection, or re-entry after an approver rejection.
var submitSources = []Status{StatusSampleCollected, StatusInProgress}
