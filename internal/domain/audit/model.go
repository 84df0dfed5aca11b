package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action codes recorded for visit-test mutations. Sample rejection and
// approver rejection are distinct actions even though both bump the same
// rejection counter.
const (
	ActionTestOrdered              = "TEST_ORDERED"
	ActionSampleCollected          = "SAMPLE_COLLECTED"
	ActionSampleRejected           = "SAMPLE_REJECTED"
	ActionResultEntered            = "RESULT_ENTERED"
	ActionResultApproved           = "RESULT_APPROVED"
	ActionResultRejectedByApprover = "RESULT_REJECTED_BY_APPROVER"
	ActionReportPrinted            = "REPORT_PRINTED"
	ActionTestCompleted            = "TEST_COMPLETED"
	ActionTestCancelled            = "TEST_CANCELLED"
	ActionEditResultBeforeApproval = "EDIT_RESULT_BEFORE_APPROVAL"
	ActionEditApprovedReport       = "EDIT_APPROVED_REPORT"
)

// ResourceVisitTest is the resource type for lifecycle entries.
const ResourceVisitTest = "visit_test"

// Entry is one immutable audit record. Entries are append-only; there is
// no update or delete path.
type Entry struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	RecordedAt   time.Time       `db:"recorded_at" json:"recorded_at"`
	ActorID      string          `db:"actor_id" json:"actor_id"`
	ActorName    string          `db:"actor_username" json:"actor_username"`
	ActorRole    string          `db:"actor_role" json:"actor_role"`
	Action       string          `db:"action" json:"action"`
	ResourceType string          `db:"resource_type" json:"resource_type"`
	ResourceID   uuid.UUID       `db:"resource_id" json:"resource_id"`
	Details      string          `db:"details" json:"details,omitempty"`
	OldValue     json.RawMessage `db:"old_value" json:"old_value,omitempty"`
	NewValue     json.RawMessage `db:"new_value" json:"new_value,omitempty"`
}
