package visit

import (
	"time"

	"github.com/google/uuid"
)

// Visit is the patient encounter a batch of tests is ordered under. The
// lifecycle engine treats it as a read-only collaborator: it groups
// tests and carries billing context, but test state lives entirely on
// the tests themselves.
type Visit struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	VisitNumber   string     `db:"visit_number" json:"visit_number"`
	PatientName   string     `db:"patient_name" json:"patient_name"`
	PatientPhone  string     `db:"patient_phone" json:"patient_phone,omitempty"`
	RefCustomerID *uuid.UUID `db:"ref_customer_id" json:"ref_customer_id,omitempty"`
	DueAmount     float64    `db:"due_amount" json:"due_amount"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
