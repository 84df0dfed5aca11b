package labtest

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one ordered test within a visit.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusSampleCollected  Status = "SAMPLE_COLLECTED"
	StatusRejected         Status = "REJECTED"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusAwaitingApproval Status = "AWAITING_APPROVAL"
	StatusApproved         Status = "APPROVED"
	StatusPrinted          Status = "PRINTED"
	StatusCompleted        Status = "COMPLETED"
	StatusCancelled        Status = "CANCELLED"
)

// AllStatuses lists every defined lifecycle state.
var AllStatuses = []Status{
	StatusPending, StatusSampleCollected, StatusRejected, StatusInProgress,
	StatusAwaitingApproval, StatusApproved, StatusPrinted, StatusCompleted,
	StatusCancelled,
}

// Valid reports whether s is one of the defined states.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further lifecycle transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Growth statuses for culture results.
const (
	GrowthPositive = "growth"
	GrowthNegative = "no_growth"
)

// Sensitivity codes for a culture panel entry.
const (
	SensitivitySusceptible  = "S"
	SensitivityResistant    = "R"
	SensitivityIntermediate = "I"
)

// SensitivityEntry is one antibiotic-susceptibility result in a culture
// panel.
type SensitivityEntry struct {
	AntibioticID uuid.UUID `json:"antibiotic_id"`
	Sensitivity  string    `json:"sensitivity"`
}

// CultureResult is the result payload for culture-type templates.
type CultureResult struct {
	GrowthStatus     string             `json:"growth_status"`
	OrganismIsolated string             `json:"organism_isolated,omitempty"`
	ColonyCount      string             `json:"colony_count,omitempty"`
	Sensitivities    []SensitivityEntry `json:"sensitivities,omitempty"`
}

// Result payload kinds. The template's report type decides which arm of
// the union a test carries; the two are never both populated.
const (
	ResultKindStandard = "standard"
	ResultKindCulture  = "culture"
)

// ResultPayload is the tagged union of entered results: parameter values
// for standard templates, a culture panel for culture templates.
// Persisted as a single JSONB column.
type ResultPayload struct {
	Kind    string            `json:"kind"`
	Values  map[string]string `json:"values,omitempty"`
	Culture *CultureResult    `json:"culture,omitempty"`
}

// IsZero reports whether no results have been entered.
func (p *ResultPayload) IsZero() bool {
	return p == nil || (len(p.Values) == 0 && p.Culture == nil)
}

// VisitTest is one ordered test within a visit, the unit of the
// lifecycle engine. Maps to the visit_test table.
type VisitTest struct {
	ID         uuid.UUID `db:"id" json:"id"`
	VisitID    uuid.UUID `db:"visit_id" json:"visit_id"`
	TemplateID uuid.UUID `db:"template_id" json:"template_id"`
	Status     Status    `db:"status" json:"status"`

	Results *ResultPayload `db:"results" json:"results,omitempty"`

	SpecimenType string     `db:"specimen_type" json:"specimen_type,omitempty"`
	CollectedBy  string     `db:"collected_by" json:"collected_by,omitempty"`
	CollectedAt  *time.Time `db:"collected_at" json:"collected_at,omitempty"`

	EnteredBy  string     `db:"entered_by" json:"entered_by,omitempty"`
	EnteredAt  *time.Time `db:"entered_at" json:"entered_at,omitempty"`
	ApprovedBy string     `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	PrintedAt  *time.Time `db:"printed_at" json:"printed_at,omitempty"`

	RejectionCount  int        `db:"rejection_count" json:"rejection_count"`
	LastRejectionAt *time.Time `db:"last_rejection_at" json:"last_rejection_at,omitempty"`

	CancelReason string `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledBy  string `db:"cancelled_by" json:"cancelled_by,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy. The coordinator relies on it to build
// optimistic records without aliasing the cached projection.
func (t *VisitTest) Clone() *VisitTest {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Results != nil {
		res := *t.Results
		if t.Results.Values != nil {
			res.Values = make(map[string]string, len(t.Results.Values))
			for k, v := range t.Results.Values {
				res.Values[k] = v
			}
		}
		if t.Results.Culture != nil {
			culture := *t.Results.Culture
			culture.Sensitivities = append([]SensitivityEntry(nil), t.Results.Culture.Sensitivities...)
			res.Culture = &culture
		}
		cp.Results = &res
	}
	return &cp
}

// Key returns the cache key for the optimistic coordinator.
func (t *VisitTest) Key() string {
	return t.ID.String()
}
