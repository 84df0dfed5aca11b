package labtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/labtrack/labtrack/internal/domain/audit"
	"github.com/labtrack/labtrack/internal/domain/catalog"
	"github.com/labtrack/labtrack/internal/platform/auth"
)

// Service applies lifecycle transitions to visit tests. Every mutation
// follows the same shape: actor precondition, guard validation against
// the live record, a status-guarded write, exactly one audit entry, and
// the canonical record back to the caller.
type Service struct {
	tests     Repository
	templates catalog.TemplateRepository
	recorder  audit.Recorder
	history   audit.Repository
	now       func() time.Time
}

func NewService(tests Repository, templates catalog.TemplateRepository, recorder audit.Recorder, history audit.Repository) *Service {
	return &Service{
		tests:     tests,
		templates: templates,
		recorder:  recorder,
		history:   history,
		now:       time.Now,
	}
}

// Order creates a new PENDING test on a visit.
func (s *Service) Order(ctx context.Context, visitID, templateID uuid.UUID, actor auth.Actor) (*VisitTest, error) {
	if err := requireActor(actor, auth.RoleReception); err != nil {
		return nil, err
	}
	if _, err := s.templates.GetByID(ctx, templateID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ValidationError{Msg: fmt.Sprintf("unknown template %s", templateID)}
		}
		return nil, &PersistenceError{Op: "load template", Err: err}
	}

	t := &VisitTest{
		VisitID:    visitID,
		TemplateID: templateID,
		Status:     StatusPending,
	}
	if err := s.tests.Create(ctx, t); err != nil {
		return nil, &PersistenceError{Op: "create visit test", Err: err}
	}

	created, err := s.tests.GetByID(ctx, t.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "reload visit test", Err: err}
	}
	if err := s.record(ctx, actor, audit.ActionTestOrdered, created.ID, "", nil, snapshot(created)); err != nil {
		return nil, &PersistenceError{Op: "record audit entry", Err: err}
	}
	return created, nil
}

// CollectSample moves a PENDING or REJECTED test to SAMPLE_COLLECTED,
// stamping the collector. Recollection after a sample rejection keeps
// the rejection count.
func (s *Service) CollectSample(ctx context.Context, testID uuid.UUID, specimenType string, actor auth.Actor) (*VisitTest, error) {
	if err := requireActor(actor, auth.RolePhlebotomy, auth.RoleLab); err != nil {
		return nil, err
	}
	if specimenType == "" {
		return nil, &ValidationError{Msg: "specimen type is required"}
	}

	return s.transition(ctx, testID, []Status{StatusPending, StatusRejected}, func(t *VisitTest) (string, error) {
		now := s.now()
		t.Status = StatusSampleCollected
		t.SpecimenType = specimenType
		t.CollectedBy = actor.Username
		t.CollectedAt = &now
		return audit.ActionSampleCollected, nil
	}, actor, specimenType)
}

// RejectSample marks a collected specimen unusable. The test returns to
// REJECTED and needs physical recollection; prior results are cleared
// and the rejection counter increments.
func (s *Service) RejectSample(ctx context.Context, testID uuid.UUID, reason string, actor auth.Actor) (*VisitTest, error) {
	if err := requireActor(actor, auth.RolePhlebotomy, auth.RoleLab); err != nil {
		return nil, err
	}
	if err := validateReason(reason); err != nil {
		return nil, err
	}

	return s.transition(ctx, testID, []Status{StatusSampleCollected}, func(t *VisitTest) (string, error) {
		now := s.now()
		t.Status = StatusRejected
		t.RejectionCount++
		t.LastRejectionAt = &now
		clearResults(t)
		return audit.ActionSampleRejected, nil
	}, actor, reason)
}

// SubmitResults validates the payload against the test's template and
// moves the test to AWAITING_APPROVAL. Valid sources are fresh entry
// after collection and re-entry after an approver rejection. Validation
// runs before any write; there are no partial saves.
func (s *Service) SubmitResults(ctx context.Context, testID uuid.UUID, payload *ResultPayload, actor auth.Actor) (*VisitTest, error) {
	if err := requireActor(actor, auth.RoleLab); err != nil {
		return nil, err
	}

	return s.transition(ctx, testID, submitSources, func(t *VisitTest) (string, error) {
		tmpl, err := s.templates.GetByID(ctx, t.TemplateID)
		if err != nil {
			return "", &PersistenceError{Op: "load template", Err: err}
		}
		if err := ValidateResultPayload(tmpl, payload); err != nil {
			return "", err
		}
		now := s.now()
		t.Status = StatusAwaitingApproval
		t.Results = payload
		t.EnteredBy = actor.Username
		t.EnteredAt = &now
		return audit.ActionResultEntered, nil
	}, actor, "")
}

// ApproveResult moves AWAITING_APPROVAL to APPROVED, stamping approver
// identity and time together.
func (s *Service) ApproveResult(ctx context.Context, testID uuid.UUID, actor auth.Actor) (*VisitTest, error) {
	if err := requireActor(actor, auth.RoleDoctor); err != nil {
		return nil, err
	}

	return s.transition(ctx, testID, []Status{StatusAwaitingApproval}, func(t *VisitTest) (string, error) {
		now := s.now()
		t.Status = StatusApproved
		t.ApprovedBy = actor.Username
		t.ApprovedAt = &now
		return audit.ActionResultApproved, nil
	}, actor, "")
}

// RejectResult sends entered values back for re-entry: AWAITING_APPROVAL
// to IN_PROGRESS, results cleared, rejection counter incremented. No new
// physical sample is needed; this is distinct from RejectSample and is
// logged under its own action code.
func (s *Service) RejectResult(ctx context.Context, testID uuid.UUID, reason string, actor auth.Actor) (*VisitTest, error) {
	if err := requireActor(actor, auth.RoleDoctor); err != nil {
		return nil, err
	}
	if err := validateReason(reason); err != nil {
		return nil, err
	}

	return s.transition(ctx, testID, []Status{StatusAwaitingApproval}, func(t *VisitTest) (string, error) {
		now := s.now()
		t.Status = StatusInProgress
		t.RejectionCount++
		t.LastRejectionAt = &now
		clearResults(t)
		return audit.ActionResultRejectedByApprover, nil
	}, actor, reason)
}

// EditResult mutates the result payload without a status change. It is a
// privileged correction path: allowed while results await approval and,
// with a distinct audit action, after approval. It bypasses the status
// edges but never the audit requirement; old and new payload snapshots
// are always recorded.
func (s *Service) EditResult(ctx context.Context, testID uuid.UUID, payload *ResultPayload, reason string, actor auth.Actor) (*VisitTest, error) {
	if err := requireActor(actor, auth.RoleLab, auth.RoleDoctor); err != nil {
		return nil, err
	}
	if err := validateReason(reason); err != nil {
		return nil, err
	}

	return s.transition(ctx, testID, []Status{StatusAwaitingApproval, StatusApproved}, func(t *VisitTest) (string, error) {
		tmpl, err := s.templates.GetByID(ctx, t.TemplateID)
		if err != nil {
			return "", &PersistenceError{Op: "load template", Err: err}
		}
		if err := ValidateResultPayload(tmpl, payload); err != nil {
			return "", err
		}
		action := audit.ActionEditResultBeforeApproval
		if t.Status == StatusApproved {
			action = audit.ActionEditApprovedReport
		}
		t.Results = payload
		return action, nil
	}, actor, reason)
}

// PrintReport marks an APPROVED test PRINTED when report generation is
// requested. No further approval is required.
func (s *Service) PrintReport(ctx context.Context, testID uuid.UUID, actor auth.Actor) (*VisitTest, error) {
	if err := requireActor(actor, auth.RoleReception, auth.RoleLab, auth.RoleDoctor); err != nil {
		return nil, err
	}

	return s.transition(ctx, testID, []Status{StatusApproved}, func(t *VisitTest) (string, error) {
		now := s.now()
		t.Status = StatusPrinted
		t.PrintedAt = &now
		return audit.ActionReportPrinted, nil
	}, actor, "")
}

// CompleteTest closes out a PRINTED test with its visit.
func (s *Service) CompleteTest(ctx context.Context, testID uuid.UUID, actor auth.Actor) (*VisitTest, error) {
	if err := requireActor(actor, auth.RoleReception); err != nil {
		return nil, err
	}

	return s.transition(ctx, testID, []Status{StatusPrinted}, func(t *VisitTest) (string, error) {
		t.Status = StatusCompleted
		return audit.ActionTestCompleted, nil
	}, actor, "")
}

// CancelTest cancels a PENDING test. Admin-only, and the reason must
// justify the cancellation (at least 10 characters). Cancelled tests are
// never deleted.
func (s *Service) CancelTest(ctx context.Context, testID uuid.UUID, reason string, actor auth.Actor) (*VisitTest, error) {
	if actor.IsZero() {
		return nil, &ActorRequiredError{}
	}
	if actor.Role != auth.RoleAdmin && actor.Role != auth.RoleSudo {
		return nil, &PermissionError{Role: actor.Role, Required: auth.RoleAdmin}
	}
	if err := validateCancelReason(reason); err != nil {
		return nil, err
	}

	return s.transition(ctx, testID, []Status{StatusPending}, func(t *VisitTest) (string, error) {
		t.Status = StatusCancelled
		t.CancelReason = reason
		t.CancelledBy = actor.Username
		return audit.ActionTestCancelled, nil
	}, actor, reason)
}

// Get returns the live record. Lifecycle state is never served from a
// cache.
func (s *Service) Get(ctx context.Context, testID uuid.UUID) (*VisitTest, error) {
	return s.load(ctx, testID)
}

// ListByVisit returns all tests ordered on a visit.
func (s *Service) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*VisitTest, error) {
	items, err := s.tests.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, &PersistenceError{Op: "list visit tests", Err: err}
	}
	return items, nil
}

// History returns the audit trail for one test, newest first. The
// record itself is resolved first so an unknown id reads as not found
// rather than an empty trail.
func (s *Service) History(ctx context.Context, testID uuid.UUID, limit, offset int) ([]*audit.Entry, int, error) {
	if _, err := s.load(ctx, testID); err != nil {
		return nil, 0, err
	}
	entries, total, err := s.history.ListByResource(ctx, audit.ResourceVisitTest, testID, limit, offset)
	if err != nil {
		return nil, 0, &PersistenceError{Op: "list test history", Err: err}
	}
	return entries, total, nil
}

// Workflow queues are derived, read-only views over the live store,
// defined purely by current status.

func (s *Service) PhlebotomyQueue(ctx context.Context, limit, offset int) ([]*VisitTest, int, error) {
	return s.tests.ListByStatus(ctx, []Status{StatusPending, StatusRejected}, limit, offset)
}

func (s *Service) LabQueue(ctx context.Context, limit, offset int) ([]*VisitTest, int, error) {
	return s.tests.ListByStatus(ctx, []Status{StatusSampleCollected, StatusInProgress}, limit, offset)
}

func (s *Service) ApprovalQueue(ctx context.Context, limit, offset int) ([]*VisitTest, int, error) {
	return s.tests.ListByStatus(ctx, []Status{StatusAwaitingApproval}, limit, offset)
}

func (s *Service) PrintQueue(ctx context.Context, limit, offset int) ([]*VisitTest, int, error) {
	return s.tests.ListByStatus(ctx, []Status{StatusApproved}, limit, offset)
}

// transition loads the record, checks it is in one of the allowed source
// states, applies mutate to a copy and persists it with the observed
// status as a compare-and-swap guard. A losing race surfaces as
// StaleStateError; the caller must refetch and retry. Exactly one audit
// entry is recorded per applied transition, keyed by the transition
// itself, never by retry attempts.
func (s *Service) transition(ctx context.Context, testID uuid.UUID, sources []Status, mutate func(*VisitTest) (string, error), actor auth.Actor, details string) (*VisitTest, error) {
	current, err := s.load(ctx, testID)
	if err != nil {
		return nil, err
	}

	if !statusIn(current.Status, sources) {
		return nil, &StaleStateError{TestID: testID, Expected: sources[0], Actual: current.Status}
	}

	observed := current.Status
	oldSnap := snapshot(current)

	next := current.Clone()
	action, err := mutate(next)
	if err != nil {
		return nil, err
	}

	// Status edits (EditResult) keep the status; everything else must
	// follow a defined edge.
	if next.Status != observed {
		if err := ValidateTransition(observed, next.Status); err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
	}

	if err := s.tests.UpdateFromStatus(ctx, next, observed); err != nil {
		if errors.Is(err, ErrStaleWrite) {
			fresh, ferr := s.load(ctx, testID)
			if ferr != nil {
				return nil, ferr
			}
			return nil, &StaleStateError{TestID: testID, Expected: observed, Actual: fresh.Status}
		}
		return nil, &PersistenceError{Op: "update visit test", Err: err}
	}

	canonical, err := s.load(ctx, testID)
	if err != nil {
		return nil, err
	}

	if err := s.record(ctx, actor, action, testID, details, oldSnap, snapshot(canonical)); err != nil {
		// The write is already applied at this point; the error reports
		// audit loss, not a rollback.
		return nil, &PersistenceError{Op: "record audit entry", Err: err}
	}
	return canonical, nil
}

func (s *Service) load(ctx context.Context, testID uuid.UUID) (*VisitTest, error) {
	t, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{TestID: testID}
		}
		return nil, &PersistenceError{Op: "load visit test", Err: err}
	}
	return t, nil
}

func (s *Service) record(ctx context.Context, actor auth.Actor, action string, resourceID uuid.UUID, details string, oldValue, newValue json.RawMessage) error {
	// Failure policy belongs to the recorder: BestEffort swallows and
	// returns nil, Strict hands the failure back here.
	return s.recorder.Record(ctx, audit.Entry{
		RecordedAt:   s.now().UTC(),
		ActorID:      actor.ID,
		ActorName:    actor.Username,
		ActorRole:    actor.Role,
		Action:       action,
		ResourceType: audit.ResourceVisitTest,
		ResourceID:   resourceID,
		Details:      details,
		OldValue:     oldValue,
		NewValue:     newValue,
	})
}

func requireActor(actor auth.Actor, roles ...string) error {
	if actor.IsZero() {
		return &ActorRequiredError{}
	}
	if !actor.HasRole(roles...) {
		return &PermissionError{Role: actor.Role, Required: strings.Join(roles, " or ")}
	}
	return nil
}

func clearResults(t *VisitTest) {
	t.Results = nil
	t.EnteredBy = ""
	t.EnteredAt = nil
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func snapshot(t *VisitTest) json.RawMessage {
	data, err := json.Marshal(t)
	if err != nil {
		return nil
	}
	return data
}
