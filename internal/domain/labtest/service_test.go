package labtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/labtrack/labtrack/internal/domain/audit"
	"github.com/labtrack/labtrack/internal/domain/catalog"
	"github.com/labtrack/labtrack/internal/platform/auth"
)

// -- Mock repositories --

type mockTestRepo struct {
	mu    sync.Mutex
	tests map[uuid.UUID]*VisitTest
}

func newMockTestRepo() *mockTestRepo {
	return &mockTestRepo{tests: make(map[uuid.UUID]*VisitTest)}
}

func (m *mockTestRepo) Create(_ context.Context, t *VisitTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	m.tests[t.ID] = t.Clone()
	return nil
}

func (m *mockTestRepo) GetByID(_ context.Context, id uuid.UUID) (*VisitTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t.Clone(), nil
}

func (m *mockTestRepo) UpdateFromStatus(_ context.Context, t *VisitTest, expected Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tests[t.ID]
	if !ok || stored.Status != expected {
		return ErrStaleWrite
	}
	cp := t.Clone()
	cp.UpdatedAt = time.Now()
	m.tests[t.ID] = cp
	return nil
}

func (m *mockTestRepo) ListByStatus(_ context.Context, statuses []Status, limit, offset int) ([]*VisitTest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*VisitTest
	for _, t := range m.tests {
		for _, s := range statuses {
			if t.Status == s {
				result = append(result, t.Clone())
				break
			}
		}
	}
	return result, len(result), nil
}

func (m *mockTestRepo) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*VisitTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*VisitTest
	for _, t := range m.tests {
		if t.VisitID == visitID {
			result = append(result, t.Clone())
		}
	}
	return result, nil
}

type mockTemplateRepo struct {
	templates map[uuid.UUID]*catalog.Template
	err       error
}

func newMockTemplateRepo() *mockTemplateRepo {
	return &mockTemplateRepo{templates: make(map[uuid.UUID]*catalog.Template)}
}

func (m *mockTemplateRepo) GetByID(_ context.Context, id uuid.UUID) (*catalog.Template, error) {
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.templates[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockTemplateRepo) List(_ context.Context, limit, offset int) ([]*catalog.Template, int, error) {
	var result []*catalog.Template
	for _, t := range m.templates {
		result = append(result, t)
	}
	return result, len(result), nil
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *captureRecorder) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *captureRecorder) last() audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

func (r *captureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// captureRecorder doubles as the history store so reads see exactly
// what the engine recorded.

func (r *captureRecorder) Append(_ context.Context, e *audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *captureRecorder) ListByResource(_ context.Context, resourceType string, resourceID uuid.UUID, limit, offset int) ([]*audit.Entry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*audit.Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].ResourceType == resourceType && r.entries[i].ResourceID == resourceID {
			e := r.entries[i]
			matched = append(matched, &e)
		}
	}
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *captureRecorder) Search(_ context.Context, _ map[string]string, _, _ int) ([]*audit.Entry, int, error) {
	return nil, 0, nil
}

// failingAuditRepo rejects every write; it stands in for a dead audit
// store.
type failingAuditRepo struct {
	err error
}

func (f *failingAuditRepo) Append(_ context.Context, _ *audit.Entry) error {
	return f.err
}

func (f *failingAuditRepo) ListByResource(_ context.Context, _ string, _ uuid.UUID, _, _ int) ([]*audit.Entry, int, error) {
	return nil, 0, f.err
}

func (f *failingAuditRepo) Search(_ context.Context, _ map[string]string, _, _ int) ([]*audit.Entry, int, error) {
	return nil, 0, f.err
}

// -- Fixtures --

var (
	phleb    = auth.Actor{ID: "u1", Username: "phleb1", Role: auth.RolePhlebotomy}
	labTech  = auth.Actor{ID: "u2", Username: "tech1", Role: auth.RoleLab}
	approver = auth.Actor{ID: "u3", Username: "doc1", Role: auth.RoleDoctor}
	recep    = auth.Actor{ID: "u4", Username: "recep1", Role: auth.RoleReception}
	admin    = auth.Actor{ID: "u5", Username: "admin1", Role: auth.RoleAdmin}
)

type fixture struct {
	svc       *Service
	repo      *mockTestRepo
	templates *mockTemplateRepo
	recorder  *captureRecorder
	cbcID     uuid.UUID
	cultureID uuid.UUID
}

func newFixture() *fixture {
	repo := newMockTestRepo()
	templates := newMockTemplateRepo()
	recorder := &captureRecorder{}

	cbcID := uuid.New()
	templates.templates[cbcID] = &catalog.Template{
		ID:         cbcID,
		Code:       "CBC",
		ReportType: catalog.ReportTypeStandard,
		Parameters: []catalog.ParameterField{
			{Name: "Hematology", Type: catalog.FieldTypeHeading},
			{Name: "WBC", Type: catalog.FieldTypeNumeric},
			{Name: "Hemoglobin", Type: catalog.FieldTypeNumeric},
		},
	}
	cultureID := uuid.New()
	templates.templates[cultureID] = &catalog.Template{
		ID:         cultureID,
		Code:       "URINE-CS",
		ReportType: catalog.ReportTypeCulture,
	}

	return &fixture{
		svc:       NewService(repo, templates, recorder, recorder),
		repo:      repo,
		templates: templates,
		recorder:  recorder,
		cbcID:     cbcID,
		cultureID: cultureID,
	}
}

func (f *fixture) seed(t *testing.T, templateID uuid.UUID, status Status) *VisitTest {
	t.Helper()
	vt := &VisitTest{VisitID: uuid.New(), TemplateID: templateID, Status: status}
	if err := f.repo.Create(context.Background(), vt); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return vt
}

func cbcResults() *ResultPayload {
	return &ResultPayload{
		Kind:   ResultKindStandard,
		Values: map[string]string{"WBC": "7.2", "Hemoglobin": "14.1"},
	}
}

// -- Order --

func TestOrder(t *testing.T) {
	f := newFixture()
	vt, err := f.svc.Order(context.Background(), uuid.New(), f.cbcID, recep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vt.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", vt.Status)
	}
	if f.recorder.last().Action != audit.ActionTestOrdered {
		t.Errorf("expected TEST_ORDERED audit action, got %s", f.recorder.last().Action)
	}
}

func TestOrder_UnknownTemplate(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Order(context.Background(), uuid.New(), uuid.New(), recep)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// -- Sample collection --

func TestCollectSample(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusPending)

	got, err := f.svc.CollectSample(context.Background(), vt.ID, "Whole Blood", phleb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusSampleCollected {
		t.Errorf("expected SAMPLE_COLLECTED, got %s", got.Status)
	}
	if got.CollectedBy != "phleb1" {
		t.Errorf("expected collected_by phleb1, got %s", got.CollectedBy)
	}
	if got.CollectedAt == nil {
		t.Error("expected collected_at to be stamped")
	}
	if got.SpecimenType != "Whole Blood" {
		t.Errorf("expected specimen type recorded, got %q", got.SpecimenType)
	}
}

func TestCollectSample_RequiresSpecimenType(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusPending)

	_, err := f.svc.CollectSample(context.Background(), vt.ID, "", phleb)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCollectSample_RequiresActor(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusPending)

	_, err := f.svc.CollectSample(context.Background(), vt.ID, "Whole Blood", auth.Actor{})
	var aerr *ActorRequiredError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected ActorRequiredError, got %v", err)
	}
}

func TestCollectSample_WrongSourceState(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusApproved)

	_, err := f.svc.CollectSample(context.Background(), vt.ID, "Whole Blood", phleb)
	var serr *StaleStateError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StaleStateError, got %v", err)
	}
	if serr.Actual != StatusApproved {
		t.Errorf("expected actual APPROVED, got %s", serr.Actual)
	}
}

// -- Sample rejection and recollection --

func TestRejectSample(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)

	got, err := f.svc.RejectSample(context.Background(), vt.ID, "hemolyzed sample", labTech)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusRejected {
		t.Errorf("expected REJECTED, got %s", got.Status)
	}
	if got.RejectionCount != 1 {
		t.Errorf("expected rejection_count 1, got %d", got.RejectionCount)
	}
	if got.LastRejectionAt == nil {
		t.Error("expected last_rejection_at to be stamped")
	}
	if f.recorder.last().Action != audit.ActionSampleRejected {
		t.Errorf("expected SAMPLE_REJECTED audit action, got %s", f.recorder.last().Action)
	}
}

func TestRejectSample_RequiresReason(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)

	_, err := f.svc.RejectSample(context.Background(), vt.ID, "  ", labTech)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRecollectionKeepsRejectionCount(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)

	if _, err := f.svc.RejectSample(context.Background(), vt.ID, "clotted", labTech); err != nil {
		t.Fatalf("reject: %v", err)
	}
	got, err := f.svc.CollectSample(context.Background(), vt.ID, "Whole Blood", phleb)
	if err != nil {
		t.Fatalf("recollect: %v", err)
	}
	if got.Status != StatusSampleCollected {
		t.Errorf("expected SAMPLE_COLLECTED, got %s", got.Status)
	}
	if got.RejectionCount != 1 {
		t.Errorf("expected rejection_count preserved at 1, got %d", got.RejectionCount)
	}
}

// -- Result entry --

func TestSubmitResults(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)

	got, err := f.svc.SubmitResults(context.Background(), vt.ID, cbcResults(), labTech)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAwaitingApproval {
		t.Errorf("expected AWAITING_APPROVAL, got %s", got.Status)
	}
	if got.EnteredBy != "tech1" {
		t.Errorf("expected entered_by tech1, got %s", got.EnteredBy)
	}
	if got.Results == nil || got.Results.Values["WBC"] != "7.2" {
		t.Error("expected results persisted")
	}
}

func TestSubmitResults_MissingFieldNamed(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)

	payload := &ResultPayload{
		Kind:   ResultKindStandard,
		Values: map[string]string{"Hemoglobin": "14.1"},
	}
	_, err := f.svc.SubmitResults(context.Background(), vt.ID, payload, labTech)
	var ierr *IncompleteResultError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected IncompleteResultError, got %v", err)
	}
	if len(ierr.Missing) != 1 || ierr.Missing[0] != "WBC" {
		t.Errorf("expected missing [WBC], got %v", ierr.Missing)
	}

	// Refused before any write: status unchanged.
	fresh, _ := f.svc.Get(context.Background(), vt.ID)
	if fresh.Status != StatusSampleCollected {
		t.Errorf("expected no partial save, got status %s", fresh.Status)
	}
}

func TestSubmitResults_HeadingNotRequired(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)

	// cbcResults has no value for the "Hematology" heading row.
	if _, err := f.svc.SubmitResults(context.Background(), vt.ID, cbcResults(), labTech); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubmitResults_CultureGrowthRequiresOrganism(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cultureID, StatusSampleCollected)

	payload := &ResultPayload{
		Kind:    ResultKindCulture,
		Culture: &CultureResult{GrowthStatus: GrowthPositive},
	}
	_, err := f.svc.SubmitResults(context.Background(), vt.ID, payload, labTech)
	var ierr *IncompleteResultError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected IncompleteResultError, got %v", err)
	}
}

func TestSubmitResults_CultureNoGrowth(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cultureID, StatusSampleCollected)

	payload := &ResultPayload{
		Kind:    ResultKindCulture,
		Culture: &CultureResult{GrowthStatus: GrowthNegative},
	}
	got, err := f.svc.SubmitResults(context.Background(), vt.ID, payload, labTech)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAwaitingApproval {
		t.Errorf("expected AWAITING_APPROVAL, got %s", got.Status)
	}
}

func TestSubmitResults_RoleRequired(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)

	_, err := f.svc.SubmitResults(context.Background(), vt.ID, cbcResults(), phleb)
	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
}

// -- Approval --

func TestApproveResult(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusAwaitingApproval)

	got, err := f.svc.ApproveResult(context.Background(), vt.ID, approver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("expected APPROVED, got %s", got.Status)
	}
	if got.ApprovedBy != "doc1" || got.ApprovedAt == nil {
		t.Error("expected approver identity and timestamp stamped together")
	}
}

func TestConcurrentApprove_SecondIsStale(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusAwaitingApproval)

	if _, err := f.svc.ApproveResult(context.Background(), vt.ID, approver); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	_, err := f.svc.ApproveResult(context.Background(), vt.ID, approver)
	var serr *StaleStateError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StaleStateError, got %v", err)
	}
	if serr.Actual != StatusApproved {
		t.Errorf("expected actual APPROVED, got %s", serr.Actual)
	}
}

func TestRejectResult(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)
	if _, err := f.svc.SubmitResults(context.Background(), vt.ID, cbcResults(), labTech); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := f.svc.RejectResult(context.Background(), vt.ID, "values implausible", approver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", got.Status)
	}
	if got.Results != nil {
		t.Error("expected results cleared")
	}
	if got.RejectionCount != 1 {
		t.Errorf("expected rejection_count 1, got %d", got.RejectionCount)
	}
	if f.recorder.last().Action != audit.ActionResultRejectedByApprover {
		t.Errorf("expected RESULT_REJECTED_BY_APPROVER, got %s", f.recorder.last().Action)
	}
}

func TestResultRoundTrip(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusPending)
	ctx := context.Background()

	if _, err := f.svc.CollectSample(ctx, vt.ID, "Whole Blood", phleb); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if _, err := f.svc.SubmitResults(ctx, vt.ID, cbcResults(), labTech); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.RejectResult(ctx, vt.ID, "recheck WBC", approver); err != nil {
		t.Fatalf("reject result: %v", err)
	}
	// Re-entry after approver rejection starts from IN_PROGRESS.
	if _, err := f.svc.SubmitResults(ctx, vt.ID, cbcResults(), labTech); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if _, err := f.svc.ApproveResult(ctx, vt.ID, approver); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.svc.PrintReport(ctx, vt.ID, recep); err != nil {
		t.Fatalf("print: %v", err)
	}
	got, err := f.svc.CompleteTest(ctx, vt.ID, recep)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", got.Status)
	}
	if got.RejectionCount != 1 {
		t.Errorf("expected rejection_count 1 across round trip, got %d", got.RejectionCount)
	}
}

// -- Edit --

func TestEditResult_AfterApproval(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)
	ctx := context.Background()
	if _, err := f.svc.SubmitResults(ctx, vt.ID, cbcResults(), labTech); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.ApproveResult(ctx, vt.ID, approver); err != nil {
		t.Fatalf("approve: %v", err)
	}

	corrected := &ResultPayload{
		Kind:   ResultKindStandard,
		Values: map[string]string{"WBC": "7.4", "Hemoglobin": "14.1"},
	}
	got, err := f.svc.EditResult(ctx, vt.ID, corrected, "transcription error", approver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("expected status unchanged APPROVED, got %s", got.Status)
	}
	if got.Results.Values["WBC"] != "7.4" {
		t.Errorf("expected corrected value, got %s", got.Results.Values["WBC"])
	}

	entry := f.recorder.last()
	if entry.Action != audit.ActionEditApprovedReport {
		t.Errorf("expected EDIT_APPROVED_REPORT, got %s", entry.Action)
	}
	if len(entry.OldValue) == 0 || len(entry.NewValue) == 0 {
		t.Error("expected old and new value snapshots on edit audit entry")
	}
}

func TestEditResult_BeforeApproval(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)
	ctx := context.Background()
	if _, err := f.svc.SubmitResults(ctx, vt.ID, cbcResults(), labTech); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.svc.EditResult(ctx, vt.ID, cbcResults(), "typo fix", labTech); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.recorder.last().Action != audit.ActionEditResultBeforeApproval {
		t.Errorf("expected EDIT_RESULT_BEFORE_APPROVAL, got %s", f.recorder.last().Action)
	}
}

func TestEditResult_RequiresReason(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusAwaitingApproval)

	_, err := f.svc.EditResult(context.Background(), vt.ID, cbcResults(), "", labTech)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// -- Cancellation --

func TestCancelTest(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusPending)

	got, err := f.svc.CancelTest(context.Background(), vt.ID, "duplicate order entry", admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}
	if got.CancelReason != "duplicate order entry" || got.CancelledBy != "admin1" {
		t.Error("expected cancellation reason and actor recorded")
	}
}

func TestCancelTest_ReceptionForbidden(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusPending)

	_, err := f.svc.CancelTest(context.Background(), vt.ID, "dup order, placed twice", recep)
	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
}

func TestCancelTest_ShortReason(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusPending)

	_, err := f.svc.CancelTest(context.Background(), vt.ID, "dup", admin)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCancelTest_OnlyPending(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusSampleCollected)

	_, err := f.svc.CancelTest(context.Background(), vt.ID, "ordered by mistake", admin)
	var serr *StaleStateError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StaleStateError, got %v", err)
	}
}

// -- Audit and queues --

func TestOneAuditEntryPerTransition(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusPending)
	ctx := context.Background()

	if _, err := f.svc.CollectSample(ctx, vt.ID, "Whole Blood", phleb); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if _, err := f.svc.SubmitResults(ctx, vt.ID, cbcResults(), labTech); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.ApproveResult(ctx, vt.ID, approver); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if f.recorder.count() != 3 {
		t.Errorf("expected 3 audit entries, got %d", f.recorder.count())
	}
	for _, e := range f.recorder.entries {
		if e.ResourceType != audit.ResourceVisitTest {
			t.Errorf("expected resource type visit_test, got %s", e.ResourceType)
		}
		if e.ResourceID != vt.ID {
			t.Errorf("expected resource id %s, got %s", vt.ID, e.ResourceID)
		}
	}
}

func TestFailedTransitionRecordsNoAudit(t *testing.T) {
	f := newFixture()
	vt := f.seed(t, f.cbcID, StatusPending)

	if _, err := f.svc.ApproveResult(context.Background(), vt.ID, approver); err == nil {
		t.Fatal("expected error approving a PENDING test")
	}
	if f.recorder.count() != 0 {
		t.Errorf("expected no audit entries for refused transition, got %d", f.recorder.count())
	}
}

func TestQueues(t *testing.T) {
	f := newFixture()
	f.seed(t, f.cbcID, StatusPending)
	f.seed(t, f.cbcID, StatusRejected)
	f.seed(t, f.cbcID, StatusSampleCollected)
	f.seed(t, f.cbcID, StatusInProgress)
	f.seed(t, f.cbcID, StatusAwaitingApproval)
	f.seed(t, f.cbcID, StatusApproved)
	f.seed(t, f.cbcID, StatusCompleted)
	ctx := context.Background()

	if _, total, _ := f.svc.PhlebotomyQueue(ctx, 50, 0); total != 2 {
		t.Errorf("expected 2 in phlebotomy queue, got %d", total)
	}
	if _, total, _ := f.svc.LabQueue(ctx, 50, 0); total != 2 {
		t.Errorf("expected 2 in lab queue, got %d", total)
	}
	if _, total, _ := f.svc.ApprovalQueue(ctx, 50, 0); total != 1 {
		t.Errorf("expected 1 in approval queue, got %d", total)
	}
	if _, total, _ := f.svc.PrintQueue(ctx, 50, 0); total != 1 {
		t.Errorf("expected 1 in print queue, got %d", total)
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Get(context.Background(), uuid.New())
	var nerr *NotFoundError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vt := f.seed(t, f.cbcID, StatusPending)

	if _, err := f.svc.CollectSample(ctx, vt.ID, "Blood", phleb); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if _, err := f.svc.SubmitResults(ctx, vt.ID, cbcResults(), labTech); err != nil {
		t.Fatalf("submit: %v", err)
	}

	entries, total, err := f.svc.History(ctx, vt.ID, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 entries, got %d", total)
	}
	// Newest first.
	if entries[0].Action != audit.ActionResultEntered {
		t.Errorf("expected RESULT_ENTERED first, got %s", entries[0].Action)
	}
	if entries[1].Action != audit.ActionSampleCollected {
		t.Errorf("expected SAMPLE_COLLECTED second, got %s", entries[1].Action)
	}
}

func TestHistory_UnknownTest(t *testing.T) {
	f := newFixture()
	_, _, err := f.svc.History(context.Background(), uuid.New(), 50, 0)
	var nerr *NotFoundError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestOrder_TemplateStoreFailure(t *testing.T) {
	f := newFixture()
	f.templates.err = errors.New("connection reset")
	_, err := f.svc.Order(context.Background(), uuid.New(), f.cbcID, recep)
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError for a failing template store, got %v", err)
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Errorf("store failure must not read as bad input: %v", err)
	}
}

func TestStrictRecorderFailureSurfaces(t *testing.T) {
	f := newFixture()
	broken := &failingAuditRepo{err: errors.New("audit store down")}
	svc := NewService(f.repo, f.templates, audit.NewStrict(broken), broken)

	vt := f.seed(t, f.cbcID, StatusPending)
	_, err := svc.CollectSample(context.Background(), vt.ID, "Blood", phleb)
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError from strict recorder, got %v", err)
	}

	// The status write lands before the recorder runs; the error reports
	// audit loss, not a rollback.
	stored, gerr := f.repo.GetByID(context.Background(), vt.ID)
	if gerr != nil {
		t.Fatalf("get: %v", gerr)
	}
	if stored.Status != StatusSampleCollected {
		t.Errorf("expected SAMPLE_COLLECTED, got %s", stored.Status)
	}
}

func TestBestEffortRecorderDoesNotBlock(t *testing.T) {
	f := newFixture()
	broken := &failingAuditRepo{err: errors.New("audit store down")}
	svc := NewService(f.repo, f.templates, audit.NewBestEffort(broken, zerolog.Nop()), broken)

	vt := f.seed(t, f.cbcID, StatusPending)
	got, err := svc.CollectSample(context.Background(), vt.ID, "Blood", phleb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusSampleCollected {
		t.Errorf("expected SAMPLE_COLLECTED, got %s", got.Status)
	}
}
