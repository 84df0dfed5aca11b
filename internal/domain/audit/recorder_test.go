package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	entries []*Entry
	err     error
}

func (m *mockRepo) Append(_ context.Context, e *Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockRepo) ListByResource(_ context.Context, resourceType string, resourceID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	var result []*Entry
	for _, e := range m.entries {
		if e.ResourceType == resourceType && e.ResourceID == resourceID {
			result = append(result, e)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) Search(_ context.Context, _ map[string]string, limit, offset int) ([]*Entry, int, error) {
	return m.entries, len(m.entries), nil
}

func sampleEntry() Entry {
	return Entry{
		ActorName:    "tech1",
		ActorRole:    "LAB",
		Action:       ActionResultEntered,
		ResourceType: ResourceVisitTest,
		ResourceID:   uuid.New(),
	}
}

func TestBestEffortRecord(t *testing.T) {
	repo := &mockRepo{}
	rec := NewBestEffort(repo, zerolog.Nop())

	if err := rec.Record(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.entries) != 1 {
		t.Errorf("expected 1 entry appended, got %d", len(repo.entries))
	}
}

func TestBestEffortSwallowsAppendFailure(t *testing.T) {
	repo := &mockRepo{err: errors.New("store down")}
	rec := NewBestEffort(repo, zerolog.Nop())

	if err := rec.Record(context.Background(), sampleEntry()); err != nil {
		t.Errorf("expected failure swallowed, got %v", err)
	}
}

func TestStrictPropagatesAppendFailure(t *testing.T) {
	cause := errors.New("store down")
	rec := NewStrict(&mockRepo{err: cause})

	if err := rec.Record(context.Background(), sampleEntry()); !errors.Is(err, cause) {
		t.Errorf("expected append failure propagated, got %v", err)
	}
}

func TestStrictRecord(t *testing.T) {
	repo := &mockRepo{}
	rec := NewStrict(repo)

	e := sampleEntry()
	if err := rec.Record(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, total, err := repo.ListByResource(context.Background(), ResourceVisitTest, e.ResourceID, 50, 0)
	if err != nil || total != 1 {
		t.Fatalf("expected 1 entry for resource, got %d (%v)", total, err)
	}
	if got[0].Action != ActionResultEntered {
		t.Errorf("expected RESULT_ENTERED, got %s", got[0].Action)
	}
}
