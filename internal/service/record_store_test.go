package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"alcyxob/rehabflow/internal/domain"
	"alcyxob/rehabflow/internal/logger"
	"alcyxob/rehabflow/internal/repository"
)

type fakeSnapshotRepo struct {
	mu      sync.Mutex
	docs    map[string][]byte
	saves   int
	saveErr error
	loadErr error
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{docs: map[string][]byte{}}
}

func (f *fakeSnapshotRepo) Load(_ context.Context, slot string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	doc, ok := f.docs[slot]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (f *fakeSnapshotRepo) Save(_ context.Context, slot string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.docs[slot] = append([]byte(nil), data...)
	return nil
}

const testSlot = "rehabflow_patients"

func newTestStore(t *testing.T, repo repository.SnapshotRepository) *RecordStore {
	t.Helper()
	store := NewRecordStore(repo, testSlot, logger.NewNop())
	if err := store.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func newPatient(name, condition string) domain.Patient {
	return domain.Patient{
		Name: name,
		Diagnosis: domain.Diagnosis{
			Area:      domain.AreaKnee,
			Condition: condition,
			Phase:     domain.PhaseAcute,
		},
	}
}

func TestRecordStore_MissingSlotLoadsEmpty(t *testing.T) {
	store := newTestStore(t, newFakeSnapshotRepo())
	if got := store.Patients(); len(got) != 0 {
		t.Fatalf("expected empty list, got %d patients", len(got))
	}
	if w := store.TakeWarning(); w != "" {
		t.Errorf("unexpected warning %q", w)
	}
}

func TestRecordStore_EmptyAndNullDocuments(t *testing.T) {
	for _, doc := range []string{"", "  ", "null"} {
		repo := newFakeSnapshotRepo()
		repo.docs[testSlot] = []byte(doc)
		store := NewRecordStore(repo, testSlot, logger.NewNop())
		got, err := store.Load(context.Background())
		if err != nil {
			t.Fatalf("Load(%q): %v", doc, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Load(%q) = %v, want empty non-nil list", doc, got)
		}
	}
}

func TestRecordStore_RoundTrip(t *testing.T) {
	repo := newFakeSnapshotRepo()
	store := newTestStore(t, repo)
	ctx := context.Background()

	ana, err := store.AddPatient(ctx, newPatient("Ana López", "Tendinopatía rotuliana"))
	if err != nil {
		t.Fatalf("AddPatient: %v", err)
	}
	session := domain.Session{
		ID:              "s-1",
		CreatedAt:       time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC),
		PainLevel:       2,
		PatientFeedback: "mejoró notablemente",
		Routine: domain.Routine{
			Exercises:     []domain.Exercise{{ID: "ex-1", Name: "Puente", Tips: []string{}, Warnings: []string{}, Difficulty: domain.DifficultyLow}},
			TotalDuration: "30",
			References:    []string{"JOSPT"},
		},
		Decision: domain.DecisionProgression,
	}
	if err := store.AppendSession(ctx, ana.ID, session); err != nil {
		t.Fatalf("AppendSession: %v", err)
	}

	reloaded := newTestStore(t, repo)
	got, ok := reloaded.FindByID(ana.ID)
	if !ok {
		t.Fatalf("patient %s not found after reload", ana.ID)
	}
	if got.Name != "Ana López" || len(got.Sessions) != 1 {
		t.Fatalf("unexpected patient after reload: %+v", got)
	}
	s := got.Sessions[0]
	if !s.CreatedAt.Equal(session.CreatedAt) || s.Decision != domain.DecisionProgression || s.Routine.Exercises[0].Name != "Puente" {
		t.Errorf("session not preserved: %+v", s)
	}
	if !strings.Contains(string(repo.docs[testSlot]), `"schemaVersion":1`) {
		t.Errorf("expected versioned envelope, got %s", repo.docs[testSlot])
	}
}

func TestRecordStore_LegacyArray(t *testing.T) {
	repo := newFakeSnapshotRepo()
	repo.docs[testSlot] = []byte(`[{"id":"p-1","name":"Juan Pérez","diagnosis":{"area":"Hombro","condition":"Tendinitis","phase":"Subaguda (Carga Progresiva)"},"sessions":[{"id":"s-1","date":"5/3/2025","painLevel":4,"patientFeedback":"igual","routine":{"exercises":[],"rationale":"","totalDuration":"20","references":[],"evidenceLevel":"B"},"clinicalDecision":"Mantenimiento"}]}]`)

	store := newTestStore(t, repo)
	p, ok := store.FindByID("p-1")
	if !ok {
		t.Fatal("legacy patient not loaded")
	}
	if got := p.Sessions[0].DisplayDate(); got != "5/3/2025" {
		t.Errorf("expected legacy date, got %q", got)
	}
}

func TestRecordStore_CorruptState(t *testing.T) {
	tests := map[string]string{
		"garbage":        "{not json",
		"future version": `{"schemaVersion":99,"patients":[]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newFakeSnapshotRepo()
			repo.docs[testSlot] = []byte(doc)
			store := NewRecordStore(repo, testSlot, logger.NewNop())

			_, err := store.Load(context.Background())
			var corrupt *domain.CorruptStateError
			if !errors.As(err, &corrupt) {
				t.Fatalf("expected CorruptStateError, got %v", err)
			}

			if err := store.Open(context.Background()); err != nil {
				t.Fatalf("Open should recover from corrupt state: %v", err)
			}
			if len(store.Patients()) != 0 {
				t.Error("expected empty list after corrupt load")
			}
			if store.TakeWarning() == "" {
				t.Error("expected a warning after corrupt load")
			}
			if store.TakeWarning() != "" {
				t.Error("warning should be reported only once")
			}
			if string(repo.docs[testSlot]) != doc {
				t.Error("corrupt document must not be overwritten by Open")
			}
		})
	}
}

func TestRecordStore_OpenPropagatesBackendErrors(t *testing.T) {
	repo := newFakeSnapshotRepo()
	repo.loadErr = errors.New("connection refused")
	store := NewRecordStore(repo, testSlot, logger.NewNop())
	if err := store.Open(context.Background()); err == nil {
		t.Fatal("expected error from backend")
	}
}

func TestRecordStore_AddPatient(t *testing.T) {
	store := newTestStore(t, newFakeSnapshotRepo())
	ctx := context.Background()

	before := len(store.Patients())
	p, err := store.AddPatient(ctx, newPatient("Juan Pérez", "Esguince de tobillo"))
	if err != nil {
		t.Fatalf("AddPatient: %v", err)
	}
	if p.ID == "" {
		t.Error("expected an id to be assigned")
	}
	if p.Sessions == nil || len(p.Sessions) != 0 {
		t.Errorf("expected empty session list, got %v", p.Sessions)
	}
	if got := len(store.Patients()); got != before+1 {
		t.Errorf("expected %d patients, got %d", before+1, got)
	}
}

func TestRecordStore_AddPatientValidation(t *testing.T) {
	repo := newFakeSnapshotRepo()
	store := newTestStore(t, repo)

	for _, p := range []domain.Patient{
		newPatient("   ", "Lumbalgia"),
		newPatient("Ana", " "),
	} {
		_, err := store.AddPatient(context.Background(), p)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("expected ValidationError for %+v, got %v", p, err)
		}
	}
	if repo.saves != 0 {
		t.Errorf("invalid patients must not be persisted, saw %d saves", repo.saves)
	}
	if len(store.Patients()) != 0 {
		t.Error("invalid patients must not be added")
	}
}

func TestRecordStore_AppendSessionUnknownPatient(t *testing.T) {
	store := newTestStore(t, newFakeSnapshotRepo())
	err := store.AppendSession(context.Background(), "missing", domain.Session{ID: "s-1"})
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRecordStore_FailedSaveLeavesStateUnchanged(t *testing.T) {
	repo := newFakeSnapshotRepo()
	store := newTestStore(t, repo)
	ctx := context.Background()

	ana, err := store.AddPatient(ctx, newPatient("Ana López", "Tendinopatía rotuliana"))
	if err != nil {
		t.Fatalf("AddPatient: %v", err)
	}
	durable := string(repo.docs[testSlot])

	repo.saveErr = repository.ErrWriteFailed
	if err := store.AppendSession(ctx, ana.ID, domain.Session{ID: "s-1"}); !errors.Is(err, repository.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if _, err := store.AddPatient(ctx, newPatient("Juan", "Lumbalgia")); err == nil {
		t.Fatal("expected AddPatient to fail")
	}

	got, _ := store.FindByID(ana.ID)
	if len(got.Sessions) != 0 {
		t.Errorf("in-memory sessions changed after failed save: %d", len(got.Sessions))
	}
	if len(store.Patients()) != 1 {
		t.Errorf("in-memory patients changed after failed save: %d", len(store.Patients()))
	}
	if string(repo.docs[testSlot]) != durable {
		t.Error("durable document changed after failed save")
	}
}

func TestRecordStore_Filter(t *testing.T) {
	store := newTestStore(t, newFakeSnapshotRepo())
	ctx := context.Background()
	for _, p := range []domain.Patient{
		newPatient("Juan Pérez", "Esguince de tobillo"),
		newPatient("Ana López", "Tendinopatía rotuliana"),
		newPatient("Marta Ruiz", "Lumbalgia crónica"),
	} {
		if _, err := store.AddPatient(ctx, p); err != nil {
			t.Fatalf("AddPatient: %v", err)
		}
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"juan", []string{"Juan Pérez"}},
		{"PÉREZ", []string{"Juan Pérez"}},
		{"rotuliana", []string{"Ana López"}},
		{"", []string{"Juan Pérez", "Ana López", "Marta Ruiz"}},
		{"   ", []string{"Juan Pérez", "Ana López", "Marta Ruiz"}},
		{"xyz", nil},
	}
	for _, tt := range tests {
		got := store.FilterByNameOrCondition(tt.query)
		if len(got) != len(tt.want) {
			t.Errorf("query %q: expected %d results, got %d", tt.query, len(tt.want), len(got))
			continue
		}
		for i, name := range tt.want {
			if got[i].Name != name {
				t.Errorf("query %q: result %d = %q, want %q", tt.query, i, got[i].Name, name)
			}
		}
	}
}

func TestRecordStore_Stats(t *testing.T) {
	store := newTestStore(t, newFakeSnapshotRepo())
	ctx := context.Background()
	now := time.Date(2025, 3, 12, 18, 0, 0, 0, time.UTC)

	ana, _ := store.AddPatient(ctx, newPatient("Ana López", "Tendinopatía rotuliana"))
	_, _ = store.AddPatient(ctx, newPatient("Juan Pérez", "Esguince de tobillo"))
	for _, s := range []domain.Session{
		{ID: "s-1", CreatedAt: now.AddDate(0, 0, -1)},
		{ID: "s-2", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "s-3", Date: "12/03/2025"},
	} {
		if err := store.AppendSession(ctx, ana.ID, s); err != nil {
			t.Fatalf("AppendSession: %v", err)
		}
	}

	got := store.Stats(now)
	want := Stats{Patients: 2, TotalSessions: 3, SessionsToday: 1}
	if got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
}

func TestRecordStore_Export(t *testing.T) {
	repo := newFakeSnapshotRepo()
	store := newTestStore(t, repo)
	ctx := context.Background()

	doc, err := store.Export(ctx)
	if err != nil {
		t.Fatalf("Export before save: %v", err)
	}
	if !strings.Contains(string(doc), `"patients":[]`) {
		t.Errorf("expected empty envelope, got %s", doc)
	}

	if _, err := store.AddPatient(ctx, newPatient("Ana López", "Tendinopatía rotuliana")); err != nil {
		t.Fatalf("AddPatient: %v", err)
	}
	doc, err = store.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(doc) != string(repo.docs[testSlot]) {
		t.Error("expected export to return the persisted document")
	}
}
