package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"alcyxob/rehabflow/internal/domain"
	"alcyxob/rehabflow/internal/logger"
	"alcyxob/rehabflow/internal/repository"

	"github.com/google/uuid"
)

// SnapshotSchemaVersion is the newest document version this build can read.
const SnapshotSchemaVersion = 1

// snapshotDocument is the durable envelope around the patient list.
type snapshotDocument struct {
	SchemaVersion int              `json:"schemaVersion"`
	SavedAt       time.Time        `json:"savedAt"`
	Patients      []domain.Patient `json:"patients"`
}

// Stats summarizes the stored records.
type Stats struct {
	Patients      int `json:"patients"`
	TotalSessions int `json:"totalSessions"`
	SessionsToday int `json:"sessionsToday"`
}

// RecordStore owns the patient collection. Every mutation is persisted to the
// snapshot repository before it becomes visible in memory.
type RecordStore struct {
	repo repository.SnapshotRepository
	slot string
	log  *logger.Logger
	now  func() time.Time

	mu       sync.RWMutex
	patients domain.PatientList
	warning  string
}

// NewRecordStore creates an empty store backed by repo. Call Open to load the
// persisted state.
func NewRecordStore(repo repository.SnapshotRepository, slot string, log *logger.Logger) *RecordStore {
	return &RecordStore{
		repo:     repo,
		slot:     slot,
		log:      log.With("component", "record_store", "slot", slot),
		now:      time.Now,
		patients: domain.PatientList{},
	}
}

// Open loads the persisted collection into memory. A corrupt document is
// replaced by an empty list and reported through TakeWarning; the document
// itself is left untouched until the next successful save.
func (s *RecordStore) Open(ctx context.Context) error {
	patients, err := s.Load(ctx)
	if err != nil {
		var corrupt *domain.CorruptStateError
		if !errors.As(err, &corrupt) {
			return err
		}
		s.log.Warn("stored state is corrupt, starting with an empty list", "error", err)
		patients = []domain.Patient{}
		s.mu.Lock()
		s.warning = "Los datos guardados no se pudieron leer; se inició una lista vacía."
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.patients = patients
	s.mu.Unlock()
	s.log.Info("records loaded", "patients", len(patients))
	return nil
}

// TakeWarning returns the pending startup warning once, then clears it.
func (s *RecordStore) TakeWarning() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.warning
	s.warning = ""
	return w
}

// Load reads and decodes the persisted collection without publishing it.
// A slot that was never written yields an empty list.
func (s *RecordStore) Load(ctx context.Context) ([]domain.Patient, error) {
	raw, err := s.repo.Load(ctx, s.slot)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []domain.Patient{}, nil
		}
		return nil, fmt.Errorf("load records: %w", err)
	}
	patients, err := decodeSnapshot(raw)
	if err != nil {
		return nil, &domain.CorruptStateError{Slot: s.slot, Err: err}
	}
	return patients, nil
}

// Save replaces the whole persisted collection with patients.
func (s *RecordStore) Save(ctx context.Context, patients []domain.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make(domain.PatientList, len(patients))
	copy(list, patients)
	return s.commit(ctx, list)
}

// AddPatient validates p, assigns an id when it has none, and appends it.
func (s *RecordStore) AddPatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.patients.FindByID(p.ID); exists {
		return domain.Patient{}, &domain.ValidationError{Field: "id", Message: "already exists"}
	}
	next, err := s.patients.AddPatient(p)
	if err != nil {
		return domain.Patient{}, err
	}
	if err := s.commit(ctx, next); err != nil {
		return domain.Patient{}, err
	}
	added, _ := next.FindByID(p.ID)
	s.log.Info("patient added", "patientId", p.ID)
	return added, nil
}

// AppendSession records session as the most recent one of the patient.
func (s *RecordStore) AppendSession(ctx context.Context, patientID string, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.patients.AppendSession(patientID, session)
	if err != nil {
		return err
	}
	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.log.Info("session recorded", "patientId", patientID, "sessionId", session.ID, "decision", session.Decision)
	return nil
}

// FindByID returns the patient with the given id.
func (s *RecordStore) FindByID(id string) (domain.Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patients.FindByID(id)
}

// FilterByNameOrCondition returns the patients matching query, in order.
func (s *RecordStore) FilterByNameOrCondition(query string) []domain.Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patients.FilterByNameOrCondition(query)
}

// Patients returns a copy of the whole collection.
func (s *RecordStore) Patients() []domain.Patient {
	return s.FilterByNameOrCondition("")
}

// Stats counts patients and sessions. Sessions today are those created on the
// calendar day of now, in now's location.
func (s *RecordStore) Stats(now time.Time) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := now.Date()
	st := Stats{Patients: len(s.patients), TotalSessions: s.patients.SessionCount()}
	for _, p := range s.patients {
		for _, sess := range p.Sessions {
			if sess.CreatedAt.IsZero() {
				continue
			}
			sy, sm, sd := sess.CreatedAt.In(now.Location()).Date()
			if sy == y && sm == m && sd == d {
				st.SessionsToday++
			}
		}
	}
	return st
}

// Export returns the persisted document, or the encoded in-memory collection
// when nothing has been saved yet.
func (s *RecordStore) Export(ctx context.Context) ([]byte, error) {
	raw, err := s.repo.Load(ctx, s.slot)
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("export records: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return encodeSnapshot(s.patients, s.now())
}

// Slot is the name of the durable document.
func (s *RecordStore) Slot() string {
	return s.slot
}

// commit persists next and publishes it. Callers hold s.mu.
func (s *RecordStore) commit(ctx context.Context, next domain.PatientList) error {
	data, err := encodeSnapshot(next, s.now())
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := s.repo.Save(ctx, s.slot, data); err != nil {
		s.log.Error("failed to persist records", "error", err)
		return fmt.Errorf("save records: %w", err)
	}
	s.patients = next
	return nil
}

func encodeSnapshot(patients domain.PatientList, savedAt time.Time) ([]byte, error) {
	if patients == nil {
		patients = domain.PatientList{}
	}
	return json.Marshal(snapshotDocument{
		SchemaVersion: SnapshotSchemaVersion,
		SavedAt:       savedAt.UTC(),
		Patients:      patients,
	})
}

// decodeSnapshot accepts the versioned envelope and the older bare array.
// Empty and null documents decode to an empty list.
func decodeSnapshot(raw []byte) ([]domain.Patient, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []domain.Patient{}, nil
	}

	var patients []domain.Patient
	if body[0] == '[' {
		if err := json.Unmarshal(body, &patients); err != nil {
			return nil, err
		}
	} else {
		var doc snapshotDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, err
		}
		if doc.SchemaVersion > SnapshotSchemaVersion {
			return nil, fmt.Errorf("unsupported schema version %d", doc.SchemaVersion)
		}
		patients = doc.Patients
	}

	if patients == nil {
		patients = []domain.Patient{}
	}
	for i := range patients {
		if patients[i].Sessions == nil {
			patients[i].Sessions = []domain.Session{}
		}
	}
	return patients, nil
}
