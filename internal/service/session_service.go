package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"alcyxob/rehabflow/internal/domain"
	"alcyxob/rehabflow/internal/llm"
	"alcyxob/rehabflow/internal/logger"
	"alcyxob/rehabflow/internal/prompt"

	"github.com/google/uuid"
)

// --- Error Definitions ---
var (
	ErrNoPatientSelected  = errors.New("no patient selected")
	ErrSubmissionInFlight = errors.New("a session is already being generated")
	ErrSessionAbandoned   = errors.New("session generation was abandoned")
)

// FailureMessage is what the user sees when an attempt fails for any reason.
const FailureMessage = "Error al procesar la evolución clínica."

// SessionState is the orchestrator's position in the submit cycle.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateSubmitting SessionState = "submitting"
	StateSuccess    SessionState = "success"
	StateFailed     SessionState = "failed"
)

// SessionStatus is a snapshot of the orchestrator.
type SessionStatus struct {
	State     SessionState    `json:"state"`
	PatientID string          `json:"patientId,omitempty"`
	Error     string          `json:"error,omitempty"`
	Session   *domain.Session `json:"session,omitempty"` // set in StateSuccess
}

// SessionOrchestrator runs one check-in at a time: it builds the prompt, calls
// the generator and records the resulting session.
type SessionOrchestrator struct {
	records   *RecordStore
	generator llm.Generator
	timeout   time.Duration
	log       *logger.Logger
	now       func() time.Time

	mu        sync.Mutex
	state     SessionState
	patientID string
	errMsg    string
	active    *domain.Session
	epoch     uint64
	cancel    context.CancelFunc
}

// NewSessionOrchestrator creates an idle orchestrator. timeout bounds each
// generation attempt; zero means no limit beyond the caller's context.
func NewSessionOrchestrator(records *RecordStore, generator llm.Generator, timeout time.Duration, log *logger.Logger) *SessionOrchestrator {
	return &SessionOrchestrator{
		records:   records,
		generator: generator,
		timeout:   timeout,
		log:       log.With("component", "session_orchestrator"),
		now:       time.Now,
		state:     StateIdle,
	}
}

// Submit generates and records the next session for patientID.
//
// Input problems (ErrNoPatientSelected, *domain.NotFoundError,
// *domain.ValidationError) and ErrSubmissionInFlight leave the state as it
// was. Otherwise the attempt ends in StateSuccess with the new session, in
// StateFailed with the underlying error, or with ErrSessionAbandoned if
// Abandon was called or ctx was cancelled meanwhile.
func (o *SessionOrchestrator) Submit(ctx context.Context, patientID string, painLevel int, feedback string) (domain.Session, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return domain.Session{}, ErrNoPatientSelected
	}
	patient, ok := o.records.FindByID(patientID)
	if !ok {
		return domain.Session{}, &domain.NotFoundError{Kind: "patient", ID: patientID}
	}
	if !domain.ValidPainLevel(painLevel) {
		return domain.Session{}, &domain.ValidationError{Field: "painLevel", Message: "must be between 0 and 10"}
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return domain.Session{}, &domain.ValidationError{Field: "feedback", Message: "cannot be empty"}
	}

	epoch, attemptCtx, err := o.begin(ctx, patientID)
	if err != nil {
		return domain.Session{}, err
	}
	defer o.release(epoch)

	log := o.log.With("patientId", patientID, "attempt", epoch)
	log.Info("generating session", "painLevel", painLevel)

	payload := prompt.BuildSessionPrompt(patient, painLevel, feedback)
	result, genErr := o.generator.Generate(attemptCtx, payload)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.epoch != epoch || ctx.Err() != nil {
		if o.epoch == epoch {
			o.reset()
		}
		log.Info("discarding result of abandoned attempt")
		return domain.Session{}, ErrSessionAbandoned
	}

	if genErr != nil {
		o.fail(log, genErr)
		return domain.Session{}, genErr
	}

	session := domain.Session{
		ID:              uuid.NewString(),
		CreatedAt:       o.now().UTC(),
		PainLevel:       painLevel,
		PatientFeedback: feedback,
		Routine:         result.Routine.Clone(),
		Decision:        result.Decision,
	}
	if err := o.records.AppendSession(ctx, patientID, session); err != nil {
		o.fail(log, err)
		return domain.Session{}, fmt.Errorf("record session: %w", err)
	}

	o.state = StateSuccess
	o.active = &session
	log.Info("session generated", "sessionId", session.ID, "decision", session.Decision, "exercises", len(session.Routine.Exercises))
	return session, nil
}

// Abandon cancels the in-flight attempt, if any, and returns to idle. The
// attempt's result is discarded whenever it arrives. It reports whether an
// attempt was abandoned.
func (o *SessionOrchestrator) Abandon() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateSubmitting {
		return false
	}
	o.epoch++
	if o.cancel != nil {
		o.cancel()
	}
	o.reset()
	o.log.Info("attempt abandoned")
	return true
}

// Dismiss acknowledges a finished attempt and returns to idle. It does
// nothing while an attempt is in flight.
func (o *SessionOrchestrator) Dismiss() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateSuccess || o.state == StateFailed {
		o.reset()
	}
}

// Status returns a snapshot of the current state.
func (o *SessionOrchestrator) Status() SessionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := SessionStatus{State: o.state, PatientID: o.patientID, Error: o.errMsg}
	if o.active != nil {
		s := *o.active
		s.Routine = s.Routine.Clone()
		st.Session = &s
	}
	return st
}

func (o *SessionOrchestrator) begin(ctx context.Context, patientID string) (uint64, context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateSubmitting {
		return 0, nil, ErrSubmissionInFlight
	}

	var attemptCtx context.Context
	var cancel context.CancelFunc
	if o.timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, o.timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}

	o.epoch++
	o.state = StateSubmitting
	o.patientID = patientID
	o.errMsg = ""
	o.active = nil
	o.cancel = cancel
	return o.epoch, attemptCtx, nil
}

// release cancels the attempt context once Submit returns.
func (o *SessionOrchestrator) release(epoch uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch == epoch && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// fail and reset are called with o.mu held.
func (o *SessionOrchestrator) fail(log *logger.Logger, err error) {
	var schemaErr *domain.SchemaValidationError
	var genErr *domain.GenerationError
	switch {
	case errors.As(err, &schemaErr):
		log.Warn("generation response rejected", "problems", schemaErr.Problems, "error", err)
	case errors.As(err, &genErr):
		log.Error("generation call failed", "error", err)
	default:
		log.Error("failed to record session", "error", err)
	}
	o.state = StateFailed
	o.errMsg = FailureMessage
	o.active = nil
}

func (o *SessionOrchestrator) reset() {
	o.state = StateIdle
	o.patientID = ""
	o.errMsg = ""
	o.active = nil
}
