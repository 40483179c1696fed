package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alcyxob/rehabflow/internal/domain"
	"alcyxob/rehabflow/internal/llm"
	"alcyxob/rehabflow/internal/logger"
	"alcyxob/rehabflow/internal/prompt"
	"alcyxob/rehabflow/internal/repository/file"
	"alcyxob/rehabflow/internal/service"

	"github.com/gin-gonic/gin"
)

type stubGenerator struct {
	result *llm.Result
	err    error
}

func (g *stubGenerator) Generate(context.Context, prompt.Payload) (*llm.Result, error) {
	return g.result, g.err
}

type stubPresigner struct{}

func (stubPresigner) PresignDownload(_ context.Context, slot string, _ time.Duration) (string, error) {
	return "https://bucket.example.com/rehabflow/" + slot + ".json?X-Amz-Signature=abc", nil
}

type testServer struct {
	router    *gin.Engine
	records   *service.RecordStore
	generator *stubGenerator
}

func newTestServer(t *testing.T, withPresigner bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, err := file.NewFileSnapshotRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSnapshotRepository: %v", err)
	}
	log := logger.NewNop()
	records := service.NewRecordStore(repo, "rehabflow_patients", log)
	if err := records.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	gen := &stubGenerator{}
	orchestrator := service.NewSessionOrchestrator(records, gen, time.Second, log)

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))
	if withPresigner {
		SetupRoutes(router, records, orchestrator, stubPresigner{}, 0)
	} else {
		SetupRoutes(router, records, orchestrator, nil, 0)
	}
	return &testServer{router: router, records: records, generator: gen}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func (s *testServer) createPatient(t *testing.T, name, condition string) domain.Patient {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/patients", gin.H{
		"name":      name,
		"diagnosis": gin.H{"area": "rodilla", "condition": condition, "phase": "acute"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create patient: status %d, body %s", w.Code, w.Body.String())
	}
	return decode[domain.Patient](t, w)
}

func progression() *llm.Result {
	return &llm.Result{
		Decision: domain.DecisionProgression,
		Routine: domain.Routine{
			Exercises: []domain.Exercise{
				{ID: "ex-1", Name: "Sentadilla", Sets: 3, Reps: 10, Tips: []string{}, Warnings: []string{}, Difficulty: domain.DifficultyMedium},
				{ID: "ex-2", Name: "Puente", Sets: 3, Reps: 12, Tips: []string{}, Warnings: []string{}, Difficulty: domain.DifficultyLow},
				{ID: "ex-3", Name: "Step down", Sets: 2, Reps: 8, Tips: []string{}, Warnings: []string{}, Difficulty: domain.DifficultyHigh},
			},
			Rationale:     "Dolor bajo, feedback positivo.",
			TotalDuration: "30",
			References:    []string{"BJSM 2020"},
			EvidenceLevel: "Alta",
		},
	}
}

func TestPing(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodGet, "/api/v1/ping", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "pong") {
		t.Fatalf("unexpected ping response: %d %s", w.Code, w.Body.String())
	}
}

func TestCreateAndListPatients(t *testing.T) {
	s := newTestServer(t, false)
	juan := s.createPatient(t, "Juan Pérez", "Esguince de tobillo")
	s.createPatient(t, "Ana López", "Tendinopatía rotuliana")

	if juan.ID == "" || juan.Diagnosis.Area != domain.AreaKnee || juan.Diagnosis.Phase != domain.PhaseAcute {
		t.Errorf("unexpected patient: %+v", juan)
	}

	all := decode[[]PatientSummary](t, s.do(t, http.MethodGet, "/api/v1/patients", nil))
	if len(all) != 2 || all[0].Name != "Juan Pérez" || all[1].Name != "Ana López" {
		t.Errorf("unexpected list: %+v", all)
	}

	filtered := decode[[]PatientSummary](t, s.do(t, http.MethodGet, "/api/v1/patients?q=juan", nil))
	if len(filtered) != 1 || filtered[0].ID != juan.ID {
		t.Errorf("unexpected filtered list: %+v", filtered)
	}
}

func TestCreatePatientDefaults(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodPost, "/api/v1/patients", gin.H{
		"name":      "Marta Ruiz",
		"diagnosis": gin.H{"condition": "Lumbalgia"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	p := decode[domain.Patient](t, w)
	if p.Diagnosis.Area != domain.DefaultArea || p.Diagnosis.Phase != domain.DefaultPhase {
		t.Errorf("expected defaults, got %+v", p.Diagnosis)
	}
}

func TestCreatePatientValidation(t *testing.T) {
	s := newTestServer(t, false)
	tests := []struct {
		name string
		body gin.H
	}{
		{"missing name", gin.H{"diagnosis": gin.H{"condition": "Lumbalgia"}}},
		{"blank name", gin.H{"name": "   ", "diagnosis": gin.H{"condition": "Lumbalgia"}}},
		{"blank condition", gin.H{"name": "Ana", "diagnosis": gin.H{"condition": "  "}}},
		{"unknown area", gin.H{"name": "Ana", "diagnosis": gin.H{"condition": "Lumbalgia", "area": "Oreja"}}},
		{"unknown phase", gin.H{"name": "Ana", "diagnosis": gin.H{"condition": "Lumbalgia", "phase": "crónica"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/patients", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
	if n := len(s.records.Patients()); n != 0 {
		t.Errorf("expected no patients, got %d", n)
	}
}

func TestGetUnknownPatient(t *testing.T) {
	s := newTestServer(t, false)
	for _, path := range []string{"/api/v1/patients/nope", "/api/v1/patients/nope/sessions"} {
		if w := s.do(t, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestSubmitSessionFlow(t *testing.T) {
	s := newTestServer(t, false)
	ana := s.createPatient(t, "Ana López", "Tendinopatía rotuliana")
	s.generator.result = progression()

	w := s.do(t, http.MethodPost, "/api/v1/patients/"+ana.ID+"/sessions", gin.H{"painLevel": 2, "feedback": "mejoró notablemente"})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: status %d, body %s", w.Code, w.Body.String())
	}
	session := decode[domain.Session](t, w)
	if session.Decision != domain.DecisionProgression || len(session.Routine.Exercises) != 3 || session.Routine.TotalDuration != "30" {
		t.Errorf("unexpected session: %+v", session)
	}

	status := decode[service.SessionStatus](t, s.do(t, http.MethodGet, "/api/v1/session", nil))
	if status.State != service.StateSuccess || status.Session == nil {
		t.Errorf("unexpected status: %+v", status)
	}

	sessions := decode[[]domain.Session](t, s.do(t, http.MethodGet, "/api/v1/patients/"+ana.ID+"/sessions", nil))
	if len(sessions) != 1 || sessions[0].ID != session.ID {
		t.Fatalf("unexpected history: %+v", sessions)
	}

	w = s.do(t, http.MethodGet, "/api/v1/patients/"+ana.ID+"/sessions/"+session.ID+"/routine", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"clinicalDecision":"Progresión"`) {
		t.Errorf("unexpected routine view: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodGet, "/api/v1/patients/"+ana.ID+"/sessions/nope/routine", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}

	status = decode[service.SessionStatus](t, s.do(t, http.MethodDelete, "/api/v1/session", nil))
	if status.State != service.StateIdle {
		t.Errorf("expected idle after reset, got %+v", status)
	}
}

func TestSubmitSessionErrors(t *testing.T) {
	s := newTestServer(t, false)
	ana := s.createPatient(t, "Ana López", "Tendinopatía rotuliana")
	path := "/api/v1/patients/" + ana.ID + "/sessions"

	tests := []struct {
		name   string
		path   string
		body   gin.H
		genErr error
		code   int
	}{
		{"missing pain", path, gin.H{"feedback": "bien"}, nil, http.StatusBadRequest},
		{"pain out of range", path, gin.H{"painLevel": 12, "feedback": "bien"}, nil, http.StatusBadRequest},
		{"blank feedback", path, gin.H{"painLevel": 3, "feedback": " "}, nil, http.StatusBadRequest},
		{"unknown patient", "/api/v1/patients/nope/sessions", gin.H{"painLevel": 3, "feedback": "bien"}, nil, http.StatusNotFound},
		{"generation failure", path, gin.H{"painLevel": 3, "feedback": "bien"}, &domain.GenerationError{Err: errors.New("timeout")}, http.StatusBadGateway},
		{"schema failure", path, gin.H{"painLevel": 3, "feedback": "bien"}, &domain.SchemaValidationError{Problems: []string{"exercises is required"}}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.generator.result, s.generator.err = nil, tt.genErr
			w := s.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			if tt.code == http.StatusBadGateway && !strings.Contains(w.Body.String(), service.FailureMessage) {
				t.Errorf("expected user-facing message, got %s", w.Body.String())
			}
			s.do(t, http.MethodDelete, "/api/v1/session", nil)
		})
	}

	p, _ := s.records.FindByID(ana.ID)
	if len(p.Sessions) != 0 {
		t.Errorf("failed submissions must not add sessions, got %d", len(p.Sessions))
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t, false)
	ana := s.createPatient(t, "Ana López", "Tendinopatía rotuliana")
	s.createPatient(t, "Juan Pérez", "Esguince de tobillo")
	s.generator.result = progression()
	s.do(t, http.MethodPost, "/api/v1/patients/"+ana.ID+"/sessions", gin.H{"painLevel": 2, "feedback": "bien"})

	stats := decode[service.Stats](t, s.do(t, http.MethodGet, "/api/v1/stats", nil))
	want := service.Stats{Patients: 2, TotalSessions: 1, SessionsToday: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestExport(t *testing.T) {
	t.Run("document", func(t *testing.T) {
		s := newTestServer(t, false)
		s.createPatient(t, "Ana López", "Tendinopatía rotuliana")
		w := s.do(t, http.MethodGet, "/api/v1/export", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status %d", w.Code)
		}
		if !strings.Contains(w.Header().Get("Content-Disposition"), "rehabflow_patients.json") {
			t.Errorf("unexpected Content-Disposition %q", w.Header().Get("Content-Disposition"))
		}
		if !strings.Contains(w.Body.String(), "Ana López") || !strings.Contains(w.Body.String(), `"schemaVersion":1`) {
			t.Errorf("unexpected export body %s", w.Body.String())
		}
	})

	t.Run("presigned", func(t *testing.T) {
		s := newTestServer(t, true)
		body := decode[map[string]interface{}](t, s.do(t, http.MethodGet, "/api/v1/export", nil))
		url, _ := body["url"].(string)
		if !strings.Contains(url, "rehabflow_patients.json") {
			t.Errorf("unexpected url %q", url)
		}
		if body["expiresIn"] != float64(15*60) {
			t.Errorf("unexpected expiresIn %v", body["expiresIn"])
		}
	})
}
