package api

import (
	"net/http"
	"strings"

	"alcyxob/rehabflow/internal/domain"
	"alcyxob/rehabflow/internal/service"

	"github.com/gin-gonic/gin"
)

// PatientHandler serves the patient list and clinical history.
type PatientHandler struct {
	records *service.RecordStore
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(records *service.RecordStore) *PatientHandler {
	return &PatientHandler{records: records}
}

// --- DTOs ---

// DiagnosisRequest carries the registration form. Area and phase may be
// blank, or a short name such as "acute".
type DiagnosisRequest struct {
	Area      string `json:"area"`
	Condition string `json:"condition" binding:"required"`
	Phase     string `json:"phase"`
	Notes     string `json:"notes"`
}

// CreatePatientRequest defines the expected JSON for registering a patient.
type CreatePatientRequest struct {
	Name      string           `json:"name" binding:"required"`
	Diagnosis DiagnosisRequest `json:"diagnosis" binding:"required"`
}

// PatientSummary is one row of the patient list.
type PatientSummary struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Diagnosis    domain.Diagnosis `json:"diagnosis"`
	SessionCount int              `json:"sessionCount"`
	LastSession  string           `json:"lastSession,omitempty"` // display date of the newest session
}

func mapPatientToSummary(p domain.Patient) PatientSummary {
	s := PatientSummary{
		ID:           p.ID,
		Name:         p.Name,
		Diagnosis:    p.Diagnosis,
		SessionCount: len(p.Sessions),
	}
	if last := p.LatestSession(); last != nil {
		s.LastSession = last.DisplayDate()
	}
	return s
}

// --- Handler Methods ---

// ListPatients returns every patient, or those whose name or condition
// contains ?q=.
func (h *PatientHandler) ListPatients(c *gin.Context) {
	patients := h.records.FilterByNameOrCondition(c.Query("q"))
	summaries := make([]PatientSummary, len(patients))
	for i, p := range patients {
		summaries[i] = mapPatientToSummary(p)
	}
	c.JSON(http.StatusOK, summaries)
}

// CreatePatient registers a new patient with an empty history.
func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	diagnosis, err := domain.ParseDiagnosis(req.Diagnosis.Area, req.Diagnosis.Condition, req.Diagnosis.Phase, req.Diagnosis.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	patient, err := h.records.AddPatient(c.Request.Context(), domain.Patient{
		Name:      strings.TrimSpace(req.Name),
		Diagnosis: diagnosis,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, patient)
}

// GetPatient returns the full record, sessions included.
func (h *PatientHandler) GetPatient(c *gin.Context) {
	patient, ok := h.findPatient(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, patient)
}

// GetSessions returns the patient's history, newest first.
func (h *PatientHandler) GetSessions(c *gin.Context) {
	patient, ok := h.findPatient(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, patient.Sessions)
}

// GetSessionRoutine returns the routine and decision recorded for a past session.
func (h *PatientHandler) GetSessionRoutine(c *gin.Context) {
	patient, ok := h.findPatient(c)
	if !ok {
		return
	}
	sessionID := c.Param("sessionId")
	for _, s := range patient.Sessions {
		if s.ID == sessionID {
			c.JSON(http.StatusOK, gin.H{
				"sessionId":        s.ID,
				"date":             s.DisplayDate(),
				"painLevel":        s.PainLevel,
				"clinicalDecision": s.Decision,
				"routine":          s.Routine,
			})
			return
		}
	}
	respondError(c, &domain.NotFoundError{Kind: "session", ID: sessionID})
}

func (h *PatientHandler) findPatient(c *gin.Context) (domain.Patient, bool) {
	id := c.Param("patientId")
	patient, ok := h.records.FindByID(id)
	if !ok {
		respondError(c, &domain.NotFoundError{Kind: "patient", ID: id})
		return domain.Patient{}, false
	}
	return patient, true
}
