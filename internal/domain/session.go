package domain

import (
	"strings"
	"time"
)

// ClinicalDecision is the treatment adjustment attached to a session.
type ClinicalDecision string

const (
	DecisionProgression ClinicalDecision = "Progresión"
	DecisionMaintenance ClinicalDecision = "Mantenimiento"
	DecisionRegression  ClinicalDecision = "Regresión/Adaptación"
)

// ClinicalDecisions lists the three decisions in escalating order of load.
var ClinicalDecisions = []ClinicalDecision{DecisionRegression, DecisionMaintenance, DecisionProgression}

var decisionAliases = map[string]ClinicalDecision{
	"progresión":            DecisionProgression,
	"progresion":            DecisionProgression,
	"progression":           DecisionProgression,
	"mantenimiento":         DecisionMaintenance,
	"maintenance":           DecisionMaintenance,
	"regresión/adaptación":  DecisionRegression,
	"regresion/adaptacion":  DecisionRegression,
	"regression-adaptation": DecisionRegression,
	"regression/adaptation": DecisionRegression,
}

// Valid reports whether d is exactly one of the canonical tags.
func (d ClinicalDecision) Valid() bool {
	switch d {
	case DecisionProgression, DecisionMaintenance, DecisionRegression:
		return true
	}
	return false
}

// ParseClinicalDecision normalizes s to a canonical tag. The English names
// (Progression, Maintenance, Regression-Adaptation) are accepted as well.
func ParseClinicalDecision(s string) (ClinicalDecision, bool) {
	d, ok := decisionAliases[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// Difficulty of a single exercise.
type Difficulty string

const (
	DifficultyLow    Difficulty = "Baja"
	DifficultyMedium Difficulty = "Media"
	DifficultyHigh   Difficulty = "Alta"
)

var difficultyAliases = map[string]Difficulty{
	"baja":   DifficultyLow,
	"low":    DifficultyLow,
	"media":  DifficultyMedium,
	"medium": DifficultyMedium,
	"alta":   DifficultyHigh,
	"high":   DifficultyHigh,
}

// ParseDifficulty normalizes s (Spanish or English, any case) to a Difficulty.
func ParseDifficulty(s string) (Difficulty, bool) {
	d, ok := difficultyAliases[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// Exercise is one prescribed exercise inside a Routine.
type Exercise struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Sets        int        `json:"sets"`
	Reps        int        `json:"reps"`
	Duration    string     `json:"duration,omitempty"` // e.g. "30 segundos", only for timed holds
	Frequency   string     `json:"frequency"`
	Rest        string     `json:"rest"`
	Tips        []string   `json:"tips"`
	MuscleGroup string     `json:"muscleGroup"`
	Difficulty  Difficulty `json:"difficulty"`
	Warnings    []string   `json:"warnings"`
}

// Routine is the set of exercises and rationale produced for one session.
type Routine struct {
	Exercises     []Exercise `json:"exercises"`
	Rationale     string     `json:"rationale"`
	TotalDuration string     `json:"totalDuration"`
	References    []string   `json:"references"`
	EvidenceLevel string     `json:"evidenceLevel"`
}

// Clone returns a deep copy so sessions never share slices.
func (r Routine) Clone() Routine {
	out := r
	if r.Exercises != nil {
		out.Exercises = make([]Exercise, len(r.Exercises))
		for i, ex := range r.Exercises {
			ex.Tips = cloneStrings(ex.Tips)
			ex.Warnings = cloneStrings(ex.Warnings)
			out.Exercises[i] = ex
		}
	}
	out.References = cloneStrings(r.References)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

// DisplayDateLayout is the day/month/year layout used for session dates.
const DisplayDateLayout = "02/01/2006"

// Session records one follow-up visit. It is created once, when the routine
// is generated, and never modified afterwards.
type Session struct {
	ID              string           `json:"id"`
	CreatedAt       time.Time        `json:"createdAt"`
	Date            string           `json:"date,omitempty"` // legacy display stamp, only on imported records
	PainLevel       int              `json:"painLevel"`      // EVA 0-10
	PatientFeedback string           `json:"patientFeedback"`
	Routine         Routine          `json:"routine"`
	Decision        ClinicalDecision `json:"clinicalDecision"`
}

// DisplayDate formats CreatedAt for people, falling back to the legacy stamp.
func (s *Session) DisplayDate() string {
	if !s.CreatedAt.IsZero() {
		return s.CreatedAt.Local().Format(DisplayDateLayout)
	}
	return s.Date
}

// ValidPainLevel reports whether level is on the 0-10 EVA scale.
func ValidPainLevel(level int) bool {
	return level >= 0 && level <= 10
}
