// internal/domain/patient.go
package domain

import (
	"strings"
)

// Area is the anatomical area a diagnosis refers to.
type Area string

const (
	AreaKnee     Area = "Rodilla"
	AreaShoulder Area = "Hombro"
	AreaBack     Area = "Espalda"
	AreaAnkle    Area = "Tobillo"
	AreaElbow    Area = "Codo"
	AreaWrist    Area = "Muñeca"
	AreaHip      Area = "Cadera"
	AreaNeck     Area = "Cuello"
)

// Areas lists the selectable areas in display order.
var Areas = []Area{AreaKnee, AreaShoulder, AreaBack, AreaAnkle, AreaElbow, AreaWrist, AreaHip, AreaNeck}

// Valid reports whether a is one of the enumerated areas.
func (a Area) Valid() bool {
	for _, known := range Areas {
		if a == known {
			return true
		}
	}
	return false
}

// ParseArea matches s against the known areas ignoring case and surrounding spaces.
func ParseArea(s string) (Area, bool) {
	s = strings.TrimSpace(s)
	for _, known := range Areas {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

// RecoveryPhase is the coarse stage of a patient's recovery. The values are
// the labels persisted by the browser version of RehabFlow, so old documents keep loading.
type RecoveryPhase string

const (
	PhaseAcute         RecoveryPhase = "Aguda (PEACE & LOVE / Protección)"
	PhaseSubacute      RecoveryPhase = "Subaguda (Carga Progresiva)"
	PhaseStrengthening RecoveryPhase = "Fortalecimiento (Resistencia Mecánica)"
	PhaseReturnToSport RecoveryPhase = "Retorno (Control Sensoriomotor)"
)

var phaseAliases = map[string]RecoveryPhase{
	"acute":           PhaseAcute,
	"aguda":           PhaseAcute,
	"subacute":        PhaseSubacute,
	"subaguda":        PhaseSubacute,
	"strengthening":   PhaseStrengthening,
	"fortalecimiento": PhaseStrengthening,
	"return-to-sport": PhaseReturnToSport,
	"return_to_sport": PhaseReturnToSport,
	"retorno":         PhaseReturnToSport,
}

// Valid reports whether p is one of the four phases.
func (p RecoveryPhase) Valid() bool {
	switch p {
	case PhaseAcute, PhaseSubacute, PhaseStrengthening, PhaseReturnToSport:
		return true
	}
	return false
}

// ParseRecoveryPhase accepts either the stored label or a short name such as "acute".
func ParseRecoveryPhase(s string) (RecoveryPhase, bool) {
	s = strings.TrimSpace(s)
	if p := RecoveryPhase(s); p.Valid() {
		return p, true
	}
	p, ok := phaseAliases[strings.ToLower(s)]
	return p, ok
}

// Diagnosis is set when the patient is registered and not edited afterwards.
type Diagnosis struct {
	Area      Area          `json:"area"`
	Condition string        `json:"condition"` // e.g. "Tendinopatía rotuliana"
	Phase     RecoveryPhase `json:"phase"`
	Notes     string        `json:"notes"`
}

// Defaults used by the registration form when a field is left blank.
const (
	DefaultArea  = AreaKnee
	DefaultPhase = PhaseAcute
)

// ParseDiagnosis builds a Diagnosis from free-form input. Blank area and phase
// fall back to DefaultArea and DefaultPhase; unknown values are rejected.
func ParseDiagnosis(area, condition, phase, notes string) (Diagnosis, error) {
	d := Diagnosis{
		Area:      DefaultArea,
		Condition: strings.TrimSpace(condition),
		Phase:     DefaultPhase,
		Notes:     strings.TrimSpace(notes),
	}
	if strings.TrimSpace(area) != "" {
		a, ok := ParseArea(area)
		if !ok {
			return Diagnosis{}, &ValidationError{Field: "diagnosis.area", Message: "unknown area " + area}
		}
		d.Area = a
	}
	if strings.TrimSpace(phase) != "" {
		ph, ok := ParseRecoveryPhase(phase)
		if !ok {
			return Diagnosis{}, &ValidationError{Field: "diagnosis.phase", Message: "unknown recovery phase " + phase}
		}
		d.Phase = ph
	}
	return d, nil
}

// Patient is a clinical record. Sessions are kept newest first.
type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Diagnosis Diagnosis `json:"diagnosis"`
	Sessions  []Session `json:"sessions"`
}

// LatestSession returns the most recent session, or nil when there is none.
func (p *Patient) LatestSession() *Session {
	if len(p.Sessions) == 0 {
		return nil
	}
	return &p.Sessions[0]
}

// Validate checks the fields required to register a patient.
func (p *Patient) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Message: "patient name is required"}
	}
	if strings.TrimSpace(p.Diagnosis.Condition) == "" {
		return &ValidationError{Field: "diagnosis.condition", Message: "diagnosis condition is required"}
	}
	if !p.Diagnosis.Area.Valid() {
		return &ValidationError{Field: "diagnosis.area", Message: "unknown area " + string(p.Diagnosis.Area)}
	}
	if !p.Diagnosis.Phase.Valid() {
		return &ValidationError{Field: "diagnosis.phase", Message: "unknown recovery phase " + string(p.Diagnosis.Phase)}
	}
	return nil
}
