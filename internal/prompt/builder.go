// Package prompt turns a patient's record and today's check-in into the
// instruction sent to the routine generation service. Everything here is pure:
// the same inputs always produce the same payload.
package prompt

import (
	"fmt"
	"strings"

	"alcyxob/rehabflow/internal/domain"
)

// NoPriorSessions is written in place of the history list for a first visit.
const NoPriorSessions = "No hay sesiones previas."

// SystemPrompt sets the persona and output contract.
const SystemPrompt = "Eres un Fisioterapeuta Especialista en rehabilitación musculoesquelética. " +
	"Prescribes rutinas de ejercicio terapéutico basadas en evidencia y decides la progresión de carga sesión a sesión. " +
	"Responde únicamente con un objeto JSON que cumpla el esquema solicitado."

// Heuristics are the clinical criteria the model must apply, in order.
var Heuristics = []string{
	`Si el dolor es > 4/10 o ha aumentado respecto a la sesión anterior, considera "Regresión/Adaptación" o "Mantenimiento".`,
	`Si el dolor es < 2/10 y el feedback es positivo, busca "Progresión" de carga (más reps, menos rest, o ejercicios más complejos).`,
	"Fundamenta tu decisión en Guías de Práctica Clínica (JOSPT/BJSM).",
}

// Payload is what the generation client sends.
type Payload struct {
	System string
	User   string
}

// BuildSessionPrompt assembles the payload for the next session of p.
// p.Sessions must be ordered newest first.
func BuildSessionPrompt(p domain.Patient, painLevel int, feedback string) Payload {
	var b strings.Builder

	fmt.Fprintf(&b, "Debes generar la siguiente sesión de tratamiento para el paciente %q.\n\n", p.Name)

	b.WriteString("DIAGNÓSTICO INICIAL:\n")
	fmt.Fprintf(&b, "- Área: %s\n", p.Diagnosis.Area)
	fmt.Fprintf(&b, "- Condición: %s\n", p.Diagnosis.Condition)
	fmt.Fprintf(&b, "- Fase actual: %s\n", p.Diagnosis.Phase)
	if notes := strings.TrimSpace(p.Diagnosis.Notes); notes != "" {
		fmt.Fprintf(&b, "- Notas clínicas: %s\n", notes)
	}

	b.WriteString("\nESTADO ACTUAL DE LA SESIÓN:\n")
	fmt.Fprintf(&b, "- Dolor reportado hoy: %d/10 (Escala EVA)\n", painLevel)
	fmt.Fprintf(&b, "- Comentarios del paciente: %s\n", strings.TrimSpace(feedback))
	if prev := p.LatestSession(); prev != nil {
		fmt.Fprintf(&b, "- Evolución del dolor: %s\n", painTrend(prev.PainLevel, painLevel))
	}

	b.WriteString("\nHISTORIAL DE SESIONES PREVIAS:\n")
	b.WriteString(History(p.Sessions))
	b.WriteString("\n")

	b.WriteString("\nCRITERIOS CLÍNICOS OBLIGATORIOS:\n")
	for i, h := range Heuristics {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h)
	}

	b.WriteString("\nEl campo clinicalDecision debe ser exactamente uno de: ")
	decisions := make([]string, len(domain.ClinicalDecisions))
	for i, d := range domain.ClinicalDecisions {
		decisions[i] = fmt.Sprintf("%q", d)
	}
	b.WriteString(strings.Join(decisions, ", "))
	b.WriteString(". La dificultad de cada ejercicio debe ser \"Baja\", \"Media\" o \"Alta\".\n\nResponde en JSON.")

	return Payload{System: SystemPrompt, User: b.String()}
}

// History renders sessions as a bulleted list, or NoPriorSessions when empty.
func History(sessions []domain.Session) string {
	if len(sessions) == 0 {
		return NoPriorSessions
	}
	lines := make([]string, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		lines[i] = fmt.Sprintf("- Fecha: %s, Dolor: %d/10, Decisión previa: %s", s.DisplayDate(), s.PainLevel, s.Decision)
	}
	return strings.Join(lines, "\n")
}

func painTrend(previous, current int) string {
	switch {
	case current > previous:
		return fmt.Sprintf("aumentó respecto a la sesión anterior (%d/10 → %d/10)", previous, current)
	case current < previous:
		return fmt.Sprintf("disminuyó respecto a la sesión anterior (%d/10 → %d/10)", previous, current)
	default:
		return fmt.Sprintf("se mantuvo respecto a la sesión anterior (%d/10)", current)
	}
}
