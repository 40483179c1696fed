package llm

import (
	"github.com/sashabaranov/go-openai/jsonschema"
)

// RoutineSchemaName names the structured output format sent to the service.
const RoutineSchemaName = "session_routine"

// RoutineSchema describes the response the service must produce. ParseRoutineResult
// enforces the same contract on our side, since not every compatible endpoint
// honors the schema.
func RoutineSchema() *jsonschema.Definition {
	str := jsonschema.Definition{Type: jsonschema.String}
	strArray := jsonschema.Definition{Type: jsonschema.Array, Items: &str}

	exercise := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"id":          str,
			"name":        str,
			"description": str,
			"sets":        {Type: jsonschema.Integer},
			"reps":        {Type: jsonschema.Integer},
			"duration":    str,
			"frequency":   str,
			"rest":        str,
			"tips":        strArray,
			"muscleGroup": str,
			"difficulty":  {Type: jsonschema.String, Enum: []string{"Baja", "Media", "Alta"}},
			"warnings":    strArray,
		},
		Required: []string{"id", "name", "description", "sets", "reps", "frequency", "rest", "tips", "muscleGroup", "difficulty", "warnings"},
	}

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"exercises":     {Type: jsonschema.Array, Items: &exercise},
			"rationale":     str,
			"totalDuration": str,
			"references":    strArray,
			"evidenceLevel": str,
			"clinicalDecision": {
				Type:        jsonschema.String,
				Description: "Decisión técnica: Progresión, Mantenimiento o Regresión/Adaptación",
				Enum:        []string{"Progresión", "Mantenimiento", "Regresión/Adaptación"},
			},
		},
		Required: []string{"exercises", "rationale", "totalDuration", "references", "evidenceLevel", "clinicalDecision"},
	}
}
