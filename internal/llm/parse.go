package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"alcyxob/rehabflow/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Result is a validated generation response.
type Result struct {
	Routine  domain.Routine
	Decision domain.ClinicalDecision
}

// wireExercise mirrors the response schema. Pointers mark fields whose zero
// value is legal but whose absence is not.
type wireExercise struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Sets        *int     `json:"sets" validate:"required,min=0"`
	Reps        *int     `json:"reps" validate:"required,min=0"`
	Duration    string   `json:"duration"`
	Frequency   *string  `json:"frequency" validate:"required"`
	Rest        *string  `json:"rest" validate:"required"`
	Tips        []string `json:"tips" validate:"required"`
	MuscleGroup *string  `json:"muscleGroup" validate:"required"`
	Difficulty  string   `json:"difficulty" validate:"required,difficulty"`
	Warnings    []string `json:"warnings" validate:"required"`
}

type wireRoutine struct {
	Exercises        []wireExercise `json:"exercises" validate:"required,min=1,dive"`
	Rationale        string         `json:"rationale" validate:"required"`
	TotalDuration    string         `json:"totalDuration" validate:"required"`
	References       []string       `json:"references" validate:"required"`
	EvidenceLevel    string         `json:"evidenceLevel" validate:"required"`
	ClinicalDecision string         `json:"clinicalDecision" validate:"required,clinical_decision"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func schemaValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("clinical_decision", func(fl validator.FieldLevel) bool {
			_, ok := domain.ParseClinicalDecision(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
			_, ok := domain.ParseDifficulty(fl.Field().String())
			return ok
		})
		// Report JSON names, e.g. "exercises[0].sets", instead of Go field names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate = v
	})
	return validate
}

// ParseRoutineResult decodes and validates a raw generation response. Any
// mismatch with the routine schema yields a *domain.SchemaValidationError.
func ParseRoutineResult(raw []byte) (*Result, error) {
	body := stripCodeFence(raw)
	if len(body) == 0 {
		return nil, &domain.SchemaValidationError{Problems: []string{"empty response"}}
	}

	var w wireRoutine
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&w); err != nil {
		return nil, &domain.SchemaValidationError{Err: fmt.Errorf("decode response: %w", err)}
	}

	if err := schemaValidator().Struct(&w); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			problems := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				problems = append(problems, describe(fe))
			}
			return nil, &domain.SchemaValidationError{Problems: problems}
		}
		return nil, &domain.SchemaValidationError{Err: err}
	}

	decision, _ := domain.ParseClinicalDecision(w.ClinicalDecision)
	routine := domain.Routine{
		Exercises:     make([]domain.Exercise, len(w.Exercises)),
		Rationale:     w.Rationale,
		TotalDuration: w.TotalDuration,
		References:    w.References,
		EvidenceLevel: w.EvidenceLevel,
	}
	for i, ex := range w.Exercises {
		difficulty, _ := domain.ParseDifficulty(ex.Difficulty)
		routine.Exercises[i] = domain.Exercise{
			ID:          ex.ID,
			Name:        ex.Name,
			Description: ex.Description,
			Sets:        *ex.Sets,
			Reps:        *ex.Reps,
			Duration:    ex.Duration,
			Frequency:   *ex.Frequency,
			Rest:        *ex.Rest,
			Tips:        ex.Tips,
			MuscleGroup: *ex.MuscleGroup,
			Difficulty:  difficulty,
			Warnings:    ex.Warnings,
		}
	}
	return &Result{Routine: routine, Decision: decision}, nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "wireRoutine.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return field + " must not be empty"
		}
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "clinical_decision":
		return fmt.Sprintf("%s %q is not one of Progresión, Mantenimiento, Regresión/Adaptación", field, fe.Value())
	case "difficulty":
		return fmt.Sprintf("%s %q is not one of Baja, Media, Alta", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// stripCodeFence removes a surrounding ```json ... ``` block, which some
// models add even when asked for raw JSON.
func stripCodeFence(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = body[3:]
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return nil
	}
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte("```"))
	return bytes.TrimSpace(body)
}
