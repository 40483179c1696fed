package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// PatientList is the top-level collection of patients in registration order.
// Its methods never modify the receiver; they return an updated copy, so a
// caller can persist the new list before publishing it.
type PatientList []Patient

// AddPatient validates p and returns a new list with p appended.
// A nil session slice is normalized to an empty one.
func (l PatientList) AddPatient(p Patient) (PatientList, error) {
	if err := p.Validate(); err != nil {
		return l, err
	}
	if p.Sessions == nil {
		p.Sessions = []Session{}
	}
	out := make(PatientList, len(l), len(l)+1)
	copy(out, l)
	return append(out, p), nil
}

// AppendSession returns a new list where s is the first (most recent) session
// of the patient with the given id.
func (l PatientList) AppendSession(patientID string, s Session) (PatientList, error) {
	idx := l.indexOf(patientID)
	if idx < 0 {
		return l, &NotFoundError{Kind: "patient", ID: patientID}
	}
	out := make(PatientList, len(l))
	copy(out, l)

	p := out[idx]
	sessions := make([]Session, 0, len(p.Sessions)+1)
	sessions = append(sessions, s)
	sessions = append(sessions, p.Sessions...)
	p.Sessions = sessions
	out[idx] = p
	return out, nil
}

// FindByID returns the patient with the given id.
func (l PatientList) FindByID(id string) (Patient, bool) {
	idx := l.indexOf(id)
	if idx < 0 {
		return Patient{}, false
	}
	return l[idx], true
}

// FilterByNameOrCondition returns the patients whose name or diagnosis
// condition contains query, ignoring case. A blank query returns every patient
// in order.
func (l PatientList) FilterByNameOrCondition(query string) PatientList {
	query = strings.TrimSpace(query)
	if query == "" {
		out := make(PatientList, len(l))
		copy(out, l)
		return out
	}
	fold := cases.Fold()
	needle := fold.String(query)
	out := make(PatientList, 0, len(l))
	for _, p := range l {
		if strings.Contains(fold.String(p.Name), needle) ||
			strings.Contains(fold.String(p.Diagnosis.Condition), needle) {
			out = append(out, p)
		}
	}
	return out
}

// SessionCount is the number of sessions across all patients.
func (l PatientList) SessionCount() int {
	n := 0
	for _, p := range l {
		n += len(p.Sessions)
	}
	return n
}

func (l PatientList) indexOf(id string) int {
	for i := range l {
		if l[i].ID == id {
			return i
		}
	}
	return -1
}
