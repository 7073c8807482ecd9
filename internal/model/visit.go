package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VisitStatus is the stage a visit is currently in. Transitions are strictly
// forward: triage → waiting_consultation → [in_consultation] → pharmacy →
// completed. in_consultation is optional; a clinician may record the
// consultation directly from waiting_consultation.
type VisitStatus string

const (
	VisitStatusTriage              VisitStatus = "triage"
	VisitStatusWaitingConsultation VisitStatus = "waiting_consultation"
	VisitStatusInConsultation      VisitStatus = "in_consultation"
	VisitStatusPharmacy            VisitStatus = "pharmacy"
	VisitStatusCompleted           VisitStatus = "completed"
)

// VisitEvent drives the visit state machine.
type VisitEvent string

const (
	EventTriageRecorded       VisitEvent = "triage_recorded"
	EventConsultationStarted  VisitEvent = "consultation_started"
	EventConsultationRecorded VisitEvent = "consultation_recorded"
	EventDispenseCompleted    VisitEvent = "dispense_completed"
)

// ErrInvalidTransition reports an event applied in a stage that does not
// accept it. The visit is left untouched.
type ErrInvalidTransition struct {
	From  VisitStatus
	Event VisitEvent
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("event %q is not valid for visit in status %q", e.Event, e.From)
}

// Transition is the pure state-machine function. It returns the status the
// visit moves to when the event is applied, or ErrInvalidTransition.
func Transition(from VisitStatus, event VisitEvent) (VisitStatus, error) {
	switch event {
	case EventTriageRecorded:
		if from == VisitStatusTriage {
			return VisitStatusWaitingConsultation, nil
		}
	case EventConsultationStarted:
		if from == VisitStatusWaitingConsultation {
			return VisitStatusInConsultation, nil
		}
	case EventConsultationRecorded:
		if from == VisitStatusWaitingConsultation || from == VisitStatusInConsultation {
			return VisitStatusPharmacy, nil
		}
	case EventDispenseCompleted:
		if from == VisitStatusPharmacy {
			return VisitStatusCompleted, nil
		}
	}
	return from, &ErrInvalidTransition{From: from, Event: event}
}

// Terminal reports whether no further events are accepted.
func (s VisitStatus) Terminal() bool {
	return s == VisitStatusCompleted
}

func (s VisitStatus) Valid() bool {
	switch s {
	case VisitStatusTriage, VisitStatusWaitingConsultation, VisitStatusInConsultation,
		VisitStatusPharmacy, VisitStatusCompleted:
		return true
	}
	return false
}

// VisitPriority is captured at check-in and drives queue ordering ahead of
// arrival time.
type VisitPriority string

const (
	PriorityNormal       VisitPriority = "normal"
	PriorityPreferential VisitPriority = "preferential"
	PriorityEmergency    VisitPriority = "emergency"
)

func (p VisitPriority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityPreferential, PriorityEmergency:
		return true
	}
	return false
}

// Rank orders priorities for queue selection; lower is served first.
func (p VisitPriority) Rank() int {
	switch p {
	case PriorityEmergency:
		return 0
	case PriorityPreferential:
		return 1
	default:
		return 2
	}
}

// TriageRecord is attached by the nurse when vitals are taken.
type TriageRecord struct {
	BloodPressure string `json:"blood_pressure"`
	Temperature   string `json:"temperature"`
	HeartRate     string `json:"heart_rate,omitempty"`
	Weight        string `json:"weight,omitempty"`
	Symptoms      string `json:"symptoms"`
	Nurse         string `json:"nurse"`
}

// DoctorRecord is attached by the clinician at consultation.
type DoctorRecord struct {
	Diagnosis    string   `json:"diagnosis"`
	Prescription string   `json:"prescription"`
	Medications  []string `json:"medications"`
	Clinician    string   `json:"clinician"`
}

// DispensedLine is one (item, quantity) pair handed out at the pharmacy stage.
type DispensedLine struct {
	ItemID   uuid.UUID `json:"item_id"`
	Name     string    `json:"name"`
	Quantity int       `json:"quantity"`
}

// PharmacyRecord is attached when the visit is completed by a dispensation.
type PharmacyRecord struct {
	Lines      []DispensedLine `json:"lines"`
	Pharmacist string          `json:"pharmacist"`
	Notes      string          `json:"notes,omitempty"`
}

// Value stores the stage records as JSONB columns. Reads go through the
// repository's row type so a NULL column stays a nil record.

func (r TriageRecord) Value() (driver.Value, error)   { return json.Marshal(r) }
func (r DoctorRecord) Value() (driver.Value, error)   { return json.Marshal(r) }
func (r PharmacyRecord) Value() (driver.Value, error) { return json.Marshal(r) }

// CalendarDay normalizes a timestamp to midnight of its local calendar day,
// the granularity the one-visit-per-day rule and the queue views operate on.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Visit is one intake episode for one beneficiary on one day.
type Visit struct {
	Base
	BeneficiaryID   uuid.UUID       `db:"beneficiary_id" json:"beneficiary_id"`
	BeneficiaryName string          `db:"beneficiary_name" json:"beneficiary_name,omitempty"`
	VisitDate       time.Time       `db:"visit_date" json:"visit_date"`
	Status          VisitStatus     `db:"status" json:"status"`
	Priority        VisitPriority   `db:"priority" json:"priority"`
	Triage          *TriageRecord   `db:"triage" json:"triage,omitempty"`
	Doctor          *DoctorRecord   `db:"doctor" json:"doctor,omitempty"`
	Pharmacy        *PharmacyRecord `db:"pharmacy" json:"pharmacy,omitempty"`
}

type CheckInRequest struct {
	BeneficiaryID string `json:"beneficiary_id" binding:"required"`
	Priority      string `json:"priority"`
}

type RecordTriageRequest struct {
	BloodPressure string `json:"blood_pressure" binding:"required"`
	Temperature   string `json:"temperature" binding:"required"`
	HeartRate     string `json:"heart_rate"`
	Weight        string `json:"weight"`
	Symptoms      string `json:"symptoms"`
}

type RecordConsultationRequest struct {
	Diagnosis    string   `json:"diagnosis" binding:"required"`
	Prescription string   `json:"prescription"`
	Medications  []string `json:"medications"`
}
