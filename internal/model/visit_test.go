package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    VisitStatus
		event   VisitEvent
		want    VisitStatus
		wantErr bool
	}{
		{"triage to waiting", VisitStatusTriage, EventTriageRecorded, VisitStatusWaitingConsultation, false},
		{"waiting to in consultation", VisitStatusWaitingConsultation, EventConsultationStarted, VisitStatusInConsultation, false},
		{"waiting straight to pharmacy", VisitStatusWaitingConsultation, EventConsultationRecorded, VisitStatusPharmacy, false},
		{"in consultation to pharmacy", VisitStatusInConsultation, EventConsultationRecorded, VisitStatusPharmacy, false},
		{"pharmacy to completed", VisitStatusPharmacy, EventDispenseCompleted, VisitStatusCompleted, false},

		{"triage rejects consultation", VisitStatusTriage, EventConsultationRecorded, VisitStatusTriage, true},
		{"triage rejects dispense", VisitStatusTriage, EventDispenseCompleted, VisitStatusTriage, true},
		{"waiting rejects triage again", VisitStatusWaitingConsultation, EventTriageRecorded, VisitStatusWaitingConsultation, true},
		{"pharmacy rejects consultation", VisitStatusPharmacy, EventConsultationRecorded, VisitStatusPharmacy, true},
		{"completed rejects everything", VisitStatusCompleted, EventDispenseCompleted, VisitStatusCompleted, true},
		{"no backward move", VisitStatusPharmacy, EventTriageRecorded, VisitStatusPharmacy, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
				var invalid *ErrInvalidTransition
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, tt.from, invalid.From)
				assert.Equal(t, tt.event, invalid.Event)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestVisitStatusTerminal(t *testing.T) {
	assert.True(t, VisitStatusCompleted.Terminal())

	for _, s := range []VisitStatus{
		VisitStatusTriage,
		VisitStatusWaitingConsultation,
		VisitStatusInConsultation,
		VisitStatusPharmacy,
	} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestVisitPriorityRank(t *testing.T) {
	assert.Less(t, PriorityEmergency.Rank(), PriorityPreferential.Rank())
	assert.Less(t, PriorityPreferential.Rank(), PriorityNormal.Rank())
}

func TestCalendarDay(t *testing.T) {
	// Early morning in a UTC+10 zone: a UTC truncation would land on the
	// previous day.
	zone := time.FixedZone("UTC+10", 10*60*60)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, zone)

	day := CalendarDay(now)
	assert.Equal(t, "2026-09-01", day.Format("2006-01-02"))
	assert.Equal(t, now.Format("2006-01-02"), day.Format("2006-01-02"))
	assert.Equal(t, zone, day.Location())

	utcTrunc := now.Truncate(24 * time.Hour)
	assert.NotEqual(t, utcTrunc.Format("2006-01-02"), day.Format("2006-01-02"))
}

func TestVisitPriorityValid(t *testing.T) {
	assert.True(t, PriorityNormal.Valid())
	assert.True(t, PriorityPreferential.Valid())
	assert.True(t, PriorityEmergency.Valid())
	assert.False(t, VisitPriority("urgent").Valid())
	assert.False(t, VisitPriority("").Valid())
}
