package treatment

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/domain/consultation"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/internal/platform/validation"
	"github.com/clinicops/clinic/pkg/patch"
)

// TreatmentLog is one session performed against a consulted service.
// TreatmentDate and ClinicID come from the appointment the session happened
// in, not from the service.
type TreatmentLog struct {
	ID                 uuid.UUID                    `json:"id"`
	ConsultedServiceID uuid.UUID                    `json:"consultedServiceId"`
	AppointmentID      uuid.UUID                    `json:"appointmentId"`
	CustomerID         uuid.UUID                    `json:"customerId"`
	ClinicID           uuid.UUID                    `json:"clinicId"`
	TreatmentDate      time.Time                    `json:"treatmentDate"`
	TreatmentStatus    consultation.TreatmentStatus `json:"treatmentStatus"`
	Notes              *string                      `json:"notes,omitempty"`
	DentistID          uuid.UUID                    `json:"dentistId"`
	Assistant1ID       *uuid.UUID                   `json:"assistant1Id,omitempty"`
	Assistant2ID       *uuid.UUID                   `json:"assistant2Id,omitempty"`
	MediaURLs          []string                     `json:"mediaUrls"`
	CreatedByID        uuid.UUID                    `json:"createdById"`
	UpdatedByID        uuid.UUID                    `json:"updatedById"`
	CreatedAt          time.Time                    `json:"createdAt"`
	UpdatedAt          time.Time                    `json:"updatedAt"`
}

func (l *TreatmentLog) record() permission.TreatmentLogRecord {
	return permission.TreatmentLogRecord{ClinicID: l.ClinicID, CreatedByID: l.CreatedByID}
}

// Project derives a service's treatment status from its logs: the status of
// the log with the latest treatment date, NotStarted when there are none.
// Ties on date go to the later-created log.
func Project(logs []*TreatmentLog) consultation.TreatmentStatus {
	if len(logs) == 0 {
		return consultation.TreatmentNotStarted
	}
	sorted := append([]*TreatmentLog(nil), logs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.TreatmentDate.Equal(b.TreatmentDate) {
			return a.TreatmentDate.After(b.TreatmentDate)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return sorted[0].TreatmentStatus
}

const (
	fieldTreatmentStatus = "treatmentStatus"
	fieldDentistID       = "dentistId"
	fieldAssistant1ID    = "assistant1Id"
	fieldAssistant2ID    = "assistant2Id"
	fieldMediaURLs       = "mediaUrls"
)

type CreateRequest struct {
	AppointmentID      uuid.UUID                    `json:"appointmentId" validate:"required"`
	ConsultedServiceID uuid.UUID                    `json:"consultedServiceId" validate:"required"`
	TreatmentStatus    consultation.TreatmentStatus `json:"treatmentStatus" validate:"required,oneof=NotStarted InProgress Completed"`
	Notes              *string                      `json:"notes" validate:"omitempty,max=4000"`
	DentistID          uuid.UUID                    `json:"dentistId" validate:"required"`
	Assistant1ID       *uuid.UUID                   `json:"assistant1Id"`
	Assistant2ID       *uuid.UUID                   `json:"assistant2Id"`
	MediaURLs          []string                     `json:"mediaUrls" validate:"omitempty,max=20,dive,url"`
}

type UpdateRequest struct {
	TreatmentStatus patch.Field[consultation.TreatmentStatus] `json:"treatmentStatus"`
	Notes           patch.Field[string]                       `json:"notes"`
	DentistID       patch.Field[uuid.UUID]                    `json:"dentistId"`
	Assistant1ID    patch.Field[uuid.UUID]                    `json:"assistant1Id"`
	Assistant2ID    patch.Field[uuid.UUID]                    `json:"assistant2Id"`
	MediaURLs       patch.Field[[]string]                     `json:"mediaUrls"`
}

func (r *UpdateRequest) validate() error {
	if r.TreatmentStatus.Null {
		return apperr.Validation("treatmentStatus cannot be null")
	}
	if r.TreatmentStatus.HasValue() && !r.TreatmentStatus.Value.Valid() {
		return apperr.Validation("treatmentStatus must be one of [NotStarted InProgress Completed]")
	}
	if r.DentistID.Null || (r.DentistID.HasValue() && r.DentistID.Value == uuid.Nil) {
		return apperr.Validation("dentistId is required")
	}
	if r.Notes.HasValue() && len(r.Notes.Value) > 4000 {
		return apperr.Validation("notes must be at most 4000")
	}
	if r.MediaURLs.HasValue() {
		if err := validation.Var(fieldMediaURLs, r.MediaURLs.Value, "max=20,dive,url"); err != nil {
			return err
		}
	}
	return nil
}

// fields lists the supplied keys. Every edit of a log is gated the same way,
// so there is no need to compare values.
func (r *UpdateRequest) fields() []string {
	var out []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{r.TreatmentStatus.Set, fieldTreatmentStatus},
		{r.Notes.Set, permission.FieldNotes},
		{r.DentistID.Set, fieldDentistID},
		{r.Assistant1ID.Set, fieldAssistant1ID},
		{r.Assistant2ID.Set, fieldAssistant2ID},
		{r.MediaURLs.Set, fieldMediaURLs},
	} {
		if f.set {
			out = append(out, f.name)
		}
	}
	return out
}
