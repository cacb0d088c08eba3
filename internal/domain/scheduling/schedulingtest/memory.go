// Package schedulingtest provides an in-memory appointment store for tests of
// scheduling and the packages that read appointments.
package schedulingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/domain/scheduling"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/pkg/pagination"
)

// Memory mirrors the unique (customer, date) index of the pg store.
// Ids passed to MarkReferenced refuse deletion the way the pg foreign keys
// from consulted services and treatment logs do.
type Memory struct {
	mu         sync.RWMutex
	rows       map[uuid.UUID]*scheduling.Appointment
	referenced map[uuid.UUID]bool
}

var _ scheduling.AppointmentRepository = (*Memory)(nil)

func New() *Memory {
	return &Memory{rows: make(map[uuid.UUID]*scheduling.Appointment), referenced: make(map[uuid.UUID]bool)}
}

func (m *Memory) MarkReferenced(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referenced[id] = true
}

// Seed stores a copy of a as is, assigning an id when missing. An empty
// AppointmentDate is filled with the UTC date of the start.
func (m *Memory) Seed(a *scheduling.Appointment) *scheduling.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AppointmentDate == "" {
		a.AppointmentDate = a.AppointmentDateTime.UTC().Format(scheduling.DateLayout)
	}
	cp := *a
	m.rows[a.ID] = &cp
	return a
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

func (m *Memory) duplicate(a *scheduling.Appointment) bool {
	for _, r := range m.rows {
		if r.ID != a.ID && r.CustomerID == a.CustomerID && r.AppointmentDate == a.AppointmentDate {
			return true
		}
	}
	return false
}

func (m *Memory) Create(_ context.Context, a *scheduling.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.duplicate(a) {
		return apperr.New(apperr.CodeCustomerConflict, "customer already has an appointment on %s", a.AppointmentDate)
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, apperr.NotFound("appointment")
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) Update(_ context.Context, a *scheduling.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[a.ID]; !ok {
		return apperr.NotFound("appointment")
	}
	if m.duplicate(a) {
		return apperr.New(apperr.CodeCustomerConflict, "customer already has an appointment on %s", a.AppointmentDate)
	}
	a.UpdatedAt = time.Now()
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return apperr.NotFound("appointment")
	}
	if m.referenced[id] {
		return apperr.New(apperr.CodeInUse, "appointment has consulted services or treatment logs")
	}
	delete(m.rows, id)
	return nil
}

func (m *Memory) FindByCustomerDate(_ context.Context, customerID uuid.UUID, date string, excludeID uuid.UUID) (*scheduling.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rows {
		if r.ID != excludeID && r.CustomerID == customerID && r.AppointmentDate == date {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListOverlapping(_ context.Context, dentistID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*scheduling.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*scheduling.Appointment
	for _, r := range m.rows {
		if r.ID == excludeID || r.Status == scheduling.StatusNoShow {
			continue
		}
		assigned := r.PrimaryDentistID == dentistID ||
			(r.SecondaryDentistID != nil && *r.SecondaryDentistID == dentistID)
		if assigned && r.AppointmentDateTime.Before(end) && r.End().After(start) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sortByStart(out, false)
	return out, nil
}

func (m *Memory) ListByCustomer(_ context.Context, customerID uuid.UUID, clinicID *uuid.UUID, limit, offset int) ([]*scheduling.Appointment, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*scheduling.Appointment
	for _, r := range m.rows {
		if r.CustomerID != customerID || (clinicID != nil && r.ClinicID != *clinicID) {
			continue
		}
		cp := *r
		all = append(all, &cp)
	}
	sortByStart(all, true)
	return pagination.Window(all, pagination.Params{Limit: limit, Offset: offset}), len(all), nil
}

func (m *Memory) ListByClinicRange(_ context.Context, clinicID uuid.UUID, from, to time.Time, limit, offset int) ([]*scheduling.Appointment, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*scheduling.Appointment
	for _, r := range m.rows {
		if r.ClinicID != clinicID || r.AppointmentDateTime.Before(from) || !r.AppointmentDateTime.Before(to) {
			continue
		}
		cp := *r
		all = append(all, &cp)
	}
	sortByStart(all, false)
	return pagination.Window(all, pagination.Params{Limit: limit, Offset: offset}), len(all), nil
}

func sortByStart(rows []*scheduling.Appointment, desc bool) {
	sort.Slice(rows, func(i, j int) bool {
		if desc {
			return rows[i].AppointmentDateTime.After(rows[j].AppointmentDateTime)
		}
		return rows[i].AppointmentDateTime.Before(rows[j].AppointmentDateTime)
	})
}
